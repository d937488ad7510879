package schema

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"go.jacobcolvin.com/foundry/pointer"
)

var (
	// ErrDecode indicates the input is not parseable YAML/JSON.
	ErrDecode = errors.New("schema: decode input")
	// ErrInvalidSchema indicates a schema that violates a structural
	// invariant (non-positive multipleOf, non-finite bound, empty enum).
	ErrInvalidSchema = errors.New("schema: invalid schema")
)

// Decode parses a schema document from YAML or JSON bytes into a generic
// value tree with string-keyed maps and int64/float64 numerics.
func Decode(data []byte) (any, error) {
	var v any

	err := yaml.Unmarshal(data, &v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return normalizeTree(v), nil
}

// normalizeTree rewrites decoder-specific types into the canonical generic
// representation: map[string]any, []any, int64, float64, string, bool, nil.
func normalizeTree(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalizeTree(val)
		}

		return out

	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprintf("%v", k)] = normalizeTree(val)
		}

		return out

	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeTree(e)
		}

		return out

	case int:
		return int64(x)

	case uint64:
		return int64(x)

	case float32:
		return float64(x)

	default:
		return v
	}
}

// BuildFragment constructs an AST node for a schema fragment outside the
// normalization flow, e.g. when the generator chases a $ref into the raw
// document.
func BuildFragment(raw any, canonPath string) (*Node, error) {
	return buildNode(raw, canonPath)
}

// ResolveLocal walks a #-local JSON Pointer through a document, returning
// the addressed fragment.
func ResolveLocal(doc any, ref string) (any, bool) {
	ptr := strings.TrimPrefix(ref, "#")
	if ptr == "" {
		return doc, true
	}

	cur := doc

	for _, token := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		token = pointer.Unescape(token)

		switch x := cur.(type) {
		case map[string]any:
			next, ok := x[token]
			if !ok {
				return nil, false
			}

			cur = next

		case []any:
			idx := -1

			_, err := fmt.Sscanf(token, "%d", &idx)
			if err != nil || idx < 0 || idx >= len(x) {
				return nil, false
			}

			cur = x[idx]

		default:
			return nil, false
		}
	}

	return cur, true
}

// buildNode constructs the canonical AST for a schema fragment, recording
// the canonical pointer of every node and enforcing parse-time invariants.
// Pointer bookkeeping happens earlier, in the canonicalization walk.
func buildNode(raw any, canonPath string) (*Node, error) {
	switch s := raw.(type) {
	case bool:
		b := s

		return &Node{Kind: KindAny, CanonPath: canonPath, BoolSchema: &b}, nil

	case map[string]any:
		return buildMapNode(s, canonPath)
	}

	return nil, fmt.Errorf("%w: schema at %q is %T, want object or boolean",
		ErrInvalidSchema, canonPath, raw)
}

//nolint:maintidx // Keyword dispatch is long but flat.
func buildMapNode(s map[string]any, canonPath string) (*Node, error) {
	n := &Node{CanonPath: canonPath, Raw: s}

	if ref, ok := s["$ref"].(string); ok {
		n.Kind = KindRef
		n.Ref = ref

		return n, nil
	}

	if err := parseScalarKeywords(n, s); err != nil {
		return nil, err
	}

	// Subschema keywords, each recursing with an extended canonical path.
	// The key is a pre-escaped pointer suffix ("properties/foo~1bar").
	child := func(key string, raw any) (*Node, error) {
		return buildNode(raw, canonPath+"/"+key)
	}

	childList := func(key string, raw any) ([]*Node, error) {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q at %q must be a list", ErrInvalidSchema, key, canonPath)
		}

		subs := make([]*Node, 0, len(list))

		for i, e := range list {
			sub, err := child(fmt.Sprintf("%s/%d", key, i), e)
			if err != nil {
				return nil, err
			}

			subs = append(subs, sub)
		}

		return subs, nil
	}

	var err error

	if props, ok := s["properties"].(map[string]any); ok {
		n.Properties = make(map[string]*Node, len(props))
		n.PropertyOrder = sortedKeys(props)

		for _, name := range n.PropertyOrder {
			n.Properties[name], err = child("properties/"+pointer.Escape(name), props[name])
			if err != nil {
				return nil, err
			}
		}
	}

	if pats, ok := s["patternProperties"].(map[string]any); ok {
		n.PatternProperties = make(map[string]*Node, len(pats))
		n.PatternPropertyOrder = sortedKeys(pats)

		for _, pat := range n.PatternPropertyOrder {
			n.PatternProperties[pat], err = child("patternProperties/"+pointer.Escape(pat), pats[pat])
			if err != nil {
				return nil, err
			}
		}
	}

	switch ap := s["additionalProperties"].(type) {
	case bool:
		allowed := ap
		n.AdditionalAllowed = &allowed

	case map[string]any:
		n.AdditionalSchema, err = child("additionalProperties", ap)
		if err != nil {
			return nil, err
		}
	}

	if pn, ok := s["propertyNames"]; ok {
		n.PropertyNames, err = child("propertyNames", pn)
		if err != nil {
			return nil, err
		}
	}

	if deps, ok := s["dependentRequired"].(map[string]any); ok {
		n.DependentRequired = make(map[string][]string, len(deps))
		for name, v := range deps {
			n.DependentRequired[name] = toStringList(v)
		}
	}

	if deps, ok := s["dependentSchemas"].(map[string]any); ok {
		n.DependentSchemas = make(map[string]*Node, len(deps))
		for _, name := range sortedKeys(deps) {
			n.DependentSchemas[name], err = child("dependentSchemas/"+pointer.Escape(name), deps[name])
			if err != nil {
				return nil, err
			}
		}
	}

	if up, ok := s["unevaluatedProperties"].(bool); ok {
		allowed := up
		n.UnevaluatedAllowed = &allowed
	}

	if items, ok := s["items"]; ok {
		n.Items, err = child("items", items)
		if err != nil {
			return nil, err
		}
	}

	if prefix, ok := s["prefixItems"]; ok {
		n.PrefixItems, err = childList("prefixItems", prefix)
		if err != nil {
			return nil, err
		}
	}

	if contains, ok := s["contains"]; ok {
		n.Contains, err = child("contains", contains)
		if err != nil {
			return nil, err
		}
	}

	for key, target := range map[string]*[]*Node{
		"allOf": &n.AllOf,
		"anyOf": &n.AnyOf,
		"oneOf": &n.OneOf,
	} {
		if raw, ok := s[key]; ok {
			*target, err = childList(key, raw)
			if err != nil {
				return nil, err
			}
		}
	}

	for key, target := range map[string]**Node{
		"not":  &n.Not,
		"if":   &n.If,
		"then": &n.Then,
		"else": &n.Else,
	} {
		if raw, ok := s[key]; ok {
			*target, err = child(key, raw)
			if err != nil {
				return nil, err
			}
		}
	}

	n.Kind = classify(n, s)

	return n, nil
}

// parseScalarKeywords fills the non-recursive keyword fields, enforcing
// numeric invariants.
func parseScalarKeywords(n *Node, s map[string]any) error {
	if enum, ok := s["enum"]; ok {
		list, isList := enum.([]any)
		if !isList || len(list) == 0 {
			return fmt.Errorf("%w: enum at %q must be a non-empty list", ErrInvalidSchema, n.CanonPath)
		}

		n.Enum = list
	}

	if c, ok := s["const"]; ok {
		n.Const = &c
	}

	for key, target := range map[string]**float64{
		"minimum":          &n.Minimum,
		"maximum":          &n.Maximum,
		"exclusiveMinimum": &n.ExclusiveMinimum,
		"exclusiveMaximum": &n.ExclusiveMaximum,
		"multipleOf":       &n.MultipleOf,
	} {
		raw, ok := s[key]
		if !ok {
			continue
		}

		f, ok := toFloat(raw)
		if !ok {
			// Draft-04 boolean exclusives are rewritten before parse;
			// anything else non-numeric is invalid.
			if _, isBool := raw.(bool); isBool {
				continue
			}

			return fmt.Errorf("%w: %s at %q is not numeric", ErrInvalidSchema, key, n.CanonPath)
		}

		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %s at %q is not finite", ErrInvalidSchema, key, n.CanonPath)
		}

		if key == "multipleOf" && f <= 0 {
			return fmt.Errorf("%w: multipleOf at %q must be positive", ErrInvalidSchema, n.CanonPath)
		}

		v := f
		*target = &v
	}

	for key, target := range map[string]**int{
		"minLength":     &n.MinLength,
		"maxLength":     &n.MaxLength,
		"minItems":      &n.MinItems,
		"maxItems":      &n.MaxItems,
		"minContains":   &n.MinContains,
		"maxContains":   &n.MaxContains,
		"minProperties": &n.MinProperties,
		"maxProperties": &n.MaxProperties,
	} {
		if raw, ok := s[key]; ok {
			if f, isNum := toFloat(raw); isNum && f >= 0 {
				v := int(f)
				*target = &v
			}
		}
	}

	if p, ok := s["pattern"].(string); ok {
		n.Pattern = p
	}

	if f, ok := s["format"].(string); ok {
		n.Format = f
	}

	if u, ok := s["uniqueItems"].(bool); ok {
		n.UniqueItems = u
	}

	if req, ok := s["required"]; ok {
		n.Required = toStringList(req)
	}

	if ex, ok := s["examples"].([]any); ok {
		n.Examples = ex
	}

	if d, ok := s["default"]; ok {
		n.Default = d
	}

	return nil
}

// classify picks the node kind from the declared type, falling back to
// structural hints.
func classify(n *Node, s map[string]any) Kind {
	switch t := s["type"].(type) {
	case string:
		return kindOfType(t)

	case []any:
		n.Types = toStringList(t)
		if len(n.Types) > 0 {
			return kindOfType(n.Types[0])
		}
	}

	switch {
	case n.Enum != nil || n.Const != nil:
		return KindEnumOnly
	case n.HasComposition():
		return KindComposition
	case n.Properties != nil || n.PatternProperties != nil || n.PropertyNames != nil:
		return KindObject
	case n.Items != nil || n.PrefixItems != nil || n.Contains != nil:
		return KindArray
	}

	return KindAny
}

func kindOfType(t string) Kind {
	switch t {
	case "object":
		return KindObject
	case "array":
		return KindArray
	case "string":
		return KindString
	case "number":
		return KindNumber
	case "integer":
		return KindInteger
	case "boolean":
		return KindBoolean
	case "null":
		return KindNull
	}

	return KindAny
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case uint64:
		return float64(x), true
	}

	return 0, false
}

func toStringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(list))

	for _, e := range list {
		if s, isStr := e.(string); isStr {
			out = append(out, s)
		}
	}

	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
