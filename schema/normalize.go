package schema

import (
	"fmt"
	"regexp"

	"go.jacobcolvin.com/foundry/diag"
	"go.jacobcolvin.com/foundry/pointer"
)

// Normalized is the output of [Normalize]: the canonical AST, the
// canonicalized raw document it was built from, the pointer map relating
// canonical nodes to the original text, and explanatory notes.
type Normalized struct {
	Root     *Node
	Raw      any
	Original any
	Dialect  Dialect
	Declared bool
	Ptrs     *pointer.Map
	Notes    []diag.Diagnostic

	itemsArrays []string
}

// Normalize decodes a schema document and produces its canonical form.
//
// Canonicalization rewrites dialect-specific spellings into the 2020-12
// shape the rest of the engine reasons over: draft-04 boolean exclusive
// bounds become numeric bounds, draft-07 array-form items becomes
// prefixItems, and subschema $schema declarations that duplicate the root
// dialect are stripped. Every rewrite leaves a note.
func Normalize(data []byte) (*Normalized, error) {
	decoded, err := Decode(data)
	if err != nil {
		return nil, err
	}

	return NormalizeValue(decoded)
}

// NormalizeValue canonicalizes an already-decoded schema document.
func NormalizeValue(decoded any) (*Normalized, error) {
	dialect := DefaultDialect
	declared := false

	if m, ok := decoded.(map[string]any); ok {
		if uri, isStr := m["$schema"].(string); isStr {
			dialect, declared = DetectDialect(uri)
		}
	}

	norm := &Normalized{
		Original: decoded,
		Dialect:  dialect,
		Declared: declared,
		Ptrs:     pointer.NewMap(),
	}

	canonical, err := norm.canonicalize(decoded, "", "")
	if err != nil {
		return nil, err
	}

	norm.Raw = canonical

	norm.Root, err = buildNode(canonical, "")
	if err != nil {
		return nil, err
	}

	return norm, nil
}

// subschemaMapKeys hold maps of named subschemas.
var subschemaMapKeys = map[string]bool{
	"properties":        true,
	"patternProperties": true,
	"dependentSchemas":  true,
	"$defs":             true,
	"definitions":       true,
}

// subschemaListKeys hold ordered lists of subschemas.
var subschemaListKeys = map[string]bool{
	"allOf":       true,
	"anyOf":       true,
	"oneOf":       true,
	"prefixItems": true,
}

// subschemaKeys hold a single subschema (or a boolean schema).
var subschemaKeys = map[string]bool{
	"additionalProperties":  true,
	"additionalItems":       true,
	"unevaluatedProperties": true,
	"unevaluatedItems":      true,
	"propertyNames":         true,
	"contains":              true,
	"not":                   true,
	"if":                    true,
	"then":                  true,
	"else":                  true,
}

// canonicalize walks one schema node, returning its canonical rendition and
// recording the canonical-to-original pointer mapping.
func (norm *Normalized) canonicalize(raw any, canonPath, origPath string) (any, error) {
	if err := norm.Ptrs.MapCanonToOrig(canonPath, origPath); err != nil {
		return nil, err
	}

	m, ok := raw.(map[string]any)
	if !ok {
		// Boolean schemas and scalars pass through.
		return raw, nil
	}

	out := make(map[string]any, len(m))

	for _, key := range sortedKeys(m) {
		out[key] = m[key]
	}

	if canonPath != "" {
		norm.stripEmbeddedMeta(out, canonPath)
	}

	norm.rewriteDraft04Exclusives(out, canonPath)
	norm.rewriteItemsArray(out, canonPath)
	norm.notePatternTolerance(out, canonPath)

	for _, key := range sortedKeys(out) {
		val := out[key]

		switch {
		case subschemaMapKeys[key]:
			sub, isMap := val.(map[string]any)
			if !isMap {
				continue
			}

			canonSub := make(map[string]any, len(sub))

			for _, name := range sortedKeys(sub) {
				suffix := "/" + key + "/" + pointer.Escape(name)

				c, err := norm.canonicalize(sub[name], canonPath+suffix, origPath+suffix)
				if err != nil {
					return nil, err
				}

				canonSub[name] = c
			}

			out[key] = canonSub

		case subschemaListKeys[key]:
			list, isList := val.([]any)
			if !isList {
				continue
			}

			canonList := make([]any, len(list))

			for i, e := range list {
				suffix := fmt.Sprintf("/%s/%d", key, i)

				origSuffix := suffix
				if key == "prefixItems" && norm.itemsWasArray(canonPath) {
					origSuffix = fmt.Sprintf("/items/%d", i)
				}

				c, err := norm.canonicalize(e, canonPath+suffix, origPath+origSuffix)
				if err != nil {
					return nil, err
				}

				canonList[i] = c
			}

			out[key] = canonList

		case subschemaKeys[key] || key == "items":
			suffix := "/" + key

			origSuffix := suffix
			if key == "items" && norm.itemsWasArray(canonPath) {
				origSuffix = "/additionalItems"
			}

			c, err := norm.canonicalize(val, canonPath+suffix, origPath+origSuffix)
			if err != nil {
				return nil, err
			}

			out[key] = c
		}
	}

	return out, nil
}

// stripEmbeddedMeta removes subschema $schema declarations that duplicate
// the root dialect.
func (norm *Normalized) stripEmbeddedMeta(m map[string]any, canonPath string) {
	uri, ok := m["$schema"].(string)
	if !ok {
		return
	}

	d, _ := DetectDialect(uri)
	if d != norm.Dialect {
		return
	}

	delete(m, "$schema")
	norm.Notes = append(norm.Notes, diag.New(diag.CodeNormalizeMetaSchemaStripped, canonPath,
		map[string]any{"uri": uri}))
}

// rewriteDraft04Exclusives converts draft-04 boolean exclusiveMinimum and
// exclusiveMaximum into the numeric 2019-09+ spelling.
func (norm *Normalized) rewriteDraft04Exclusives(m map[string]any, canonPath string) {
	type pair struct {
		exclusive string
		bound     string
	}

	for _, p := range []pair{
		{exclusive: "exclusiveMinimum", bound: "minimum"},
		{exclusive: "exclusiveMaximum", bound: "maximum"},
	} {
		flag, ok := m[p.exclusive].(bool)
		if !ok {
			continue
		}

		if flag {
			if bound, hasBound := m[p.bound]; hasBound {
				m[p.exclusive] = bound

				delete(m, p.bound)
			} else {
				delete(m, p.exclusive)
			}
		} else {
			delete(m, p.exclusive)
		}

		norm.Notes = append(norm.Notes, diag.New(diag.CodeNormalizeNote, canonPath,
			map[string]any{"rewrite": "draft04-exclusive-bound", "keyword": p.exclusive}))
	}
}

// rewriteItemsArray converts the pre-2020-12 array form of items into
// prefixItems, moving additionalItems into items.
func (norm *Normalized) rewriteItemsArray(m map[string]any, canonPath string) {
	list, ok := m["items"].([]any)
	if !ok {
		return
	}

	m["prefixItems"] = list

	delete(m, "items")

	if extra, hasExtra := m["additionalItems"]; hasExtra {
		m["items"] = extra

		delete(m, "additionalItems")
	}

	norm.itemsArrays = append(norm.itemsArrays, canonPath)
	norm.Notes = append(norm.Notes, diag.New(diag.CodeNormalizeNote, canonPath,
		map[string]any{"rewrite": "items-array-to-prefixItems"}))
}

// itemsWasArray reports whether the node at canonPath had its items array
// rewritten, so prefixItems children map back to original /items indices.
func (norm *Normalized) itemsWasArray(canonPath string) bool {
	for _, p := range norm.itemsArrays {
		if p == canonPath {
			return true
		}
	}

	return false
}

// notePatternTolerance records draft-06/07 patterns that Go's regexp
// engine cannot compile. The pattern stays in the schema; the collaborator
// validator decides its fate.
func (norm *Normalized) notePatternTolerance(m map[string]any, canonPath string) {
	if norm.Dialect != Draft07 {
		return
	}

	pat, ok := m["pattern"].(string)
	if !ok {
		return
	}

	if _, err := regexp.Compile(pat); err != nil {
		norm.Notes = append(norm.Notes, diag.New(diag.CodeDraft06PatternTolerated, canonPath,
			map[string]any{"pattern": pat, "error": err.Error()}))
	}
}
