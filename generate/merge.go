package generate

import (
	"fmt"
	"math"

	"go.jacobcolvin.com/foundry/rational"
	"go.jacobcolvin.com/foundry/schema"
)

// mergeAllOf folds a node's allOf branches into one effective node using
// intersection semantics: every constraint from every branch applies.
func mergeAllOf(n *schema.Node) (*schema.Node, error) {
	base := *n
	base.AllOf = nil

	merged := &base

	for _, branch := range n.AllOf {
		var err error

		merged, err = mergeNodes(merged, branch)
		if err != nil {
			return nil, err
		}
	}

	return merged, nil
}

// mergeBranch overlays an anyOf/oneOf branch onto its parent node.
func mergeBranch(parent, branch *schema.Node) (*schema.Node, error) {
	base := *parent
	base.AnyOf = nil
	base.OneOf = nil

	return mergeNodes(&base, branch)
}

// mergeNodes intersects the constraints of two nodes. Conflicting type
// pins are an error; bounds take the tighter side; name sets union for
// required and intersect implicitly through properties.
func mergeNodes(a, b *schema.Node) (*schema.Node, error) {
	if allowed, isBool := b.IsBool(); isBool {
		if !allowed {
			return nil, fmt.Errorf("%w: false schema in composition at %q", ErrNoFeasibleValue, a.CanonPath)
		}

		return a, nil
	}

	out := *a
	out.Raw = nil

	if err := mergeKind(&out, b); err != nil {
		return nil, err
	}

	mergeNumeric(&out, b)
	mergeText(&out, b)
	mergeObject(&out, b)
	mergeArray(&out, b)

	if b.Const != nil {
		out.Const = b.Const
	}

	if out.Enum == nil {
		out.Enum = b.Enum
	}

	return &out, nil
}

func mergeKind(out *schema.Node, b *schema.Node) error {
	if b.Kind == schema.KindAny || b.Kind == schema.KindComposition || b.Kind == schema.KindEnumOnly {
		return nil
	}

	if out.Kind == schema.KindAny || out.Kind == schema.KindComposition || out.Kind == schema.KindEnumOnly {
		out.Kind = b.Kind

		return nil
	}

	if out.Kind == b.Kind {
		return nil
	}

	// integer narrows number.
	if out.Kind == schema.KindNumber && b.Kind == schema.KindInteger {
		out.Kind = schema.KindInteger

		return nil
	}

	if out.Kind == schema.KindInteger && b.Kind == schema.KindNumber {
		return nil
	}

	return fmt.Errorf("%w: type %s conflicts with %s at %q",
		ErrNoFeasibleValue, out.Kind, b.Kind, out.CanonPath)
}

func mergeNumeric(out *schema.Node, b *schema.Node) {
	out.Minimum = maxBound(out.Minimum, b.Minimum)
	out.ExclusiveMinimum = maxBound(out.ExclusiveMinimum, b.ExclusiveMinimum)
	out.Maximum = minBound(out.Maximum, b.Maximum)
	out.ExclusiveMaximum = minBound(out.ExclusiveMaximum, b.ExclusiveMaximum)

	switch {
	case out.MultipleOf == nil:
		out.MultipleOf = b.MultipleOf

	case b.MultipleOf != nil:
		// Both present: the LCM of the two steps satisfies both when the
		// steps are rational; fall back to the larger step otherwise.
		if lcm, ok := stepLCM(*out.MultipleOf, *b.MultipleOf); ok {
			out.MultipleOf = &lcm
		} else if *b.MultipleOf > *out.MultipleOf {
			out.MultipleOf = b.MultipleOf
		}
	}
}

func mergeText(out *schema.Node, b *schema.Node) {
	out.MinLength = maxInt(out.MinLength, b.MinLength)
	out.MaxLength = minInt(out.MaxLength, b.MaxLength)

	if out.Pattern == "" {
		out.Pattern = b.Pattern
	}

	if out.Format == "" {
		out.Format = b.Format
	}
}

func mergeObject(out *schema.Node, b *schema.Node) {
	out.Required = unionStrings(out.Required, b.Required)

	if b.Properties != nil {
		if out.Properties == nil {
			out.Properties = make(map[string]*schema.Node, len(b.Properties))
		} else {
			// Copy-on-write so the parent node's map stays untouched.
			copied := make(map[string]*schema.Node, len(out.Properties))
			for k, v := range out.Properties {
				copied[k] = v
			}

			out.Properties = copied
		}

		for _, name := range b.PropertyOrder {
			if _, exists := out.Properties[name]; !exists {
				out.Properties[name] = b.Properties[name]
				out.PropertyOrder = append(out.PropertyOrder, name)
			}
		}
	}

	if out.AdditionalAllowed == nil {
		out.AdditionalAllowed = b.AdditionalAllowed
	} else if b.AdditionalAllowed != nil && !*b.AdditionalAllowed {
		out.AdditionalAllowed = b.AdditionalAllowed
	}

	if out.PropertyNames == nil {
		out.PropertyNames = b.PropertyNames
	}

	out.MinProperties = maxInt(out.MinProperties, b.MinProperties)
	out.MaxProperties = minInt(out.MaxProperties, b.MaxProperties)

	if out.UnevaluatedAllowed == nil {
		out.UnevaluatedAllowed = b.UnevaluatedAllowed
	}
}

func mergeArray(out *schema.Node, b *schema.Node) {
	out.MinItems = maxInt(out.MinItems, b.MinItems)
	out.MaxItems = minInt(out.MaxItems, b.MaxItems)
	out.MinContains = maxInt(out.MinContains, b.MinContains)
	out.MaxContains = minInt(out.MaxContains, b.MaxContains)
	out.UniqueItems = out.UniqueItems || b.UniqueItems

	if out.Items == nil {
		out.Items = b.Items
	}

	if out.PrefixItems == nil {
		out.PrefixItems = b.PrefixItems
	}

	if out.Contains == nil {
		out.Contains = b.Contains
	}
}

// stepLCM computes the least common multiple of two decimal steps through
// their rational forms.
func stepLCM(a, b float64) (float64, bool) {
	ra, ok := toRat(a)
	if !ok {
		return 0, false
	}

	rb, ok := toRat(b)
	if !ok {
		return 0, false
	}

	q := rational.LCM(ra.Q, rb.Q)
	pa := ra.P * (q / ra.Q)
	pb := rb.P * (q / rb.Q)

	return float64(rational.LCM(pa, pb)) / float64(q), true
}

// toRat converts a positive decimal step to a rational.
func toRat(v float64) (rational.Rat, bool) {
	if v <= 0 {
		return rational.Rat{}, false
	}

	digits := rational.Decimals(v)

	scale := int64(1)
	for range digits {
		scale *= 10
	}

	p := int64(math.Round(v * float64(scale)))
	if p <= 0 {
		return rational.Rat{}, false
	}

	r, err := rational.New(p, scale)
	if err != nil {
		return rational.Rat{}, false
	}

	return r, true
}

// feasible checks a candidate value against the node's own numeric, string,
// and type constraints. Used to filter enum, const, and example candidates.
func feasible(n *schema.Node, v any) bool {
	if f, ok := asNumber(v); ok {
		return numberFeasible(n, f)
	}

	if s, ok := v.(string); ok {
		if n.MinLength != nil && len([]rune(s)) < *n.MinLength {
			return false
		}

		if n.MaxLength != nil && len([]rune(s)) > *n.MaxLength {
			return false
		}
	}

	return true
}

func numberFeasible(n *schema.Node, f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}

	if bound, exclusive, ok := n.EffectiveMinimum(); ok {
		if exclusive && f <= bound {
			return false
		}

		if !exclusive && f < bound {
			return false
		}
	}

	if bound, exclusive, ok := n.EffectiveMaximum(); ok {
		if exclusive && f >= bound {
			return false
		}

		if !exclusive && f > bound {
			return false
		}
	}

	if n.MultipleOf != nil && !rational.IsMultipleULP(f, *n.MultipleOf) {
		return false
	}

	if n.Kind == schema.KindInteger && f != math.Trunc(f) {
		return false
	}

	return true
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	}

	return 0, false
}

func maxBound(a, b *float64) *float64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b > *a:
		return b
	default:
		return a
	}
}

func minBound(a, b *float64) *float64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b < *a:
		return b
	default:
		return a
	}
}

func maxInt(a, b *int) *int {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b > *a:
		return b
	default:
		return a
	}
}

func minInt(a, b *int) *int {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b < *a:
		return b
	default:
		return a
	}
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string{}, a...)

	for _, s := range a {
		seen[s] = true
	}

	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	return out
}
