package repair

import (
	"fmt"
	"math"
	"strings"

	"go.jacobcolvin.com/foundry/rational"
	"go.jacobcolvin.com/foundry/regexpolicy"
	"go.jacobcolvin.com/foundry/schema"
	"go.jacobcolvin.com/foundry/validator"
)

// decimalPrecision is the epsilon exponent used for exclusive-bound nudges
// on non-integer values.
const decimalPrecision = 6

// applyTier1 handles value-local, idempotent corrections. Returns false
// when no Tier-1 rule matches the error keyword.
//
//nolint:maintidx // Keyword dispatch is long but flat.
func (r *repairer) applyTier1(root *any, e validator.ErrorObject) bool {
	node := r.schemaAt(e.InstancePath)

	switch e.Keyword {
	case "type":
		if node == nil {
			return false
		}

		v := minimalValue(node)
		if setAt(root, e.InstancePath, v) {
			r.record(1, e, map[string]any{"coercedTo": node.Kind})
		}

		return true

	case "const":
		if node == nil || node.Const == nil {
			return false
		}

		if setAt(root, e.InstancePath, schema.Clone(*node.Const)) {
			r.record(1, e, nil)
		}

		return true

	case "enum":
		if node == nil || len(node.Enum) == 0 {
			return false
		}

		if setAt(root, e.InstancePath, schema.Clone(node.Enum[0])) {
			r.record(1, e, nil)
		}

		return true

	case "pattern":
		if node == nil || node.Pattern == "" {
			return false
		}

		w, ok := regexpolicy.Witness(node.Pattern)
		if !ok {
			return false
		}

		if setAt(root, e.InstancePath, w) {
			r.record(1, e, map[string]any{"witness": w})
		}

		return true

	case "minimum", "maximum":
		return r.clampInclusive(root, e, node)

	case "exclusiveMinimum", "exclusiveMaximum":
		return r.nudgeExclusive(root, e, node)

	case "multipleOf":
		return r.snapMultiple(root, e, node)

	case "minLength":
		return r.padString(root, e, node)

	case "maxLength":
		return r.truncateString(root, e, node)

	case "minItems":
		return r.growArray(root, e, node)

	case "maxItems":
		return r.shrinkArray(root, e, node)

	case "uniqueItems":
		return r.dedupeArray(root, e)

	case "minContains":
		return r.injectWitness(root, e, node)

	case "maxContains":
		return r.removeWitnesses(root, e, node)
	}

	return false
}

// clampInclusive clamps the value onto an inclusive bound.
func (r *repairer) clampInclusive(root *any, e validator.ErrorObject, node *schema.Node) bool {
	if node == nil {
		return false
	}

	v, ok := getAt(*root, e.InstancePath)
	if !ok {
		return false
	}

	f, ok := asFloat(v)
	if !ok {
		return false
	}

	switch e.Keyword {
	case "minimum":
		if node.Minimum != nil {
			f = math.Max(f, *node.Minimum)
		}

	case "maximum":
		if node.Maximum != nil {
			f = math.Min(f, *node.Maximum)
		}
	}

	if setAt(root, e.InstancePath, restoreNumeric(node, f)) {
		r.record(1, e, map[string]any{"clampedTo": f})
	}

	return true
}

// nudgeExclusive steps the value off an exclusive bound: by one for
// integers, by 10^-decimalPrecision otherwise.
func (r *repairer) nudgeExclusive(root *any, e validator.ErrorObject, node *schema.Node) bool {
	if node == nil {
		return false
	}

	v, ok := getAt(*root, e.InstancePath)
	if !ok {
		return false
	}

	f, ok := asFloat(v)
	if !ok {
		return false
	}

	integer := node.Kind == schema.KindInteger

	delta := math.Pow(10, -decimalPrecision)
	if integer {
		delta = 1
	}

	switch e.Keyword {
	case "exclusiveMinimum":
		if node.ExclusiveMinimum != nil && f <= *node.ExclusiveMinimum {
			f = *node.ExclusiveMinimum + delta
		}

	case "exclusiveMaximum":
		if node.ExclusiveMaximum != nil && f >= *node.ExclusiveMaximum {
			f = *node.ExclusiveMaximum - delta
		}
	}

	details := map[string]any{"delta": delta}
	if !integer {
		details = map[string]any{"epsilon": fmt.Sprintf("1e-%d", decimalPrecision)}
	}

	if setAt(root, e.InstancePath, restoreNumeric(node, f)) {
		r.record(1, e, details)
	}

	return true
}

// snapMultiple snaps the value to the nearest multiple and re-clamps into
// the inclusive bounds.
func (r *repairer) snapMultiple(root *any, e validator.ErrorObject, node *schema.Node) bool {
	if node == nil || node.MultipleOf == nil {
		return false
	}

	v, ok := getAt(*root, e.InstancePath)
	if !ok {
		return false
	}

	f, ok := asFloat(v)
	if !ok {
		return false
	}

	mo := *node.MultipleOf
	f = rational.QuantizeDecimal(math.Round(f/mo)*mo, rational.Decimals(mo))

	if node.Minimum != nil && f < *node.Minimum {
		f = rational.QuantizeDecimal(math.Ceil(*node.Minimum/mo)*mo, rational.Decimals(mo))
	}

	if node.Maximum != nil && f > *node.Maximum {
		f = rational.QuantizeDecimal(math.Floor(*node.Maximum/mo)*mo, rational.Decimals(mo))
	}

	if setAt(root, e.InstancePath, restoreNumeric(node, f)) {
		r.record(1, e, map[string]any{"snappedTo": f})
	}

	return true
}

func (r *repairer) padString(root *any, e validator.ErrorObject, node *schema.Node) bool {
	if node == nil || node.MinLength == nil {
		return false
	}

	v, ok := getAt(*root, e.InstancePath)
	if !ok {
		return false
	}

	s, ok := v.(string)
	if !ok {
		return false
	}

	for len([]rune(s)) < *node.MinLength {
		s += "x"
	}

	if setAt(root, e.InstancePath, s) {
		r.record(1, e, map[string]any{"paddedTo": len(s)})
	}

	return true
}

func (r *repairer) truncateString(root *any, e validator.ErrorObject, node *schema.Node) bool {
	if node == nil || node.MaxLength == nil {
		return false
	}

	v, ok := getAt(*root, e.InstancePath)
	if !ok {
		return false
	}

	s, ok := v.(string)
	if !ok {
		return false
	}

	runes := []rune(s)
	if len(runes) > *node.MaxLength {
		s = string(runes[:*node.MaxLength])
	}

	if setAt(root, e.InstancePath, s) {
		r.record(1, e, map[string]any{"truncatedTo": len(s)})
	}

	return true
}

// growArray appends elements up to minItems, using prefixItems schemas for
// their positions and the items schema beyond.
func (r *repairer) growArray(root *any, e validator.ErrorObject, node *schema.Node) bool {
	if node == nil || node.MinItems == nil {
		return false
	}

	v, ok := getAt(*root, e.InstancePath)
	if !ok {
		return false
	}

	list, ok := v.([]any)
	if !ok {
		return false
	}

	for len(list) < *node.MinItems {
		var elem any

		switch {
		case len(list) < len(node.PrefixItems):
			elem = minimalValue(node.PrefixItems[len(list)])
		case node.Items != nil:
			elem = minimalValue(node.Items)
		default:
			elem = nil
		}

		list = append(list, elem)
	}

	if setAt(root, e.InstancePath, list) {
		r.record(1, e, map[string]any{"grownTo": len(list)})
	}

	return true
}

func (r *repairer) shrinkArray(root *any, e validator.ErrorObject, node *schema.Node) bool {
	if node == nil || node.MaxItems == nil {
		return false
	}

	v, ok := getAt(*root, e.InstancePath)
	if !ok {
		return false
	}

	list, ok := v.([]any)
	if !ok {
		return false
	}

	if len(list) > *node.MaxItems {
		list = list[:*node.MaxItems]
	}

	if setAt(root, e.InstancePath, list) {
		r.record(1, e, map[string]any{"shrunkTo": len(list)})
	}

	return true
}

// dedupeArray removes duplicates preserving first occurrences.
func (r *repairer) dedupeArray(root *any, e validator.ErrorObject) bool {
	v, ok := getAt(*root, e.InstancePath)
	if !ok {
		return false
	}

	list, ok := v.([]any)
	if !ok {
		return false
	}

	var out []any

	for _, item := range list {
		duplicate := false

		for _, kept := range out {
			if schema.Equal(item, kept) {
				duplicate = true

				break
			}
		}

		if !duplicate {
			out = append(out, item)
		}
	}

	if setAt(root, e.InstancePath, out) {
		r.record(1, e, map[string]any{"removed": len(list) - len(out)})
	}

	return true
}

// injectWitness appends contains witnesses until minContains is met.
func (r *repairer) injectWitness(root *any, e validator.ErrorObject, node *schema.Node) bool {
	if node == nil || node.Contains == nil {
		return false
	}

	v, ok := getAt(*root, e.InstancePath)
	if !ok {
		return false
	}

	list, ok := v.([]any)
	if !ok {
		return false
	}

	want := 1
	if node.MinContains != nil {
		want = *node.MinContains
	}

	witness := minimalValue(node.Contains)

	have := countMatches(list, witness)
	for have < want {
		list = append(list, schema.Clone(witness))
		have++
	}

	if setAt(root, e.InstancePath, list) {
		r.record(1, e, map[string]any{"injected": want})
	}

	return true
}

// removeWitnesses drops witness-equal elements from the tail until
// maxContains is met.
func (r *repairer) removeWitnesses(root *any, e validator.ErrorObject, node *schema.Node) bool {
	if node == nil || node.Contains == nil || node.MaxContains == nil {
		return false
	}

	v, ok := getAt(*root, e.InstancePath)
	if !ok {
		return false
	}

	list, ok := v.([]any)
	if !ok {
		return false
	}

	witness := minimalValue(node.Contains)

	for countMatches(list, witness) > *node.MaxContains {
		removed := false

		for i := len(list) - 1; i >= 0; i-- {
			if schema.Equal(list[i], witness) {
				list = append(list[:i], list[i+1:]...)
				removed = true

				break
			}
		}

		if !removed {
			break
		}
	}

	if setAt(root, e.InstancePath, list) {
		r.record(1, e, map[string]any{"kept": countMatches(list, witness)})
	}

	return true
}

func countMatches(list []any, witness any) int {
	count := 0

	for _, e := range list {
		if schema.Equal(e, witness) {
			count++
		}
	}

	return count
}

// minimalValue returns the minimal representative for a node's type:
// 0, "", false, {}, [], null — refined by const/enum when present.
func minimalValue(n *schema.Node) any {
	if n == nil {
		return nil
	}

	if n.Const != nil {
		return schema.Clone(*n.Const)
	}

	if len(n.Enum) > 0 {
		return schema.Clone(n.Enum[0])
	}

	switch n.Kind {
	case schema.KindNumber:
		if n.Minimum != nil {
			return *n.Minimum
		}

		return 0.0

	case schema.KindInteger:
		if n.Minimum != nil {
			return int64(math.Ceil(*n.Minimum))
		}

		return int64(0)

	case schema.KindString:
		if n.MinLength != nil && *n.MinLength > 0 {
			return strings.Repeat("x", *n.MinLength)
		}

		return ""

	case schema.KindBoolean:
		return false

	case schema.KindObject:
		return schema.NewObject()

	case schema.KindArray:
		return []any{}
	}

	return nil
}

func asFloat(v any) (float64, bool) {
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

// restoreNumeric renders a float back in the node's numeric type.
func restoreNumeric(n *schema.Node, f float64) any {
	if n != nil && n.Kind == schema.KindInteger {
		return int64(math.Round(f))
	}

	return f
}
