// Package repair applies validator-error-driven corrections to generated
// instances. Repairs run as a bounded fixed-point loop: each pass applies
// value-local Tier-1 rules first, structural Tier-2 rules second, then
// re-scores the instance; a pass that fails to strictly decrease the score
// is reverted wholesale.
package repair

import (
	"fmt"
	"strings"

	"go.jacobcolvin.com/foundry/compose"
	"go.jacobcolvin.com/foundry/diag"
	"go.jacobcolvin.com/foundry/metrics"
	"go.jacobcolvin.com/foundry/pointer"
	"go.jacobcolvin.com/foundry/schema"
	"go.jacobcolvin.com/foundry/validator"
)

// Attempt bounds for the fixed-point loop.
const (
	MinAttempts = 1
	MaxAttempts = 3
)

// Score weights. Structural mismatches outrank cosmetic ones so Tier-2
// progress stays visible to the revert guard.
const (
	weightTypePin  = 3
	weightRequired = 2
	weightDefault  = 1
)

// Options configures a repair run.
type Options struct {
	// Attempts bounds repair passes per item, clamped to [1, 3].
	Attempts int
	// ScoreFunc overrides the default weighted error score. Any override
	// must preserve strict decrease on kept passes.
	ScoreFunc func([]validator.ErrorObject) int
}

// Action records one applied correction.
type Action struct {
	InstancePath string         `json:"instancePath"`
	Keyword      string         `json:"keyword"`
	Tier         int            `json:"tier"`
	Details      map[string]any `json:"details,omitempty"`
}

// Result is the outcome of repairing one item.
type Result struct {
	Item        any
	Actions     []Action
	Diagnostics []diag.Diagnostic
	Passes      int
	Valid       bool
}

// Repair runs the bounded correction loop on one instance. The input is
// never mutated; the returned item is a repaired clone (or an identical
// clone when every pass reverted).
func Repair(
	item any,
	plan *compose.Plan,
	validate validator.ValidateFunc,
	opts Options,
	coll *metrics.Collector,
) (Result, error) {
	attempts := opts.Attempts
	if attempts < MinAttempts {
		attempts = MinAttempts
	}

	if attempts > MaxAttempts {
		attempts = MaxAttempts
	}

	score := opts.ScoreFunc
	if score == nil {
		score = Score
	}

	r := &repairer{
		plan: plan,
		coll: coll,
	}

	result := Result{Item: schema.Clone(item)}

	for pass := 0; pass < attempts; pass++ {
		coll.Add(metrics.CounterValidationsPerRow, 1)

		ok, errs := validate(result.Item)
		if ok {
			result.Valid = true

			break
		}

		scoreBefore := score(errs)
		snapshot := schema.Clone(result.Item)

		r.actions = nil
		r.diags = nil

		for _, e := range errs {
			r.apply(&result.Item, e, validate)
		}

		result.Passes++
		coll.Add(metrics.CounterRepairPassesPerRow, 1)

		coll.Add(metrics.CounterValidationsPerRow, 1)

		ok, errsAfter := validate(result.Item)

		scoreAfter := 0
		if !ok {
			scoreAfter = score(errsAfter)
		}

		if scoreAfter >= scoreBefore {
			result.Item = snapshot

			keyword := ""
			if len(errs) > 0 {
				keyword = errs[0].Keyword
			}

			result.Diagnostics = append(result.Diagnostics,
				diag.New(diag.CodeRepairRevertedNoProgress, "", map[string]any{
					"keyword":     keyword,
					"scoreBefore": scoreBefore,
					"scoreAfter":  scoreAfter,
				}))

			break
		}

		result.Actions = append(result.Actions, r.actions...)
		result.Diagnostics = append(result.Diagnostics, r.diags...)
		coll.Add(metrics.CounterRepairActionsPerRow, int64(len(r.actions)))

		if ok {
			result.Valid = true

			break
		}
	}

	if !result.Valid {
		coll.Add(metrics.CounterValidationsPerRow, 1)

		ok, _ := validate(result.Item)
		result.Valid = ok
	}

	return result, nil
}

// Score is the default weighted residual-error count.
func Score(errs []validator.ErrorObject) int {
	total := 0

	for _, e := range errs {
		switch e.Keyword {
		case "type", "const", "enum":
			total += weightTypePin
		case "required":
			total += weightRequired
		default:
			total += weightDefault
		}
	}

	return total
}

// repairer carries per-pass state.
type repairer struct {
	plan    *compose.Plan
	coll    *metrics.Collector
	actions []Action
	diags   []diag.Diagnostic
}

func (r *repairer) record(tier int, e validator.ErrorObject, details map[string]any) {
	r.actions = append(r.actions, Action{
		InstancePath: e.InstancePath,
		Keyword:      e.Keyword,
		Tier:         tier,
		Details:      details,
	})

	switch tier {
	case 1:
		r.coll.Add(metrics.CounterRepairTier1Actions, 1)
	case 2:
		r.coll.Add(metrics.CounterRepairTier2Actions, 1)
	}
}

// apply dispatches one validator error to the tier rules.
func (r *repairer) apply(root *any, e validator.ErrorObject, validate validator.ValidateFunc) {
	if r.applyTier1(root, e) {
		return
	}

	if r.applyTier2(root, e, validate) {
		return
	}

	r.coll.Add(metrics.CounterRepairTierDisabled, 1)
}

// getAt resolves an instance path inside the tree.
func getAt(root any, path string) (any, bool) {
	if path == "" {
		return root, true
	}

	cur := root

	for _, token := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		token = pointer.Unescape(token)

		switch x := cur.(type) {
		case *schema.Object:
			v, ok := x.Get(token)
			if !ok {
				return nil, false
			}

			cur = v

		case []any:
			idx, err := parseIndex(token, len(x))
			if err != nil {
				return nil, false
			}

			cur = x[idx]

		default:
			return nil, false
		}
	}

	return cur, true
}

// setAt replaces the value at an instance path.
func setAt(root *any, path string, v any) bool {
	if path == "" {
		*root = v

		return true
	}

	parentPath, leaf := splitPath(path)

	parent, ok := getAt(*root, parentPath)
	if !ok {
		return false
	}

	switch x := parent.(type) {
	case *schema.Object:
		x.Set(leaf, v)

		return true

	case []any:
		idx, err := parseIndex(leaf, len(x))
		if err != nil {
			return false
		}

		x[idx] = v

		return true
	}

	return false
}

func splitPath(path string) (parent, leaf string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}

	return path[:idx], pointer.Unescape(path[idx+1:])
}

func parseIndex(token string, length int) (int, error) {
	idx := -1

	_, err := fmt.Sscanf(token, "%d", &idx)
	if err != nil {
		return 0, err
	}

	if idx < 0 || idx >= length {
		return 0, fmt.Errorf("index %d out of range", idx)
	}

	return idx, nil
}

// schemaAt walks the plan's AST alongside an instance path, returning the
// governing node (best effort; nil when the path crosses an undecidable
// applicator).
func (r *repairer) schemaAt(path string) *schema.Node {
	n := r.plan.Root

	if path == "" {
		return deref(r.plan, n)
	}

	for _, token := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		token = pointer.Unescape(token)

		n = deref(r.plan, n)
		if n == nil {
			return nil
		}

		if child := childSchema(n, token); child != nil {
			n = child

			continue
		}

		return nil
	}

	return deref(r.plan, n)
}

// childSchema resolves one instance step against an object/array node.
func childSchema(n *schema.Node, token string) *schema.Node {
	if sub, ok := n.Properties[token]; ok {
		return sub
	}

	if idx, err := parseIndex(token, int(^uint(0)>>1)); err == nil {
		if idx < len(n.PrefixItems) {
			return n.PrefixItems[idx]
		}

		if n.Items != nil {
			return n.Items
		}
	}

	if n.AdditionalSchema != nil {
		return n.AdditionalSchema
	}

	return nil
}

// deref chases internal references and folds allOf so tier rules see
// effective constraints.
func deref(plan *compose.Plan, n *schema.Node) *schema.Node {
	if n == nil {
		return nil
	}

	for hops := 0; n.Kind == schema.KindRef && hops < 8; hops++ {
		fragment, ok := schema.ResolveLocal(plan.Norm.Raw, n.Ref)
		if !ok {
			return nil
		}

		target, err := schema.BuildFragment(fragment, n.CanonPath)
		if err != nil {
			return nil
		}

		n = target
	}

	return n
}
