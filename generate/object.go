package generate

import (
	"fmt"
	"regexp"
	"sort"

	"go.jacobcolvin.com/foundry/diag"
	"go.jacobcolvin.com/foundry/metrics"
	"go.jacobcolvin.com/foundry/schema"
)

// object synthesizes an object value: the node's own required properties
// first (sorted), then, for composed roots, the first satisfiable
// anyOf/oneOf branch's missing required keys. With
// unevaluatedProperties:false only keys evaluated by the node and the
// chosen branch are emitted.
func (g *generator) object(n *schema.Node, depth int) (any, error) {
	out := schema.NewObject()

	ownRequired := append([]string{}, n.Required...)
	sort.Strings(ownRequired)

	for _, name := range ownRequired {
		v, err := g.propertyValue(n, name, depth)
		if err != nil {
			return nil, err
		}

		out.Set(name, v)
	}

	if err := g.applyBranches(n, out, depth); err != nil {
		return nil, err
	}

	if err := g.fillMinProperties(n, out, depth); err != nil {
		return nil, err
	}

	return out, nil
}

// applyBranches picks the first anyOf/oneOf branch satisfiable given the
// already-placed required properties and appends its missing required
// keys. The chosen branch index feeds branch coverage metrics.
func (g *generator) applyBranches(n *schema.Node, out *schema.Object, depth int) error {
	branches := n.AnyOf

	kind := "anyOf"
	if len(branches) == 0 {
		branches = n.OneOf
		kind = "oneOf"
	}

	if len(branches) == 0 {
		return nil
	}

	for i, branch := range branches {
		g.coll.Add(metrics.CounterBranchTrialsTried, 1)

		if !g.branchSatisfiable(n, branch, out) {
			continue
		}

		branchRequired := append([]string{}, branch.Required...)
		sort.Strings(branchRequired)

		for _, name := range branchRequired {
			if _, placed := out.Get(name); placed {
				continue
			}

			source := branch
			if _, ok := branch.Properties[name]; !ok && n.Properties[name] != nil {
				source = n
			}

			v, err := g.propertyValue(source, name, depth)
			if err != nil {
				return err
			}

			out.Set(name, v)
		}

		g.coll.Observe("branchChosen", float64(i))
		g.coll.SetPayload(metrics.PayloadBranchCoverageOneOf,
			map[string]any{"path": n.CanonPath, "kind": kind, "branch": i})

		return nil
	}

	return fmt.Errorf("%w: no satisfiable branch at %q", ErrNoFeasibleValue, n.CanonPath)
}

// branchSatisfiable checks a branch against the already-placed properties:
// every branch-required name must be legal at the parent, and the branch
// must not pin placed names to conflicting constants.
func (g *generator) branchSatisfiable(n *schema.Node, branch *schema.Node, out *schema.Object) bool {
	if allowed, isBool := branch.IsBool(); isBool {
		return allowed
	}

	for _, name := range branch.Required {
		if !g.nameLegal(n, name) {
			return false
		}
	}

	for _, key := range out.Keys() {
		sub, ok := branch.Properties[key]
		if !ok || sub.Const == nil {
			continue
		}

		placed, _ := out.Get(key)
		if !schema.Equal(placed, *sub.Const) {
			return false
		}
	}

	return true
}

// nameLegal reports whether a property name may appear at the node.
func (g *generator) nameLegal(n *schema.Node, name string) bool {
	if decider, ok := g.plan.Coverage[n.CanonPath]; ok && decider != nil {
		return decider.Has(name)
	}

	if n.AdditionalAllowed != nil && !*n.AdditionalAllowed {
		if _, listed := n.Properties[name]; listed {
			return true
		}

		for _, pat := range n.PatternPropertyOrder {
			re, err := regexp.Compile(pat)
			if err == nil && re.MatchString(name) {
				return true
			}
		}

		return false
	}

	return true
}

// propertyValue generates the value for one property, resolving its schema
// through properties, patternProperties, then additionalProperties. A name
// with no schema takes a minimal empty object.
func (g *generator) propertyValue(n *schema.Node, name string, depth int) (any, error) {
	if sub, ok := n.Properties[name]; ok {
		return g.value(sub, depth+1)
	}

	for _, pat := range n.PatternPropertyOrder {
		re, err := regexp.Compile(pat)
		if err == nil && re.MatchString(name) {
			return g.value(n.PatternProperties[pat], depth+1)
		}
	}

	if n.AdditionalSchema != nil {
		return g.value(n.AdditionalSchema, depth+1)
	}

	return schema.NewObject(), nil
}

// fillMinProperties appends filler keys until minProperties is met,
// drawing first from declared properties, then from the coverage index
// round-robin. unevaluatedProperties:false suppresses filling beyond the
// evaluated key set.
func (g *generator) fillMinProperties(n *schema.Node, out *schema.Object, depth int) error {
	if n.MinProperties == nil || out.Len() >= *n.MinProperties {
		return nil
	}

	if n.UnevaluatedAllowed != nil && !*n.UnevaluatedAllowed {
		return fmt.Errorf("%w: minProperties vs unevaluatedProperties at %q",
			ErrNoFeasibleValue, n.CanonPath)
	}

	for _, name := range n.PropertyOrder {
		if out.Len() >= *n.MinProperties {
			return nil
		}

		if _, placed := out.Get(name); placed {
			continue
		}

		v, err := g.propertyValue(n, name, depth)
		if err != nil {
			return err
		}

		out.Set(name, v)
	}

	if out.Len() >= *n.MinProperties {
		return nil
	}

	decider := g.plan.Coverage[n.CanonPath]
	if decider == nil {
		if n.AdditionalAllowed == nil || *n.AdditionalAllowed {
			// Open objects take synthetic filler names.
			i := 0

			for out.Len() < *n.MinProperties {
				name := fmt.Sprintf("key%d", i)
				i++

				if _, placed := out.Get(name); placed {
					continue
				}

				v, err := g.propertyValue(n, name, depth)
				if err != nil {
					return err
				}

				out.Set(name, v)
			}

			return nil
		}

		return fmt.Errorf("%w: minProperties at %q", ErrNoFeasibleValue, n.CanonPath)
	}

	// Round-robin over the decider's legal names.
	idx := 0

	for out.Len() < *n.MinProperties {
		if idx >= len(decider.Names) {
			return fmt.Errorf("%w: minProperties exceeds legal name set at %q",
				ErrNoFeasibleValue, n.CanonPath)
		}

		name := decider.Names[idx]
		idx++

		if _, placed := out.Get(name); placed {
			continue
		}

		v, err := g.propertyValue(n, name, depth)
		if err != nil {
			return err
		}

		out.Set(name, v)
		g.emit(diag.New(diag.CodeTargetEnumRoundRobinPatternProps, n.CanonPath,
			map[string]any{"name": name, "source": decider.Source}))
	}

	return nil
}
