package generate

import (
	"fmt"

	"go.jacobcolvin.com/foundry/diag"
	"go.jacobcolvin.com/foundry/schema"
)

// maxUniqueRetries bounds regeneration attempts for uniqueItems conflicts
// before string tweaking or failure.
const maxUniqueRetries = 4

// array synthesizes an array value: prefixItems first, contains witnesses
// next, then items fills up to minItems. uniqueItems deduplicates by
// regeneration where possible, by string tweak otherwise.
func (g *generator) array(n *schema.Node, depth int) (any, error) {
	var out []any

	maxItems := -1
	if n.MaxItems != nil {
		maxItems = *n.MaxItems
	}

	atCapacity := func() bool {
		return maxItems >= 0 && len(out) >= maxItems
	}

	for _, sub := range n.PrefixItems {
		if atCapacity() {
			break
		}

		v, err := g.value(sub, depth+1)
		if err != nil {
			return nil, err
		}

		out = append(out, v)
	}

	// Contains witnesses, bounded by maxContains.
	witnesses := g.plan.ContainsBag[n.CanonPath]

	witnessBudget := len(witnesses)
	if n.MaxContains != nil && *n.MaxContains < witnessBudget {
		witnessBudget = *n.MaxContains
	}

	for i := 0; i < witnessBudget; i++ {
		if atCapacity() {
			return nil, fmt.Errorf("%w: contains witnesses vs maxItems at %q",
				ErrNoFeasibleValue, n.CanonPath)
		}

		v, err := g.value(witnesses[i], depth+1)
		if err != nil {
			return nil, err
		}

		out = append(out, v)
	}

	minItems := 0
	if n.MinItems != nil {
		minItems = *n.MinItems
	}

	for len(out) < minItems {
		if atCapacity() {
			return nil, fmt.Errorf("%w: minItems vs maxItems at %q",
				ErrNoFeasibleValue, n.CanonPath)
		}

		v, err := g.fillValue(n, depth)
		if err != nil {
			return nil, err
		}

		out = append(out, v)
	}

	if n.UniqueItems {
		deduped, err := g.enforceUnique(n, out, depth)
		if err != nil {
			return nil, err
		}

		out = deduped
	}

	if out == nil {
		out = []any{}
	}

	return out, nil
}

// fillValue produces one element from the items schema, or a minimal value
// when no schema constrains elements.
func (g *generator) fillValue(n *schema.Node, depth int) (any, error) {
	if n.Items != nil {
		return g.value(n.Items, depth+1)
	}

	if len(n.PrefixItems) > 0 {
		return g.value(n.PrefixItems[len(n.PrefixItems)-1], depth+1)
	}

	return nil, nil
}

// enforceUnique makes all elements pairwise distinct: duplicates are
// regenerated a bounded number of times, tweaked with a suffix when they
// are strings, and a failure otherwise.
func (g *generator) enforceUnique(n *schema.Node, items []any, depth int) ([]any, error) {
	out := make([]any, 0, len(items))

	for _, item := range items {
		current := item

		retries := 0
		for containsEqual(out, current) {
			if retries < maxUniqueRetries {
				regenerated, err := g.fillValue(n, depth)
				if err == nil && !containsEqual(out, regenerated) {
					current = regenerated

					break
				}

				retries++

				continue
			}

			s, isString := current.(string)
			if !isString {
				return nil, fmt.Errorf("%w: uniqueItems at %q", ErrNoFeasibleValue, n.CanonPath)
			}

			// Deterministic tweak keeps the value a string while breaking
			// the collision.
			exclusivityRand := g.rng(n.CanonPath).Float01()
			current = fmt.Sprintf("%s-%d", s, len(out))

			g.emit(diag.New(diag.CodeExclusivityTweakString, n.CanonPath,
				map[string]any{"exclusivityRand": exclusivityRand}))
		}

		out = append(out, current)
	}

	return out, nil
}

// containsEqual reports whether v deep-equals any element of list.
func containsEqual(list []any, v any) bool {
	for _, e := range list {
		if schema.Equal(e, v) {
			return true
		}
	}

	return false
}
