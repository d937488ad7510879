// Package generate synthesizes instances from an effective plan. Each root
// instance is built recursively by per-type strategies; all randomness is
// drawn from fresh streams constructed per canonical path, so local schema
// edits never perturb values generated for unrelated subtrees.
package generate

import (
	"errors"
	"fmt"

	"go.jacobcolvin.com/foundry/compose"
	"go.jacobcolvin.com/foundry/diag"
	"go.jacobcolvin.com/foundry/format"
	"go.jacobcolvin.com/foundry/metrics"
	"go.jacobcolvin.com/foundry/randx"
	"go.jacobcolvin.com/foundry/schema"
)

var (
	// ErrNoFeasibleValue indicates a node's constraints admit no value.
	ErrNoFeasibleValue = errors.New("generate: no feasible value")
	// ErrUnresolvedRef indicates a reference could not be chased and
	// stubbing is disabled.
	ErrUnresolvedRef = errors.New("generate: unresolved reference")
)

// maxDepth bounds recursion through cyclic references.
const maxDepth = 32

// itemSeedStride separates per-item seed spaces; the odd constant keeps
// consecutive item streams uncorrelated.
const itemSeedStride uint32 = 0x9E3779B9

// Options configures a generation run.
type Options struct {
	// Count is the number of root instances to synthesize.
	Count int
	// Seed drives every stream in the run.
	Seed uint32
	// PreferExamples picks schema examples and plugin examples over
	// random synthesis when available.
	PreferExamples bool
	// EdgeBias biases numeric samples toward interval edges.
	EdgeBias bool
	// StubExternalRefs replaces unresolvable external references with the
	// empty schema instead of failing (lax mode).
	StubExternalRefs bool
	// Formats supplies format plugins; nil disables format-driven strings.
	Formats *format.Registry
}

// Result is the generation output.
type Result struct {
	Items       []any
	Diagnostics []diag.Diagnostic
	Seed        uint32
}

// Generate synthesizes opts.Count instances for the plan, recording counters
// on the collector.
func Generate(plan *compose.Plan, opts Options, coll *metrics.Collector) (Result, error) {
	if opts.Count <= 0 {
		opts.Count = 1
	}

	result := Result{Seed: opts.Seed}

	for i := range opts.Count {
		g := &generator{
			plan:   plan,
			opts:   opts,
			coll:   coll,
			seed:   opts.Seed + uint32(i)*itemSeedStride,
			visits: make(map[string]uint32),
		}

		item, err := g.value(plan.Root, 0)

		result.Diagnostics = append(result.Diagnostics, g.diags...)
		if err != nil {
			return result, fmt.Errorf("item %d: %w", i, err)
		}

		result.Items = append(result.Items, item)
	}

	return result, nil
}

// generator holds per-item state.
type generator struct {
	plan   *compose.Plan
	opts   Options
	coll   *metrics.Collector
	seed   uint32
	visits map[string]uint32
	diags  []diag.Diagnostic
}

// occurrenceStride separates repeat entries at the same canonical path
// (array elements generated from one items schema).
const occurrenceStride uint32 = 0x85EBCA6B

// rng constructs the fresh stream for one canonical path entry. Repeat
// entries at the same path fold the occurrence count into the seed so
// sibling array elements draw distinct values while unrelated subtrees
// stay untouched by local edits.
func (g *generator) rng(canonPath string) *randx.XorShift32 {
	occurrence := g.visits[canonPath]
	g.visits[canonPath] = occurrence + 1

	return randx.New(g.seed+occurrence*occurrenceStride, canonPath)
}

func (g *generator) emit(d diag.Diagnostic) {
	g.diags = append(g.diags, d)
}

// value synthesizes one value for a node.
func (g *generator) value(n *schema.Node, depth int) (any, error) {
	if depth > maxDepth {
		return nil, nil
	}

	if allowed, isBool := n.IsBool(); isBool {
		if !allowed {
			return nil, fmt.Errorf("%w: false schema at %q", ErrNoFeasibleValue, n.CanonPath)
		}

		return nil, nil
	}

	if n.Kind == schema.KindRef {
		return g.chaseRef(n, depth)
	}

	// allOf folds into an effective node before any value decision.
	if len(n.AllOf) > 0 {
		merged, err := mergeAllOf(n)
		if err != nil {
			return nil, err
		}

		return g.value(merged, depth+1)
	}

	// const and enum short-circuit the type strategies; bounds still
	// filter the candidate set.
	if n.Const != nil {
		if !feasible(n, *n.Const) {
			return nil, fmt.Errorf("%w: const at %q conflicts with bounds", ErrNoFeasibleValue, n.CanonPath)
		}

		return schema.Clone(*n.Const), nil
	}

	if len(n.Enum) > 0 {
		return g.pickEnum(n)
	}

	if g.opts.PreferExamples && len(n.Examples) > 0 {
		if ex := firstFeasibleExample(n); ex != nil {
			return schema.Clone(*ex), nil
		}
	}

	switch n.Kind {
	case schema.KindNumber:
		return g.number(n, false)
	case schema.KindInteger:
		return g.number(n, true)
	case schema.KindString:
		return g.text(n)
	case schema.KindBoolean:
		return g.rng(n.CanonPath).Bool(), nil
	case schema.KindNull:
		return nil, nil
	case schema.KindObject:
		return g.object(n, depth)
	case schema.KindArray:
		return g.array(n, depth)
	case schema.KindComposition:
		return g.composition(n, depth)
	}

	// KindAny: composition keywords may still apply.
	if n.HasComposition() {
		return g.composition(n, depth)
	}

	return nil, nil
}

// chaseRef resolves a reference and generates from its target.
func (g *generator) chaseRef(n *schema.Node, depth int) (any, error) {
	fragment, ok := schema.ResolveLocal(g.plan.Norm.Raw, n.Ref)
	if !ok {
		if g.opts.StubExternalRefs {
			g.emit(diag.New(diag.CodeNoFeasibleValue, n.CanonPath,
				map[string]any{"ref": n.Ref, "stubbed": true}))

			return nil, nil
		}

		return nil, fmt.Errorf("%w: %q at %q", ErrUnresolvedRef, n.Ref, n.CanonPath)
	}

	target, err := schema.BuildFragment(fragment, n.CanonPath)
	if err != nil {
		return nil, err
	}

	return g.value(target, depth+1)
}

// composition picks the first satisfiable branch of anyOf/oneOf. Object
// shapes route through the object strategy, which appends branch-required
// keys after the parent's own; everything else merges the branch into the
// node and regenerates.
func (g *generator) composition(n *schema.Node, depth int) (any, error) {
	branches := n.AnyOf
	if len(branches) == 0 {
		branches = n.OneOf
	}

	if len(branches) == 0 {
		// if/then/else and not are the oracle's concern; generate from the
		// bare node.
		bare := *n
		bare.If, bare.Then, bare.Else, bare.Not = nil, nil, nil, nil
		bare.Kind = schema.KindAny

		if bare.Properties != nil {
			bare.Kind = schema.KindObject
		}

		if bare.Kind == schema.KindAny {
			return nil, nil
		}

		return g.value(&bare, depth+1)
	}

	if objectish(n, branches) {
		return g.object(n, depth)
	}

	for i, branch := range branches {
		g.coll.Add(metrics.CounterBranchTrialsTried, 1)

		merged, err := mergeBranch(n, branch)
		if err != nil {
			continue
		}

		v, err := g.value(merged, depth+1)
		if err == nil {
			g.coll.Observe("branchChosen", float64(i))

			return v, nil
		}
	}

	return nil, fmt.Errorf("%w: no satisfiable branch at %q", ErrNoFeasibleValue, n.CanonPath)
}

// objectish reports whether a composed node generates as an object.
func objectish(n *schema.Node, branches []*schema.Node) bool {
	if n.Properties != nil || len(n.Required) > 0 || n.UnevaluatedAllowed != nil {
		return true
	}

	for _, b := range branches {
		if b.Kind == schema.KindObject || b.Properties != nil || len(b.Required) > 0 {
			return true
		}
	}

	return false
}

// pickEnum selects an enum member, filtering by feasibility.
func (g *generator) pickEnum(n *schema.Node) (any, error) {
	var candidates []any

	for _, e := range n.Enum {
		if feasible(n, e) {
			candidates = append(candidates, e)
		}
	}

	if len(candidates) == 0 {
		g.emit(diag.New(diag.CodeNoFeasibleValue, n.CanonPath,
			map[string]any{"reason": "enum-bounds-conflict"}))

		return nil, fmt.Errorf("%w: enum at %q", ErrNoFeasibleValue, n.CanonPath)
	}

	idx := g.rng(n.CanonPath).IntN(len(candidates))

	return schema.Clone(candidates[idx]), nil
}

// firstFeasibleExample returns a pointer to the first example passing the
// node's own constraints.
func firstFeasibleExample(n *schema.Node) *any {
	for i := range n.Examples {
		if feasible(n, n.Examples[i]) {
			return &n.Examples[i]
		}
	}

	return nil
}
