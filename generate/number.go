package generate

import (
	"fmt"
	"math"

	"go.jacobcolvin.com/foundry/diag"
	"go.jacobcolvin.com/foundry/rational"
	"go.jacobcolvin.com/foundry/schema"
)

// defaultPrecision fixes the decimal step used to tighten exclusive bounds
// when no multipleOf supplies one.
const defaultPrecision = 6

// defaultSpan is the sampling window used when a side of the interval is
// unbounded.
const defaultSpan = 100.0

// bounds is the resolved numeric interval of one node.
type bounds struct {
	lo, hi         float64
	loExcl, hiExcl bool
}

// number synthesizes a numeric value: walk the integer grid when a
// multipleOf (or integer type) fixes one, sample the tightened closed
// interval otherwise. Every emitted value satisfies the ULP multipleOf
// tolerance and strict inequality against exclusive bounds.
func (g *generator) number(n *schema.Node, integer bool) (any, error) {
	rng := g.rng(n.CanonPath)
	b := resolveBounds(n)

	if n.MultipleOf != nil || integer {
		mo := 1.0
		if n.MultipleOf != nil {
			mo = *n.MultipleOf
		}

		return g.numberOnGrid(n, rng.IntN, b, mo, integer)
	}

	step := math.Pow(10, -defaultPrecision)

	lo, hi := b.lo, b.hi
	if b.loExcl {
		lo += step
	}

	if b.hiExcl {
		hi -= step
	}

	if lo > hi {
		g.emit(diag.New(diag.CodeNoFeasibleValue, n.CanonPath,
			map[string]any{"reason": "empty-interval", "lo": lo, "hi": hi}))

		return nil, fmt.Errorf("%w: empty interval at %q", ErrNoFeasibleValue, n.CanonPath)
	}

	if g.opts.EdgeBias {
		if v, ok := edgeCandidate(n, rng.IntN, lo, hi, step); ok {
			return v, nil
		}
	}

	v := lo + rng.Float01()*(hi-lo)
	v = rational.QuantizeDecimal(v, defaultPrecision)

	// Quantization may step outside the tightened interval; clamp back.
	if v < lo {
		v = lo
	}

	if v > hi {
		v = hi
	}

	if !numberFeasible(n, v) {
		return nil, fmt.Errorf("%w: number at %q", ErrNoFeasibleValue, n.CanonPath)
	}

	return v, nil
}

// numberOnGrid picks a uniform index on the multiple grid inside the
// bounds and reconstructs i*mo quantized to the step's precision.
// Exclusive endpoints drop their grid index exactly, never a full step.
func (g *generator) numberOnGrid(
	n *schema.Node,
	intn func(int) int,
	b bounds,
	mo float64,
	integer bool,
) (any, error) {
	// The epsilon keeps exact grid endpoints from falling off the grid
	// through binary division noise.
	first := int64(math.Ceil(b.lo/mo - 1e-9))
	last := int64(math.Floor(b.hi/mo + 1e-9))

	tol := rational.ULP(b.lo) + math.Abs(b.lo)*1e-12

	if b.loExcl && float64(first)*mo <= b.lo+tol {
		first++
	}

	tol = rational.ULP(b.hi) + math.Abs(b.hi)*1e-12

	if b.hiExcl && float64(last)*mo >= b.hi-tol {
		last--
	}

	if first > last {
		g.emit(diag.New(diag.CodeNoFeasibleValue, n.CanonPath,
			map[string]any{"reason": "empty-grid", "lo": b.lo, "hi": b.hi, "multipleOf": mo}))

		return nil, fmt.Errorf("%w: multipleOf grid at %q", ErrNoFeasibleValue, n.CanonPath)
	}

	count := last - first + 1

	var idx int64
	if count > int64(math.MaxInt32) {
		idx = int64(intn(math.MaxInt32))
	} else {
		idx = int64(intn(int(count)))
	}

	k := first + idx
	v := rational.QuantizeDecimal(float64(k)*mo, rational.Decimals(mo))

	if !numberFeasible(n, v) {
		// A quantized boundary value can still brush an excluded endpoint;
		// step inward once from either edge.
		for _, alt := range []int64{k + 1, k - 1} {
			if alt < first || alt > last {
				continue
			}

			v = rational.QuantizeDecimal(float64(alt)*mo, rational.Decimals(mo))
			if numberFeasible(n, v) {
				break
			}
		}
	}

	if !numberFeasible(n, v) {
		return nil, fmt.Errorf("%w: multipleOf at %q", ErrNoFeasibleValue, n.CanonPath)
	}

	if integer {
		return int64(math.Round(v)), nil
	}

	return v, nil
}

// edgeCandidate tries the edge-scenario set {lo, lo+step, hi-step, hi, 0,
// ±step} filtered to the feasible set.
func edgeCandidate(
	n *schema.Node,
	intn func(int) int,
	lo, hi, step float64,
) (any, bool) {
	candidates := []float64{lo, lo + step, hi - step, hi, 0, step, -step}

	var feasibleSet []float64

	for _, c := range candidates {
		c = rational.QuantizeDecimal(c, defaultPrecision)
		if c >= lo && c <= hi && numberFeasible(n, c) {
			feasibleSet = append(feasibleSet, c)
		}
	}

	if len(feasibleSet) == 0 {
		return nil, false
	}

	return feasibleSet[intn(len(feasibleSet))], true
}

// resolveBounds reads the effective interval, defaulting unbounded sides
// to a finite window.
func resolveBounds(n *schema.Node) bounds {
	var (
		b      bounds
		haveLo bool
		haveHi bool
	)

	if bound, exclusive, ok := n.EffectiveMinimum(); ok {
		b.lo, b.loExcl, haveLo = bound, exclusive, true
	}

	if bound, exclusive, ok := n.EffectiveMaximum(); ok {
		b.hi, b.hiExcl, haveHi = bound, exclusive, true
	}

	switch {
	case !haveLo && !haveHi:
		b.lo, b.hi = 0, defaultSpan
	case !haveLo:
		b.lo = b.hi - defaultSpan
	case !haveHi:
		b.hi = b.lo + defaultSpan
	}

	return b
}
