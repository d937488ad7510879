// Package compose turns a normalized schema into the effective plan the
// generator and repair engine consume: a coverage index of provably legal
// property names, a bag of contains witnesses, and bucketed diagnostics.
// Plans are memoized per validator class, flags, and resolver fingerprint;
// two plans are only interchangeable under identical keys.
package compose

import (
	"errors"
	"fmt"
	"strings"

	"go.jacobcolvin.com/foundry/diag"
	"go.jacobcolvin.com/foundry/regexpolicy"
	"go.jacobcolvin.com/foundry/schema"
	"go.jacobcolvin.com/foundry/validator"
)

// ErrFatal indicates the plan carries fatal diagnostics and the pipeline
// must stop at the compose stage.
var ErrFatal = errors.New("compose: fatal diagnostics")

// Key identifies the configuration a plan was composed under. Plans with
// different keys are never interchangeable.
type Key struct {
	ValidatorClass      string
	Flags               validator.Flags
	ResolverFingerprint string
}

// String renders the key for logging and memo maps.
func (k Key) String() string {
	return fmt.Sprintf("%s|%+v|%s", k.ValidatorClass, k.Flags, k.ResolverFingerprint)
}

// Buckets splits plan diagnostics by severity.
type Buckets struct {
	Fatal []diag.Diagnostic
	Warn  []diag.Diagnostic
	Run   []diag.Diagnostic
}

// All returns every diagnostic across the buckets, fatal first.
func (b Buckets) All() []diag.Diagnostic {
	out := make([]diag.Diagnostic, 0, len(b.Fatal)+len(b.Warn)+len(b.Run))
	out = append(out, b.Fatal...)
	out = append(out, b.Warn...)

	return append(out, b.Run...)
}

// NameDecider answers whether a property name is provably legal at one
// object node.
type NameDecider struct {
	// Names is the full legal name set, sorted by UTF-16 code point.
	Names []string
	// Source records what made the set decidable.
	Source string
}

// Has reports whether name is in the legal set.
func (d *NameDecider) Has(name string) bool {
	for _, n := range d.Names {
		if n == name {
			return true
		}
	}

	return false
}

// Plan is the effective generation plan.
type Plan struct {
	Root        *schema.Node
	Norm        *schema.Normalized
	Coverage    map[string]*NameDecider
	ContainsBag map[string][]*schema.Node
	Diagnostics Buckets
	Key         Key
}

// Options configures [Compose].
type Options struct {
	Key           Key
	MaxComplexity int
	Memo          *Memoizer
}

// Compose builds the plan for a normalized schema. A plan with fatal
// diagnostics is returned alongside [ErrFatal]; callers surface the
// diagnostics and stop.
func Compose(norm *schema.Normalized, opts Options) (*Plan, error) {
	plan := &Plan{
		Root:        norm.Root,
		Norm:        norm,
		Coverage:    make(map[string]*NameDecider),
		ContainsBag: make(map[string][]*schema.Node),
		Key:         opts.Key,
	}

	c := &composer{
		plan: plan,
		opts: opts,
	}

	norm.Root.Walk(func(n *schema.Node) bool {
		c.visit(n)

		return true
	})

	if len(plan.Diagnostics.Fatal) > 0 {
		return plan, fmt.Errorf("%w: %s", ErrFatal, plan.Diagnostics.Fatal[0].Code)
	}

	return plan, nil
}

type composer struct {
	plan *Plan
	opts Options
}

func (c *composer) visit(n *schema.Node) {
	if _, isBool := n.IsBool(); isBool {
		return
	}

	c.checkInternalRef(n)
	c.checkUnevaluated(n)
	c.buildCoverage(n)
	c.buildContains(n)
	c.noteDynamicScope(n)
}

// checkInternalRef verifies that #-local JSON Pointer refs resolve inside
// the canonical document. Unresolvable internal refs are fatal.
func (c *composer) checkInternalRef(n *schema.Node) {
	if n.Kind != schema.KindRef || !strings.HasPrefix(n.Ref, "#/") {
		return
	}

	if _, ok := schema.ResolveLocal(c.plan.Norm.Raw, n.Ref); !ok {
		c.plan.Diagnostics.Fatal = append(c.plan.Diagnostics.Fatal,
			diag.New(diag.CodeSchemaInternalRefMissing, n.CanonPath,
				map[string]any{"ref": n.Ref}))
	}
}

// checkUnevaluated flags unevaluatedProperties:false combined with
// additionalProperties:false on the same node; the two evaluation
// disciplines contradict and no branch choice can satisfy both.
func (c *composer) checkUnevaluated(n *schema.Node) {
	if n.UnevaluatedAllowed == nil || *n.UnevaluatedAllowed {
		return
	}

	if n.AdditionalAllowed != nil && !*n.AdditionalAllowed {
		c.plan.Diagnostics.Fatal = append(c.plan.Diagnostics.Fatal,
			diag.New(diag.CodeSchemaInternalRefMissing, n.CanonPath,
				map[string]any{"misuse": "unevaluatedProperties:false with additionalProperties:false"}))
	}
}

// buildCoverage records a name decider when the legal name set at an
// object node is provably decidable.
func (c *composer) buildCoverage(n *schema.Node) {
	memoKey := c.opts.Key.String() + "|" + n.CanonPath

	if c.opts.Memo != nil {
		if cached, ok := c.opts.Memo.Get(memoKey); ok {
			if cached != nil {
				c.plan.Coverage[n.CanonPath] = cached
			}

			return
		}
	}

	decider := c.decideNames(n)
	if decider != nil {
		c.plan.Coverage[n.CanonPath] = decider
	}

	if c.opts.Memo != nil {
		c.opts.Memo.Put(memoKey, decider)
	}
}

// decideNames computes the legal name set, or nil when undecidable.
func (c *composer) decideNames(n *schema.Node) *NameDecider {
	if n.PropertyNames != nil {
		if names := enumStrings(n.PropertyNames.Enum); len(names) > 0 {
			return &NameDecider{Names: sortUTF16(names), Source: "propertyNames.enum"}
		}

		if n.PropertyNames.Pattern != "" {
			analysis := regexpolicy.Analyze(n.PropertyNames.Pattern, regexpolicy.Options{
				Context:       "propertyNames:" + n.CanonPath,
				MaxComplexity: c.opts.MaxComplexity,
			})
			c.plan.Diagnostics.Warn = append(c.plan.Diagnostics.Warn, analysis.Diagnostics...)

			if analysis.IsAnchoredSafe() {
				if alts, ok := regexpolicy.LiteralAlternatives(n.PropertyNames.Pattern); ok {
					return &NameDecider{Names: sortUTF16(alts), Source: "propertyNames.pattern"}
				}
			}
		}
	}

	// properties + additionalProperties:false closes the name set when no
	// pattern properties widen it (or every pattern is enumerable).
	if n.AdditionalAllowed != nil && !*n.AdditionalAllowed && n.Properties != nil {
		names := append([]string{}, n.PropertyOrder...)

		for _, pat := range n.PatternPropertyOrder {
			analysis := regexpolicy.Analyze(pat, regexpolicy.Options{
				Context:       "patternProperties:" + n.CanonPath,
				MaxComplexity: c.opts.MaxComplexity,
			})

			if !analysis.IsAnchoredSafe() {
				c.plan.Diagnostics.Warn = append(c.plan.Diagnostics.Warn,
					diag.New(diag.CodeAPFalseUnsafePattern, n.CanonPath,
						map[string]any{"pattern": pat}))

				return nil
			}

			alts, ok := regexpolicy.LiteralAlternatives(pat)
			if !ok {
				return nil
			}

			names = append(names, alts...)
		}

		return &NameDecider{Names: sortUTF16(names), Source: "additionalProperties:false"}
	}

	return nil
}

// buildContains records the witness requirement for contains nodes.
func (c *composer) buildContains(n *schema.Node) {
	if n.Contains == nil {
		return
	}

	count := 1
	if n.MinContains != nil {
		count = *n.MinContains
	}

	witnesses := make([]*schema.Node, 0, count)
	for range count {
		witnesses = append(witnesses, n.Contains)
	}

	c.plan.ContainsBag[n.CanonPath] = witnesses
}

// noteDynamicScope records dynamic-reference usage; resolution is the
// collaborator validator's job, bounded by a fixed hop depth here.
func (c *composer) noteDynamicScope(n *schema.Node) {
	if n.Raw == nil {
		return
	}

	if _, ok := n.Raw["$dynamicRef"]; ok {
		c.plan.Diagnostics.Run = append(c.plan.Diagnostics.Run,
			diag.New(diag.CodeDynamicScopeBounded, n.CanonPath,
				map[string]any{"hopDepth": 2}))
	}
}

// enumStrings filters an enum to its string members.
func enumStrings(enum []any) []string {
	var out []string

	for _, e := range enum {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}

	return out
}

// sortUTF16 sorts names by UTF-16 code units, the order rename targets are
// assigned in. This matches byte order except for supplementary-plane
// characters, whose surrogate pairs sort before U+E000..U+FFFF.
func sortUTF16(names []string) []string {
	out := append([]string{}, names...)

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && utf16Less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}

	return out
}

// utf16Less compares two strings by UTF-16 code units.
func utf16Less(a, b string) bool {
	ar := []rune(a)
	br := []rune(b)

	for i := 0; i < len(ar) && i < len(br); i++ {
		au := utf16Unit(ar[i])

		bu := utf16Unit(br[i])
		if au != bu {
			return au < bu
		}

		// Equal high surrogates: the low surrogates follow code point order.
		if ar[i] != br[i] {
			return ar[i] < br[i]
		}
	}

	return len(ar) < len(br)
}

// utf16Unit returns the first UTF-16 code unit of a rune.
func utf16Unit(r rune) uint32 {
	if r < 0x10000 {
		return uint32(r)
	}

	// High surrogate of the supplementary-plane encoding.
	return 0xD800 + uint32((r-0x10000)>>10)
}
