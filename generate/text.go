package generate

import (
	"fmt"
	"strings"

	"go.jacobcolvin.com/foundry/metrics"
	"go.jacobcolvin.com/foundry/regexpolicy"
	"go.jacobcolvin.com/foundry/schema"
)

// placeholderRune fills length-driven strings.
const placeholderRune = 'x'

// defaultTextLength is used when no length constraint applies.
const defaultTextLength = 8

// text synthesizes a string value. Anchored-safe patterns drive the
// bounded literal-alternation enumerator; registered formats delegate to
// their plugin; everything else is filled to length with placeholders.
func (g *generator) text(n *schema.Node) (any, error) {
	rng := g.rng(n.CanonPath)

	if n.Pattern != "" {
		analysis := regexpolicy.Analyze(n.Pattern, regexpolicy.Options{
			Context: "generate:" + n.CanonPath,
		})

		if analysis.IsAnchoredSafe() {
			if alts, ok := regexpolicy.LiteralAlternatives(n.Pattern); ok {
				g.coll.Add(metrics.CounterPatternWitnessTried, 1)

				candidates := filterByLength(alts, n)
				if len(candidates) == 0 {
					return nil, fmt.Errorf("%w: pattern alternatives vs length at %q",
						ErrNoFeasibleValue, n.CanonPath)
				}

				return candidates[rng.IntN(len(candidates))], nil
			}

			if w, ok := regexpolicy.Witness(n.Pattern); ok {
				g.coll.Add(metrics.CounterPatternWitnessTried, 1)

				return w, nil
			}
		}
		// Unsafe or unenumerable patterns fall through to length fill;
		// the repair stage reconciles against the oracle's verdict.
	}

	if n.Format != "" && g.opts.Formats != nil && g.opts.Formats.Supports(n.Format) {
		plugin, err := g.opts.Formats.Lookup(n.Format)
		if err == nil {
			if g.opts.PreferExamples {
				if examples := plugin.Examples(); len(examples) > 0 {
					return examples[rng.IntN(len(examples))], nil
				}
			}

			v, genErr := plugin.Generate(rng)
			if genErr == nil && plugin.Validate(v) {
				return v, nil
			}
		}
	}

	length := defaultTextLength
	if n.MinLength != nil && *n.MinLength > length {
		length = *n.MinLength
	}

	if n.MaxLength != nil && *n.MaxLength < length {
		length = *n.MaxLength
	}

	if n.MinLength != nil && n.MaxLength != nil && *n.MinLength > *n.MaxLength {
		return nil, fmt.Errorf("%w: minLength > maxLength at %q", ErrNoFeasibleValue, n.CanonPath)
	}

	return strings.Repeat(string(placeholderRune), length), nil
}

// filterByLength keeps alternatives that satisfy the node's length bounds.
func filterByLength(alts []string, n *schema.Node) []string {
	var out []string

	for _, a := range alts {
		runes := len([]rune(a))

		if n.MinLength != nil && runes < *n.MinLength {
			continue
		}

		if n.MaxLength != nil && runes > *n.MaxLength {
			continue
		}

		out = append(out, a)
	}

	return out
}
