// Package regexpolicy decides which schema patterns are safe to reason
// about. A pattern is "anchored safe" when it is anchored on both ends,
// free of lookaround and backreferences, within the complexity cap, and
// compiles. Only anchored-safe patterns participate in coverage indices,
// literal-alternation enumeration, and repair witness synthesis.
package regexpolicy

import (
	"regexp"
	"regexp/syntax"
	"strings"

	"go.jacobcolvin.com/foundry/diag"
)

// DefaultMaxComplexity caps the complexity score (pattern length plus
// quantifier count) beyond which analysis refuses the pattern.
const DefaultMaxComplexity = 120

// Options configures [Analyze].
type Options struct {
	// Context labels the analysis site in emitted diagnostics.
	Context string
	// MaxComplexity overrides DefaultMaxComplexity when positive.
	MaxComplexity int
}

// Analysis is the result of analyzing one pattern.
type Analysis struct {
	Pattern          string
	Anchored         bool
	HasLookaround    bool
	HasBackreference bool
	Capped           bool
	CompileError     bool
	Complexity       int
	Diagnostics      []diag.Diagnostic
}

// IsAnchoredSafe reports whether the pattern may drive coverage and
// witness synthesis.
func (a Analysis) IsAnchoredSafe() bool {
	return a.Anchored &&
		!a.HasLookaround &&
		!a.HasBackreference &&
		!a.Capped &&
		!a.CompileError
}

// Analyze inspects a pattern against the policy.
func Analyze(pattern string, opts Options) Analysis {
	maxComplexity := opts.MaxComplexity
	if maxComplexity <= 0 {
		maxComplexity = DefaultMaxComplexity
	}

	a := Analysis{
		Pattern:          pattern,
		Anchored:         strings.HasPrefix(pattern, "^") && strings.HasSuffix(pattern, "$"),
		HasLookaround:    hasLookaround(pattern),
		HasBackreference: hasBackreference(pattern),
		Complexity:       complexity(pattern),
	}

	if a.Complexity > maxComplexity {
		a.Capped = true
		a.Diagnostics = append(a.Diagnostics, diag.New(
			diag.CodeRegexComplexityCapped, "", map[string]any{
				"pattern":    pattern,
				"context":    opts.Context,
				"complexity": a.Complexity,
				"max":        maxComplexity,
			}))
	}

	if _, err := regexp.Compile(pattern); err != nil {
		a.CompileError = true
		a.Diagnostics = append(a.Diagnostics, diag.New(
			diag.CodeRegexCompileError, "", map[string]any{
				"pattern": pattern,
				"context": opts.Context,
				"error":   err.Error(),
			}))
	}

	return a
}

// complexity scores a pattern as its length plus the number of quantifiers.
func complexity(pattern string) int {
	score := len(pattern)

	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*', '+', '?':
			if i > 0 && pattern[i-1] == '(' {
				// Group-construct prefix "(?", not a quantifier.
				continue
			}

			score++

		case '{':
			if end := strings.IndexByte(pattern[i:], '}'); end > 0 {
				score++
			}
		}
	}

	return score
}

// hasLookaround detects lookahead/lookbehind constructs. Go's regexp does
// not support them, so their presence also implies a compile error, but the
// classification is reported independently.
func hasLookaround(pattern string) bool {
	for _, marker := range []string{"(?=", "(?!", "(?<=", "(?<!"} {
		if strings.Contains(pattern, marker) {
			return true
		}
	}

	return false
}

// hasBackreference detects \1..\9 escapes outside character classes.
func hasBackreference(pattern string) bool {
	inClass := false

	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '\\':
			if i+1 < len(pattern) && !inClass && pattern[i+1] >= '1' && pattern[i+1] <= '9' {
				return true
			}

			i++
		}
	}

	return false
}

// LiteralAlternatives extracts the finite set of strings matched by an
// anchored literal alternation such as ^(alpha|beta|gamma)$ or a single
// anchored literal ^alpha$. Reports false when the pattern is not a
// pseudo-enum.
func LiteralAlternatives(pattern string) ([]string, bool) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, false
	}

	re = re.Simplify()

	body, ok := stripAnchors(re)
	if !ok {
		return nil, false
	}

	return literalsOf(body)
}

// stripAnchors unwraps Concat(BeginText, body..., EndText) and returns the
// body as a single node.
func stripAnchors(re *syntax.Regexp) (*syntax.Regexp, bool) {
	if re.Op != syntax.OpConcat || len(re.Sub) < 2 {
		return nil, false
	}

	if re.Sub[0].Op != syntax.OpBeginText || re.Sub[len(re.Sub)-1].Op != syntax.OpEndText {
		return nil, false
	}

	body := re.Sub[1 : len(re.Sub)-1]

	switch len(body) {
	case 0:
		return &syntax.Regexp{Op: syntax.OpEmptyMatch}, true
	case 1:
		return body[0], true
	default:
		return &syntax.Regexp{Op: syntax.OpConcat, Sub: body}, true
	}
}

// enumClassMax bounds character-class enumeration. The parser folds
// single-rune alternations like (a|b|c) into classes, so classes up to this
// size are treated as alternations of one-rune literals.
const enumClassMax = 16

// literalsOf returns the finite language of a node built purely from
// literals, captures, small character classes, concatenation, and
// alternation.
func literalsOf(re *syntax.Regexp) ([]string, bool) {
	switch re.Op {
	case syntax.OpEmptyMatch:
		return []string{""}, true

	case syntax.OpLiteral:
		return []string{string(re.Rune)}, true

	case syntax.OpCharClass:
		var out []string

		for i := 0; i+1 < len(re.Rune); i += 2 {
			for r := re.Rune[i]; r <= re.Rune[i+1]; r++ {
				if len(out) >= enumClassMax {
					return nil, false
				}

				out = append(out, string(r))
			}
		}

		if len(out) == 0 {
			return nil, false
		}

		return out, true

	case syntax.OpCapture:
		return literalsOf(re.Sub[0])

	case syntax.OpConcat:
		acc := []string{""}

		for _, sub := range re.Sub {
			parts, ok := literalsOf(sub)
			if !ok {
				return nil, false
			}

			var next []string

			for _, prefix := range acc {
				for _, p := range parts {
					next = append(next, prefix+p)
				}
			}

			acc = next
		}

		return acc, true

	case syntax.OpAlternate:
		var out []string

		for _, sub := range re.Sub {
			parts, ok := literalsOf(sub)
			if !ok {
				return nil, false
			}

			out = append(out, parts...)
		}

		return out, true
	}

	return nil, false
}

// Witness synthesizes one string matching an anchored-safe pattern.
// Supported shapes: literal alternations, and bounded character-class
// repetitions like ^\w{3,8}$ or ^[0-9]{2}$ (the minimum count is used).
// Reports false for anything else.
func Witness(pattern string) (string, bool) {
	if alts, ok := LiteralAlternatives(pattern); ok && len(alts) > 0 {
		return alts[0], true
	}

	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return "", false
	}

	body, ok := stripAnchors(re)
	if !ok {
		return "", false
	}

	return witnessOf(body)
}

// witnessOf builds one matching string for repetition/class/literal nodes.
func witnessOf(re *syntax.Regexp) (string, bool) {
	switch re.Op {
	case syntax.OpEmptyMatch:
		return "", true

	case syntax.OpLiteral:
		return string(re.Rune), true

	case syntax.OpCapture:
		return witnessOf(re.Sub[0])

	case syntax.OpCharClass:
		r, ok := classRune(re)
		if !ok {
			return "", false
		}

		return string(r), true

	case syntax.OpConcat:
		var sb strings.Builder

		for _, sub := range re.Sub {
			part, ok := witnessOf(sub)
			if !ok {
				return "", false
			}

			sb.WriteString(part)
		}

		return sb.String(), true

	case syntax.OpRepeat:
		part, ok := witnessOf(re.Sub[0])
		if !ok {
			return "", false
		}

		return strings.Repeat(part, re.Min), true

	case syntax.OpPlus:
		part, ok := witnessOf(re.Sub[0])
		if !ok {
			return "", false
		}

		return part, true

	case syntax.OpStar, syntax.OpQuest:
		return "", true
	}

	return "", false
}

// classRune picks a representative rune from a character class, preferring
// digits, then lowercase letters, then the class minimum.
func classRune(re *syntax.Regexp) (rune, bool) {
	if len(re.Rune) == 0 {
		return 0, false
	}

	contains := func(r rune) bool {
		for i := 0; i+1 < len(re.Rune); i += 2 {
			if r >= re.Rune[i] && r <= re.Rune[i+1] {
				return true
			}
		}

		return false
	}

	switch {
	case contains('1'):
		return '1', true
	case contains('a'):
		return 'a', true
	}

	return re.Rune[0], true
}
