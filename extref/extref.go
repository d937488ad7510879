// Package extref detects unresolved external $ref targets, classifies
// compile failures for skip-eligibility, applies the external-reference
// policy, and hydrates validator registries from a resolver with
// duplicate-id containment.
package extref

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.jacobcolvin.com/foundry/diag"
)

// Mode is the pipeline strictness mode the policy reads.
type Mode string

// Pipeline modes.
const (
	ModeStrict Mode = "strict"
	ModeLax    Mode = "lax"
)

// Policy selects how strict mode treats unresolved external refs.
type Policy string

// Policies for strict mode.
const (
	PolicyError  Policy = "error"
	PolicyWarn   Policy = "warn"
	PolicyIgnore Policy = "ignore"
)

// ErrExternalRef indicates an unresolved external reference under the
// strict error policy.
var ErrExternalRef = errors.New("extref: unresolved external reference")

// maxClassifyDepth bounds the recursive search through error payloads for
// candidate missing refs.
const maxClassifyDepth = 4

// CollectExternalRefs traverses a schema document and returns every $ref
// value that is absolute or not #-local, sorted and deduplicated.
func CollectExternalRefs(schemaDoc any) []string {
	seen := make(map[string]bool)

	var walk func(v any)

	walk = func(v any) {
		switch x := v.(type) {
		case map[string]any:
			if ref, ok := x["$ref"].(string); ok && IsExternalRef(ref) {
				seen[ref] = true
			}

			for _, val := range x {
				walk(val)
			}

		case []any:
			for _, e := range x {
				walk(e)
			}
		}
	}

	walk(schemaDoc)

	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}

	sort.Strings(refs)

	return refs
}

// HasExternalRefs reports whether the schema document contains any
// external $ref.
func HasExternalRefs(schemaDoc any) bool {
	return len(CollectExternalRefs(schemaDoc)) > 0
}

// IsExternalRef reports whether a $ref target leaves the document:
// absolute URIs and any non-#-local reference qualify.
func IsExternalRef(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "#") {
		return false
	}

	return true
}

// Classification is the result of classifying a compile failure.
type Classification struct {
	// SkipEligible is true when every missing ref reported by the compile
	// failure is external, so validation may be deferred.
	SkipEligible bool
	// MissingRefs lists the candidate refs extracted from the failure.
	MissingRefs []string
}

// ClassifyCompileFailure inspects a compile error against the set of known
// external refs. Candidate refs are extracted from the error payload
// recursively: wrapped causes and message text are scanned up to a fixed
// depth for anything resembling the known refs.
func ClassifyCompileFailure(err error, knownExternal []string) Classification {
	if err == nil {
		return Classification{}
	}

	missing := make(map[string]bool)
	collectCandidates(err, knownExternal, missing, 0)

	refs := make([]string, 0, len(missing))
	for ref := range missing {
		refs = append(refs, ref)
	}

	sort.Strings(refs)

	c := Classification{MissingRefs: refs}
	if len(refs) == 0 {
		return c
	}

	c.SkipEligible = true

	for _, ref := range refs {
		if !IsExternalRef(ref) {
			c.SkipEligible = false

			break
		}
	}

	return c
}

// collectCandidates scans an error and its cause chain for known refs.
func collectCandidates(err error, known []string, out map[string]bool, depth int) {
	if err == nil || depth > maxClassifyDepth {
		return
	}

	msg := err.Error()

	for _, ref := range known {
		if strings.Contains(msg, ref) || strings.Contains(msg, trimFragment(ref)) {
			out[ref] = true
		}
	}

	// Scan schema-internal pointers reported as missing, which make the
	// failure ineligible for skipping.
	if idx := strings.Index(msg, "#/"); idx >= 0 && len(out) == 0 {
		end := idx

		for end < len(msg) && !isRefBoundary(msg[end]) {
			end++
		}

		out[msg[idx:end]] = true
	}

	collectCandidates(errors.Unwrap(err), known, out, depth+1)
}

func isRefBoundary(b byte) bool {
	return b == ' ' || b == '"' || b == '\'' || b == ')' || b == ',' || b == '\n'
}

// trimFragment strips a #-fragment from a ref so base-URI matches count.
func trimFragment(ref string) string {
	if idx := strings.Index(ref, "#"); idx >= 0 {
		return ref[:idx]
	}

	return ref
}

// Decision is the policy outcome for a schema with unresolved external
// refs.
type Decision struct {
	// Fail stops the pipeline (strict mode, error policy).
	Fail bool
	// SkipValidation defers validation; generation may proceed.
	SkipValidation bool
	// EmitDiagnostic controls whether EXTERNAL_REF_UNRESOLVED is recorded.
	EmitDiagnostic bool
	// StubEmptySchemas replaces unresolved refs with empty schemas during
	// generation (lax mode).
	StubEmptySchemas bool
}

// Decide applies the external-ref policy matrix.
func Decide(mode Mode, policy Policy) Decision {
	if mode == ModeLax {
		return Decision{
			SkipValidation:   true,
			EmitDiagnostic:   true,
			StubEmptySchemas: true,
		}
	}

	switch policy {
	case PolicyWarn:
		return Decision{SkipValidation: true, EmitDiagnostic: true}
	case PolicyIgnore:
		return Decision{SkipValidation: true}
	default:
		return Decision{Fail: true, EmitDiagnostic: true}
	}
}

// Diagnostic builds the EXTERNAL_REF_UNRESOLVED diagnostic for one ref
// under the decided policy.
func Diagnostic(ref string, mode Mode, policy Policy, d Decision) diag.Diagnostic {
	details := map[string]any{
		"ref":  ref,
		"mode": string(mode),
	}

	if mode == ModeStrict {
		details["policy"] = string(policy)
	}

	if d.SkipValidation {
		details["skippedValidation"] = true
	}

	return diag.New(diag.CodeExternalRefUnresolved, "", details)
}

// StubDiagnostic builds the EXTERNAL_REF_STUBBED diagnostic emitted when a
// lax run generates against an empty-schema stand-in.
func StubDiagnostic(ref string) diag.Diagnostic {
	return diag.New(diag.CodeExternalRefStubbed, "", map[string]any{"ref": ref})
}

// FailError wraps the strict+error outcome for the compose stage.
func FailError(refs []string) error {
	return fmt.Errorf("%w: %s", ErrExternalRef, strings.Join(refs, ", "))
}
