package validator

import (
	"fmt"

	"go.jacobcolvin.com/foundry/diag"
)

// Expectation declares the flag values the parity gate must observe on the
// Source/Planning pair before the final validation stage may run.
type Expectation struct {
	// ValidateFormats is the run-level setting both validators must carry.
	ValidateFormats bool
	// Discriminator is the run-level setting both validators must carry.
	Discriminator bool
	// UnionViews requires allowUnionTypes on Planning; set when the plan
	// compiles union-typed views.
	UnionViews bool
	// MultipleOfPrecisionPinned requires equal multipleOfPrecision on both
	// validators; set when the rational fallback precision is pinned.
	MultipleOfPrecisionPinned bool
	// SourceClass is the class label the Source instance must carry.
	SourceClass string
	// PlanningClass is the class label the Planning instance must carry.
	PlanningClass string
}

// CheckParity compares the two validators' flags against the expectation
// and each other, returning the list of mismatched flag names. An empty
// list means the gate passes.
func CheckParity(source, planning Validator, expect Expectation) []string {
	s := source.Options()
	p := planning.Options()

	var diffs []string

	if !s.UnicodeRegExp || !p.UnicodeRegExp {
		diffs = append(diffs, "unicodeRegExp")
	}

	if s.ValidateFormats != p.ValidateFormats || s.ValidateFormats != expect.ValidateFormats {
		diffs = append(diffs, "validateFormats")
	}

	if expect.UnionViews && !p.AllowUnionTypes {
		diffs = append(diffs, "allowUnionTypes")
	}

	if s.Discriminator != p.Discriminator || s.Discriminator != expect.Discriminator {
		diffs = append(diffs, "discriminator")
	}

	if expect.MultipleOfPrecisionPinned && s.MultipleOfPrecision != p.MultipleOfPrecision {
		diffs = append(diffs, "multipleOfPrecision")
	}

	if expect.ValidateFormats && (!s.FormatsPluginInstalled || !p.FormatsPluginInstalled) {
		diffs = append(diffs, "formatsPluginInstalled")
	}

	if expect.SourceClass != "" && s.Class != expect.SourceClass {
		diffs = append(diffs, "sourceClass")
	}

	if expect.PlanningClass != "" && p.Class != expect.PlanningClass {
		diffs = append(diffs, "planningClass")
	}

	return diffs
}

// MismatchDiagnostic builds the AJV_FLAGS_MISMATCH diagnostic for a
// non-empty diff list.
func MismatchDiagnostic(diffs []string, source, planning Flags) diag.Diagnostic {
	return diag.New(diag.CodeAJVFlagsMismatch, "", map[string]any{
		"diffs":    diffs,
		"source":   fmt.Sprintf("%+v", source),
		"planning": fmt.Sprintf("%+v", planning),
	})
}

// ParityError wraps a non-empty diff list as the stage error surfaced by
// the validate stage.
func ParityError(diffs []string) error {
	return fmt.Errorf("%w: %v", ErrParity, diffs)
}
