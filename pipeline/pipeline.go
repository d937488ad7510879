// Package pipeline orchestrates the five synthesis stages: normalize,
// compose, generate, repair, validate. Stages run strictly in order; a
// failed stage marks every later stage skipped and pins the run status to
// failed. Stage outputs are immutable artifacts owned by the orchestrator.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"go.jacobcolvin.com/foundry/compose"
	"go.jacobcolvin.com/foundry/diag"
	"go.jacobcolvin.com/foundry/extref"
	"go.jacobcolvin.com/foundry/format"
	"go.jacobcolvin.com/foundry/generate"
	"go.jacobcolvin.com/foundry/metrics"
	"go.jacobcolvin.com/foundry/repair"
	"go.jacobcolvin.com/foundry/schema"
	"go.jacobcolvin.com/foundry/validator"
)

// Stage names, in execution order.
const (
	StageNormalize = "normalize"
	StageCompose   = "compose"
	StageGenerate  = "generate"
	StageRepair    = "repair"
	StageValidate  = "validate"
)

var stageOrder = []string{StageNormalize, StageCompose, StageGenerate, StageRepair, StageValidate}

// Status values for stages and runs.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// ErrRunFailed is the summary error returned when the run status is failed.
var ErrRunFailed = errors.New("pipeline: run failed")

// StageError wraps a failure at a stage boundary. No error from within a
// stage crosses the boundary unwrapped.
type StageError struct {
	Stage   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap exposes the cause chain.
func (e *StageError) Unwrap() error {
	return e.Cause
}

// StageResult is the recorded outcome of one stage.
type StageResult struct {
	Name   string
	Status string
}

// Validation is the validate stage's artifact.
type Validation struct {
	Valid   bool
	Skipped bool
	Rows    int
	Errors  [][]validator.ErrorObject
}

// Artifacts collects the immutable stage outputs.
type Artifacts struct {
	Canonical             *schema.Normalized
	Effective             *compose.Plan
	Generated             []any
	Repaired              []any
	Validation            *Validation
	ValidationFlags       map[string]validator.Flags
	ValidationDiagnostics []diag.Diagnostic
	RepairDiagnostics     []diag.Diagnostic
	RepairActions         [][]repair.Action
	CoverageGraph         map[string][]string
	CoverageTargets       []string
}

// Result is the run outcome surfaced to callers.
type Result struct {
	Status    string
	Schema    any
	Stages    map[string]*StageResult
	Timeline  []string
	Errors    []*StageError
	Metrics   metrics.Snapshot
	Artifacts Artifacts
}

// CoverageOptions controls coverage measurement.
type CoverageOptions struct {
	// Mode is off or measure.
	Mode string
	// DimensionsEnabled filters measured dimensions; empty means all.
	DimensionsEnabled []string
	// ExcludeUnreachable drops targets under never-taken branches.
	ExcludeUnreachable bool
}

// GenerateOptions mirrors the generate stage inputs.
type GenerateOptions struct {
	Count          int
	Seed           uint32
	PreferExamples bool
	EdgeBias       bool
	// MaxComplexity caps regex analysis during planning.
	MaxComplexity int
}

// RepairOptions mirrors the repair stage inputs.
type RepairOptions struct {
	// Attempts per item, clamped to [1, 3].
	Attempts int
}

// ValidateOptions mirrors the validate stage inputs.
type ValidateOptions struct {
	ValidateFormats bool
	Discriminator   bool
}

// Options configures a pipeline run.
type Options struct {
	// Mode is strict (default) or lax.
	Mode extref.Mode
	// ExternalRefPolicy applies in strict mode: error (default), warn, or
	// ignore.
	ExternalRefPolicy extref.Policy
	Coverage          CoverageOptions
	Generate          GenerateOptions
	Repair            RepairOptions
	Validate          ValidateOptions
	// Verbosity gates metric payloads; defaults to runtime.
	Verbosity metrics.Verbosity
	// Resolver supplies external schemas before compose; nil disables
	// registry hydration.
	Resolver extref.Resolver
	// Formats supplies format plugins to the generator; nil uses the
	// built-in registry.
	Formats *format.Registry
	// Logger receives stage-level debug logging; nil uses slog.Default.
	Logger *slog.Logger
}

// Overrides replaces individual stages, primarily for tests and corpus
// harnesses. A nil field keeps the built-in stage.
type Overrides struct {
	Normalize func(data []byte) (*schema.Normalized, error)
	Compose   func(norm *schema.Normalized) (*compose.Plan, error)
	Generate  func(plan *compose.Plan) (generate.Result, error)
	Repair    func(items []any) ([]any, error)
	Validate  func(items []any) (*Validation, error)

	// SourceValidator and PlanningValidator replace the validator
	// factories, letting harnesses inject mis-configured instances.
	SourceValidator   validator.Validator
	PlanningValidator validator.Validator
}
