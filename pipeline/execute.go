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

// Execute runs the pipeline on a schema document. The returned result is
// always non-nil; the error summarizes a failed run.
func Execute(schemaBytes []byte, opts Options, ov *Overrides) (*Result, error) {
	if ov == nil {
		ov = &Overrides{}
	}

	if opts.Mode == "" {
		opts.Mode = extref.ModeStrict
	}

	if opts.ExternalRefPolicy == "" {
		opts.ExternalRefPolicy = extref.PolicyError
	}

	if opts.Verbosity == "" {
		opts.Verbosity = metrics.VerbosityRuntime
	}

	if opts.Formats == nil {
		opts.Formats = format.NewRegistry()
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	run := &runner{
		opts: opts,
		ov:   ov,
		coll: metrics.NewCollector(opts.Verbosity),
		result: &Result{
			Status: StatusCompleted,
			Stages: make(map[string]*StageResult, len(stageOrder)),
		},
	}

	for _, name := range stageOrder {
		run.result.Stages[name] = &StageResult{Name: name, Status: StatusPending}
	}

	run.stage(StageNormalize, func() error { return run.normalize(schemaBytes) })
	run.stage(StageCompose, run.compose)
	run.stage(StageGenerate, run.generate)
	run.stage(StageRepair, run.repair)
	run.stage(StageValidate, run.validate)

	run.result.Artifacts.ValidationDiagnostics = diag.Dedup(run.result.Artifacts.ValidationDiagnostics)

	snap, err := run.coll.Snapshot()
	if err != nil {
		// An unbalanced timer is an orchestration bug, not a stage fault.
		run.fail(&StageError{Stage: StageValidate, Message: "metrics snapshot", Cause: err})
	} else {
		run.result.Metrics = snap
	}

	if run.result.Status == StatusFailed {
		return run.result, ErrRunFailed
	}

	return run.result, nil
}

// runner holds per-run orchestration state.
type runner struct {
	opts   Options
	ov     *Overrides
	coll   *metrics.Collector
	result *Result

	source         validator.Validator
	planning       validator.Validator
	sourceValidate validator.ValidateFunc
	skipValidation bool
}

// stage runs one stage with balanced phase timers, panic containment, and
// skip/fail propagation.
func (r *runner) stage(name string, fn func() error) {
	state := r.result.Stages[name]

	if r.result.Status == StatusFailed {
		state.Status = StatusSkipped

		return
	}

	r.result.Timeline = append(r.result.Timeline, name)
	r.opts.Logger.Debug("stage start", slog.String("stage", name))

	must(r.coll.BeginPhase(name))

	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
			}
		}()

		return fn()
	}()

	must(r.coll.EndPhase(name))

	if err != nil {
		state.Status = StatusFailed
		r.fail(wrapStage(name, err))
		r.opts.Logger.Debug("stage failed", slog.String("stage", name), slog.Any("error", err))

		return
	}

	state.Status = StatusCompleted
	r.opts.Logger.Debug("stage done", slog.String("stage", name))
}

func (r *runner) fail(err *StageError) {
	r.result.Status = StatusFailed
	r.result.Errors = append(r.result.Errors, err)
}

func wrapStage(stage string, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}

	return &StageError{Stage: stage, Message: "stage failed", Cause: err}
}

// normalize decodes and canonicalizes the input schema.
func (r *runner) normalize(schemaBytes []byte) error {
	var (
		norm *schema.Normalized
		err  error
	)

	if r.ov.Normalize != nil {
		norm, err = r.ov.Normalize(schemaBytes)
	} else {
		norm, err = schema.Normalize(schemaBytes)
	}

	if err != nil {
		return err
	}

	if err := diag.AssertForPhase(diag.PhaseNormalize, norm.Notes); err != nil {
		return err
	}

	r.result.Schema = norm.Original
	r.result.Artifacts.Canonical = norm

	return nil
}

// compose builds validators, applies the external-ref policy, hydrates the
// registry, and produces the effective plan.
func (r *runner) compose() error {
	norm := r.result.Artifacts.Canonical

	r.source = r.ov.SourceValidator
	if r.source == nil {
		r.source = validator.NewSource(validator.SourceOptions{
			Dialect:         norm.Dialect,
			ValidateFormats: r.opts.Validate.ValidateFormats,
			Discriminator:   r.opts.Validate.Discriminator,
		})
	}

	r.planning = r.ov.PlanningValidator
	if r.planning == nil {
		r.planning = validator.NewPlanning(validator.PlanningOptions{
			ValidateFormats: r.opts.Validate.ValidateFormats,
			Discriminator:   r.opts.Validate.Discriminator,
		})
	}

	fingerprint := "empty"

	refs := extref.CollectExternalRefs(norm.Raw)
	if len(refs) > 0 && r.opts.Resolver != nil {
		registry, diags, err := r.opts.Resolver.PrefetchAndBuildRegistry(refs, extref.ResolverOptions{})
		if err != nil {
			return err
		}

		r.appendValidationDiags(diags...)

		hydrateDiags := extref.Hydrate(r.source, registry, norm.Raw, norm.Dialect)
		r.appendValidationDiags(hydrateDiags...)

		fingerprint = registry.Fingerprint()
	}

	validate, compileErr := r.source.Compile(norm.Raw)
	if compileErr != nil {
		classification := extref.ClassifyCompileFailure(compileErr, refs)
		if !classification.SkipEligible {
			return compileErr
		}

		decision := extref.Decide(r.opts.Mode, r.opts.ExternalRefPolicy)

		if decision.EmitDiagnostic {
			for _, ref := range classification.MissingRefs {
				r.appendValidationDiags(extref.Diagnostic(ref, r.opts.Mode, r.opts.ExternalRefPolicy, decision))
			}
		}

		if decision.Fail {
			return extref.FailError(classification.MissingRefs)
		}

		r.skipValidation = true

		if decision.StubEmptySchemas {
			for _, ref := range classification.MissingRefs {
				r.appendValidationDiags(extref.StubDiagnostic(ref))
			}
		}
	} else {
		r.sourceValidate = validate
	}

	var (
		plan *compose.Plan
		err  error
	)

	if r.ov.Compose != nil {
		plan, err = r.ov.Compose(norm)
	} else {
		plan, err = compose.Compose(norm, compose.Options{
			Key: compose.Key{
				ValidatorClass:      r.source.Options().Class,
				Flags:               r.source.Options(),
				ResolverFingerprint: fingerprint,
			},
			MaxComplexity: r.opts.Generate.MaxComplexity,
			Memo:          compose.NewMemoizer(),
		})
	}

	if plan != nil {
		r.result.Artifacts.Effective = plan

		if assertErr := diag.AssertForPhase(diag.PhaseCompose, plan.Diagnostics.All()); assertErr != nil {
			return assertErr
		}

		r.buildCoverageArtifacts(plan)
	}

	return err
}

// buildCoverageArtifacts exports the coverage index when measurement is on.
func (r *runner) buildCoverageArtifacts(plan *compose.Plan) {
	if r.opts.Coverage.Mode != "measure" {
		return
	}

	graph := make(map[string][]string, len(plan.Coverage))

	var targets []string

	for path, decider := range plan.Coverage {
		if decider == nil {
			continue
		}

		graph[path] = decider.Names
		targets = append(targets, path)
	}

	r.result.Artifacts.CoverageGraph = graph
	r.result.Artifacts.CoverageTargets = targets
}

// generate synthesizes the instances.
func (r *runner) generate() error {
	plan := r.result.Artifacts.Effective

	var (
		res generate.Result
		err error
	)

	if r.ov.Generate != nil {
		res, err = r.ov.Generate(plan)
	} else {
		res, err = generate.Generate(plan, generate.Options{
			Count:            r.opts.Generate.Count,
			Seed:             r.opts.Generate.Seed,
			PreferExamples:   r.opts.Generate.PreferExamples,
			EdgeBias:         r.opts.Generate.EdgeBias,
			StubExternalRefs: r.skipValidation,
			Formats:          r.opts.Formats,
		}, r.coll)
	}

	if err != nil {
		return err
	}

	if err := diag.AssertForPhase(diag.PhaseGenerate, res.Diagnostics); err != nil {
		return err
	}

	r.result.Artifacts.Generated = res.Items

	return nil
}

// repair runs the correction loop on every generated item. Without a
// compiled source validator (skipped validation), items pass through.
func (r *runner) repair() error {
	items := r.result.Artifacts.Generated

	if r.ov.Repair != nil {
		repaired, err := r.ov.Repair(items)
		if err != nil {
			return err
		}

		r.result.Artifacts.Repaired = repaired

		return nil
	}

	if r.sourceValidate == nil {
		r.result.Artifacts.Repaired = items

		return nil
	}

	plan := r.result.Artifacts.Effective
	repaired := make([]any, 0, len(items))

	for _, item := range items {
		res, err := repair.Repair(item, plan, r.sourceValidate,
			repair.Options{Attempts: r.opts.Repair.Attempts}, r.coll)
		if err != nil {
			return err
		}

		if err := diag.AssertForPhase(diag.PhaseRepair, res.Diagnostics); err != nil {
			return err
		}

		repaired = append(repaired, res.Item)
		r.result.Artifacts.RepairActions = append(r.result.Artifacts.RepairActions, res.Actions)
		r.result.Artifacts.RepairDiagnostics = append(r.result.Artifacts.RepairDiagnostics, res.Diagnostics...)
	}

	r.result.Artifacts.Repaired = repaired

	return nil
}

// validate runs the parity gate and the final oracle check.
func (r *runner) validate() error {
	items := r.result.Artifacts.Repaired

	if r.ov.Validate != nil {
		v, err := r.ov.Validate(items)
		if err != nil {
			return err
		}

		r.result.Artifacts.Validation = v

		return r.finishValidation(v)
	}

	r.result.Artifacts.ValidationFlags = map[string]validator.Flags{
		"source":   r.source.Options(),
		"planning": r.planning.Options(),
	}

	if r.skipValidation {
		r.result.Artifacts.Validation = &Validation{Valid: true, Skipped: true}

		return nil
	}

	expect := validator.Expectation{
		ValidateFormats: r.opts.Validate.ValidateFormats,
		Discriminator:   r.opts.Validate.Discriminator,
		UnionViews:      true,
		SourceClass:     validator.ClassForDialect(r.result.Artifacts.Canonical.Dialect),
		PlanningClass:   validator.Class2020,
	}

	diffs := validator.CheckParity(r.source, r.planning, expect)
	if len(diffs) > 0 {
		r.appendValidationDiags(validator.MismatchDiagnostic(diffs,
			r.source.Options(), r.planning.Options()))

		return validator.ParityError(diffs)
	}

	v := &Validation{Valid: true}

	for _, item := range items {
		r.coll.Add(metrics.CounterValidationsPerRow, 1)

		ok, errs := r.sourceValidate(item)

		v.Rows++
		v.Errors = append(v.Errors, errs)

		if !ok {
			v.Valid = false
		}
	}

	r.result.Artifacts.Validation = v

	return r.finishValidation(v)
}

// finishValidation applies the final-validation failure rule.
func (r *runner) finishValidation(v *Validation) error {
	if v.Valid || v.Skipped {
		return nil
	}

	r.appendValidationDiags(diag.New(diag.CodeFinalValidationFailed, "",
		map[string]any{"rows": v.Rows}))

	return fmt.Errorf("%w: final validation failed", ErrRunFailed)
}

func (r *runner) appendValidationDiags(diags ...diag.Diagnostic) {
	r.result.Artifacts.ValidationDiagnostics = append(
		r.result.Artifacts.ValidationDiagnostics, diags...)
}

// must panics on orchestration-level timer errors. The stage sequencing
// balances every Begin with End, so a failure here is a bug in the
// orchestrator itself, not in any stage.
func must(err error) {
	if err != nil {
		panic(err)
	}
}
