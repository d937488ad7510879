package diag

// Phase identifies the pipeline stage a diagnostic belongs to.
type Phase string

// Pipeline phases, in execution order.
const (
	PhaseNormalize Phase = "NORMALIZE"
	PhaseCompose   Phase = "COMPOSE"
	PhaseGenerate  Phase = "GENERATE"
	PhaseRepair    Phase = "REPAIR"
	PhaseValidate  Phase = "VALIDATE"
)

// Code identifies a diagnostic condition. Code identifiers are part of the
// public contract and must remain stable across releases.
type Code string

// Diagnostic code catalog.
const (
	CodeAJVFlagsMismatch                  Code = "AJV_FLAGS_MISMATCH"
	CodeExternalRefUnresolved             Code = "EXTERNAL_REF_UNRESOLVED"
	CodeExternalRefStubbed                Code = "EXTERNAL_REF_STUBBED"
	CodeResolverStrategiesApplied         Code = "RESOLVER_STRATEGIES_APPLIED"
	CodeResolverAddSchemaSkippedDuplicate Code = "RESOLVER_ADD_SCHEMA_SKIPPED_DUPLICATE_ID"
	CodeSchemaInternalRefMissing          Code = "SCHEMA_INTERNAL_REF_MISSING"
	CodeValidationCompileError            Code = "VALIDATION_COMPILE_ERROR"
	CodeValidationKeywordFailed           Code = "VALIDATION_KEYWORD_FAILED"
	CodeAPFalseUnsafePattern              Code = "AP_FALSE_UNSAFE_PATTERN"
	CodeDraft06PatternTolerated           Code = "DRAFT06_PATTERN_TOLERATED"
	CodeRepairRevertedNoProgress          Code = "REPAIR_REVERTED_NO_PROGRESS"
	CodeRepairPNamesPatternEnum           Code = "REPAIR_PNAMES_PATTERN_ENUM"
	CodeRepairRenamePreflightFail         Code = "REPAIR_RENAME_PREFLIGHT_FAIL"
	CodeMustCoverIndexMissing             Code = "MUSTCOVER_INDEX_MISSING"
	CodeExclusivityTweakString            Code = "EXCLUSIVITY_TWEAK_STRING"
	CodeTargetEnumRoundRobinPatternProps  Code = "TARGET_ENUM_ROUNDROBIN_PATTERNPROPS"
	CodeRegexComplexityCapped             Code = "REGEX_COMPLEXITY_CAPPED"
	CodeRegexCompileError                 Code = "REGEX_COMPILE_ERROR"
	CodeNoFeasibleValue                   Code = "NO_FEASIBLE_VALUE"
	CodeFinalValidationFailed             Code = "FINAL_VALIDATION_FAILED"
	CodeDynamicScopeBounded               Code = "DYNAMIC_SCOPE_BOUNDED"
	CodeNormalizeNote                     Code = "NORMALIZE_NOTE"
	CodeNormalizeMetaSchemaStripped       Code = "NORMALIZE_META_SCHEMA_STRIPPED"
)

// phaseOf fixes the code-to-phase partition. The partition is explicit and
// public: emitting a code from any other stage is a fatal orchestration bug.
var phaseOf = map[Code]Phase{
	CodeNormalizeNote:                     PhaseNormalize,
	CodeNormalizeMetaSchemaStripped:       PhaseNormalize,
	CodeDraft06PatternTolerated:           PhaseNormalize,
	CodeSchemaInternalRefMissing:          PhaseCompose,
	CodeExternalRefUnresolved:             PhaseCompose,
	CodeExternalRefStubbed:                PhaseCompose,
	CodeResolverStrategiesApplied:         PhaseCompose,
	CodeResolverAddSchemaSkippedDuplicate: PhaseCompose,
	CodeAPFalseUnsafePattern:              PhaseCompose,
	CodeRegexComplexityCapped:             PhaseCompose,
	CodeRegexCompileError:                 PhaseCompose,
	CodeDynamicScopeBounded:               PhaseCompose,
	CodeNoFeasibleValue:                   PhaseGenerate,
	CodeExclusivityTweakString:            PhaseGenerate,
	CodeTargetEnumRoundRobinPatternProps:  PhaseGenerate,
	CodeRepairRevertedNoProgress:          PhaseRepair,
	CodeRepairPNamesPatternEnum:           PhaseRepair,
	CodeRepairRenamePreflightFail:         PhaseRepair,
	CodeMustCoverIndexMissing:             PhaseRepair,
	CodeAJVFlagsMismatch:                  PhaseValidate,
	CodeValidationCompileError:            PhaseValidate,
	CodeValidationKeywordFailed:           PhaseValidate,
	CodeFinalValidationFailed:             PhaseValidate,
}

// PhaseOf returns the phase a code belongs to, or false for unknown codes.
func PhaseOf(c Code) (Phase, bool) {
	p, ok := phaseOf[c]

	return p, ok
}

// AllowedCodes returns the set of codes admissible in the given phase.
func AllowedCodes(p Phase) []Code {
	var codes []Code

	for c, ph := range phaseOf {
		if ph == p {
			codes = append(codes, c)
		}
	}

	return codes
}
