package repair_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/foundry/compose"
	"go.jacobcolvin.com/foundry/diag"
	"go.jacobcolvin.com/foundry/metrics"
	"go.jacobcolvin.com/foundry/repair"
	"go.jacobcolvin.com/foundry/schema"
	"go.jacobcolvin.com/foundry/validator"
)

func makePlan(t *testing.T, src string) (*compose.Plan, validator.ValidateFunc) {
	t.Helper()

	norm, err := schema.Normalize([]byte(src))
	require.NoError(t, err)

	plan, err := compose.Compose(norm, compose.Options{})
	require.NoError(t, err)

	source := validator.NewSource(validator.SourceOptions{Dialect: norm.Dialect})

	validate, err := source.Compile(norm.Raw)
	require.NoError(t, err)

	return plan, validate
}

func runRepair(t *testing.T, src string, item any, opts repair.Options) repair.Result {
	t.Helper()

	plan, validate := makePlan(t, src)

	result, err := repair.Repair(item, plan, validate, opts, metrics.NewCollector(metrics.VerbosityCI))
	require.NoError(t, err)

	return result
}

func TestRepairValidInputUntouched(t *testing.T) {
	t.Parallel()

	result := runRepair(t, `{"type":"integer","minimum":0}`, int64(5), repair.Options{Attempts: 3})

	assert.True(t, result.Valid)
	assert.Zero(t, result.Passes)
	assert.Empty(t, result.Actions)
	assert.Equal(t, int64(5), result.Item)
}

func TestRepairClampMinimum(t *testing.T) {
	t.Parallel()

	result := runRepair(t, `{"type":"integer","minimum":10}`, int64(3), repair.Options{Attempts: 3})

	assert.True(t, result.Valid)
	assert.Equal(t, int64(10), result.Item)
	require.NotEmpty(t, result.Actions)
	assert.Equal(t, "minimum", result.Actions[0].Keyword)
	assert.Equal(t, 1, result.Actions[0].Tier)
}

func TestRepairSnapMultipleOf(t *testing.T) {
	t.Parallel()

	result := runRepair(t, `{"type":"number","multipleOf":0.25}`, 0.3, repair.Options{Attempts: 3})

	assert.True(t, result.Valid)
	assert.InDelta(t, 0.25, result.Item, 1e-12)
}

func TestRepairStringLengths(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		src  string
		item string
		want string
	}{
		"pad to minLength": {
			src:  `{"type":"string","minLength":5}`,
			item: "ab",
			want: "abxxx",
		},
		"truncate to maxLength": {
			src:  `{"type":"string","maxLength":3}`,
			item: "abcdef",
			want: "abc",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			result := runRepair(t, tc.src, tc.item, repair.Options{Attempts: 2})
			assert.True(t, result.Valid)
			assert.Equal(t, tc.want, result.Item)
		})
	}
}

func TestRepairEnumAssignsFirst(t *testing.T) {
	t.Parallel()

	result := runRepair(t, `{"enum":["red","green"]}`, "purple", repair.Options{Attempts: 2})

	assert.True(t, result.Valid)
	assert.Equal(t, "red", result.Item)
}

func TestRepairConstAssigns(t *testing.T) {
	t.Parallel()

	result := runRepair(t, `{"const":42}`, "wrong", repair.Options{Attempts: 2})

	assert.True(t, result.Valid)
	assert.True(t, schema.Equal(int64(42), result.Item))
}

func TestRepairPatternWitness(t *testing.T) {
	t.Parallel()

	result := runRepair(t, `{"type":"string","pattern":"^(on|off)$"}`, "maybe", repair.Options{Attempts: 2})

	assert.True(t, result.Valid)
	assert.Equal(t, "on", result.Item)
}

func TestRepairArrayGrowAndShrink(t *testing.T) {
	t.Parallel()

	grow := runRepair(t, `{"type":"array","minItems":3,"items":{"type":"integer"}}`,
		[]any{int64(1)}, repair.Options{Attempts: 2})
	assert.True(t, grow.Valid)

	grown, ok := grow.Item.([]any)
	require.True(t, ok)
	assert.Len(t, grown, 3)

	shrink := runRepair(t, `{"type":"array","maxItems":2}`,
		[]any{int64(1), int64(2), int64(3), int64(4)}, repair.Options{Attempts: 2})
	assert.True(t, shrink.Valid)

	shrunk, ok := shrink.Item.([]any)
	require.True(t, ok)
	assert.Equal(t, []any{int64(1), int64(2)}, shrunk)
}

func TestRepairUniqueItemsDedupes(t *testing.T) {
	t.Parallel()

	result := runRepair(t, `{"type":"array","uniqueItems":true}`,
		[]any{int64(1), int64(2), int64(1), int64(3)}, repair.Options{Attempts: 2})

	assert.True(t, result.Valid)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, result.Item)
}

func TestRepairAddRequired(t *testing.T) {
	t.Parallel()

	src := `{
		"type": "object",
		"required": ["name", "count"],
		"properties": {
			"name": {"type": "string"},
			"count": {"type": "integer", "minimum": 2}
		}
	}`

	obj := schema.NewObject()
	result := runRepair(t, src, obj, repair.Options{Attempts: 3})

	assert.True(t, result.Valid)

	repaired, ok := result.Item.(*schema.Object)
	require.True(t, ok)

	count, present := repaired.Get("count")
	require.True(t, present)
	assert.Equal(t, int64(2), count)

	_, present = repaired.Get("name")
	assert.True(t, present)

	var tier2 bool

	for _, a := range result.Actions {
		if a.Keyword == "required" && a.Tier == 2 {
			tier2 = true
		}
	}

	assert.True(t, tier2)
}

func TestRepairRenameUnderPropertyNames(t *testing.T) {
	t.Parallel()

	src := `{
		"type": "object",
		"properties": {"alpha": {}, "beta": {}},
		"propertyNames": {"enum": ["alpha", "beta"]},
		"additionalProperties": false
	}`

	obj := schema.NewObject()
	obj.Set("alpha", "v")
	obj.Set("zulu", "w")

	result := runRepair(t, src, obj, repair.Options{Attempts: 3})

	assert.True(t, result.Valid)

	repaired, ok := result.Item.(*schema.Object)
	require.True(t, ok)

	_, hasZulu := repaired.Get("zulu")
	assert.False(t, hasZulu)

	moved, hasBeta := repaired.Get("beta")
	assert.True(t, hasBeta)
	assert.Equal(t, "w", moved)
}

func TestRepairRevertOnNoProgress(t *testing.T) {
	t.Parallel()

	// Score pinned to 3 on every read: the pass makes no visible progress
	// (3 -> 3 across the before/after reads), so it must be reverted.
	scoreFunc := func([]validator.ErrorObject) int {
		return 3
	}

	// const:5 with multipleOf:3 cannot be satisfied by Tier-1 alone: the
	// const assignment breaks multipleOf and vice versa.
	src := `{"type":"integer","const":5,"multipleOf":3}`

	plan, validate := makePlan(t, src)

	result, err := repair.Repair(int64(7), plan, validate,
		repair.Options{Attempts: 3, ScoreFunc: scoreFunc},
		metrics.NewCollector(metrics.VerbosityCI))
	require.NoError(t, err)

	var reverted *diag.Diagnostic

	for i, d := range result.Diagnostics {
		if d.Code == diag.CodeRepairRevertedNoProgress {
			reverted = &result.Diagnostics[i]
		}
	}

	require.NotNil(t, reverted)
	assert.Equal(t, 3, reverted.Details["scoreBefore"])
	assert.Equal(t, 3, reverted.Details["scoreAfter"])

	// The reverted pass leaves the instance untouched.
	assert.Equal(t, int64(7), result.Item)
	assert.Empty(t, result.Actions)
}

func TestRepairAttemptsClamped(t *testing.T) {
	t.Parallel()

	// Attempts outside [1,3] clamp rather than error.
	result := runRepair(t, `{"type":"integer","minimum":10}`, int64(1), repair.Options{Attempts: 99})
	assert.True(t, result.Valid)
	assert.LessOrEqual(t, result.Passes, repair.MaxAttempts)
}

func TestScoreWeights(t *testing.T) {
	t.Parallel()

	errs := []validator.ErrorObject{
		{Keyword: "type"},
		{Keyword: "required"},
		{Keyword: "minimum"},
	}

	assert.Equal(t, 6, repair.Score(errs))
	assert.Zero(t, repair.Score(nil))
}

func TestRepairTierCounters(t *testing.T) {
	t.Parallel()

	plan, validate := makePlan(t, `{
		"type": "object",
		"required": ["n"],
		"properties": {"n": {"type": "integer", "minimum": 5}}
	}`)

	obj := schema.NewObject()
	obj.Set("n", int64(1))

	coll := metrics.NewCollector(metrics.VerbosityCI)

	result, err := repair.Repair(obj, plan, validate, repair.Options{Attempts: 3}, coll)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Positive(t, coll.Counter(metrics.CounterRepairTier1Actions))
	assert.Positive(t, coll.Counter(metrics.CounterValidationsPerRow))
}
