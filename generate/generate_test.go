package generate_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/foundry/compose"
	"go.jacobcolvin.com/foundry/format"
	"go.jacobcolvin.com/foundry/generate"
	"go.jacobcolvin.com/foundry/metrics"
	"go.jacobcolvin.com/foundry/rational"
	"go.jacobcolvin.com/foundry/schema"
)

func makePlan(t *testing.T, src string) *compose.Plan {
	t.Helper()

	norm, err := schema.Normalize([]byte(src))
	require.NoError(t, err)

	plan, err := compose.Compose(norm, compose.Options{})
	require.NoError(t, err)

	return plan
}

func generateOne(t *testing.T, src string, opts generate.Options) any {
	t.Helper()

	if opts.Count == 0 {
		opts.Count = 1
	}

	result, err := generate.Generate(makePlan(t, src), opts, metrics.NewCollector(metrics.VerbosityCI))
	require.NoError(t, err)
	require.Len(t, result.Items, opts.Count)

	return result.Items[0]
}

func TestNumberMultipleOfNarrowRange(t *testing.T) {
	t.Parallel()

	// The grid inside [0.97, 0.99] with step 0.01 has exactly three points.
	v := generateOne(t, `{"type":"number","multipleOf":0.01,"minimum":0.97,"maximum":0.99}`,
		generate.Options{Seed: 42})

	f, ok := v.(float64)
	require.True(t, ok)
	assert.Contains(t, []float64{0.97, 0.98, 0.99}, f)
	assert.True(t, rational.IsMultipleULP(f, 0.01))
}

func TestNumberExclusiveBoundsStrict(t *testing.T) {
	t.Parallel()

	for seed := uint32(0); seed < 20; seed++ {
		v := generateOne(t, `{"type":"number","exclusiveMinimum":0,"exclusiveMaximum":1}`,
			generate.Options{Seed: seed})

		f, ok := v.(float64)
		require.True(t, ok)
		assert.Greater(t, f, 0.0, "seed %d", seed)
		assert.Less(t, f, 1.0, "seed %d", seed)
	}
}

func TestIntegerExclusiveBounds(t *testing.T) {
	t.Parallel()

	v := generateOne(t, `{"type":"integer","exclusiveMinimum":3,"exclusiveMaximum":5}`,
		generate.Options{Seed: 1})

	assert.Equal(t, int64(4), v)
}

func TestIntegerExclusiveFractionalBound(t *testing.T) {
	t.Parallel()

	// The smallest integer above 2.5 is 3, not 4.
	v := generateOne(t, `{"type":"integer","exclusiveMinimum":2.5,"maximum":3}`,
		generate.Options{Seed: 7})

	assert.Equal(t, int64(3), v)
}

func TestNumberEmptyGridFails(t *testing.T) {
	t.Parallel()

	plan := makePlan(t, `{"type":"number","multipleOf":10,"minimum":1,"maximum":9}`)

	_, err := generate.Generate(plan, generate.Options{Seed: 1}, metrics.NewCollector(metrics.VerbosityCI))
	require.ErrorIs(t, err, generate.ErrNoFeasibleValue)
}

func TestNumberMultipleOfULPInvariant(t *testing.T) {
	t.Parallel()

	for seed := uint32(0); seed < 50; seed++ {
		v := generateOne(t, `{"type":"number","multipleOf":0.1,"minimum":-5,"maximum":5}`,
			generate.Options{Seed: seed})

		f, ok := v.(float64)
		require.True(t, ok)

		k := math.Round(f / 0.1)
		tol := rational.ULP(f) + math.Abs(k)*rational.ULP(0.1) + math.Abs(f)*1e-15
		assert.LessOrEqual(t, math.Abs(f-k*0.1), tol)
	}
}

func TestEnumFiltersByBounds(t *testing.T) {
	t.Parallel()

	v := generateOne(t, `{"type":"integer","enum":[1,5,9],"minimum":4,"maximum":6}`,
		generate.Options{Seed: 3})

	assert.Equal(t, int64(5), v)
}

func TestEnumBoundsConflictFails(t *testing.T) {
	t.Parallel()

	plan := makePlan(t, `{"type":"integer","enum":[1,2],"minimum":10}`)

	_, err := generate.Generate(plan, generate.Options{Seed: 1}, metrics.NewCollector(metrics.VerbosityCI))
	require.ErrorIs(t, err, generate.ErrNoFeasibleValue)
}

func TestConstShortCircuits(t *testing.T) {
	t.Parallel()

	v := generateOne(t, `{"type":"string","const":"pinned"}`, generate.Options{Seed: 9})
	assert.Equal(t, "pinned", v)
}

func TestStringPatternAlternation(t *testing.T) {
	t.Parallel()

	v := generateOne(t, `{"type":"string","pattern":"^(alpha|beta|gamma)$"}`,
		generate.Options{Seed: 11})

	assert.Contains(t, []any{"alpha", "beta", "gamma"}, v)
}

func TestStringLengthBounds(t *testing.T) {
	t.Parallel()

	v := generateOne(t, `{"type":"string","minLength":12,"maxLength":20}`,
		generate.Options{Seed: 2})

	s, ok := v.(string)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(s), 12)
	assert.LessOrEqual(t, len(s), 20)
}

func TestStringFormatPlugin(t *testing.T) {
	t.Parallel()

	v := generateOne(t, `{"type":"string","format":"uuid"}`, generate.Options{
		Seed:    5,
		Formats: format.NewRegistry(),
	})

	s, ok := v.(string)
	require.True(t, ok)

	reg := format.NewRegistry()
	plugin, err := reg.Lookup("uuid")
	require.NoError(t, err)
	assert.True(t, plugin.Validate(s))
}

func TestOpenAPIStyleRootAnyOf(t *testing.T) {
	t.Parallel()

	src := `{
		"type": "object",
		"required": ["openapi", "info"],
		"anyOf": [
			{"required": ["paths"]},
			{"required": ["components"]},
			{"required": ["webhooks"]}
		],
		"unevaluatedProperties": false
	}`

	v := generateOne(t, src, generate.Options{Seed: 42})

	obj, ok := v.(*schema.Object)
	require.True(t, ok)

	keys := obj.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, "info", keys[0])
	assert.Equal(t, "openapi", keys[1])
	assert.Contains(t, []string{"paths", "components", "webhooks"}, keys[2])

	// The chosen branch key maps to an empty object.
	branchValue, _ := obj.Get(keys[2])
	branchObj, ok := branchValue.(*schema.Object)
	require.True(t, ok)
	assert.Equal(t, 0, branchObj.Len())
}

func TestObjectRequiredRecursion(t *testing.T) {
	t.Parallel()

	src := `{
		"type": "object",
		"required": ["name", "count"],
		"properties": {
			"name": {"type": "string", "const": "fixed"},
			"count": {"type": "integer", "minimum": 1, "maximum": 1}
		}
	}`

	v := generateOne(t, src, generate.Options{Seed: 8})

	obj, ok := v.(*schema.Object)
	require.True(t, ok)

	name, _ := obj.Get("name")
	assert.Equal(t, "fixed", name)

	count, _ := obj.Get("count")
	assert.Equal(t, int64(1), count)
}

func TestArrayPrefixAndMinItems(t *testing.T) {
	t.Parallel()

	src := `{
		"type": "array",
		"prefixItems": [{"const": "head"}],
		"items": {"type": "integer", "minimum": 0, "maximum": 10},
		"minItems": 3
	}`

	v := generateOne(t, src, generate.Options{Seed: 4})

	list, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, list, 3)
	assert.Equal(t, "head", list[0])

	for _, e := range list[1:] {
		_, isInt := e.(int64)
		assert.True(t, isInt)
	}
}

func TestArrayContainsWitnesses(t *testing.T) {
	t.Parallel()

	src := `{
		"type": "array",
		"contains": {"const": "witness"},
		"minContains": 2
	}`

	v := generateOne(t, src, generate.Options{Seed: 6})

	list, ok := v.([]any)
	require.True(t, ok)

	found := 0

	for _, e := range list {
		if e == "witness" {
			found++
		}
	}

	assert.GreaterOrEqual(t, found, 2)
}

func TestArrayUniqueItems(t *testing.T) {
	t.Parallel()

	src := `{
		"type": "array",
		"items": {"type": "integer", "minimum": 0, "maximum": 1000},
		"minItems": 5,
		"uniqueItems": true
	}`

	v := generateOne(t, src, generate.Options{Seed: 13})

	list, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, list, 5)

	seen := make(map[any]bool)

	for _, e := range list {
		assert.False(t, seen[e], "duplicate %v", e)

		seen[e] = true
	}
}

func TestDeterminismAcrossRuns(t *testing.T) {
	t.Parallel()

	src := `{
		"type": "object",
		"required": ["id", "scores", "tag"],
		"properties": {
			"id": {"type": "string", "format": "uuid"},
			"scores": {
				"type": "array",
				"items": {"type": "number", "minimum": 0, "maximum": 1},
				"minItems": 3
			},
			"tag": {"type": "string", "pattern": "^(a|b|c)$"}
		}
	}`

	run := func() string {
		plan := makePlan(t, src)

		result, err := generate.Generate(plan, generate.Options{
			Count:   5,
			Seed:    1234,
			Formats: format.NewRegistry(),
		}, metrics.NewCollector(metrics.VerbosityCI))
		require.NoError(t, err)

		out, err := json.Marshal(result.Items)
		require.NoError(t, err)

		return string(out)
	}

	first := run()
	second := run()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("non-deterministic output (-first +second):\n%s", diff)
	}
}

func TestSeedChangesOutput(t *testing.T) {
	t.Parallel()

	src := `{"type":"number","minimum":0,"maximum":1000000}`

	a := generateOne(t, src, generate.Options{Seed: 1})
	b := generateOne(t, src, generate.Options{Seed: 2})

	assert.NotEqual(t, a, b)
}

func TestAllOfMergesBounds(t *testing.T) {
	t.Parallel()

	src := `{
		"allOf": [
			{"type": "integer", "minimum": 10},
			{"maximum": 12}
		]
	}`

	v := generateOne(t, src, generate.Options{Seed: 3})

	f, ok := v.(int64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, f, int64(10))
	assert.LessOrEqual(t, f, int64(12))
}

func TestPreferExamples(t *testing.T) {
	t.Parallel()

	v := generateOne(t, `{"type":"integer","examples":[7],"minimum":0,"maximum":100}`,
		generate.Options{Seed: 1, PreferExamples: true})

	assert.Equal(t, int64(7), v)
}

func TestEdgeBiasStaysFeasible(t *testing.T) {
	t.Parallel()

	for seed := uint32(0); seed < 10; seed++ {
		v := generateOne(t, `{"type":"number","exclusiveMinimum":0,"maximum":2}`,
			generate.Options{Seed: seed, EdgeBias: true})

		f, ok := v.(float64)
		require.True(t, ok)
		assert.Greater(t, f, 0.0)
		assert.LessOrEqual(t, f, 2.0)
	}
}

func TestInternalRefChase(t *testing.T) {
	t.Parallel()

	src := `{
		"type": "object",
		"required": ["node"],
		"properties": {"node": {"$ref": "#/$defs/leaf"}},
		"$defs": {"leaf": {"type": "string", "const": "leaf-value"}}
	}`

	v := generateOne(t, src, generate.Options{Seed: 1})

	obj, ok := v.(*schema.Object)
	require.True(t, ok)

	leaf, _ := obj.Get("node")
	assert.Equal(t, "leaf-value", leaf)
}

func TestBooleanFalseSchemaFails(t *testing.T) {
	t.Parallel()

	plan := makePlan(t, `{"type":"object","required":["x"],"properties":{"x":false}}`)

	_, err := generate.Generate(plan, generate.Options{Seed: 1}, metrics.NewCollector(metrics.VerbosityCI))
	require.ErrorIs(t, err, generate.ErrNoFeasibleValue)
}
