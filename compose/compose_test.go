package compose_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/foundry/compose"
	"go.jacobcolvin.com/foundry/diag"
	"go.jacobcolvin.com/foundry/schema"
	"go.jacobcolvin.com/foundry/validator"
)

func plan(t *testing.T, src string) (*compose.Plan, error) {
	t.Helper()

	norm, err := schema.Normalize([]byte(src))
	require.NoError(t, err)

	return compose.Compose(norm, compose.Options{
		Key: compose.Key{
			ValidatorClass:      validator.Class2020,
			ResolverFingerprint: "empty",
		},
	})
}

func TestCoverageFromPropertyNamesEnum(t *testing.T) {
	t.Parallel()

	p, err := plan(t, `{
		"type": "object",
		"propertyNames": {"enum": ["beta", "alpha"]}
	}`)
	require.NoError(t, err)

	decider := p.Coverage[""]
	require.NotNil(t, decider)
	assert.Equal(t, []string{"alpha", "beta"}, decider.Names)
	assert.True(t, decider.Has("alpha"))
	assert.False(t, decider.Has("gamma"))
	assert.Equal(t, "propertyNames.enum", decider.Source)
}

func TestCoverageFromAnchoredPattern(t *testing.T) {
	t.Parallel()

	p, err := plan(t, `{
		"type": "object",
		"propertyNames": {"pattern": "^(red|green|blue)$"}
	}`)
	require.NoError(t, err)

	decider := p.Coverage[""]
	require.NotNil(t, decider)
	assert.Equal(t, []string{"blue", "green", "red"}, decider.Names)
}

func TestCoverageUndecidablePattern(t *testing.T) {
	t.Parallel()

	p, err := plan(t, `{
		"type": "object",
		"propertyNames": {"pattern": "^x.*$"}
	}`)
	require.NoError(t, err)

	assert.Nil(t, p.Coverage[""])
}

func TestCoverageFromClosedProperties(t *testing.T) {
	t.Parallel()

	p, err := plan(t, `{
		"type": "object",
		"properties": {"a": {}, "b": {}},
		"additionalProperties": false
	}`)
	require.NoError(t, err)

	decider := p.Coverage[""]
	require.NotNil(t, decider)
	assert.Equal(t, []string{"a", "b"}, decider.Names)
	assert.Equal(t, "additionalProperties:false", decider.Source)
}

func TestAPFalseUnsafePatternWarn(t *testing.T) {
	t.Parallel()

	p, err := plan(t, `{
		"type": "object",
		"properties": {"a": {}},
		"patternProperties": {"x.*": {}},
		"additionalProperties": false
	}`)
	require.NoError(t, err)

	assert.Nil(t, p.Coverage[""])

	var found bool

	for _, d := range p.Diagnostics.Warn {
		if d.Code == diag.CodeAPFalseUnsafePattern {
			found = true
		}
	}

	assert.True(t, found)
}

func TestInternalRefMissingIsFatal(t *testing.T) {
	t.Parallel()

	p, err := plan(t, `{
		"type": "object",
		"properties": {"a": {"$ref": "#/$defs/missing"}}
	}`)
	require.ErrorIs(t, err, compose.ErrFatal)
	require.NotEmpty(t, p.Diagnostics.Fatal)
	assert.Equal(t, diag.CodeSchemaInternalRefMissing, p.Diagnostics.Fatal[0].Code)
	assert.Equal(t, "/properties/a", p.Diagnostics.Fatal[0].CanonPath)
}

func TestInternalRefResolves(t *testing.T) {
	t.Parallel()

	_, err := plan(t, `{
		"type": "object",
		"properties": {"a": {"$ref": "#/$defs/present"}},
		"$defs": {"present": {"type": "string"}}
	}`)
	require.NoError(t, err)
}

func TestUnevaluatedMisuseIsFatal(t *testing.T) {
	t.Parallel()

	_, err := plan(t, `{
		"type": "object",
		"unevaluatedProperties": false,
		"additionalProperties": false
	}`)
	require.ErrorIs(t, err, compose.ErrFatal)
}

func TestContainsBag(t *testing.T) {
	t.Parallel()

	p, err := plan(t, `{
		"type": "array",
		"contains": {"type": "integer"},
		"minContains": 2
	}`)
	require.NoError(t, err)

	witnesses := p.ContainsBag[""]
	require.Len(t, witnesses, 2)
	assert.Equal(t, schema.KindInteger, witnesses[0].Kind)
}

func TestDynamicScopeNote(t *testing.T) {
	t.Parallel()

	p, err := plan(t, `{
		"type": "object",
		"properties": {"next": {"$dynamicRef": "#node"}}
	}`)
	require.NoError(t, err)

	require.NotEmpty(t, p.Diagnostics.Run)
	assert.Equal(t, diag.CodeDynamicScopeBounded, p.Diagnostics.Run[0].Code)
	assert.Equal(t, 2, p.Diagnostics.Run[0].Details["hopDepth"])
}

func TestMemoizerIdempotentInsert(t *testing.T) {
	t.Parallel()

	m := compose.NewMemoizer()

	first := &compose.NameDecider{Names: []string{"a"}}
	m.Put("k", first)
	m.Put("k", &compose.NameDecider{Names: []string{"b"}})

	got, ok := m.Get("k")
	require.True(t, ok)
	assert.Same(t, first, got)

	// Undecidable (nil) results are cached too.
	m.Put("nil-key", nil)

	got, ok = m.Get("nil-key")
	require.True(t, ok)
	assert.Nil(t, got)
	assert.Equal(t, 2, m.Len())
}

func TestMemoKeysDifferByFlags(t *testing.T) {
	t.Parallel()

	a := compose.Key{ValidatorClass: validator.Class2020, Flags: validator.Flags{StrictSchema: true}}
	b := compose.Key{ValidatorClass: validator.Class2020, Flags: validator.Flags{StrictSchema: false}}

	assert.NotEqual(t, a.String(), b.String())
}

func TestComposeMemoizedAcrossCalls(t *testing.T) {
	t.Parallel()

	norm, err := schema.Normalize([]byte(`{
		"type": "object",
		"propertyNames": {"enum": ["a"]}
	}`))
	require.NoError(t, err)

	memo := compose.NewMemoizer()
	opts := compose.Options{Key: compose.Key{ValidatorClass: validator.Class2020}, Memo: memo}

	p1, err := compose.Compose(norm, opts)
	require.NoError(t, err)

	p2, err := compose.Compose(norm, opts)
	require.NoError(t, err)

	// Second compose under the same key reuses the cached decider.
	assert.Same(t, p1.Coverage[""], p2.Coverage[""])
}
