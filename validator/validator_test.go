package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/foundry/diag"
	"go.jacobcolvin.com/foundry/schema"
	"go.jacobcolvin.com/foundry/validator"
)

func mustDecode(t *testing.T, src string) any {
	t.Helper()

	v, err := schema.Decode([]byte(src))
	require.NoError(t, err)

	return v
}

func TestSourceCompileAndValidate(t *testing.T) {
	t.Parallel()

	src := validator.NewSource(validator.SourceOptions{Dialect: schema.Draft2020})

	validate, err := src.Compile(mustDecode(t, `{
		"type": "object",
		"required": ["name"],
		"properties": {"name": {"type": "string", "minLength": 2}}
	}`))
	require.NoError(t, err)

	obj := schema.NewObject()
	obj.Set("name", "ok")

	ok, errs := validate(obj)
	assert.True(t, ok)
	assert.Empty(t, errs)

	bad := schema.NewObject()
	bad.Set("name", "x")

	ok, errs = validate(bad)
	assert.False(t, ok)
	require.NotEmpty(t, errs)
}

func TestSourceErrorsSorted(t *testing.T) {
	t.Parallel()

	src := validator.NewSource(validator.SourceOptions{Dialect: schema.Draft2020})

	validate, err := src.Compile(mustDecode(t, `{
		"type": "object",
		"properties": {
			"a": {"type": "integer"},
			"b": {"type": "integer"}
		}
	}`))
	require.NoError(t, err)

	bad := schema.NewObject()
	bad.Set("b", "s")
	bad.Set("a", "s")

	ok, errs := validate(bad)
	require.False(t, ok)

	for i := 1; i < len(errs); i++ {
		prev, cur := errs[i-1], errs[i]
		less := prev.InstancePath < cur.InstancePath ||
			(prev.InstancePath == cur.InstancePath && prev.Keyword <= cur.Keyword)
		assert.True(t, less, "errors out of order at %d", i)
	}
}

func TestSourceCompileError(t *testing.T) {
	t.Parallel()

	src := validator.NewSource(validator.SourceOptions{Dialect: schema.Draft2020})

	_, err := src.Compile(mustDecode(t, `{"$ref": "https://example.com/missing.json#/Thing"}`))
	require.ErrorIs(t, err, validator.ErrCompile)
}

func TestSourceAddSchemaResolvesRef(t *testing.T) {
	t.Parallel()

	src := validator.NewSource(validator.SourceOptions{Dialect: schema.Draft2020})

	err := src.AddSchema(mustDecode(t, `{"type": "integer"}`), "https://example.com/int.json")
	require.NoError(t, err)

	require.NotNil(t, src.GetSchema("https://example.com/int.json"))
	assert.Nil(t, src.GetSchema("https://example.com/other.json"))

	validate, err := src.Compile(mustDecode(t, `{"$ref": "https://example.com/int.json"}`))
	require.NoError(t, err)

	ok, _ := validate(int64(5))
	assert.True(t, ok)

	ok, _ = validate("five")
	assert.False(t, ok)
}

func TestPlanningCompileAndValidate(t *testing.T) {
	t.Parallel()

	p := validator.NewPlanning(validator.PlanningOptions{})

	validate, err := p.Compile(mustDecode(t, `{"type": "array", "minItems": 1}`))
	require.NoError(t, err)

	ok, _ := validate([]any{int64(1)})
	assert.True(t, ok)

	ok, errs := validate([]any{})
	assert.False(t, ok)
	require.NotEmpty(t, errs)
}

func TestClassForDialect(t *testing.T) {
	t.Parallel()

	tcs := map[schema.Dialect]string{
		schema.Draft04:   validator.ClassDraft04,
		schema.Draft07:   validator.ClassDraft07,
		schema.Draft2019: validator.Class2019,
		schema.Draft2020: validator.Class2020,
	}

	for dialect, want := range tcs {
		assert.Equal(t, want, validator.ClassForDialect(dialect))
	}
}

func TestCheckParityClean(t *testing.T) {
	t.Parallel()

	src := validator.NewSource(validator.SourceOptions{
		Dialect:         schema.Draft07,
		ValidateFormats: true,
	})
	plan := validator.NewPlanning(validator.PlanningOptions{ValidateFormats: true})

	diffs := validator.CheckParity(src, plan, validator.Expectation{
		ValidateFormats: true,
		UnionViews:      true,
		SourceClass:     validator.ClassDraft07,
		PlanningClass:   validator.Class2020,
	})
	assert.Empty(t, diffs)
}

func TestCheckParityMismatches(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		source   validator.Validator
		planning validator.Validator
		expect   validator.Expectation
		wantDiff string
	}{
		"unicodeRegExp off": {
			source:   fakeValidator{flags: validator.Flags{UnicodeRegExp: false}},
			planning: validator.NewPlanning(validator.PlanningOptions{}),
			wantDiff: "unicodeRegExp",
		},
		"validateFormats disagrees": {
			source:   validator.NewSource(validator.SourceOptions{Dialect: schema.Draft2020, ValidateFormats: true}),
			planning: validator.NewPlanning(validator.PlanningOptions{}),
			expect:   validator.Expectation{ValidateFormats: true},
			wantDiff: "validateFormats",
		},
		"discriminator disagrees": {
			source:   validator.NewSource(validator.SourceOptions{Dialect: schema.Draft2020, Discriminator: true}),
			planning: validator.NewPlanning(validator.PlanningOptions{}),
			expect:   validator.Expectation{Discriminator: true},
			wantDiff: "discriminator",
		},
		"wrong source class": {
			source:   validator.NewSource(validator.SourceOptions{Dialect: schema.Draft2020}),
			planning: validator.NewPlanning(validator.PlanningOptions{}),
			expect:   validator.Expectation{SourceClass: validator.ClassDraft04},
			wantDiff: "sourceClass",
		},
		"multipleOfPrecision pinned but unequal": {
			source: validator.NewSource(validator.SourceOptions{
				Dialect:             schema.Draft2020,
				MultipleOfPrecision: 6,
			}),
			planning: validator.NewPlanning(validator.PlanningOptions{MultipleOfPrecision: 10}),
			expect:   validator.Expectation{MultipleOfPrecisionPinned: true},
			wantDiff: "multipleOfPrecision",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			diffs := validator.CheckParity(tc.source, tc.planning, tc.expect)
			assert.Contains(t, diffs, tc.wantDiff)
		})
	}
}

func TestMismatchDiagnostic(t *testing.T) {
	t.Parallel()

	d := validator.MismatchDiagnostic([]string{"unicodeRegExp"}, validator.Flags{}, validator.Flags{})
	assert.Equal(t, diag.CodeAJVFlagsMismatch, d.Code)
	assert.Equal(t, []string{"unicodeRegExp"}, d.Details["diffs"])
}

// fakeValidator lets parity tests construct arbitrary flag sets.
type fakeValidator struct {
	flags validator.Flags
}

func (f fakeValidator) Compile(any) (validator.ValidateFunc, error) { return nil, nil }

func (f fakeValidator) Options() validator.Flags { return f.flags }

func (f fakeValidator) AddSchema(any, string) error { return nil }

func (f fakeValidator) GetSchema(string) validator.ValidateFunc { return nil }
