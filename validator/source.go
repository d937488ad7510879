package validator

import (
	"encoding/json"
	"fmt"
	"sort"

	kjs "github.com/kaptinlin/jsonschema"

	"go.jacobcolvin.com/foundry/schema"
)

// SourceOptions configures [NewSource].
type SourceOptions struct {
	// Dialect is the input schema's declared dialect; it fixes the class
	// label the parity gate checks.
	Dialect schema.Dialect
	// ValidateFormats enables format assertions.
	ValidateFormats bool
	// Discriminator mirrors the discriminator support expectation.
	Discriminator bool
	// MultipleOfPrecision pins the rational-fallback decimal precision.
	MultipleOfPrecision int
}

// Source is the dialect-matching tolerant validator, backed by
// kaptinlin/jsonschema.
//
// Create instances with [NewSource].
type Source struct {
	compiler *kjs.Compiler
	flags    Flags
	byURI    map[string]ValidateFunc
}

// NewSource creates a Source validator for the given dialect.
//
// The tolerant profile matches how the engine treats input schemas: no
// strict schema checks, union types allowed, unicode pattern matching on.
func NewSource(opts SourceOptions) *Source {
	compiler := kjs.NewCompiler()
	if opts.ValidateFormats {
		compiler.SetAssertFormat(true)
	}

	precision := opts.MultipleOfPrecision
	if precision == 0 {
		precision = 8
	}

	return &Source{
		compiler: compiler,
		byURI:    make(map[string]ValidateFunc),
		flags: Flags{
			Class:                  ClassForDialect(opts.Dialect),
			UnicodeRegExp:          true,
			ValidateFormats:        opts.ValidateFormats,
			AllowUnionTypes:        true,
			StrictSchema:           false,
			StrictTypes:            false,
			Discriminator:          opts.Discriminator,
			FormatsPluginInstalled: true,
			MultipleOfPrecision:    precision,
		},
	}
}

// Compile implements [Validator].
func (s *Source) Compile(schemaDoc any) (ValidateFunc, error) {
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	compiled, err := s.compiler.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	return func(instance any) (bool, []ErrorObject) {
		result := compiled.Validate(schema.ToPlain(instance))
		if result.IsValid() {
			return true, nil
		}

		errs := collectErrors(result.ToList())
		SortErrors(errs)

		return false, errs
	}, nil
}

// Options implements [Validator].
func (s *Source) Options() Flags {
	return s.flags
}

// AddSchema implements [Validator], registering a schema for external $ref
// resolution under uri.
func (s *Source) AddSchema(schemaDoc any, uri string) error {
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCompile, err)
	}

	compiled, err := s.compiler.Compile(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCompile, err)
	}

	s.compiler.SetSchema(uri, compiled)

	fn := func(instance any) (bool, []ErrorObject) {
		result := compiled.Validate(schema.ToPlain(instance))
		if result.IsValid() {
			return true, nil
		}

		errs := collectErrors(result.ToList())
		SortErrors(errs)

		return false, errs
	}
	s.byURI[uri] = fn

	return nil
}

// GetSchema implements [Validator].
func (s *Source) GetSchema(uri string) ValidateFunc {
	return s.byURI[uri]
}

// evalList mirrors the JSON shape of the library's evaluation list; going
// through JSON decouples the adapter from the concrete nesting types.
type evalList struct {
	Valid            bool              `json:"valid"`
	EvaluationPath   string            `json:"evaluationPath"`
	InstanceLocation string            `json:"instanceLocation"`
	Errors           map[string]string `json:"errors"`
	Details          []evalList        `json:"details"`
}

// collectErrors flattens the nested evaluation list into error objects.
func collectErrors(list any) []ErrorObject {
	raw, err := json.Marshal(list)
	if err != nil {
		return []ErrorObject{{Keyword: "schema", Message: err.Error()}}
	}

	var root evalList

	err = json.Unmarshal(raw, &root)
	if err != nil {
		return []ErrorObject{{Keyword: "schema", Message: err.Error()}}
	}

	var out []ErrorObject

	var walk func(l *evalList)

	walk = func(l *evalList) {
		for _, keyword := range sortedErrKeys(l.Errors) {
			out = append(out, ErrorObject{
				Keyword:      keyword,
				Message:      l.Errors[keyword],
				SchemaPath:   l.EvaluationPath,
				InstancePath: normalizeInstancePath(l.InstanceLocation),
			})
		}

		for i := range l.Details {
			walk(&l.Details[i])
		}
	}

	walk(&root)

	return out
}

func sortedErrKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
