package validator

import (
	"encoding/json"
	"fmt"
	"net/url"

	gjs "github.com/google/jsonschema-go/jsonschema"

	"go.jacobcolvin.com/foundry/schema"
)

// PlanningOptions configures [NewPlanning].
type PlanningOptions struct {
	// ValidateFormats mirrors the Source setting; the parity gate requires
	// the two to agree.
	ValidateFormats bool
	// Discriminator mirrors the Source setting.
	Discriminator bool
	// MultipleOfPrecision pins the rational-fallback decimal precision.
	MultipleOfPrecision int
}

// Planning is the canonical strict validator, always the newest dialect,
// backed by google/jsonschema-go.
//
// Create instances with [NewPlanning].
type Planning struct {
	flags      Flags
	registered map[string]*gjs.Schema
	byURI      map[string]ValidateFunc
}

// NewPlanning creates the Planning validator with the strict profile.
func NewPlanning(opts PlanningOptions) *Planning {
	precision := opts.MultipleOfPrecision
	if precision == 0 {
		precision = 8
	}

	return &Planning{
		registered: make(map[string]*gjs.Schema),
		byURI:      make(map[string]ValidateFunc),
		flags: Flags{
			Class:                  Class2020,
			UnicodeRegExp:          true,
			ValidateFormats:        opts.ValidateFormats,
			AllowUnionTypes:        true,
			StrictSchema:           true,
			StrictTypes:            true,
			Discriminator:          opts.Discriminator,
			FormatsPluginInstalled: true,
			MultipleOfPrecision:    precision,
		},
	}
}

// Compile implements [Validator].
func (p *Planning) Compile(schemaDoc any) (ValidateFunc, error) {
	resolved, err := p.resolve(schemaDoc)
	if err != nil {
		return nil, err
	}

	return func(instance any) (bool, []ErrorObject) {
		err := resolved.Validate(schema.ToPlain(instance))
		if err == nil {
			return true, nil
		}

		return false, []ErrorObject{{
			Keyword: "schema",
			Message: err.Error(),
		}}
	}, nil
}

// Options implements [Validator].
func (p *Planning) Options() Flags {
	return p.flags
}

// AddSchema implements [Validator].
func (p *Planning) AddSchema(schemaDoc any, uri string) error {
	parsed, err := p.decode(schemaDoc)
	if err != nil {
		return err
	}

	p.registered[uri] = parsed

	fn, err := p.Compile(schemaDoc)
	if err != nil {
		return err
	}

	p.byURI[uri] = fn

	return nil
}

// GetSchema implements [Validator].
func (p *Planning) GetSchema(uri string) ValidateFunc {
	return p.byURI[uri]
}

// decode converts a generic schema document into the library's schema type
// through its JSON form, the same plumbing move the rest of the engine
// uses for schema documents.
func (p *Planning) decode(schemaDoc any) (*gjs.Schema, error) {
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	var s gjs.Schema

	err = json.Unmarshal(raw, &s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	return &s, nil
}

func (p *Planning) resolve(schemaDoc any) (*gjs.Resolved, error) {
	parsed, err := p.decode(schemaDoc)
	if err != nil {
		return nil, err
	}

	resolved, err := parsed.Resolve(&gjs.ResolveOptions{
		Loader: func(u *url.URL) (*gjs.Schema, error) {
			if reg, ok := p.registered[u.String()]; ok {
				return reg, nil
			}

			return nil, fmt.Errorf("%w: unresolved ref %q", ErrCompile, u)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	return resolved, nil
}
