// Package validator wraps the two collaborating JSON Schema validators
// behind one narrow interface: the Source validator, configured to match
// the input schema's declared dialect with a tolerant profile, and the
// Planning validator, always the newest dialect with a strict profile.
//
// The engine never calls a validator library directly; everything flows
// through [Validator] so the oracles stay swappable and the parity gate
// can compare their option flags by name.
package validator

import (
	"errors"
	"sort"
	"strings"

	"go.jacobcolvin.com/foundry/schema"
)

var (
	// ErrCompile indicates a schema failed to compile.
	ErrCompile = errors.New("validator: compile")
	// ErrParity indicates the flag parity gate found mismatches.
	ErrParity = errors.New("validator: flags mismatch")
)

// ValidateFunc validates one instance, returning structured errors.
type ValidateFunc func(instance any) (bool, []ErrorObject)

// ErrorObject is the normalized validation error shape shared by both
// validator adapters.
type ErrorObject struct {
	Keyword      string         `json:"keyword"`
	Message      string         `json:"message,omitempty"`
	SchemaPath   string         `json:"schemaPath,omitempty"`
	InstancePath string         `json:"instancePath,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
}

// Flags is the tagged option record the parity gate reads by name.
type Flags struct {
	Class                  string
	UnicodeRegExp          bool
	ValidateFormats        bool
	AllowUnionTypes        bool
	StrictSchema           bool
	StrictTypes            bool
	Discriminator          bool
	FormatsPluginInstalled bool
	MultipleOfPrecision    int
}

// Validator class labels, matching the upstream validator families.
const (
	ClassDraft04 = "ajv-draft-04"
	ClassDraft07 = "Ajv"
	Class2019    = "Ajv2019"
	Class2020    = "Ajv2020"
)

// ClassForDialect returns the class label the Source validator must carry
// for a dialect.
func ClassForDialect(d schema.Dialect) string {
	switch d {
	case schema.Draft04:
		return ClassDraft04
	case schema.Draft07:
		return ClassDraft07
	case schema.Draft2019:
		return Class2019
	case schema.Draft2020:
		return Class2020
	}

	return Class2020
}

// Validator is the narrow interface both oracles implement.
type Validator interface {
	// Compile compiles a schema document (generic value tree or boolean)
	// into a validate function.
	Compile(schemaDoc any) (ValidateFunc, error)
	// Options returns the option flags for parity inspection.
	Options() Flags
	// AddSchema registers a schema under a URI for $ref resolution.
	AddSchema(schemaDoc any, uri string) error
	// GetSchema returns the validate function registered under uri, or nil.
	GetSchema(uri string) ValidateFunc
}

// SortErrors orders errors deterministically by (instancePath, keyword),
// the order the repair engine consumes them in.
func SortErrors(errs []ErrorObject) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].InstancePath != errs[j].InstancePath {
			return errs[i].InstancePath < errs[j].InstancePath
		}

		return errs[i].Keyword < errs[j].Keyword
	})
}

// normalizeInstancePath rewrites adapter-specific instance locations into
// RFC 6901 pointers.
func normalizeInstancePath(p string) string {
	if p == "" || p == "/" {
		return ""
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + strings.ReplaceAll(p, ".", "/")
	}

	return p
}
