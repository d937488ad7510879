// Package format defines the schema-format plugin interface consumed by the
// generator, a name-keyed registry, and built-in plugins for the common
// formats (uuid, email, date, date-time, ipv4).
//
// The engine itself never interprets format semantics; everything flows
// through the [Plugin] interface so additional formats can be registered
// without touching the generator.
package format

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"go.jacobcolvin.com/foundry/randx"
)

var (
	// ErrUnsupported indicates no plugin is registered for a format name.
	ErrUnsupported = errors.New("format: unsupported")
	// ErrGenerate indicates a plugin failed to produce a value.
	ErrGenerate = errors.New("format: generate")
)

// Plugin produces and checks values for one named schema format.
type Plugin interface {
	// Name returns the format name the plugin serves.
	Name() string
	// Generate produces one value using the supplied deterministic stream.
	Generate(rng *randx.XorShift32) (string, error)
	// Validate reports whether v is well-formed for the format.
	Validate(v string) bool
	// Examples returns representative values, used when the caller prefers
	// example-driven output.
	Examples() []string
}

// Registry maps format names to plugins.
//
// Create instances with [NewRegistry], which preloads the built-ins.
type Registry struct {
	plugins map[string]Plugin
}

// NewRegistry creates a registry with all built-in plugins registered.
func NewRegistry() *Registry {
	r := &Registry{plugins: make(map[string]Plugin)}

	for _, p := range []Plugin{
		uuidPlugin{},
		emailPlugin{},
		datePlugin{},
		dateTimePlugin{},
		ipv4Plugin{},
	} {
		r.Register(p)
	}

	return r
}

// NewEmptyRegistry creates a registry with no plugins.
func NewEmptyRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds or replaces the plugin for its format name.
func (r *Registry) Register(p Plugin) {
	r.plugins[p.Name()] = p
}

// Supports reports whether a plugin is registered for name.
func (r *Registry) Supports(name string) bool {
	_, ok := r.plugins[name]

	return ok
}

// Lookup returns the plugin for name.
func (r *Registry) Lookup(name string) (Plugin, error) {
	p, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, name)
	}

	return p, nil
}

// Names returns the sorted registered format names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// uuidPlugin serves the "uuid" format with deterministic version-4 UUIDs
// drawn from the caller's stream.
type uuidPlugin struct{}

func (uuidPlugin) Name() string { return "uuid" }

func (uuidPlugin) Generate(rng *randx.XorShift32) (string, error) {
	var b [16]byte

	for i := 0; i < len(b); i += 4 {
		v := rng.Next()
		b[i] = byte(v >> 24)
		b[i+1] = byte(v >> 16)
		b[i+2] = byte(v >> 8)
		b[i+3] = byte(v)
	}

	// Version 4, RFC 4122 variant.
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80

	u, err := uuid.FromBytes(b[:])
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerate, err)
	}

	return u.String(), nil
}

func (uuidPlugin) Validate(v string) bool {
	_, err := uuid.Parse(v)

	return err == nil
}

func (uuidPlugin) Examples() []string {
	return []string{"a987fbc9-4bed-4078-8f07-9141ba07c9f3"}
}
