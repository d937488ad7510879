package extref

import (
	"fmt"
	"sort"
	"strings"

	"go.jacobcolvin.com/foundry/diag"
	"go.jacobcolvin.com/foundry/randx"
	"go.jacobcolvin.com/foundry/schema"
	"go.jacobcolvin.com/foundry/validator"
)

// Entry is one resolved schema held by a registry.
type Entry struct {
	URI    string
	Schema any
}

// Registry holds resolved external schemas for one run.
type Registry interface {
	// Entries returns the resolved entries in URI order.
	Entries() []Entry
	// Fingerprint identifies the registry contents for memo keys.
	Fingerprint() string
	// Size returns the number of entries.
	Size() int
}

// Resolver supplies external schemas ahead of the pipeline. Implementations
// own their own fetching, caching, and cancellation.
type Resolver interface {
	// PrefetchAndBuildRegistry resolves the given external refs.
	PrefetchAndBuildRegistry(refs []string, opts ResolverOptions) (Registry, []diag.Diagnostic, error)
}

// ResolverOptions configures a prefetch.
type ResolverOptions struct {
	// TimeoutMs bounds each fetch; zero means the resolver's default.
	TimeoutMs int
}

// MemoryRegistry is an in-memory [Registry], also usable as a [Resolver]
// over a fixed entry set. It backs tests and the CLI's --ref-dir loading.
type MemoryRegistry struct {
	entries []Entry
}

// NewMemoryRegistry creates a registry over the given entries, sorted by
// URI.
func NewMemoryRegistry(entries ...Entry) *MemoryRegistry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].URI < sorted[j].URI })

	return &MemoryRegistry{entries: sorted}
}

// Entries implements [Registry].
func (r *MemoryRegistry) Entries() []Entry {
	return r.entries
}

// Fingerprint implements [Registry]. The fingerprint hashes the sorted URI
// list, so two registries with the same entry set memoize identically.
func (r *MemoryRegistry) Fingerprint() string {
	var sb strings.Builder

	for _, e := range r.entries {
		sb.WriteString(e.URI)
		sb.WriteByte('\n')
	}

	return fmt.Sprintf("%08x", randx.FNV1a32(sb.String()))
}

// Size implements [Registry].
func (r *MemoryRegistry) Size() int {
	return len(r.entries)
}

// PrefetchAndBuildRegistry implements [Resolver]: the fixed entry set is
// filtered down to the requested refs (by base URI).
func (r *MemoryRegistry) PrefetchAndBuildRegistry(refs []string, _ ResolverOptions) (Registry, []diag.Diagnostic, error) {
	wanted := make(map[string]bool, len(refs))
	for _, ref := range refs {
		wanted[trimFragment(ref)] = true
	}

	var matched []Entry

	for _, e := range r.entries {
		if wanted[e.URI] {
			matched = append(matched, e)
		}
	}

	return NewMemoryRegistry(matched...), nil, nil
}

// Hydrate registers every registry entry on the target validator, skipping
// entries whose declared $schema conflicts with the target dialect and
// entries whose URI or any embedded $id was already seen. The root schema's
// own IDs seed the seen set so a registry entry can never shadow the
// document under synthesis.
func Hydrate(target validator.Validator, reg Registry, rootSchema any, dialect schema.Dialect) []diag.Diagnostic {
	var diags []diag.Diagnostic

	seen := make(map[string]bool)
	collectSchemaIDs(rootSchema, seen)

	for _, entry := range reg.Entries() {
		if conflictsWithDialect(entry.Schema, dialect) {
			diags = append(diags, diag.New(diag.CodeResolverStrategiesApplied, "",
				map[string]any{"uri": entry.URI, "skipped": "dialect-conflict"}))

			continue
		}

		ids := make(map[string]bool)
		ids[entry.URI] = true
		collectSchemaIDs(entry.Schema, ids)

		duplicate := ""

		for id := range ids {
			if seen[id] {
				duplicate = id

				break
			}
		}

		if duplicate != "" {
			diags = append(diags, diag.New(diag.CodeResolverAddSchemaSkippedDuplicate, "",
				map[string]any{"uri": entry.URI, "duplicateId": duplicate}))

			continue
		}

		err := target.AddSchema(entry.Schema, entry.URI)
		if err != nil {
			diags = append(diags, diag.New(diag.CodeResolverStrategiesApplied, "",
				map[string]any{"uri": entry.URI, "skipped": "compile-error", "error": err.Error()}))

			continue
		}

		for id := range ids {
			seen[id] = true
		}
	}

	return diags
}

// collectSchemaIDs gathers every $id (and draft-04 id) in a document.
func collectSchemaIDs(schemaDoc any, out map[string]bool) {
	switch x := schemaDoc.(type) {
	case map[string]any:
		for _, key := range []string{"$id", "id"} {
			if id, ok := x[key].(string); ok && id != "" {
				out[id] = true
			}
		}

		for _, v := range x {
			collectSchemaIDs(v, out)
		}

	case []any:
		for _, e := range x {
			collectSchemaIDs(e, out)
		}
	}
}

// conflictsWithDialect reports whether an entry declares a $schema that
// maps to a different dialect than the run target.
func conflictsWithDialect(schemaDoc any, dialect schema.Dialect) bool {
	m, ok := schemaDoc.(map[string]any)
	if !ok {
		return false
	}

	uri, ok := m["$schema"].(string)
	if !ok {
		return false
	}

	declared, known := schema.DetectDialect(uri)

	return known && declared != dialect
}
