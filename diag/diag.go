// Package diag defines the diagnostic envelope shared by every pipeline
// stage, the stable diagnostic code catalog, and the per-phase admissibility
// rules the orchestrator enforces after each stage.
package diag

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.jacobcolvin.com/foundry/randx"
)

// ErrPhaseMismatch indicates a diagnostic was emitted by a stage whose
// phase does not admit its code.
var ErrPhaseMismatch = errors.New("diag: code not admissible in phase")

// Diagnostic is the envelope carried by every reported condition.
type Diagnostic struct {
	Code      Code           `json:"code"`
	CanonPath string         `json:"canonPath"`
	Details   map[string]any `json:"details,omitempty"`
	Metrics   map[string]any `json:"metrics,omitempty"`
	Phase     Phase          `json:"phase,omitempty"`
}

// New creates a diagnostic with its phase inferred from the code.
func New(code Code, canonPath string, details map[string]any) Diagnostic {
	d := Diagnostic{
		Code:      code,
		CanonPath: canonPath,
		Details:   details,
	}

	if p, ok := PhaseOf(code); ok {
		d.Phase = p
	}

	return d
}

// AssertForPhase verifies that every diagnostic in list is admissible in
// the given phase. A violation is a fatal orchestration error.
func AssertForPhase(phase Phase, list []Diagnostic) error {
	for _, d := range list {
		p, ok := PhaseOf(d.Code)
		if !ok {
			return fmt.Errorf("%w: unknown code %q", ErrPhaseMismatch, d.Code)
		}

		if p != phase {
			return fmt.Errorf("%w: %q belongs to %s, emitted in %s",
				ErrPhaseMismatch, d.Code, p, phase)
		}
	}

	return nil
}

// DedupKey returns the stable deduplication key for corpus reports:
// (code, phase, canonPath, detailHash).
func (d Diagnostic) DedupKey() string {
	return fmt.Sprintf("%s|%s|%s|%08x", d.Code, d.Phase, d.CanonPath, d.detailHash())
}

// Dedup returns list with duplicates (by [Diagnostic.DedupKey]) removed,
// keeping the first occurrence. The result order is stable.
func Dedup(list []Diagnostic) []Diagnostic {
	seen := make(map[string]bool, len(list))

	var out []Diagnostic

	for _, d := range list {
		key := d.DedupKey()
		if seen[key] {
			continue
		}

		seen[key] = true
		out = append(out, d)
	}

	return out
}

// detailHash hashes the details map over a canonical key-sorted rendering so
// equal detail sets always collide.
func (d Diagnostic) detailHash() uint32 {
	if len(d.Details) == 0 {
		return 0
	}

	keys := make([]string, 0, len(d.Details))
	for k := range d.Details {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var sb strings.Builder

	for _, k := range keys {
		b, err := json.Marshal(d.Details[k])
		if err != nil {
			b = []byte(fmt.Sprintf("%v", d.Details[k]))
		}

		sb.WriteString(k)
		sb.WriteByte('=')
		sb.Write(b)
		sb.WriteByte(';')
	}

	return randx.FNV1a32(sb.String())
}
