package diag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/foundry/diag"
)

func TestNewInfersPhase(t *testing.T) {
	t.Parallel()

	d := diag.New(diag.CodeRepairRevertedNoProgress, "/items", nil)
	assert.Equal(t, diag.PhaseRepair, d.Phase)

	d = diag.New(diag.CodeAJVFlagsMismatch, "", nil)
	assert.Equal(t, diag.PhaseValidate, d.Phase)
}

func TestAssertForPhase(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		phase   diag.Phase
		diags   []diag.Diagnostic
		wantErr bool
	}{
		"admissible": {
			phase: diag.PhaseGenerate,
			diags: []diag.Diagnostic{
				diag.New(diag.CodeNoFeasibleValue, "/a", nil),
				diag.New(diag.CodeExclusivityTweakString, "/b", nil),
			},
		},
		"wrong phase": {
			phase: diag.PhaseGenerate,
			diags: []diag.Diagnostic{
				diag.New(diag.CodeRepairRevertedNoProgress, "/a", nil),
			},
			wantErr: true,
		},
		"unknown code": {
			phase: diag.PhaseGenerate,
			diags: []diag.Diagnostic{
				{Code: diag.Code("MADE_UP")},
			},
			wantErr: true,
		},
		"empty list": {
			phase: diag.PhaseNormalize,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := diag.AssertForPhase(tc.phase, tc.diags)
			if tc.wantErr {
				require.ErrorIs(t, err, diag.ErrPhaseMismatch)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDedup(t *testing.T) {
	t.Parallel()

	a := diag.New(diag.CodeNoFeasibleValue, "/a", map[string]any{"lo": 1.0, "hi": 2.0})
	b := diag.New(diag.CodeNoFeasibleValue, "/a", map[string]any{"hi": 2.0, "lo": 1.0})
	c := diag.New(diag.CodeNoFeasibleValue, "/a", map[string]any{"lo": 3.0})
	d := diag.New(diag.CodeNoFeasibleValue, "/b", nil)

	// a and b carry equal details (key order must not matter).
	assert.Equal(t, a.DedupKey(), b.DedupKey())
	assert.NotEqual(t, a.DedupKey(), c.DedupKey())

	out := diag.Dedup([]diag.Diagnostic{a, b, c, d, d})
	assert.Len(t, out, 3)
	assert.Equal(t, a, out[0])
}

func TestAllowedCodesPartition(t *testing.T) {
	t.Parallel()

	phases := []diag.Phase{
		diag.PhaseNormalize,
		diag.PhaseCompose,
		diag.PhaseGenerate,
		diag.PhaseRepair,
		diag.PhaseValidate,
	}

	seen := make(map[diag.Code]diag.Phase)

	for _, p := range phases {
		for _, c := range diag.AllowedCodes(p) {
			prev, dup := seen[c]
			require.False(t, dup, "code %s in both %s and %s", c, prev, p)

			seen[c] = p
		}
	}

	// Spot-check stable identifiers from the public catalog.
	assert.Equal(t, diag.PhaseValidate, seen[diag.CodeAJVFlagsMismatch])
	assert.Equal(t, diag.PhaseCompose, seen[diag.CodeExternalRefUnresolved])
	assert.Equal(t, diag.PhaseRepair, seen[diag.CodeMustCoverIndexMissing])
}
