package metrics_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/foundry/metrics"
)

func TestPhaseTimers(t *testing.T) {
	t.Parallel()

	c := metrics.NewCollector(metrics.VerbosityRuntime)

	clock := time.Unix(0, 0)
	c.SetClock(func() time.Time { return clock })

	require.NoError(t, c.BeginPhase("generate"))

	clock = clock.Add(50 * time.Millisecond)
	require.NoError(t, c.EndPhase("generate"))

	assert.Equal(t, 50*time.Millisecond, c.PhaseElapsed("generate"))

	// Re-entering the same phase accumulates.
	require.NoError(t, c.BeginPhase("generate"))

	clock = clock.Add(25 * time.Millisecond)
	require.NoError(t, c.EndPhase("generate"))

	assert.Equal(t, 75*time.Millisecond, c.PhaseElapsed("generate"))
}

func TestTimerBalanceErrors(t *testing.T) {
	t.Parallel()

	c := metrics.NewCollector(metrics.VerbosityRuntime)

	require.NoError(t, c.BeginPhase("compose"))

	err := c.BeginPhase("compose")
	require.ErrorIs(t, err, metrics.ErrTimerUnbalanced)

	err = c.EndPhase("normalize")
	require.ErrorIs(t, err, metrics.ErrTimerUnbalanced)

	// Snapshot with an open timer is rejected.
	_, err = c.Snapshot()
	require.ErrorIs(t, err, metrics.ErrTimerUnbalanced)
}

func TestCounters(t *testing.T) {
	t.Parallel()

	c := metrics.NewCollector(metrics.VerbosityRuntime)
	c.Add(metrics.CounterValidationsPerRow, 2)
	c.Add(metrics.CounterValidationsPerRow, 3)
	c.Add(metrics.CounterRepairTier1Actions, 1)

	assert.Equal(t, int64(5), c.Counter(metrics.CounterValidationsPerRow))
	assert.Equal(t, int64(1), c.Counter(metrics.CounterRepairTier1Actions))
	assert.Equal(t, int64(0), c.Counter(metrics.CounterBranchTrialsTried))
}

func TestPercentiles(t *testing.T) {
	t.Parallel()

	c := metrics.NewCollector(metrics.VerbosityCI)

	for i := 1; i <= 100; i++ {
		c.Observe("latency", float64(i))
	}

	assert.InDelta(t, 50, c.Percentile("latency", 50), 0.001)
	assert.InDelta(t, 90, c.Percentile("latency", 90), 0.001)
	assert.InDelta(t, 99, c.Percentile("latency", 99), 0.001)
	assert.True(t, math.IsNaN(c.Percentile("missing", 50)))
}

func TestVerbosityGate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		verbosity metrics.Verbosity
		wantKept  bool
	}{
		"runtime strips gated payloads": {verbosity: metrics.VerbosityRuntime, wantKept: false},
		"ci retains gated payloads":     {verbosity: metrics.VerbosityCI, wantKept: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := metrics.NewCollector(tc.verbosity)
			c.SetPayload(metrics.PayloadBranchCoverageOneOf, map[string]int{"/anyOf/0": 3})
			c.SetPayload(metrics.PayloadEnumUsage, []int{1, 2})
			c.SetPayload("other", "kept")

			snap, err := c.Snapshot()
			require.NoError(t, err)

			_, gotBranch := snap.Payloads[metrics.PayloadBranchCoverageOneOf]
			_, gotEnum := snap.Payloads[metrics.PayloadEnumUsage]
			assert.Equal(t, tc.wantKept, gotBranch)
			assert.Equal(t, tc.wantKept, gotEnum)
			assert.Equal(t, "kept", snap.Payloads["other"])
		})
	}
}
