// Package metrics implements the per-run observability collector: balanced
// per-phase timers, named counters, and percentile observations, with a
// verbosity gate that strips high-cardinality payloads outside CI.
//
// A collector is confined to a single pipeline run and is not safe for
// concurrent use; two concurrent runs must use distinct instances.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// Verbosity selects how much detail the snapshot retains.
type Verbosity string

const (
	// VerbosityRuntime is the default profile; high-cardinality payloads
	// (branchCoverageOneOf, enumUsage) are stripped.
	VerbosityRuntime Verbosity = "runtime"
	// VerbosityCI retains all payloads for corpus analysis.
	VerbosityCI Verbosity = "ci"
)

// Counter names shared between generate, repair, and validate.
const (
	CounterValidationsPerRow   = "validationsPerRow"
	CounterRepairPassesPerRow  = "repairPassesPerRow"
	CounterRepairActionsPerRow = "repairActionsPerRow"
	CounterBranchTrialsTried   = "branchTrialsTried"
	CounterPatternWitnessTried = "patternWitnessTried"
	CounterRepairTier1Actions  = "repair_tier1_actions"
	CounterRepairTier2Actions  = "repair_tier2_actions"
	CounterRepairTierDisabled  = "repair_tierDisabled"
)

// Payload names stripped at runtime verbosity.
const (
	PayloadBranchCoverageOneOf = "branchCoverageOneOf"
	PayloadEnumUsage           = "enumUsage"
)

var (
	// ErrTimerUnbalanced indicates a double Begin or an End without Begin.
	ErrTimerUnbalanced = errors.New("metrics: unbalanced phase timer")
)

// Collector accumulates timers, counters, and observations for one run.
//
// Create instances with [NewCollector].
type Collector struct {
	verbosity Verbosity
	now       func() time.Time

	open     map[string]time.Time
	elapsed  map[string]time.Duration
	counters map[string]int64
	observed map[string][]float64
	payloads map[string]any
}

// NewCollector creates a collector with the given verbosity.
func NewCollector(v Verbosity) *Collector {
	return &Collector{
		verbosity: v,
		now:       time.Now,
		open:      make(map[string]time.Time),
		elapsed:   make(map[string]time.Duration),
		counters:  make(map[string]int64),
		observed:  make(map[string][]float64),
		payloads:  make(map[string]any),
	}
}

// SetClock replaces the time source. Intended for tests.
func (c *Collector) SetClock(now func() time.Time) {
	c.now = now
}

// BeginPhase starts the timer for a phase. Beginning an already-open phase
// is an error.
func (c *Collector) BeginPhase(phase string) error {
	if _, open := c.open[phase]; open {
		return fmt.Errorf("%w: double begin for %q", ErrTimerUnbalanced, phase)
	}

	c.open[phase] = c.now()

	return nil
}

// EndPhase stops the timer for a phase. Ending a phase that is not open is
// an error.
func (c *Collector) EndPhase(phase string) error {
	start, open := c.open[phase]
	if !open {
		return fmt.Errorf("%w: end without begin for %q", ErrTimerUnbalanced, phase)
	}

	delete(c.open, phase)
	c.elapsed[phase] += c.now().Sub(start)

	return nil
}

// PhaseElapsed returns the accumulated time for a phase.
func (c *Collector) PhaseElapsed(phase string) time.Duration {
	return c.elapsed[phase]
}

// Add increments a named counter by delta.
func (c *Collector) Add(counter string, delta int64) {
	c.counters[counter] += delta
}

// Counter returns the current value of a named counter.
func (c *Collector) Counter(counter string) int64 {
	return c.counters[counter]
}

// Observe appends a sample to a named observation series.
func (c *Collector) Observe(series string, v float64) {
	c.observed[series] = append(c.observed[series], v)
}

// Percentile returns the p-th percentile (0..100) of a series using
// nearest-rank on the sorted samples. Returns NaN for an empty series.
func (c *Collector) Percentile(series string, p float64) float64 {
	samples := c.observed[series]
	if len(samples) == 0 {
		return math.NaN()
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}

	if rank > len(sorted) {
		rank = len(sorted)
	}

	return sorted[rank-1]
}

// SetPayload attaches a named payload to the snapshot. Payloads subject to
// the verbosity gate are dropped at runtime verbosity.
func (c *Collector) SetPayload(name string, v any) {
	if c.verbosity == VerbosityRuntime && isGatedPayload(name) {
		return
	}

	c.payloads[name] = v
}

// Snapshot is the exported view of a collector.
type Snapshot struct {
	Phases   map[string]time.Duration `json:"phases"`
	Counters map[string]int64         `json:"counters"`
	P50      map[string]float64       `json:"p50,omitempty"`
	P90      map[string]float64       `json:"p90,omitempty"`
	P99      map[string]float64       `json:"p99,omitempty"`
	Payloads map[string]any           `json:"payloads,omitempty"`
}

// Snapshot exports the collector state. Open timers are an error: the
// orchestrator balances every Begin with End in a defer before reading.
func (c *Collector) Snapshot() (Snapshot, error) {
	if len(c.open) != 0 {
		for phase := range c.open {
			return Snapshot{}, fmt.Errorf("%w: %q still open", ErrTimerUnbalanced, phase)
		}
	}

	snap := Snapshot{
		Phases:   make(map[string]time.Duration, len(c.elapsed)),
		Counters: make(map[string]int64, len(c.counters)),
		P50:      make(map[string]float64),
		P90:      make(map[string]float64),
		P99:      make(map[string]float64),
		Payloads: make(map[string]any, len(c.payloads)),
	}

	for k, v := range c.elapsed {
		snap.Phases[k] = v
	}

	for k, v := range c.counters {
		snap.Counters[k] = v
	}

	for k := range c.observed {
		snap.P50[k] = c.Percentile(k, 50)
		snap.P90[k] = c.Percentile(k, 90)
		snap.P99[k] = c.Percentile(k, 99)
	}

	for k, v := range c.payloads {
		snap.Payloads[k] = v
	}

	return snap, nil
}

func isGatedPayload(name string) bool {
	return name == PayloadBranchCoverageOneOf || name == PayloadEnumUsage
}
