// Package profiler manages pprof profiling around a synthesis run for the
// CLI: CPU profiling across the run, plus heap and goroutine snapshots at
// shutdown.
package profiler

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/pflag"
)

// Profiler controls the lifecycle of a profiling session.
//
// Create instances with [New], register CLI flags with
// [Profiler.RegisterFlags], then bracket the run with [Profiler.Start] and
// [Profiler.Stop].
type Profiler struct {
	cpuFile *os.File

	// Output paths; empty disables the profile.
	CPUProfile       string
	HeapProfile      string
	GoroutineProfile string

	// MemProfileRate is applied before the run when positive.
	MemProfileRate int
}

// New creates a Profiler with all profiles disabled.
func New() *Profiler {
	return &Profiler{}
}

// RegisterFlags adds profiling flags to the given [*pflag.FlagSet].
func (p *Profiler) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&p.CPUProfile, "cpu-profile", "", "write CPU profile to file")
	flags.StringVar(&p.HeapProfile, "heap-profile", "", "write heap profile to file")
	flags.StringVar(&p.GoroutineProfile, "goroutine-profile", "", "write goroutine profile to file")
	flags.IntVar(&p.MemProfileRate, "mem-profile-rate", 0, "memory profile rate (bytes per sample, 0 keeps the default)")
}

// Start configures profiling rates and begins CPU profiling if enabled.
func (p *Profiler) Start() error {
	if p.MemProfileRate > 0 {
		runtime.MemProfileRate = p.MemProfileRate
	}

	if p.CPUProfile == "" {
		return nil
	}

	f, err := os.Create(p.CPUProfile) //nolint:gosec // Profile path comes from a CLI flag.
	if err != nil {
		return fmt.Errorf("creating CPU profile: %w", err)
	}

	err = pprof.StartCPUProfile(f)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("starting CPU profile: %w", err)
	}

	p.cpuFile = f

	return nil
}

// Stop ends CPU profiling and writes the enabled snapshot profiles.
func (p *Profiler) Stop() error {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()

		err := p.cpuFile.Close()
		if err != nil {
			return fmt.Errorf("closing CPU profile: %w", err)
		}

		p.cpuFile = nil
	}

	for name, path := range map[string]string{
		"heap":      p.HeapProfile,
		"goroutine": p.GoroutineProfile,
	} {
		if path == "" {
			continue
		}

		err := writeProfile(name, path)
		if err != nil {
			return err
		}
	}

	return nil
}

// writeProfile writes one named pprof snapshot to path.
func writeProfile(name, path string) error {
	prof := pprof.Lookup(name)
	if prof == nil {
		return fmt.Errorf("unknown profile %q", name)
	}

	f, err := os.Create(path) //nolint:gosec // Profile path comes from a CLI flag.
	if err != nil {
		return fmt.Errorf("create %s profile: %w", name, err)
	}

	err = prof.WriteTo(f, 0)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("write %s profile: %w", name, err)
	}

	return f.Close()
}
