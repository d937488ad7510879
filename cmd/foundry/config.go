package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"go.jacobcolvin.com/foundry/extref"
	"go.jacobcolvin.com/foundry/metrics"
	"go.jacobcolvin.com/foundry/pipeline"
	"go.jacobcolvin.com/foundry/schema"
)

// config holds CLI flag values for a synthesis run.
type config struct {
	Output          string
	Count           int
	Seed            uint32
	Mode            string
	RefPolicy       string
	Attempts        int
	PreferExamples  bool
	EdgeBias        bool
	ValidateFormats bool
	Coverage        bool
	CI              bool
	RefDir          string
}

func newConfig() *config {
	return &config{}
}

// registerFlags adds synthesis flags to the given flag set.
func (c *config) registerFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&c.Output, "output", "o", "-",
		"output file path (- for stdout)")
	flags.IntVarP(&c.Count, "count", "n", 1,
		"number of instances to generate")
	flags.Uint32Var(&c.Seed, "seed", 1,
		"deterministic generation seed")
	flags.StringVar(&c.Mode, "mode", "strict",
		"pipeline mode: strict or lax")
	flags.StringVar(&c.RefPolicy, "external-ref-policy", "error",
		"strict-mode policy for unresolved external refs: error, warn, or ignore")
	flags.IntVar(&c.Attempts, "repair-attempts", 2,
		"repair passes per instance (1-3)")
	flags.BoolVar(&c.PreferExamples, "prefer-examples", false,
		"prefer schema examples over random synthesis")
	flags.BoolVar(&c.EdgeBias, "edge", false,
		"bias numeric samples toward interval edges")
	flags.BoolVar(&c.ValidateFormats, "validate-formats", false,
		"assert format keywords during validation")
	flags.BoolVar(&c.Coverage, "coverage", false,
		"measure name-coverage targets")
	flags.BoolVar(&c.CI, "ci", false,
		"retain full metric payloads (CI verbosity)")
	flags.StringVar(&c.RefDir, "ref-dir", "",
		"directory of schema files served to external $refs by $id")
}

// registerCompletions registers shell completions for enum-valued flags.
func (c *config) registerCompletions(cmd *cobra.Command) error {
	err := cmd.RegisterFlagCompletionFunc("mode",
		cobra.FixedCompletions([]string{"strict", "lax"}, cobra.ShellCompDirectiveNoFileComp))
	if err != nil {
		return fmt.Errorf("registering mode completion: %w", err)
	}

	err = cmd.RegisterFlagCompletionFunc("external-ref-policy",
		cobra.FixedCompletions([]string{"error", "warn", "ignore"}, cobra.ShellCompDirectiveNoFileComp))
	if err != nil {
		return fmt.Errorf("registering external-ref-policy completion: %w", err)
	}

	return nil
}

// pipelineOptions converts the flag values into pipeline options.
func (c *config) pipelineOptions() (pipeline.Options, error) {
	opts := pipeline.Options{
		Mode:              extref.Mode(c.Mode),
		ExternalRefPolicy: extref.Policy(c.RefPolicy),
		Generate: pipeline.GenerateOptions{
			Count:          c.Count,
			Seed:           c.Seed,
			PreferExamples: c.PreferExamples,
			EdgeBias:       c.EdgeBias,
		},
		Repair:   pipeline.RepairOptions{Attempts: c.Attempts},
		Validate: pipeline.ValidateOptions{ValidateFormats: c.ValidateFormats},
	}

	if c.Coverage {
		opts.Coverage = pipeline.CoverageOptions{Mode: "measure"}
	}

	if c.CI {
		opts.Verbosity = metrics.VerbosityCI
	}

	if c.RefDir != "" {
		resolver, err := loadRefDir(c.RefDir)
		if err != nil {
			return pipeline.Options{}, err
		}

		opts.Resolver = resolver
	}

	return opts, nil
}

// loadRefDir builds an in-memory resolver from a directory of schema
// files, keyed by each schema's declared $id (falling back to the file
// name).
func loadRefDir(dir string) (*extref.MemoryRegistry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return nil, fmt.Errorf("scan ref dir: %w", err)
	}

	var entries []extref.Entry

	for _, path := range paths {
		data, err := os.ReadFile(path) //nolint:gosec // Paths come from the configured ref dir.
		if err != nil {
			return nil, fmt.Errorf("read ref schema: %w", err)
		}

		doc, err := schema.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode ref schema %s: %w", path, err)
		}

		uri := filepath.Base(path)

		if m, ok := doc.(map[string]any); ok {
			if id, isStr := m["$id"].(string); isStr && id != "" {
				uri = id
			}
		}

		entries = append(entries, extref.Entry{URI: uri, Schema: doc})
	}

	return extref.NewMemoryRegistry(entries...), nil
}
