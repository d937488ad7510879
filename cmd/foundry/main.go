// Package main provides the CLI entry point for foundry, a tool that
// synthesizes schema-valid instances from JSON Schema documents.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"go.jacobcolvin.com/foundry/log"
	"go.jacobcolvin.com/foundry/pipeline"
	"go.jacobcolvin.com/foundry/profiler"
	"go.jacobcolvin.com/foundry/version"
)

func main() {
	cfg := newConfig()
	logCfg := log.NewConfig()
	prof := profiler.New()

	rootCmd := &cobra.Command{
		Use:   "foundry [flags] <schema.(json|yaml)>",
		Short: "Generate schema-valid instances from a JSON Schema",
		Long: `foundry runs a JSON Schema document through a five-stage pipeline
(normalize, compose, generate, repair, validate) and prints the resulting
instances as NDJSON. Runs are deterministic under a seed.`,
		Args:          cobra.ExactArgs(1),
		Version:       version.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(_ *cobra.Command, args []string) error {
			handler, err := logCfg.NewHandler(os.Stderr)
			if err != nil {
				return err
			}

			slog.SetDefault(slog.New(handler))

			if err := prof.Start(); err != nil {
				return err
			}

			defer func() {
				if stopErr := prof.Stop(); stopErr != nil {
					slog.Warn("profiler stop", slog.Any("error", stopErr))
				}
			}()

			return run(cfg, args[0])
		},
	}

	cfg.registerFlags(rootCmd.Flags())
	logCfg.RegisterFlags(rootCmd.PersistentFlags())
	prof.RegisterFlags(rootCmd.PersistentFlags())

	if err := logCfg.RegisterCompletions(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "register completions: %v\n", err)
	}

	if err := cfg.registerCompletions(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "register completions: %v\n", err)
	}

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// run executes the pipeline for one schema file and writes NDJSON output.
func run(cfg *config, path string) error {
	var (
		data []byte
		err  error
	)

	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // Schema path comes from the CLI argument.
	}

	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	opts, err := cfg.pipelineOptions()
	if err != nil {
		return err
	}

	result, execErr := pipeline.Execute(data, opts, nil)
	if result != nil {
		logRun(result)
	}

	if execErr != nil {
		return execErr
	}

	return writeItems(cfg, result.Artifacts.Repaired)
}

// logRun reports stage outcomes and diagnostics on the structured logger.
func logRun(result *pipeline.Result) {
	for _, name := range result.Timeline {
		slog.Debug("stage",
			slog.String("name", name),
			slog.String("status", result.Stages[name].Status),
		)
	}

	for _, d := range result.Artifacts.ValidationDiagnostics {
		slog.Info("diagnostic",
			slog.String("code", string(d.Code)),
			slog.String("canonPath", d.CanonPath),
			slog.Any("details", d.Details),
		)
	}

	for _, stageErr := range result.Errors {
		slog.Error("stage error",
			slog.String("stage", stageErr.Stage),
			slog.Any("error", stageErr),
		)
	}
}

// writeItems renders the instances as NDJSON to the configured output.
func writeItems(cfg *config, items []any) error {
	out := os.Stdout

	if cfg.Output != "" && cfg.Output != "-" {
		f, err := os.Create(cfg.Output) //nolint:gosec // Output path comes from a CLI flag.
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}

		defer func() {
			_ = f.Close()
		}()

		out = f
	}

	enc := json.NewEncoder(out)

	for _, item := range items {
		err := enc.Encode(item)
		if err != nil {
			return fmt.Errorf("encode item: %w", err)
		}
	}

	return nil
}
