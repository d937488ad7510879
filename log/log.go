// Package log builds [log/slog] handlers for the CLI: JSON or logfmt
// output, string-parsed levels, and pflag/cobra integration for the
// --log-level and --log-format flags.
package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Format selects the log output encoding.
type Format string

// Supported formats.
const (
	// FormatJSON emits one JSON object per line.
	FormatJSON Format = "json"
	// FormatLogfmt emits key=value text lines.
	FormatLogfmt Format = "logfmt"
)

var (
	// ErrUnknownLevel indicates an unrecognized log level string.
	ErrUnknownLevel = errors.New("log: unknown level")
	// ErrUnknownFormat indicates an unrecognized log format string.
	ErrUnknownFormat = errors.New("log: unknown format")
)

// NewHandler creates a handler writing to w with the given level and
// format.
func NewHandler(w io.Writer, level slog.Level, format Format) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}

	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps a level string onto a [slog.Level].
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
}

// ParseFormat maps a format string onto a [Format].
func ParseFormat(format string) (Format, error) {
	switch strings.ToLower(format) {
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatLogfmt), "text":
		return FormatLogfmt, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Config holds CLI flag values for log configuration.
//
// Create instances with [NewConfig], register flags with
// [Config.RegisterFlags], then build the handler with [Config.NewHandler].
type Config struct {
	Level  string
	Format string
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{Level: "info", Format: string(FormatLogfmt)}
}

// RegisterFlags adds logging flags to the given [*pflag.FlagSet].
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.Level, "log-level", c.Level,
		"log level, one of: debug, info, warn, error")
	flags.StringVar(&c.Format, "log-format", c.Format,
		"log format, one of: logfmt, json")
}

// RegisterCompletions registers shell completions for the log flags.
func (c *Config) RegisterCompletions(cmd *cobra.Command) error {
	err := cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions([]string{"debug", "info", "warn", "error"},
			cobra.ShellCompDirectiveNoFileComp))
	if err != nil {
		return fmt.Errorf("registering log-level completion: %w", err)
	}

	err = cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions([]string{string(FormatLogfmt), string(FormatJSON)},
			cobra.ShellCompDirectiveNoFileComp))
	if err != nil {
		return fmt.Errorf("registering log-format completion: %w", err)
	}

	return nil
}

// NewHandler builds the handler described by the config.
func (c *Config) NewHandler(w io.Writer) (slog.Handler, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	format, err := ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}

	return NewHandler(w, level, format), nil
}
