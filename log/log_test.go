package log_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/foundry/log"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		"debug":          {input: "debug", want: slog.LevelDebug},
		"info":           {input: "info", want: slog.LevelInfo},
		"warn":           {input: "warn", want: slog.LevelWarn},
		"warning alias":  {input: "warning", want: slog.LevelWarn},
		"error":          {input: "ERROR", want: slog.LevelError},
		"unknown":        {input: "loud", wantErr: true},
		"empty is error": {input: "", wantErr: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := log.ParseLevel(tc.input)
			if tc.wantErr {
				require.ErrorIs(t, err, log.ErrUnknownLevel)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	got, err := log.ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, log.FormatJSON, got)

	got, err = log.ParseFormat("text")
	require.NoError(t, err)
	assert.Equal(t, log.FormatLogfmt, got)

	_, err = log.ParseFormat("xml")
	require.ErrorIs(t, err, log.ErrUnknownFormat)
}

func TestConfigNewHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := log.NewConfig()
	cfg.Format = "json"

	handler, err := cfg.NewHandler(&buf)
	require.NoError(t, err)

	logger := slog.New(handler)
	logger.Info("hello", slog.String("k", "v"))

	assert.True(t, strings.Contains(buf.String(), `"msg":"hello"`))
	assert.True(t, strings.Contains(buf.String(), `"k":"v"`))
}

func TestConfigRejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg := log.NewConfig()
	cfg.Level = "shout"

	_, err := cfg.NewHandler(&bytes.Buffer{})
	require.ErrorIs(t, err, log.ErrUnknownLevel)
}
