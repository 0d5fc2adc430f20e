package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)
	log.Info("context ready", "functions", 3)

	out := buf.String()
	assert.Contains(t, out, "context ready")
	assert.Contains(t, out, `"functions":3`)
	assert.Contains(t, out, `"level":"INFO"`)
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Text(&buf, slog.LevelWarn)
	log.Info("hidden")
	log.Debug("hidden too")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithAndGroup(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo).With("component", "runtime").WithGroup("fn")
	log.Info("allocated", "index", 2)

	out := buf.String()
	assert.Contains(t, out, `"component":"runtime"`)
	assert.Contains(t, out, `"fn":{"index":2}`)
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	log := Discard()
	log.Error("nothing happens")
	assert.NotNil(t, log.With("k", "v"))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseLevel(tc.input), tc.input)
	}
}

func TestOpenFormat(t *testing.T) {
	t.Parallel()
	var jsonBuf, textBuf bytes.Buffer
	Open(&jsonBuf, "JSON", slog.LevelInfo).Info("m", "k", "v")
	Open(&textBuf, "text", slog.LevelInfo).Info("m", "k", "v")
	assert.Contains(t, jsonBuf.String(), `"k":"v"`)
	assert.Contains(t, textBuf.String(), "k=v")
}
