package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")

	l.Info("hidden")
	l.Warn("shown", "device", 0)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "device=0")
}

func TestNew_JSONFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")

	var buf bytes.Buffer
	New(&buf, "info").Info("frame", "laser_pixels", 3)

	assert.JSONEq(t, `{"level":"INFO","msg":"frame","laser_pixels":3}`,
		stripTime(t, buf.Bytes()))
}

func TestL_NotNil(t *testing.T) {
	require.NotNil(t, L())
	assert.NotNil(t, With("component", "test"))
}

// stripTime removes the time attribute from one JSON log line.
func stripTime(t *testing.T, line []byte) string {
	t.Helper()

	i := bytes.Index(line, []byte(`"time":"`))
	require.GreaterOrEqual(t, i, 0, "no time field in %s", line)
	end := bytes.Index(line[i+8:], []byte(`",`))
	require.GreaterOrEqual(t, end, 0)
	return string(line[:i]) + string(line[i+8+end+2:])
}
