package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*DispatcherLogger)
	}{
		{"debug", func(l *DispatcherLogger) { l.Debug("m", "command", ":PAUSE:") }},
		{"info", func(l *DispatcherLogger) { l.Info("m", "command", ":PAUSE:") }},
		{"warn", func(l *DispatcherLogger) { l.Warn("m", "command", ":PAUSE:") }},
		{"error", func(l *DispatcherLogger) { l.Error("m", "command", ":PAUSE:") }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

			entry := decodeEntry(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "m", entry["message"])
			assert.Equal(t, ":PAUSE:", entry["command"])
			assert.Equal(t, "dispatcher", entry["component"])
		})
	}
}

func TestDispatcherLogger_ErrorField(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("command failed", "command", ":FOCUS:", "error", errors.New("unresolvable"), "attempt", 2)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "unresolvable", entry["error"])
	assert.Equal(t, float64(2), entry["attempt"])
}

func TestDispatcherLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("hidden")
	assert.Zero(t, buf.Len())
}

func TestToFields(t *testing.T) {
	fields := toFields([]any{"a", 1, 2, "skipped", "odd"})
	assert.Equal(t, map[string]any{"a": 1}, fields)
}
