package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: InfoLevel, Output: &buf})
	l.now = fixedClock

	l.Debug("hidden")
	l.Info("pass finished", "pass", "basis", "nodes", 12)

	assert.Equal(t, "[2026-01-02 03:04:05] INFO: pass finished pass=basis nodes=12\n", buf.String())
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: DebugLevel, JSONOutput: true, Output: &buf})
	l.now = fixedClock

	l.Warn("block skipped", "reason", "infeasible", "err", errors.New("boom"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "block skipped", entry["message"])
	f := entry["fields"].(map[string]interface{})
	assert.Equal(t, "infeasible", f["reason"])
	assert.Equal(t, "boom", f["err"])
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: DebugLevel, Output: &buf})
	l.SetLevel(ErrorLevel)
	l.Warn("quiet")
	assert.Empty(t, buf.String())
	l.Error("loud")
	assert.True(t, strings.Contains(buf.String(), "loud"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		err  bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing", "k", 1)
	l.SetLevel(DebugLevel)
}
