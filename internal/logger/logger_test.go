package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level, format string) *bytes.Buffer {
	t.Helper()
	mu.RLock()
	prev := defaultLogger
	mu.RUnlock()
	t.Cleanup(func() {
		mu.Lock()
		defaultLogger = prev
		mu.Unlock()
		if prev != nil {
			slog.SetDefault(prev)
		}
	})

	var buf bytes.Buffer
	InitializeWithWriter(&buf, level, format)
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestExecution_TagsReference(t *testing.T) {
	buf := capture(t, "info", "json")

	Execution("DEPOSIT", "TRX-42", time.Now(), nil)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Transaction executed", line["msg"])
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "TRX-42", line["reference"])
	assert.Equal(t, "DEPOSIT", line["kind"])
	assert.Equal(t, "chronobank", line["app"])
	assert.Contains(t, line, "elapsed_ms")
}

func TestExecution_FailureIsWarning(t *testing.T) {
	buf := capture(t, "info", "text")

	Execution("WITHDRAWAL", "", time.Now(), errors.New("insufficient balance"))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `error="insufficient balance"`)
	assert.Contains(t, out, "kind=WITHDRAWAL")
}

func TestLevelFiltersDebug(t *testing.T) {
	buf := capture(t, "info", "text")

	EnterMethod("transaction.Execute", "amount", 100)
	assert.Empty(t, buf.String())

	WithService("jobs").Info("Job completed", "job", "interest")
	assert.Contains(t, buf.String(), "service=jobs")
	assert.Contains(t, buf.String(), "job=interest")
}
