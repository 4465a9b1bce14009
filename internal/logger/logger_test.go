package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()

	mu.RLock()
	prevOut, prevColor, prevFormat := out, color, format
	mu.RUnlock()
	prevLevel := level.Level()

	buf := new(bytes.Buffer)
	InitWithWriter(buf, "", "", false)

	t.Cleanup(func() {
		level.Set(prevLevel)
		mu.Lock()
		out, color, format = prevOut, prevColor, prevFormat
		rebuild()
		mu.Unlock()
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		for _, want := range []string{"DEBUG", "INFO", "WARN", "ERROR", "debug message", "error message"} {
			assert.Contains(t, out, want)
		}
	})

	t.Run("WarnLevelFiltersInfo", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("WARN")

		Debug("debug message")
		Info("info message")
		Warn("warn message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
	})

	t.Run("InvalidLevelIgnored", func(t *testing.T) {
		captureOutput(t)
		SetLevel("INFO")
		SetLevel("LOUD")
		assert.Equal(t, slog.LevelInfo, level.Level())
		assert.False(t, Enabled(slog.LevelDebug))
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{" Error ", slog.LevelError, true},
		{"trace", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestTextFormat(t *testing.T) {
	buf := captureOutput(t)
	SetFormat("text")
	SetLevel("INFO")

	Info("stage finished", KeyStage, "database", "note", "two words")

	out := buf.String()
	assert.Contains(t, out, "[INFO] stage finished")
	assert.Contains(t, out, "stage=database")
	assert.Contains(t, out, `note="two words"`)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestTextFormatGroups(t *testing.T) {
	buf := new(bytes.Buffer)
	h := NewColorTextHandler(buf, nil, false)
	l := slog.New(h).WithGroup("db").With("client", "sqlite")

	l.Info("connected", "pool", 1)

	out := buf.String()
	assert.Contains(t, out, "db.client=sqlite")
	assert.Contains(t, out, "db.pool=1")
}

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t)
	SetFormat("json")
	SetLevel("INFO")

	Info("hook emitted", KeyEvent, "beforeStart", KeyCount, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hook emitted", entry["msg"])
	assert.Equal(t, "beforeStart", entry[KeyEvent])
	assert.EqualValues(t, 2, entry[KeyCount])
}

func TestContextFields(t *testing.T) {
	buf := captureOutput(t)
	SetFormat("text")
	SetLevel("DEBUG")

	ctx := WithContext(context.Background(), NewLogContext("abc123"))
	ctx = Stage(ctx, "webserver")

	InfoCtx(ctx, "listening", KeyAddr, ":8080")

	out := buf.String()
	assert.Contains(t, out, "instance_id=abc123")
	assert.Contains(t, out, "stage=webserver")
	assert.Contains(t, out, "addr=:8080")
	assert.Less(t, strings.Index(out, "instance_id"), strings.Index(out, "addr"))
}

func TestLogContextCopies(t *testing.T) {
	lc := NewLogContext("id")
	staged := lc.WithStage("database")
	evented := staged.WithEvent("afterDatabase")

	assert.Empty(t, lc.Stage)
	assert.Equal(t, "database", staged.Stage)
	assert.Empty(t, staged.Event)
	assert.Equal(t, "afterDatabase", evented.Event)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.WithStage("x"))
	assert.Zero(t, nilCtx.DurationMs())
}

func TestErrAttr(t *testing.T) {
	assert.True(t, Err(nil).Equal(slog.Attr{}))
	assert.Equal(t, "boom", Err(assertErr("boom")).Value.String())
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
