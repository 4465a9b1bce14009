// Package logger is the process-wide structured logger. Records go through
// log/slog; lifecycle fields carried by a LogContext are prepended by the
// *Ctx variants.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds logger configuration
type Config struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output"` // stdout, stderr, or a file path
}

var (
	// level is shared by every handler, so changing it needs no rebuild.
	level = new(slog.LevelVar)

	mu      sync.RWMutex
	out     io.Writer = os.Stdout
	format            = FormatText
	color   bool
	current *slog.Logger
)

func init() {
	color = isTerminal(out)
	rebuild()
}

// ParseLevel maps a level name to its slog level. Unknown names report false.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// rebuild swaps in a handler for the current writer and format. Callers
// hold mu, except init.
func rebuild() {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = NewColorTextHandler(out, opts, color)
	}
	current = slog.New(h)
}

func openOutput(name string) (io.Writer, error) {
	switch strings.ToLower(name) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %q: %w", name, err)
	}
	return f, nil
}

func setFormat(f string) bool {
	f = strings.ToLower(f)
	if f != FormatText && f != FormatJSON {
		return false
	}
	format = f
	return true
}

// Init configures level, format and output. Empty fields keep the current
// setting; invalid level or format names are ignored.
func Init(cfg Config) error {
	var w io.Writer
	if cfg.Output != "" {
		var err error
		if w, err = openOutput(cfg.Output); err != nil {
			return err
		}
	}

	SetLevel(cfg.Level)

	mu.Lock()
	defer mu.Unlock()
	if w != nil {
		out = w
		color = isTerminal(w)
	}
	setFormat(cfg.Format)
	rebuild()
	return nil
}

// InitWithWriter sends records to w. Tests use it to capture output.
func InitWithWriter(w io.Writer, lvl, f string, enableColor bool) {
	SetLevel(lvl)

	mu.Lock()
	defer mu.Unlock()
	out = w
	color = enableColor
	setFormat(f)
	rebuild()
}

// SetLevel sets the minimum level. Invalid names are ignored.
func SetLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		level.Set(l)
	}
}

// SetFormat switches between text and json. Invalid names are ignored.
func SetFormat(f string) {
	mu.Lock()
	defer mu.Unlock()
	if setFormat(f) {
		rebuild()
	}
}

// Enabled reports whether records at l are written.
func Enabled(l slog.Level) bool {
	return l >= level.Level()
}

// Logger returns the current process logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func log(ctx context.Context, l slog.Level, msg string, args []any) {
	if !Enabled(l) {
		return
	}
	Logger().Log(ctx, l, msg, appendContextFields(ctx, args)...)
}

// Debug logs with key/value pairs: Debug("msg", "key", value).
func Debug(msg string, args ...any) { log(context.Background(), slog.LevelDebug, msg, args) }
func Info(msg string, args ...any)  { log(context.Background(), slog.LevelInfo, msg, args) }
func Warn(msg string, args ...any)  { log(context.Background(), slog.LevelWarn, msg, args) }
func Error(msg string, args ...any) { log(context.Background(), slog.LevelError, msg, args) }

// DebugCtx logs with the LogContext fields of ctx (instance_id, stage,
// event, request_id, trace_id, span_id) ahead of args.
func DebugCtx(ctx context.Context, msg string, args ...any) { log(ctx, slog.LevelDebug, msg, args) }
func InfoCtx(ctx context.Context, msg string, args ...any)  { log(ctx, slog.LevelInfo, msg, args) }
func WarnCtx(ctx context.Context, msg string, args ...any)  { log(ctx, slog.LevelWarn, msg, args) }
func ErrorCtx(ctx context.Context, msg string, args ...any) { log(ctx, slog.LevelError, msg, args) }

func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	fields := []struct{ key, val string }{
		{KeyInstanceID, lc.InstanceID},
		{KeyStage, lc.Stage},
		{KeyEvent, lc.Event},
		{KeyRequestID, lc.RequestID},
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
	}
	withCtx := make([]any, 0, 2*len(fields)+len(args))
	for _, f := range fields {
		if f.val != "" {
			withCtx = append(withCtx, f.key, f.val)
		}
	}
	return append(withCtx, args...)
}

// With returns the process logger with additional attributes.
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// Duration returns the milliseconds elapsed since start.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
