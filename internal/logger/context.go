package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds lifecycle- and request-scoped logging context
type LogContext struct {
	InstanceID string    // App instance identifier
	Stage      string    // Lifecycle stage (database, webserver, ...)
	Event      string    // Hook event being emitted
	RequestID  string    // HTTP request id
	TraceID    string    // OpenTelemetry trace ID
	SpanID     string    // OpenTelemetry span ID
	StartTime  time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for an app instance
func NewLogContext(instanceID string) *LogContext {
	return &LogContext{
		InstanceID: instanceID,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithStage returns a copy with the stage set
func (lc *LogContext) WithStage(stage string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Stage = stage
	}
	return clone
}

// WithEvent returns a copy with the hook event set
func (lc *LogContext) WithEvent(event string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Event = event
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}

// Stage returns a context whose LogContext carries the given stage,
// deriving from any LogContext already present.
func Stage(ctx context.Context, stage string) context.Context {
	lc := FromContext(ctx)
	if lc == nil {
		lc = &LogContext{StartTime: time.Now()}
	}
	return WithContext(ctx, lc.WithStage(stage))
}
