// Package hook dispatches lifecycle events to attached hooks.
package hook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/rapid/internal/logger"
	"github.com/marmos91/rapid/internal/telemetry"
	"github.com/marmos91/rapid/pkg/module"
)

// CallbackError reports a hook callback failure during an emission.
type CallbackError struct {
	Event module.Event
	Hook  string
	Err   error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("hook %s failed on %s: %v", e.Hook, e.Event, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// Recorder observes callback executions. *metrics.Metrics implements it.
type Recorder interface {
	ObserveHook(event string, d time.Duration, err error)
}

// Emitter holds attached hooks in attachment order.
type Emitter struct {
	mu       sync.RWMutex
	hooks    []*module.Hook
	recorder Recorder
}

// NewEmitter creates an emitter. recorder may be nil.
func NewEmitter(recorder Recorder) *Emitter {
	return &Emitter{recorder: recorder}
}

// Attach appends hooks. Subscriptions to unknown events are kept but logged,
// since nothing will ever emit them.
func (e *Emitter) Attach(ctx context.Context, hooks ...*module.Hook) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, h := range hooks {
		if h == nil {
			continue
		}
		for _, ev := range h.UnknownEvents() {
			logger.WarnCtx(ctx, "hook subscribes to unknown event",
				logger.KeyHook, name(h, len(e.hooks)),
				logger.KeyEvent, string(ev))
		}
		e.hooks = append(e.hooks, h)
	}
}

// Len returns the number of attached hooks.
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.hooks)
}

// Emit invokes the callback registered for event on every attached hook, one
// at a time in attachment order. The first failing callback stops the
// emission and its error is returned.
func (e *Emitter) Emit(ctx context.Context, event module.Event) error {
	e.mu.RLock()
	hooks := append([]*module.Hook(nil), e.hooks...)
	e.mu.RUnlock()

	if len(hooks) == 0 {
		return nil
	}

	ctx, span := telemetry.StartHookSpan(ctx, string(event), len(hooks))
	defer span.End()

	if lc := logger.FromContext(ctx); lc != nil {
		ctx = logger.WithContext(ctx, lc.WithEvent(string(event)))
	}

	for i, h := range hooks {
		cb := h.Callback(event)
		if cb == nil {
			continue
		}

		start := time.Now()
		err := cb(ctx)
		if e.recorder != nil {
			e.recorder.ObserveHook(string(event), time.Since(start), err)
		}

		if err != nil {
			telemetry.RecordError(ctx, err)
			return &CallbackError{Event: event, Hook: name(h, i), Err: err}
		}
		logger.DebugCtx(ctx, "hook callback done", logger.KeyHook, name(h, i), logger.Since(start))
	}
	return nil
}

func name(h *module.Hook, i int) string {
	if h.Name != "" {
		return h.Name
	}
	return fmt.Sprintf("hook#%d", i)
}
