package hook

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/rapid/internal/logger"
	"github.com/marmos91/rapid/pkg/module"
)

type fakeRecorder struct {
	events []string
	errs   int
}

func (r *fakeRecorder) ObserveHook(event string, _ time.Duration, err error) {
	r.events = append(r.events, event)
	if err != nil {
		r.errs++
	}
}

func record(log *[]string, label string) module.Callback {
	return func(context.Context) error {
		*log = append(*log, label)
		return nil
	}
}

func TestEmitWithoutHooksIsNoop(t *testing.T) {
	e := NewEmitter(nil)
	assert.NoError(t, e.Emit(context.Background(), module.BeforeStart))
	assert.Zero(t, e.Len())
}

func TestEmitRunsInAttachmentOrder(t *testing.T) {
	var calls []string
	rec := &fakeRecorder{}
	e := NewEmitter(rec)
	e.Attach(context.Background(),
		&module.Hook{Name: "first", On: map[module.Event]module.Callback{
			module.BeforeStart: record(&calls, "first.beforeStart"),
		}},
		nil,
		&module.Hook{Name: "second", On: map[module.Event]module.Callback{
			module.BeforeStart: record(&calls, "second.beforeStart"),
			module.AfterStart:  record(&calls, "second.afterStart"),
		}},
	)
	require.Equal(t, 2, e.Len())

	require.NoError(t, e.Emit(context.Background(), module.BeforeStart))
	require.NoError(t, e.Emit(context.Background(), module.AfterStart))
	require.NoError(t, e.Emit(context.Background(), module.BeforeDestroy))

	assert.Equal(t, []string{"first.beforeStart", "second.beforeStart", "second.afterStart"}, calls)
	assert.Equal(t, []string{"beforeStart", "beforeStart", "afterStart"}, rec.events)
}

func TestEmitSideEffectsVisibleToLaterHooks(t *testing.T) {
	shared := 0
	e := NewEmitter(nil)
	e.Attach(context.Background(),
		&module.Hook{On: map[module.Event]module.Callback{
			module.BeforeModels: func(context.Context) error {
				time.Sleep(5 * time.Millisecond)
				shared = 1
				return nil
			},
		}},
		&module.Hook{On: map[module.Event]module.Callback{
			module.BeforeModels: func(context.Context) error {
				if shared != 1 {
					return errors.New("previous hook not finished")
				}
				return nil
			},
		}},
	)
	assert.NoError(t, e.Emit(context.Background(), module.BeforeModels))
}

func TestEmitStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var calls []string
	rec := &fakeRecorder{}
	e := NewEmitter(rec)
	e.Attach(context.Background(),
		&module.Hook{Name: "failing", On: map[module.Event]module.Callback{
			module.BeforeModels: func(context.Context) error { return boom },
		}},
		&module.Hook{Name: "later", On: map[module.Event]module.Callback{
			module.BeforeModels: record(&calls, "later"),
		}},
	)

	err := e.Emit(context.Background(), module.BeforeModels)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var cbErr *CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, "failing", cbErr.Hook)
	assert.Equal(t, module.BeforeModels, cbErr.Event)
	assert.Empty(t, calls)
	assert.Equal(t, 1, rec.errs)
}

func TestAttachWarnsOnUnknownEvents(t *testing.T) {
	buf := new(bytes.Buffer)
	logger.InitWithWriter(buf, "WARN", "text", false)
	t.Cleanup(func() { logger.InitWithWriter(new(bytes.Buffer), "INFO", "text", false) })

	e := NewEmitter(nil)
	e.Attach(context.Background(), &module.Hook{Name: "legacy", On: map[module.Event]module.Callback{
		"before_start": func(context.Context) error { return nil },
	}})

	assert.Equal(t, 1, e.Len())
	assert.Contains(t, buf.String(), "unknown event")
	assert.Contains(t, buf.String(), "before_start")
}
