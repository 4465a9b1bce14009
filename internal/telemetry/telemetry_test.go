package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "rapid", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
}

func TestSpansWithoutInit(t *testing.T) {
	ctx := context.Background()

	stageCtx, span := StartStageSpan(ctx, "database")
	require.NotNil(t, stageCtx)
	defer span.End()

	hookCtx, hookSpan := StartHookSpan(stageCtx, "beforeDatabase", 2)
	defer hookSpan.End()

	// No-op spans carry no ids and accept errors silently.
	assert.Empty(t, TraceID(hookCtx))
	assert.Empty(t, SpanID(hookCtx))
	RecordError(hookCtx, errors.New("boom"))
	RecordError(hookCtx, nil)
	AddEvent(hookCtx, "noop", Kind("model"))
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOn")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOff")
	assert.Contains(t, samplerFor(0.5).Description(), "TraceIDRatioBased")
}

func TestAttributeHelpers(t *testing.T) {
	assert.Equal(t, AttrStage, string(Stage("x").Key))
	assert.Equal(t, "x", Stage("x").Value.AsString())
	assert.Equal(t, int64(3), HookCount(3).Value.AsInt64())
	assert.Equal(t, "sqlite", DBClient("sqlite").Value.AsString())
}
