package module

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type host struct {
	calls []string
}

func modelDesc(name string, opts ...Option) Descriptor[*host] {
	d := Descriptor[*host]{
		Meta: Meta{Name: name},
		Factory: func(h *host) (Artifact, error) {
			h.calls = append(h.calls, name)
			return &Model{Name: name}, nil
		},
	}
	for _, opt := range opts {
		opt(&d.Meta)
	}
	return d
}

func names(models []*Model) []string {
	out := make([]string, 0, len(models))
	for _, m := range models {
		out = append(out, m.Name)
	}
	return out
}

func TestInvokeOrdersByOrderThenDiscovery(t *testing.T) {
	h := &host{}
	descs := []Descriptor[*host]{
		modelDesc("noOrder1"),
		modelDesc("B", WithOrder(2)),
		modelDesc("noOrder2"),
		modelDesc("A", WithOrder(1)),
		modelDesc("B2", WithOrder(2)),
	}

	models, err := Invoke[*Model](context.Background(), KindModel, h, descs)
	require.NoError(t, err)

	want := []string{"A", "B", "B2", "noOrder1", "noOrder2"}
	assert.Equal(t, want, names(models))
	assert.Equal(t, want, h.calls)
}

func TestInvokeScenarioTwoModels(t *testing.T) {
	h := &host{}
	descs := []Descriptor[*host]{
		modelDesc("B", WithOrder(2)),
		modelDesc("A", WithOrder(1)),
	}

	models, err := Invoke[*Model](context.Background(), KindModel, h, descs)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, h.calls)
	assert.Len(t, models, 2)
}

func TestInvokeSkipsEmpty(t *testing.T) {
	h := &host{}
	descs := []Descriptor[*host]{
		{Meta: Meta{Name: "no factory"}},
		{Factory: func(*host) (Artifact, error) { return nil, nil }},
		{Factory: func(*host) (Artifact, error) {
			var m *Model
			return m, nil
		}},
		{Factory: func(*host) (Artifact, error) { return &Action{Name: "wrong kind"}, nil }},
		modelDesc("kept"),
	}

	models, err := Invoke[*Model](context.Background(), KindModel, h, descs)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, names(models))
}

func TestInvokeSequentialSideEffects(t *testing.T) {
	h := &host{}
	descs := []Descriptor[*host]{
		{Meta: Meta{Order: At(1)}, Factory: func(h *host) (Artifact, error) {
			h.calls = append(h.calls, "register")
			return &Action{Name: "first"}, nil
		}},
		{Meta: Meta{Order: At(2)}, Factory: func(h *host) (Artifact, error) {
			if len(h.calls) != 1 {
				return nil, errors.New("earlier module did not run")
			}
			return &Action{Name: "second"}, nil
		}},
	}

	actions, err := Invoke[*Action](context.Background(), KindAction, h, descs)
	require.NoError(t, err)
	assert.Len(t, actions, 2)
}

func TestInvokeFactoryError(t *testing.T) {
	boom := errors.New("boom")
	h := &host{}
	descs := []Descriptor[*host]{
		{Meta: Meta{Name: "bad", Order: At(1)}, Factory: func(*host) (Artifact, error) { return nil, boom }},
		modelDesc("never", WithOrder(2)),
	}

	_, err := Invoke[*Model](context.Background(), KindModel, h, descs)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var invErr *InvokeError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "bad", invErr.Module)
	assert.Empty(t, h.calls)
}

func TestInvokeCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Invoke[*Model](ctx, KindModel, &host{}, []Descriptor[*host]{modelDesc("x")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSortDoesNotMutateInput(t *testing.T) {
	descs := []Descriptor[*host]{modelDesc("b", WithOrder(2)), modelDesc("a", WithOrder(1))}
	sorted := Sort(descs)

	assert.Equal(t, "a", sorted[0].Name)
	assert.Equal(t, "b", descs[0].Name)
}
