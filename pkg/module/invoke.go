package module

import (
	"context"
	"fmt"
	"slices"

	"github.com/marmos91/rapid/internal/logger"
)

// InvokeError reports a factory failure.
type InvokeError struct {
	Kind   Kind
	Module string
	Err    error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("invoke %s module %s: %v", e.Kind, e.Module, e.Err)
}

func (e *InvokeError) Unwrap() error { return e.Err }

// Sort returns the descriptors with nil factories removed, stably sorted by
// ascending order with absent orders last.
func Sort[H any](descs []Descriptor[H]) []Descriptor[H] {
	sorted := make([]Descriptor[H], 0, len(descs))
	for _, d := range descs {
		if d.Factory != nil {
			sorted = append(sorted, d)
		}
	}
	slices.SortStableFunc(sorted, func(a, b Descriptor[H]) int {
		return a.Order.Compare(b.Order)
	})
	return sorted
}

// Invoke calls each factory with host, sequentially in sorted order, and
// returns the non-nil artifacts of type A in invocation order. Artifacts of
// another variant are skipped with a warning. The first factory error stops
// the invocation.
func Invoke[A Artifact, H any](ctx context.Context, kind Kind, host H, descs []Descriptor[H]) ([]A, error) {
	sorted := Sort(descs)
	out := make([]A, 0, len(sorted))

	for _, d := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		artifact, err := d.Factory(host)
		if err != nil {
			return nil, &InvokeError{Kind: kind, Module: d.Label(), Err: err}
		}
		if isNil(artifact) {
			logger.DebugCtx(ctx, "module produced no artifact", logger.KeyKind, kind.String(), logger.KeyModule, d.Label())
			continue
		}

		typed, ok := artifact.(A)
		if !ok || artifact.Kind() != kind {
			logger.WarnCtx(ctx, "module produced an artifact of another kind, skipping",
				logger.KeyKind, kind.String(),
				logger.KeyModule, d.Label(),
				"got", artifact.Kind().String())
			continue
		}
		out = append(out, typed)
	}

	return out, nil
}

// isNil catches typed nil pointers returned as Artifact.
func isNil(a Artifact) bool {
	if a == nil {
		return true
	}
	switch v := a.(type) {
	case *Model:
		return v == nil
	case *Router:
		return v == nil
	case *Action:
		return v == nil
	case *Seed:
		return v == nil
	case *Migration:
		return v == nil
	case *Hook:
		return v == nil
	}
	return false
}
