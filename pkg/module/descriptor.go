package module

import (
	"runtime"
	"slices"
	"strings"
)

// Factory produces an artifact from the host it is invoked with. Returning a
// nil artifact skips the module.
type Factory[H any] func(host H) (Artifact, error)

// Meta describes a module before it is invoked.
type Meta struct {
	// Name labels the module in listings and errors. It does not have to
	// match the artifact name.
	Name string
	// Order sorts modules within a category; absent sorts last.
	Order Order
	// Source is the file the module was declared in. Discovery matches it
	// against the category patterns.
	Source string
}

// Descriptor pairs a factory with its metadata.
type Descriptor[H any] struct {
	Meta
	Factory Factory[H]
}

// Option configures a descriptor.
type Option func(*Meta)

// WithOrder sets the sort order.
func WithOrder(n int) Option {
	return func(m *Meta) { m.Order = At(n) }
}

// WithName sets the descriptor name.
func WithName(name string) Option {
	return func(m *Meta) { m.Name = name }
}

// WithSource overrides the declaring file.
func WithSource(path string) Option {
	return func(m *Meta) { m.Source = path }
}

// New builds a descriptor whose Source is the file of the caller skip frames
// above New (0 means the direct caller).
func New[H any](skip int, factory Factory[H], opts ...Option) Descriptor[H] {
	d := Descriptor[H]{Factory: factory}
	if _, file, _, ok := runtime.Caller(skip + 1); ok {
		d.Source = file
	}
	for _, opt := range opts {
		opt(&d.Meta)
	}
	return d
}

// Label returns the best human name for the descriptor.
func (d Descriptor[H]) Label() string {
	if d.Name != "" {
		return d.Name
	}
	if d.Source != "" {
		if i := strings.LastIndexAny(d.Source, `/\`); i >= 0 {
			return d.Source[i+1:]
		}
		return d.Source
	}
	return "<anonymous>"
}

func sortEvents(es []Event) {
	slices.Sort(es)
}
