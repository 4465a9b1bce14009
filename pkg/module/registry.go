package module

import "sync"

// Registry collects modules declared at package initialization. Discovery
// filters its entries by category patterns.
type Registry[H any] struct {
	mu      sync.RWMutex
	entries map[Kind][]Descriptor[H]
}

// NewRegistry creates an empty registry.
func NewRegistry[H any]() *Registry[H] {
	return &Registry[H]{entries: make(map[Kind][]Descriptor[H])}
}

// Add appends a descriptor to a category, keeping declaration order.
func (r *Registry[H]) Add(kind Kind, d Descriptor[H]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[kind] = append(r.entries[kind], d)
}

// Entries returns a copy of the descriptors registered for a category.
func (r *Registry[H]) Entries(kind Kind) []Descriptor[H] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Descriptor[H](nil), r.entries[kind]...)
}

// Len returns the number of descriptors across all categories.
func (r *Registry[H]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, ds := range r.entries {
		n += len(ds)
	}
	return n
}

// Reset drops every entry.
func (r *Registry[H]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[Kind][]Descriptor[H])
}
