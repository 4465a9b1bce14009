package module

// Set holds one descriptor sequence per category. Get never returns nil.
type Set[H any] struct {
	byKind map[Kind][]Descriptor[H]
}

// NewSet creates an empty set.
func NewSet[H any]() *Set[H] {
	return &Set[H]{byKind: make(map[Kind][]Descriptor[H], len(Kinds))}
}

// Add appends descriptors to a category.
func (s *Set[H]) Add(kind Kind, ds ...Descriptor[H]) {
	if s.byKind == nil {
		s.byKind = make(map[Kind][]Descriptor[H], len(Kinds))
	}
	s.byKind[kind] = append(s.byKind[kind], ds...)
}

// Put replaces a category.
func (s *Set[H]) Put(kind Kind, ds []Descriptor[H]) {
	if s.byKind == nil {
		s.byKind = make(map[Kind][]Descriptor[H], len(Kinds))
	}
	s.byKind[kind] = ds
}

// Get returns the descriptors of a category, or an empty slice.
func (s *Set[H]) Get(kind Kind) []Descriptor[H] {
	if s == nil || s.byKind[kind] == nil {
		return []Descriptor[H]{}
	}
	return s.byKind[kind]
}

// Len returns the total number of descriptors.
func (s *Set[H]) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, ds := range s.byKind {
		n += len(ds)
	}
	return n
}
