package generics

import "golang.org/x/exp/maps"

// Set is a map[T]struct{}-backed unique set of items.
type Set[T comparable] map[T]struct{}

// NewSet returns a new Set containing the elements `es`.
func NewSet[T comparable](es ...T) Set[T] {
	s := make(Set[T], len(es))
	s.Add(es...)
	return s
}

// Add adds elements `es` to the Set.
func (s Set[T]) Add(es ...T) {
	for _, e := range es {
		s[e] = struct{}{}
	}
}

// Remove removes elements `es` from the Set.
func (s Set[T]) Remove(es ...T) {
	for _, e := range es {
		delete(s, e)
	}
}

// Contains returns true if the Set contains `e`.
func (s Set[T]) Contains(e T) bool {
	_, ok := s[e]
	return ok
}

// Members returns the unique elements of the Set in indeterminate order.
func (s Set[T]) Members() []T {
	return maps.Keys(s)
}

// Clear removes all elements, retaining the allocated storage.
func (s Set[T]) Clear() {
	maps.Clear(s)
}
