package sparsecs

import (
	"reflect"

	"github.com/rotisserie/eris"
)

// resourceSet holds registry-wide singletons keyed by type. Slots of removed
// resources are reused.
type resourceSet struct {
	items   []any
	types   map[reflect.Type]int
	freeIDs []int
}

func (s *resourceSet) add(t reflect.Type, res any) error {
	if s.types == nil {
		s.types = make(map[reflect.Type]int)
	}
	if _, ok := s.types[t]; ok {
		return eris.Wrapf(ErrDuplicateResource, "%s", t)
	}
	var id int
	if n := len(s.freeIDs); n > 0 {
		id = s.freeIDs[n-1]
		s.freeIDs = s.freeIDs[:n-1]
		s.items[id] = res
	} else {
		id = len(s.items)
		s.items = append(s.items, res)
	}
	s.types[t] = id
	return nil
}

func (s *resourceSet) get(t reflect.Type) any {
	id, ok := s.types[t]
	if !ok {
		return nil
	}
	return s.items[id]
}

func (s *resourceSet) remove(t reflect.Type) bool {
	id, ok := s.types[t]
	if !ok {
		return false
	}
	delete(s.types, t)
	s.items[id] = nil
	s.freeIDs = append(s.freeIDs, id)
	return true
}

func (s *resourceSet) len() int {
	return len(s.types)
}

func (s *resourceSet) reset() {
	clear(s.items)
	s.items = s.items[:0]
	clear(s.types)
	s.freeIDs = s.freeIDs[:0]
}

// SetResource stores res as the registry's single T.
//
// Returns:
//   - nil, or an error wrapping ErrDuplicateResource if a T is already
//     stored.
func SetResource[T any](r *Registry, res *T) error {
	if res == nil {
		return eris.New("sparsecs: nil resource")
	}
	return r.resources.add(reflect.TypeFor[T](), res)
}

// Resource returns the registry's T, or nil if none is stored.
func Resource[T any](r *Registry) *T {
	res := r.resources.get(reflect.TypeFor[T]())
	if res == nil {
		return nil
	}
	return res.(*T)
}

// HasResource reports whether a T is stored.
func HasResource[T any](r *Registry) bool {
	return r.resources.get(reflect.TypeFor[T]()) != nil
}

// RemoveResource drops the registry's T and reports whether there was one.
func RemoveResource[T any](r *Registry) bool {
	return r.resources.remove(reflect.TypeFor[T]())
}

// ClearResources drops every stored resource.
func (r *Registry) ClearResources() {
	r.resources.reset()
}

// Resources returns the number of stored resources.
func (r *Registry) Resources() int {
	return r.resources.len()
}
