package sparsecs

import (
	"reflect"
	"unsafe"

	"github.com/rotisserie/eris"
)

// Register makes sure T has a component key and a column, reporting key
// exhaustion as an error instead of panicking.
//
// Returns:
//   - T's key, or an error wrapping ErrComponentTypeLimit.
func Register[T any](r *Registry) (ComponentKey, error) {
	t := reflect.TypeFor[T]()
	if c := r.components.lookup(t); c != nil {
		return c.info.Key, nil
	}
	c, err := r.createColumn(t, newTypedOps[T]())
	if err != nil {
		return 0, err
	}
	return c.info.Key, nil
}

// Ensure creates T's column without attaching any data.
func Ensure[T any](r *Registry) {
	storageOf[T](r)
}

// Key returns the registry-local key of T, assigning one on first use.
func Key[T any](r *Registry) ComponentKey {
	return storageOf[T](r).info.Key
}

// Info returns the TypeInfo of T in this registry.
func Info[T any](r *Registry) TypeInfo {
	return storageOf[T](r).info
}

// Emplace attaches val to e as its T component, replacing any existing T.
// A replaced value fires on-destroy before the new one fires on-construct.
//
// Parameters:
//   - r: The Registry holding e.
//   - e: A live entity.
//   - val: The component value.
//
// Returns:
//   - A pointer to the stored component. It stays valid until the next
//     structural change of T's column.
func Emplace[T any](r *Registry, e Entity, val T) *T {
	r.mustBeAlive(e)
	return emplaceInto(storageOf[T](r), e, val)
}

func emplaceInto[T any](c *column, e Entity, val T) *T {
	p := c.prepare(e)
	*(*T)(p) = val
	c.constructed(e, p)
	return (*T)(p)
}

// EmplaceFunc attaches a T to e built in place by init, which receives the
// zeroed slot. Hooks fire as in Emplace.
func EmplaceFunc[T any](r *Registry, e Entity, init func(*T)) *T {
	r.mustBeAlive(e)
	c := storageOf[T](r)
	p := c.prepare(e)
	if init != nil {
		init((*T)(p))
	}
	c.constructed(e, p)
	return (*T)(p)
}

// Get returns e's T component. It panics if e does not have one.
func Get[T any](r *Registry, e Entity) *T {
	r.mustBeAlive(e)
	return (*T)(storageOf[T](r).get(e))
}

// GetIfHas returns e's T component, or nil if e does not have one.
func GetIfHas[T any](r *Registry, e Entity) *T {
	r.mustBeAlive(e)
	return (*T)(storageOf[T](r).getIfHas(e))
}

// Has reports whether e has a T component.
func Has[T any](r *Registry, e Entity) bool {
	r.mustBeAlive(e)
	return storageOf[T](r).has(e)
}

// Has2 reports whether e has both a T1 and a T2 component.
func Has2[T1, T2 any](r *Registry, e Entity) bool {
	return Has[T1](r, e) && Has[T2](r, e)
}

// Has3 reports whether e has T1, T2 and T3 components.
func Has3[T1, T2, T3 any](r *Registry, e Entity) bool {
	return Has2[T1, T2](r, e) && Has[T3](r, e)
}

// Erase removes e's T component if present. Erasing swaps the last value of
// the column into the hole, so iteration order changes.
func Erase[T any](r *Registry, e Entity) {
	r.mustBeAlive(e)
	storageOf[T](r).erase(e)
}

// Copy copy-constructs from's T onto to, replacing any T that to has.
func Copy[T any](r *Registry, from, to Entity) {
	r.mustBeAlive(from)
	r.mustBeAlive(to)
	storageOf[T](r).copyTo(from, to)
}

// Move relocates from's T onto to and removes it from from.
func Move[T any](r *Registry, from, to Entity) {
	r.mustBeAlive(from)
	r.mustBeAlive(to)
	storageOf[T](r).moveTo(from, to)
}

// OnConstruct installs fn as T's on-construct hook, replacing any previous
// one. fn runs right after a T is written into a slot by Emplace, Copy, Move
// or Clone. A nil fn detaches the hook.
func OnConstruct[T any](r *Registry, fn func(Entity, *T)) {
	c := storageOf[T](r)
	if fn == nil {
		c.onConstruct = nil
		return
	}
	c.onConstruct = func(e Entity, p unsafe.Pointer) {
		fn(e, (*T)(p))
	}
}

// OnDestroy installs fn as T's on-destroy hook, replacing any previous one.
// fn runs right before a T is destroyed. A nil fn detaches the hook.
func OnDestroy[T any](r *Registry, fn func(Entity, *T)) {
	c := storageOf[T](r)
	if fn == nil {
		c.onDestroy = nil
		return
	}
	c.onDestroy = func(e Entity, p unsafe.Pointer) {
		fn(e, (*T)(p))
	}
}

// HasAll reports whether e has a component for every key. Unknown keys
// report false.
func (r *Registry) HasAll(e Entity, keys ...ComponentKey) bool {
	r.mustBeAlive(e)
	for _, k := range keys {
		c := r.components.byKey(k)
		if c == nil || !c.has(e) {
			return false
		}
	}
	return true
}

// EraseAll removes the components identified by keys from e.
func (r *Registry) EraseAll(e Entity, keys ...ComponentKey) {
	r.mustBeAlive(e)
	for _, k := range keys {
		if c := r.components.byKey(k); c != nil {
			c.erase(e)
		}
	}
}

// CopyAll copies the components identified by keys from one entity to
// another. from must have every listed component.
func (r *Registry) CopyAll(from, to Entity, keys ...ComponentKey) {
	r.mustBeAlive(from)
	r.mustBeAlive(to)
	for _, k := range keys {
		if c := r.mustColumn(k); c.noCopy {
			panic(eris.Wrapf(ErrUncopyable, "copy entity %d: %s", from, c.info.Name))
		}
	}
	for _, k := range keys {
		r.mustColumn(k).copyTo(from, to)
	}
}

// MoveAll moves the components identified by keys from one entity to
// another. from must have every listed component.
func (r *Registry) MoveAll(from, to Entity, keys ...ComponentKey) {
	r.mustBeAlive(from)
	r.mustBeAlive(to)
	for _, k := range keys {
		r.mustColumn(k).moveTo(from, to)
	}
}

func (r *Registry) mustColumn(k ComponentKey) *column {
	c := r.components.byKey(k)
	if c == nil {
		panic(errUnknownKey(k))
	}
	return c
}
