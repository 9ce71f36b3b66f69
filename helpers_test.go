package sparsecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// --- Test Components ---
type Position struct{ X, Y float32 }
type Velocity struct{ X, Y float32 }
type Label struct{ Name string }
type Health struct{ Current, Max int }
type Tag struct{}

// Inventory deep-copies its slice when cloned.
type Inventory struct{ Items []string }

func (i Inventory) Clone() Inventory {
	return Inventory{Items: append([]string(nil), i.Items...)}
}

// Handle owns something that must not be duplicated.
type Handle struct{ FD int }

func (Handle) Uncopyable() {}

func newTestRegistry(t testing.TB, capacity int) *Registry {
	t.Helper()
	r, err := NewRegistry(Config{Name: t.Name(), MaxEntities: capacity, MaxComponentTypes: 16})
	require.NoError(t, err)
	return r
}

func mustCreate(t testing.TB, r *Registry) Entity {
	t.Helper()
	e, err := r.CreateEntity()
	require.NoError(t, err)
	return e
}

// denseOf returns T's dense entities in order.
func denseOf[T any](r *Registry) []Entity {
	return append([]Entity(nil), storageOf[T](r).dense...)
}

// requirePanicsWith asserts that fn panics with an error matching target.
func requirePanicsWith(t testing.TB, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		rec := recover()
		require.NotNil(t, rec, "expected a panic wrapping %v", target)
		err, ok := rec.(error)
		require.True(t, ok, "panic value %v is not an error", rec)
		require.ErrorIs(t, err, target)
	}()
	fn()
}
