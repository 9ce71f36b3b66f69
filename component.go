package sparsecs

import (
	"reflect"

	"github.com/rotisserie/eris"
)

// MaxComponentTypes is the hard upper bound on distinct component types a
// Registry can track. Config.MaxComponentTypes may lower it.
const MaxComponentTypes = 256

// ComponentKey is the registry-local key of a component type. Keys are
// assigned in first-use order and are only meaningful for the registry that
// issued them.
type ComponentKey uint8

// componentDirectory maps component types to keys and owns one column per
// key. inUse tracks which keys currently have a column.
type componentDirectory struct {
	keys     map[reflect.Type]ComponentKey
	columns  []*column
	inUse    bitmask256
	limit    int
	capacity int
}

func newComponentDirectory(limit, capacity int) componentDirectory {
	return componentDirectory{
		keys:     make(map[reflect.Type]ComponentKey, 16),
		columns:  make([]*column, 0, min(limit, 16)),
		limit:    limit,
		capacity: capacity,
	}
}

// lookup returns the column of t, or nil if t was never used.
func (d *componentDirectory) lookup(t reflect.Type) *column {
	if key, ok := d.keys[t]; ok {
		return d.columns[key]
	}
	return nil
}

// create assigns a key to t and builds its column with ops.
func (d *componentDirectory) create(t reflect.Type, ops componentOps) (*column, error) {
	if len(d.columns) >= d.limit {
		return nil, eris.Wrapf(ErrComponentTypeLimit, "cannot register %s: limit is %d", t, d.limit)
	}
	key := ComponentKey(len(d.columns))
	c := newColumn(ops, key, d.capacity)
	d.keys[t] = key
	d.columns = append(d.columns, c)
	d.inUse.set(uint8(key))
	return c, nil
}

// byKey returns the column for key, or nil when the key is unknown.
func (d *componentDirectory) byKey(key ComponentKey) *column {
	if int(key) >= len(d.columns) || !d.inUse.containsBit(uint8(key)) {
		return nil
	}
	return d.columns[key]
}

// each visits every existing column in key order.
func (d *componentDirectory) each(fn func(c *column) bool) {
	d.inUse.each(func(bit uint8) bool {
		return fn(d.columns[bit])
	})
}

func (d *componentDirectory) count() int {
	return d.inUse.count()
}
