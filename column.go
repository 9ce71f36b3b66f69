package sparsecs

import (
	"unsafe"

	"github.com/rotisserie/eris"
)

// hookFunc is the erased form of an on-construct or on-destroy hook.
type hookFunc func(e Entity, p unsafe.Pointer)

// arena is the fixed backing storage of a column. Element i lives at
// base + i*stride; every access goes through at, which checks bounds.
type arena struct {
	base   unsafe.Pointer
	owner  any // keeps the backing array reachable
	stride uintptr
	cap    int
}

func (a *arena) at(i int) unsafe.Pointer {
	if uint(i) >= uint(a.cap) {
		panic(eris.Wrapf(ErrCapacityExceeded, "slot %d of %d", i, a.cap))
	}
	return unsafe.Add(a.base, uintptr(i)*a.stride)
}

// column holds every instance of one component type. Values are packed in
// the arena in the same order as dense, so iterating dense walks memory
// linearly. sparse maps an entity back to its dense position.
type column struct {
	ops         componentOps
	info        TypeInfo
	present     bitset
	dense       []Entity
	sparse      []uint32
	data        arena
	onConstruct hookFunc
	onDestroy   hookFunc
	noCopy      bool
}

func newColumn(ops componentOps, key ComponentKey, capacity int) *column {
	base, owner := ops.alloc(capacity)
	info := ops.info()
	info.Key = key
	return &column{
		ops:     ops,
		info:    info,
		present: newBitset(capacity),
		dense:   make([]Entity, 0, capacity),
		sparse:  make([]uint32, capacity),
		noCopy:  isUncopyable(info.Type),
		data: arena{
			base:   base,
			owner:  owner,
			stride: info.Size,
			cap:    capacity,
		},
	}
}

// len returns the number of occupied slots.
func (c *column) len() int {
	return len(c.dense)
}

func (c *column) has(e Entity) bool {
	return c.present.test(uint32(e))
}

// get returns the address of e's value. e must be present.
func (c *column) get(e Entity) unsafe.Pointer {
	if !c.has(e) {
		panic(eris.Wrapf(ErrComponentMissing, "%s on entity %d", c.info.Name, e))
	}
	return c.data.at(int(c.sparse[e]))
}

// getIfHas returns the address of e's value, or nil if absent.
func (c *column) getIfHas(e Entity) unsafe.Pointer {
	if !c.has(e) {
		return nil
	}
	return c.data.at(int(c.sparse[e]))
}

// at returns the value stored at dense position i.
func (c *column) at(i int) unsafe.Pointer {
	return c.data.at(i)
}

// prepare returns a destroyed slot for e, ready to be constructed into. If
// e already holds a value, on-destroy fires and the old value is destroyed
// first; otherwise a new slot is appended.
func (c *column) prepare(e Entity) unsafe.Pointer {
	if c.has(e) {
		p := c.data.at(int(c.sparse[e]))
		if c.onDestroy != nil {
			c.onDestroy(e, p)
		}
		c.ops.destroy(p)
		return p
	}
	if uint32(e) >= uint32(c.data.cap) {
		panic(eris.Wrapf(ErrCapacityExceeded, "entity %d in %s", e, c.info.Name))
	}
	idx := len(c.dense)
	p := c.data.at(idx)
	c.dense = append(c.dense, e)
	c.sparse[e] = uint32(idx)
	c.present.set(uint32(e))
	return p
}

// constructed fires on-construct for a value just written into p.
func (c *column) constructed(e Entity, p unsafe.Pointer) {
	if c.onConstruct != nil {
		c.onConstruct(e, p)
	}
}

// erase destroys e's value and fills the hole with the last occupied slot.
// It is a no-op if e is absent.
func (c *column) erase(e Entity) {
	if !c.has(e) {
		return
	}
	idx := int(c.sparse[e])
	p := c.data.at(idx)
	if c.onDestroy != nil {
		c.onDestroy(e, p)
	}
	c.ops.destroy(p)
	last := len(c.dense) - 1
	if idx < last {
		moved := c.dense[last]
		c.ops.move(p, c.data.at(last))
		c.dense[idx] = moved
		c.sparse[moved] = uint32(idx)
	}
	c.dense = c.dense[:last]
	c.present.unset(uint32(e))
}

// copyTo copy-constructs from's value into to's slot.
func (c *column) copyTo(from, to Entity) {
	if c.noCopy {
		panic(eris.Wrapf(ErrUncopyable, "copy %s", c.info.Name))
	}
	if from == to {
		return
	}
	src := c.get(from)
	dst := c.prepare(to)
	c.ops.copy(dst, src)
	c.constructed(to, dst)
}

// moveTo relocates from's value into to's slot and erases from. The
// on-destroy hook for from sees the value as it was before the move.
func (c *column) moveTo(from, to Entity) {
	if from == to {
		return
	}
	src := c.get(from)
	dst := c.prepare(to)
	c.ops.assign(dst, src)
	c.constructed(to, dst)
	c.erase(from)
}

// clear destroys every occupied slot, firing on-destroy for each.
func (c *column) clear() {
	for i, e := range c.dense {
		p := c.data.at(i)
		if c.onDestroy != nil {
			c.onDestroy(e, p)
		}
		c.ops.destroy(p)
		c.present.unset(uint32(e))
	}
	c.dense = c.dense[:0]
}
