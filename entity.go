package sparsecs

import "math"

// Entity is an opaque identifier for an object in a Registry. It carries no
// data of its own; components are stored under it. Ids are recycled: once an
// entity is destroyed, a later CreateEntity may return the same value.
type Entity uint32

// Null is the reserved entity value that never refers to a live entity.
const Null Entity = math.MaxUint32

// IsNull reports whether e is the Null sentinel.
func (e Entity) IsNull() bool {
	return e == Null
}

// entityDirectory allocates and recycles entity ids. It keeps the live ids
// in a dense list with a reverse index so that whole-population iteration
// only touches alive entities.
type entityDirectory struct {
	alive    bitset
	freeIDs  []Entity // stack of recycled ids, most recently released last
	dense    []Entity // live ids, order follows swap-pop history
	sparse   []uint32 // id -> position in dense, valid while alive
	next     uint32   // high-water mark: ids >= next were never issued
	capacity uint32
}

func newEntityDirectory(capacity int) entityDirectory {
	return entityDirectory{
		alive:    newBitset(capacity),
		freeIDs:  make([]Entity, 0, 64),
		dense:    make([]Entity, 0, capacity),
		sparse:   make([]uint32, capacity),
		capacity: uint32(capacity),
	}
}

// allocate returns a fresh or recycled id, or Null when the directory is
// full. The directory never grows.
func (d *entityDirectory) allocate() Entity {
	var id Entity
	if n := len(d.freeIDs); n > 0 {
		id = d.freeIDs[n-1]
		d.freeIDs = d.freeIDs[:n-1]
	} else {
		if d.next >= d.capacity {
			return Null
		}
		id = Entity(d.next)
		d.next++
	}
	d.alive.set(uint32(id))
	d.sparse[id] = uint32(len(d.dense))
	d.dense = append(d.dense, id)
	return id
}

// release returns a live id to the free list. The caller guarantees that
// the id is alive.
func (d *entityDirectory) release(e Entity) {
	idx := d.sparse[e]
	last := len(d.dense) - 1
	if int(idx) < last {
		moved := d.dense[last]
		d.dense[idx] = moved
		d.sparse[moved] = idx
	}
	d.dense = d.dense[:last]
	d.alive.unset(uint32(e))
	d.freeIDs = append(d.freeIDs, e)
}

func (d *entityDirectory) isAlive(e Entity) bool {
	return uint32(e) < d.capacity && d.alive.test(uint32(e))
}

func (d *entityDirectory) len() int {
	return len(d.dense)
}

// reset forgets every issued id.
func (d *entityDirectory) reset() {
	d.alive.reset()
	d.freeIDs = d.freeIDs[:0]
	d.dense = d.dense[:0]
	d.next = 0
}
