package sparsecs

import (
	"sync/atomic"
	"unsafe"

	"github.com/rotisserie/eris"
)

// plan is the resolved form of a query: the columns it requires, the ones it
// reads optionally, and the driver it iterates. A plan is rebuilt for every
// execution because column sizes change between calls.
type plan struct {
	required []*column
	optional []*column
	driver   *column // nil when nothing is required
	entities *entityDirectory
}

// resolve fills p.driver with the smallest required column. Ties keep the
// first declared column.
func (p *plan) resolve() {
	p.driver = nil
	for _, c := range p.required {
		if p.driver == nil || c.len() < p.driver.len() {
			p.driver = c
		}
	}
}

// size returns the number of candidate positions the plan iterates.
func (p *plan) size() int {
	if p.driver == nil {
		return p.entities.len()
	}
	return p.driver.len()
}

// candidate returns the entity at iteration position i.
func (p *plan) candidate(i int) Entity {
	if p.driver == nil {
		return p.entities.dense[i]
	}
	return p.driver.dense[i]
}

// matches reports whether e has every required component.
func (p *plan) matches(e Entity) bool {
	for _, c := range p.required {
		if c != p.driver && !c.has(e) {
			return false
		}
	}
	return true
}

// fetch writes the addresses of e's required and optional components into
// req and opt. Optional entries are nil when absent.
func (p *plan) fetch(e Entity, req, opt []unsafe.Pointer) {
	for i, c := range p.required {
		req[i] = c.get(e)
	}
	for i, c := range p.optional {
		opt[i] = c.getIfHas(e)
	}
}

// scan calls visit for every matching entity among positions [start, end).
func (p *plan) scan(start, end int, visit func(e Entity)) {
	for i := start; i < end; i++ {
		e := p.candidate(i)
		if p.matches(e) {
			visit(e)
		}
	}
}

// run executes the plan sequentially over all candidates.
func (r *Registry) run(p *plan, visit func(e Entity)) {
	p.resolve()
	r.queryDepth.Add(1)
	defer r.queryDepth.Add(-1)
	p.scan(0, p.size(), visit)
}

// runPar executes the plan over pool. Each partition scans a disjoint range
// of the driver, so bodies that only touch their own entity need no locks.
func (r *Registry) runPar(pool *WorkerPool, p *plan, visit func(e Entity)) {
	p.resolve()
	r.queryDepth.Add(1)
	defer r.queryDepth.Add(-1)
	pool.Run(p.size(), func(start, end int) {
		p.scan(start, end, visit)
	})
}

// runOne executes the plan against a single entity.
func (r *Registry) runOne(p *plan, e Entity, visit func(e Entity)) {
	r.mustBeAlive(e)
	p.driver = nil
	if p.matches(e) {
		r.queryDepth.Add(1)
		defer r.queryDepth.Add(-1)
		visit(e)
	}
}

// iteration marks a manual Next loop as an in-progress query of its
// registry. It is entered by the first Next and left when Next reports the
// end, or on Reset or Done.
type iteration struct {
	depth  *atomic.Int32
	active bool
}

func (it *iteration) enter() {
	if !it.active {
		it.active = true
		it.depth.Add(1)
	}
}

func (it *iteration) leave() {
	if it.active {
		it.active = false
		it.depth.Add(-1)
	}
}

// Iterating reports whether a query of this registry is in progress.
func (r *Registry) Iterating() bool {
	return r.queryDepth.Load() > 0
}

// QueryInfo calls fn for every live entity with the TypeInfo of each
// component it holds, in key order. The slice is reused between calls.
func (r *Registry) QueryInfo(fn func(e Entity, infos []TypeInfo)) {
	infos := make([]TypeInfo, 0, r.components.count())
	p := &plan{entities: &r.entities}
	r.run(p, func(e Entity) {
		infos = r.infoOf(e, infos[:0])
		fn(e, infos)
	})
}

// QueryInfoWith calls fn with the TypeInfo of each component e holds.
func (r *Registry) QueryInfoWith(e Entity, fn func(infos []TypeInfo)) {
	r.mustBeAlive(e)
	fn(r.infoOf(e, make([]TypeInfo, 0, r.components.count())))
}

func (r *Registry) infoOf(e Entity, dst []TypeInfo) []TypeInfo {
	r.components.each(func(c *column) bool {
		if c.has(e) {
			dst = append(dst, c.info)
		}
		return true
	})
	return dst
}

func errShape(format string, args ...any) error {
	return eris.Wrapf(ErrQueryShape, format, args...)
}
