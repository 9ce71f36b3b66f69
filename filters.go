package sparsecs

import "github.com/rotisserie/eris"

// joinCursor is the iteration state shared by the multi-component filters.
// It walks the plan's driver and stops on entities that have every required
// component.
type joinCursor struct {
	iteration
	registry *Registry
	plan     plan
	cur      Entity
	pos      int
	end      int
}

func newJoinCursor(r *Registry, cols []*column, name string) joinCursor {
	for i := range cols {
		for j := i + 1; j < len(cols); j++ {
			if cols[i] == cols[j] {
				panic(eris.Wrapf(ErrQueryShape, "duplicate component type %s in %s", cols[i].info.Name, name))
			}
		}
	}
	return joinCursor{
		iteration: iteration{depth: &r.queryDepth},
		registry:  r,
		plan:      plan{required: cols, entities: &r.entities},
	}
}

func (j *joinCursor) reset() {
	j.leave()
	j.plan.resolve()
	j.pos = -1
	j.end = j.plan.size()
	j.cur = Null
}

func (j *joinCursor) next() bool {
	if j.pos < 0 {
		j.enter()
	}
	for {
		j.pos++
		if j.pos >= j.end {
			j.leave()
			return false
		}
		e := j.plan.candidate(j.pos)
		if j.plan.matches(e) {
			j.cur = e
			return true
		}
	}
}

func (j *joinCursor) has(e Entity) bool {
	j.registry.mustBeAlive(e)
	for _, c := range j.plan.required {
		if !c.has(e) {
			return false
		}
	}
	return true
}

// Filter2 iterates over all entities that have both a T1 and a T2.
type Filter2[T1 any, T2 any] struct {
	joinCursor
	cols [2]*column
}

// NewFilter2 creates a filter over entities possessing T1 and T2.
//
// Parameters:
//   - r: The Registry to query.
//
// Returns:
//   - A pointer to the newly created Filter2.
func NewFilter2[T1 any, T2 any](r *Registry) *Filter2[T1, T2] {
	f := &Filter2[T1, T2]{cols: [2]*column{storageOf[T1](r), storageOf[T2](r)}}
	f.joinCursor = newJoinCursor(r, f.cols[:], "Filter2")
	f.Reset()
	return f
}

// Reset rewinds the filter and re-picks the smallest column to drive it.
func (f *Filter2[T1, T2]) Reset() { f.reset() }

// Next advances to the next matching entity. The registry counts as
// iterating until Next returns false or the filter is Reset or Done.
func (f *Filter2[T1, T2]) Next() bool { return f.next() }

// Done ends an iteration that stopped before Next returned false.
func (f *Filter2[T1, T2]) Done() { f.leave() }

// Entity returns the current entity.
func (f *Filter2[T1, T2]) Entity() Entity { return f.cur }

// Get returns the current entity's components.
func (f *Filter2[T1, T2]) Get() (*T1, *T2) {
	return (*T1)(f.cols[0].get(f.cur)), (*T2)(f.cols[1].get(f.cur))
}

// Each calls fn for every matching entity.
func (f *Filter2[T1, T2]) Each(fn func(Entity, *T1, *T2)) {
	c1, c2 := f.cols[0], f.cols[1]
	f.registry.run(&f.plan, func(e Entity) {
		fn(e, (*T1)(c1.get(e)), (*T2)(c2.get(e)))
	})
}

// EachPar is Each fanned out over pool.
func (f *Filter2[T1, T2]) EachPar(pool *WorkerPool, fn func(Entity, *T1, *T2)) {
	c1, c2 := f.cols[0], f.cols[1]
	f.registry.runPar(pool, &f.plan, func(e Entity) {
		fn(e, (*T1)(c1.get(e)), (*T2)(c2.get(e)))
	})
}

// With calls fn for e if it matches, and reports whether it did.
func (f *Filter2[T1, T2]) With(e Entity, fn func(*T1, *T2)) bool {
	if !f.has(e) {
		return false
	}
	fn((*T1)(f.cols[0].get(e)), (*T2)(f.cols[1].get(e)))
	return true
}

// Filter3 iterates over all entities that have T1, T2 and T3.
type Filter3[T1 any, T2 any, T3 any] struct {
	joinCursor
	cols [3]*column
}

// NewFilter3 creates a filter over entities possessing T1, T2 and T3.
func NewFilter3[T1 any, T2 any, T3 any](r *Registry) *Filter3[T1, T2, T3] {
	f := &Filter3[T1, T2, T3]{cols: [3]*column{storageOf[T1](r), storageOf[T2](r), storageOf[T3](r)}}
	f.joinCursor = newJoinCursor(r, f.cols[:], "Filter3")
	f.Reset()
	return f
}

// Reset rewinds the filter and re-picks the smallest column to drive it.
func (f *Filter3[T1, T2, T3]) Reset() { f.reset() }

// Next advances to the next matching entity.
func (f *Filter3[T1, T2, T3]) Next() bool { return f.next() }

// Done ends an iteration that stopped early.
func (f *Filter3[T1, T2, T3]) Done() { f.leave() }

// Entity returns the current entity.
func (f *Filter3[T1, T2, T3]) Entity() Entity { return f.cur }

// Get returns the current entity's components.
func (f *Filter3[T1, T2, T3]) Get() (*T1, *T2, *T3) {
	return (*T1)(f.cols[0].get(f.cur)),
		(*T2)(f.cols[1].get(f.cur)),
		(*T3)(f.cols[2].get(f.cur))
}

// Each calls fn for every matching entity.
func (f *Filter3[T1, T2, T3]) Each(fn func(Entity, *T1, *T2, *T3)) {
	c1, c2, c3 := f.cols[0], f.cols[1], f.cols[2]
	f.registry.run(&f.plan, func(e Entity) {
		fn(e, (*T1)(c1.get(e)), (*T2)(c2.get(e)), (*T3)(c3.get(e)))
	})
}

// EachPar is Each fanned out over pool.
func (f *Filter3[T1, T2, T3]) EachPar(pool *WorkerPool, fn func(Entity, *T1, *T2, *T3)) {
	c1, c2, c3 := f.cols[0], f.cols[1], f.cols[2]
	f.registry.runPar(pool, &f.plan, func(e Entity) {
		fn(e, (*T1)(c1.get(e)), (*T2)(c2.get(e)), (*T3)(c3.get(e)))
	})
}

// With calls fn for e if it matches, and reports whether it did.
func (f *Filter3[T1, T2, T3]) With(e Entity, fn func(*T1, *T2, *T3)) bool {
	if !f.has(e) {
		return false
	}
	fn((*T1)(f.cols[0].get(e)), (*T2)(f.cols[1].get(e)), (*T3)(f.cols[2].get(e)))
	return true
}

// Filter4 iterates over all entities that have T1, T2, T3 and T4.
type Filter4[T1 any, T2 any, T3 any, T4 any] struct {
	joinCursor
	cols [4]*column
}

// NewFilter4 creates a filter over entities possessing T1 through T4.
func NewFilter4[T1 any, T2 any, T3 any, T4 any](r *Registry) *Filter4[T1, T2, T3, T4] {
	f := &Filter4[T1, T2, T3, T4]{cols: [4]*column{
		storageOf[T1](r), storageOf[T2](r), storageOf[T3](r), storageOf[T4](r),
	}}
	f.joinCursor = newJoinCursor(r, f.cols[:], "Filter4")
	f.Reset()
	return f
}

// Reset rewinds the filter and re-picks the smallest column to drive it.
func (f *Filter4[T1, T2, T3, T4]) Reset() { f.reset() }

// Next advances to the next matching entity.
func (f *Filter4[T1, T2, T3, T4]) Next() bool { return f.next() }

// Done ends an iteration that stopped early.
func (f *Filter4[T1, T2, T3, T4]) Done() { f.leave() }

// Entity returns the current entity.
func (f *Filter4[T1, T2, T3, T4]) Entity() Entity { return f.cur }

// Get returns the current entity's components.
func (f *Filter4[T1, T2, T3, T4]) Get() (*T1, *T2, *T3, *T4) {
	return (*T1)(f.cols[0].get(f.cur)),
		(*T2)(f.cols[1].get(f.cur)),
		(*T3)(f.cols[2].get(f.cur)),
		(*T4)(f.cols[3].get(f.cur))
}

// Each calls fn for every matching entity.
func (f *Filter4[T1, T2, T3, T4]) Each(fn func(Entity, *T1, *T2, *T3, *T4)) {
	c1, c2, c3, c4 := f.cols[0], f.cols[1], f.cols[2], f.cols[3]
	f.registry.run(&f.plan, func(e Entity) {
		fn(e, (*T1)(c1.get(e)), (*T2)(c2.get(e)), (*T3)(c3.get(e)), (*T4)(c4.get(e)))
	})
}

// EachPar is Each fanned out over pool.
func (f *Filter4[T1, T2, T3, T4]) EachPar(pool *WorkerPool, fn func(Entity, *T1, *T2, *T3, *T4)) {
	c1, c2, c3, c4 := f.cols[0], f.cols[1], f.cols[2], f.cols[3]
	f.registry.runPar(pool, &f.plan, func(e Entity) {
		fn(e, (*T1)(c1.get(e)), (*T2)(c2.get(e)), (*T3)(c3.get(e)), (*T4)(c4.get(e)))
	})
}

// With calls fn for e if it matches, and reports whether it did.
func (f *Filter4[T1, T2, T3, T4]) With(e Entity, fn func(*T1, *T2, *T3, *T4)) bool {
	if !f.has(e) {
		return false
	}
	fn((*T1)(f.cols[0].get(e)), (*T2)(f.cols[1].get(e)), (*T3)(f.cols[2].get(e)), (*T4)(f.cols[3].get(e)))
	return true
}
