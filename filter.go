package sparsecs

// Filter provides a fast iterator over all entities that have a component
// of type T. It walks T's column in dense order, so the values it visits are
// contiguous in memory.
//
// Filters for several components (Filter2, Filter3, Filter4) walk the
// smallest of their columns and skip entities missing any of the others.
type Filter[T any] struct {
	iteration
	registry *Registry
	col      *column
	pos      int
	end      int
}

// NewFilter creates a Filter over entities with a T component, creating T's
// column if needed.
//
// Parameters:
//   - r: The Registry to query.
//
// Returns:
//   - A pointer to the newly created Filter[T].
func NewFilter[T any](r *Registry) *Filter[T] {
	f := &Filter[T]{
		iteration: iteration{depth: &r.queryDepth},
		registry:  r,
		col:       storageOf[T](r),
	}
	f.Reset()
	return f
}

// Reset rewinds the filter. It must be called before iterating again.
func (f *Filter[T]) Reset() {
	f.leave()
	f.pos = -1
	f.end = f.col.len()
}

// Next advances the filter to the next entity. It returns false once the
// iteration is complete. From the first Next until then, the registry counts
// as iterating and CommandBuffer flushes panic; call Done when leaving a loop
// early.
//
// Example:
//
//	query := sparsecs.NewFilter[Position](r)
//	for query.Next() {
//	    p := query.Get()
//	    // ...
//	}
func (f *Filter[T]) Next() bool {
	if f.pos < 0 {
		f.enter()
	}
	f.pos++
	if f.pos < f.end {
		return true
	}
	f.leave()
	return false
}

// Done ends an iteration that stopped before Next returned false.
func (f *Filter[T]) Done() {
	f.leave()
}

// Entity returns the current entity. Only valid after Next returned true.
func (f *Filter[T]) Entity() Entity {
	return f.col.dense[f.pos]
}

// Get returns the current entity's T. Only valid after Next returned true.
func (f *Filter[T]) Get() *T {
	return (*T)(f.col.at(f.pos))
}

// Len returns the number of entities the filter visits.
func (f *Filter[T]) Len() int {
	return f.col.len()
}

// Each calls fn for every entity with a T.
func (f *Filter[T]) Each(fn func(Entity, *T)) {
	r := f.registry
	r.queryDepth.Add(1)
	defer r.queryDepth.Add(-1)
	c := f.col
	for i, n := 0, c.len(); i < n; i++ {
		fn(c.dense[i], (*T)(c.at(i)))
	}
}

// EachPar is Each fanned out over pool.
func (f *Filter[T]) EachPar(pool *WorkerPool, fn func(Entity, *T)) {
	r := f.registry
	r.queryDepth.Add(1)
	defer r.queryDepth.Add(-1)
	c := f.col
	pool.Run(c.len(), func(start, end int) {
		for i := start; i < end; i++ {
			fn(c.dense[i], (*T)(c.at(i)))
		}
	})
}

// With calls fn for e if it has a T, and reports whether it did.
func (f *Filter[T]) With(e Entity, fn func(*T)) bool {
	f.registry.mustBeAlive(e)
	p := f.col.getIfHas(e)
	if p == nil {
		return false
	}
	fn((*T)(p))
	return true
}

// Lookup gives typed access to an optional component from inside a filter
// loop or any other code holding entities.
type Lookup[T any] struct {
	col *column
}

// NewLookup creates a Lookup for T, creating T's column if needed.
func NewLookup[T any](r *Registry) *Lookup[T] {
	return &Lookup[T]{col: storageOf[T](r)}
}

// Get returns e's T, or nil if e does not have one.
func (l *Lookup[T]) Get(e Entity) *T {
	return (*T)(l.col.getIfHas(e))
}

// Has reports whether e has a T.
func (l *Lookup[T]) Has(e Entity) bool {
	return l.col.has(e)
}
