package sparsecs

// Builder creates entities that start with a T component. It holds T's
// column so repeated creation skips the type lookup.
type Builder[T any] struct {
	registry *Registry
	col      *column
}

// NewBuilder creates a Builder for T, creating T's column if needed.
func NewBuilder[T any](r *Registry) *Builder[T] {
	return &Builder[T]{registry: r, col: storageOf[T](r)}
}

// NewEntity creates an entity holding val.
func (b *Builder[T]) NewEntity(val T) (Entity, error) {
	e, err := b.registry.CreateEntity()
	if err != nil {
		return Null, err
	}
	emplaceInto(b.col, e, val)
	return e, nil
}

// NewEntities creates count entities, each holding a copy of val. On
// ErrEntityCapacity the entities created so far are returned with the error.
func (b *Builder[T]) NewEntities(count int, val T) ([]Entity, error) {
	out := make([]Entity, 0, count)
	for range count {
		e, err := b.NewEntity(val)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Get returns e's T, or nil if e does not have one.
func (b *Builder[T]) Get(e Entity) *T {
	b.registry.mustBeAlive(e)
	return (*T)(b.col.getIfHas(e))
}

// Set emplaces val on e.
func (b *Builder[T]) Set(e Entity, val T) *T {
	b.registry.mustBeAlive(e)
	return emplaceInto(b.col, e, val)
}

// Builder2 creates entities that start with T1 and T2 components.
type Builder2[T1 any, T2 any] struct {
	registry *Registry
	c1, c2   *column
}

// NewBuilder2 creates a Builder2, creating the columns if needed.
func NewBuilder2[T1 any, T2 any](r *Registry) *Builder2[T1, T2] {
	return &Builder2[T1, T2]{registry: r, c1: storageOf[T1](r), c2: storageOf[T2](r)}
}

// NewEntity creates an entity holding v1 and v2.
func (b *Builder2[T1, T2]) NewEntity(v1 T1, v2 T2) (Entity, error) {
	e, err := b.registry.CreateEntity()
	if err != nil {
		return Null, err
	}
	emplaceInto(b.c1, e, v1)
	emplaceInto(b.c2, e, v2)
	return e, nil
}

// NewEntities creates count entities holding copies of v1 and v2.
func (b *Builder2[T1, T2]) NewEntities(count int, v1 T1, v2 T2) ([]Entity, error) {
	out := make([]Entity, 0, count)
	for range count {
		e, err := b.NewEntity(v1, v2)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Get returns e's components; either may be nil.
func (b *Builder2[T1, T2]) Get(e Entity) (*T1, *T2) {
	b.registry.mustBeAlive(e)
	return (*T1)(b.c1.getIfHas(e)), (*T2)(b.c2.getIfHas(e))
}

// Builder3 creates entities that start with T1, T2 and T3 components.
type Builder3[T1 any, T2 any, T3 any] struct {
	registry   *Registry
	c1, c2, c3 *column
}

// NewBuilder3 creates a Builder3, creating the columns if needed.
func NewBuilder3[T1 any, T2 any, T3 any](r *Registry) *Builder3[T1, T2, T3] {
	return &Builder3[T1, T2, T3]{
		registry: r,
		c1:       storageOf[T1](r),
		c2:       storageOf[T2](r),
		c3:       storageOf[T3](r),
	}
}

// NewEntity creates an entity holding v1, v2 and v3.
func (b *Builder3[T1, T2, T3]) NewEntity(v1 T1, v2 T2, v3 T3) (Entity, error) {
	e, err := b.registry.CreateEntity()
	if err != nil {
		return Null, err
	}
	emplaceInto(b.c1, e, v1)
	emplaceInto(b.c2, e, v2)
	emplaceInto(b.c3, e, v3)
	return e, nil
}

// NewEntities creates count entities holding copies of v1, v2 and v3.
func (b *Builder3[T1, T2, T3]) NewEntities(count int, v1 T1, v2 T2, v3 T3) ([]Entity, error) {
	out := make([]Entity, 0, count)
	for range count {
		e, err := b.NewEntity(v1, v2, v3)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Get returns e's components; any may be nil.
func (b *Builder3[T1, T2, T3]) Get(e Entity) (*T1, *T2, *T3) {
	b.registry.mustBeAlive(e)
	return (*T1)(b.c1.getIfHas(e)), (*T2)(b.c2.getIfHas(e)), (*T3)(b.c3.getIfHas(e))
}
