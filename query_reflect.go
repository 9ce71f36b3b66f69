package sparsecs

import (
	"reflect"
	"unsafe"
)

// Optional is a query callback parameter for a component the entity may or
// may not have. Get returns nil when the entity lacks it.
//
// Example:
//
//	r.Query(func(p *Position, v *Velocity, l sparsecs.Optional[Label]) {
//	    if l.Ok() { ... }
//	})
type Optional[T any] struct {
	ptr *T
}

// Get returns the component, or nil if the entity does not have it.
func (o Optional[T]) Get() *T {
	return o.ptr
}

// Ok reports whether the entity has the component.
func (o Optional[T]) Ok() bool {
	return o.ptr != nil
}

func (Optional[T]) componentType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (Optional[T]) wrap(p unsafe.Pointer) reflect.Value {
	return reflect.ValueOf(Optional[T]{ptr: (*T)(p)})
}

type optionalParam interface {
	componentType() reflect.Type
	wrap(p unsafe.Pointer) reflect.Value
}

var (
	optionalParamType = reflect.TypeFor[optionalParam]()
	entityType        = reflect.TypeFor[Entity]()
)

// param is one component parameter of a query callback.
type param struct {
	component reflect.Type
	wrap      func(unsafe.Pointer) reflect.Value // optional parameters only
	index     int                                // into plan.required or plan.optional
	optional  bool
}

type signatureKey struct {
	fn   reflect.Type
	pass int
	self bool
}

// signature is the classified parameter list of a query callback: an
// optional leading Entity, pass-through parameters, then components.
type signature struct {
	fn       reflect.Type
	params   []param
	required int
	optional int
	pass     int
	self     bool
}

// analyze classifies the parameters of fn. Pointer parameters are required
// components, Optional parameters are optional components.
func analyze(fn reflect.Type, self bool, pass int) (*signature, error) {
	if fn.Kind() != reflect.Func {
		return nil, errShape("expected a func, got %s", fn)
	}
	if fn.IsVariadic() || fn.NumOut() != 0 {
		return nil, errShape("%s: callbacks must be non-variadic and return nothing", fn)
	}
	s := &signature{fn: fn, self: self, pass: pass}
	i := 0
	if self {
		if fn.NumIn() == 0 || fn.In(0) != entityType {
			return nil, errShape("%s: first parameter must be sparsecs.Entity", fn)
		}
		i++
	}
	if fn.NumIn() < i+pass {
		return nil, errShape("%s: %d pass-through arguments but only %d parameters", fn, pass, fn.NumIn()-i)
	}
	i += pass
	for ; i < fn.NumIn(); i++ {
		t := fn.In(i)
		switch {
		case t.Implements(optionalParamType):
			zero := reflect.Zero(t).Interface().(optionalParam)
			s.params = append(s.params, param{
				component: zero.componentType(),
				wrap:      zero.wrap,
				index:     s.optional,
				optional:  true,
			})
			s.optional++
		case t.Kind() == reflect.Pointer:
			s.params = append(s.params, param{component: t.Elem(), index: s.required})
			s.required++
		default:
			return nil, errShape("%s: parameter %d (%s) is neither a component pointer nor Optional", fn, i, t)
		}
	}
	return s, nil
}

func (r *Registry) signatureOf(fn reflect.Type, self bool, pass int) *signature {
	key := signatureKey{fn: fn, self: self, pass: pass}
	if s, ok := r.signatures[key]; ok {
		return s
	}
	s, err := analyze(fn, self, pass)
	if err != nil {
		panic(err)
	}
	r.signatures[key] = s
	return s
}

// columnFor returns t's column, creating it through the reflection factory
// on first use.
func (r *Registry) columnFor(t reflect.Type) *column {
	if c := r.components.lookup(t); c != nil {
		return c
	}
	c, err := r.createColumn(t, newReflectOps(t))
	if err != nil {
		panic(err)
	}
	return c
}

func (r *Registry) planFor(s *signature) *plan {
	p := &plan{
		entities: &r.entities,
		required: make([]*column, s.required),
		optional: make([]*column, s.optional),
	}
	for _, prm := range s.params {
		c := r.columnFor(prm.component)
		if prm.optional {
			p.optional[prm.index] = c
		} else {
			p.required[prm.index] = c
		}
	}
	return p
}

// call holds the argument buffer for invoking one callback. Parallel
// queries use one call per partition.
type call struct {
	sig  *signature
	fn   reflect.Value
	args []reflect.Value
	req  []unsafe.Pointer
	opt  []unsafe.Pointer
}

func newCall(s *signature, fn reflect.Value, pass []any) *call {
	c := &call{
		sig:  s,
		fn:   fn,
		args: make([]reflect.Value, s.fn.NumIn()),
		req:  make([]unsafe.Pointer, s.required),
		opt:  make([]unsafe.Pointer, s.optional),
	}
	base := 0
	if s.self {
		base = 1
	}
	for i, a := range pass {
		want := s.fn.In(base + i)
		if a == nil {
			c.args[base+i] = reflect.Zero(want)
			continue
		}
		v := reflect.ValueOf(a)
		if !v.Type().AssignableTo(want) {
			panic(errShape("%s: pass-through argument %d is %s, want %s", s.fn, i, v.Type(), want))
		}
		c.args[base+i] = v
	}
	return c
}

func (c *call) invoke(p *plan, e Entity) {
	p.fetch(e, c.req, c.opt)
	at := c.sig.pass
	if c.sig.self {
		c.args[0] = reflect.ValueOf(e)
		at++
	}
	for i, prm := range c.sig.params {
		if prm.optional {
			c.args[at+i] = prm.wrap(c.opt[prm.index])
		} else {
			c.args[at+i] = reflect.NewAt(prm.component, c.req[prm.index])
		}
	}
	c.fn.Call(c.args)
}

func (r *Registry) prepareQuery(fn any, self bool, pass []any) (*signature, *plan, reflect.Value) {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() {
		panic(errShape("nil callback"))
	}
	s := r.signatureOf(fv.Type(), self, len(pass))
	return s, r.planFor(s), fv
}

// Query calls fn for every entity that has all of fn's required components.
//
// The parameters of fn are classified as follows: the first len(args)
// parameters receive args verbatim; each remaining parameter must be either
// a pointer *T, a required component, or an Optional[T]. Iteration is driven
// by the required column with the fewest entries; with no required
// components every live entity is visited.
//
// Parameters:
//   - fn: The callback. It must not structurally modify the registry; use a
//     CommandBuffer instead.
//   - args: Pass-through values for fn's leading parameters.
//
// Example:
//
//	r.Query(func(dt float32, p *Position, v *Velocity) {
//	    p.X += v.X * dt
//	}, float32(0.016))
func (r *Registry) Query(fn any, args ...any) {
	s, p, fv := r.prepareQuery(fn, false, args)
	c := newCall(s, fv, args)
	r.run(p, func(e Entity) { c.invoke(p, e) })
}

// QuerySelf is Query with the current Entity passed as fn's first
// parameter, ahead of the pass-through arguments.
func (r *Registry) QuerySelf(fn any, args ...any) {
	s, p, fv := r.prepareQuery(fn, true, args)
	c := newCall(s, fv, args)
	r.run(p, func(e Entity) { c.invoke(p, e) })
}

// QueryWith runs fn against e alone, if e has every required component.
func (r *Registry) QueryWith(e Entity, fn any, args ...any) {
	s, p, fv := r.prepareQuery(fn, false, args)
	c := newCall(s, fv, args)
	r.runOne(p, e, func(e Entity) { c.invoke(p, e) })
}

// QuerySelfWith is QueryWith with e passed as fn's first parameter.
func (r *Registry) QuerySelfWith(e Entity, fn any, args ...any) {
	s, p, fv := r.prepareQuery(fn, true, args)
	c := newCall(s, fv, args)
	r.runOne(p, e, func(e Entity) { c.invoke(p, e) })
}

// QueryPar is Query fanned out over pool. fn runs concurrently for distinct
// entities; anything it shares between entities needs its own
// synchronisation.
func (r *Registry) QueryPar(pool *WorkerPool, fn any, args ...any) {
	s, p, fv := r.prepareQuery(fn, false, args)
	r.queryPar(pool, s, p, fv, args)
}

// QuerySelfPar is QuerySelf fanned out over pool.
func (r *Registry) QuerySelfPar(pool *WorkerPool, fn any, args ...any) {
	s, p, fv := r.prepareQuery(fn, true, args)
	r.queryPar(pool, s, p, fv, args)
}

func (r *Registry) queryPar(pool *WorkerPool, s *signature, p *plan, fv reflect.Value, args []any) {
	calls := make([]*call, pool.Partitions())
	for i := range calls {
		calls[i] = newCall(s, fv, args)
	}
	p.resolve()
	r.queryDepth.Add(1)
	defer r.queryDepth.Add(-1)
	pool.RunPartitioned(p.size(), func(part, start, end int) {
		c := calls[part]
		p.scan(start, end, func(e Entity) { c.invoke(p, e) })
	})
}
