package sparsecs

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -run ^TestQueryScenario$ . -count 1
func TestQueryScenario(t *testing.T) {
	r := newTestRegistry(t, 4)
	e1, e2, e3, e4 := mustCreate(t, r), mustCreate(t, r), mustCreate(t, r), mustCreate(t, r)
	for _, e := range []Entity{e1, e2} {
		Emplace(r, e, Position{})
		Emplace(r, e, Velocity{X: 1, Y: 1})
	}
	Emplace(r, e3, Label{Name: "x"})

	var visited []Entity
	r.QuerySelf(func(e Entity, p *Position, v *Velocity, l Optional[Label]) {
		visited = append(visited, e)
		p.X += v.X
		assert.False(t, l.Ok())
		assert.Nil(t, l.Get())
	})

	assert.ElementsMatch(t, []Entity{e1, e2}, visited)
	assert.Equal(t, float32(1), Get[Position](r, e1).X)
	assert.Equal(t, float32(1), Get[Position](r, e2).X)
	assert.False(t, Has[Position](r, e3))
	assert.False(t, Has[Position](r, e4))

	r.Destroy(e2)
	again := mustCreate(t, r)
	assert.Equal(t, e2, again)
	assert.False(t, Has[Position](r, again))
}

// go test -run ^TestQueryJoinCorrectness$ . -count 1
func TestQueryJoinCorrectness(t *testing.T) {
	const n = 500
	r := newTestRegistry(t, n)
	rng := rand.New(rand.NewPCG(7, 11))
	want := map[Entity]bool{}
	hasLabel := map[Entity]bool{}
	for i := range n {
		e := mustCreate(t, r)
		a, b, c := rng.IntN(2) == 0, rng.IntN(3) == 0, rng.IntN(2) == 0
		if a {
			Emplace(r, e, Position{X: float32(i)})
		}
		if b {
			Emplace(r, e, Velocity{X: float32(i)})
		}
		if c {
			Emplace(r, e, Label{Name: "l"})
			hasLabel[e] = true
		}
		if a && b {
			want[e] = true
		}
	}
	// Churn so that dense order no longer follows creation order.
	for e := Entity(0); e < n; e += 7 {
		if Has[Position](r, e) {
			Erase[Position](r, e)
			Emplace(r, e, Position{X: float32(e)})
		}
	}

	got := map[Entity]bool{}
	r.QuerySelf(func(e Entity, p *Position, v *Velocity, l Optional[Label]) {
		require.False(t, got[e], "entity %d visited twice", e)
		got[e] = true
		assert.Equal(t, hasLabel[e], l.Ok(), "entity %d", e)
		assert.Equal(t, p.X, v.X)
	})
	assert.Equal(t, want, got)
}

func TestQueryDriverIsSmallestColumn(t *testing.T) {
	r := newTestRegistry(t, 16)
	for i := range 10 {
		e := mustCreate(t, r)
		Emplace(r, e, Position{})
		if i < 3 {
			Emplace(r, e, Velocity{})
		}
	}
	p := &plan{
		entities: &r.entities,
		required: []*column{storageOf[Position](r), storageOf[Velocity](r)},
	}
	p.resolve()
	assert.Same(t, storageOf[Velocity](r), p.driver)
	assert.Equal(t, 3, p.size())

	// Ties keep the first declared column.
	p.required = []*column{storageOf[Velocity](r), storageOf[Velocity](r)}
	p.resolve()
	assert.Same(t, p.required[0], p.driver)
}

func TestQueryWithoutRequiredVisitsEveryEntity(t *testing.T) {
	r := newTestRegistry(t, 8)
	for i := range 5 {
		e := mustCreate(t, r)
		if i%2 == 0 {
			Emplace(r, e, Label{Name: "even"})
		}
	}
	r.Destroy(1)

	labels, total := 0, 0
	r.Query(func(l Optional[Label]) {
		total++
		if l.Ok() {
			labels++
		}
	})
	assert.Equal(t, 4, total)
	assert.Equal(t, 3, labels)
}

func TestQueryPassThrough(t *testing.T) {
	r := newTestRegistry(t, 4)
	e := mustCreate(t, r)
	Emplace(r, e, Position{X: 1})
	Emplace(r, e, Velocity{X: 2})

	type frame struct{ N int }
	var sum float32
	r.Query(func(dt float32, f *frame, p *Position, v *Velocity) {
		p.X += v.X * dt
		f.N++
		sum += p.X
	}, float32(0.5), &frame{})
	assert.Equal(t, float32(2), Get[Position](r, e).X)
	assert.Equal(t, float32(2), sum)

	var gotE Entity = Null
	var gotName string
	r.QuerySelf(func(self Entity, name string, p *Position) {
		gotE, gotName = self, name
	}, "hello")
	assert.Equal(t, e, gotE)
	assert.Equal(t, "hello", gotName)

	// A nil pass-through argument becomes the parameter's zero value.
	r.Query(func(f *frame, p *Position) {
		assert.Nil(t, f)
	}, nil)
}

func TestQueryWith(t *testing.T) {
	r := newTestRegistry(t, 4)
	a, b := mustCreate(t, r), mustCreate(t, r)
	Emplace(r, a, Position{})
	Emplace(r, a, Velocity{X: 4})
	Emplace(r, b, Position{})

	calls := 0
	move := func(scale float32, p *Position, v *Velocity) {
		calls++
		p.X += v.X * scale
	}
	r.QueryWith(a, move, float32(2))
	r.QueryWith(b, move, float32(2))
	assert.Equal(t, 1, calls)
	assert.Equal(t, float32(8), Get[Position](r, a).X)

	requirePanicsWith(t, ErrInvalidEntity, func() { r.QueryWith(Entity(3), move, float32(1)) })
}

func TestQueryBadShapes(t *testing.T) {
	r := newTestRegistry(t, 4)
	mustCreate(t, r)
	for name, fn := range map[string]func(){
		"not a func":        func() { r.Query(42) },
		"nil":               func() { r.Query(nil) },
		"returns":           func() { r.Query(func(*Position) bool { return true }) },
		"variadic":          func() { r.Query(func(...*Position) {}) },
		"value param":       func() { r.Query(func(Position) {}) },
		"missing self":      func() { r.QuerySelf(func(*Position) {}) },
		"too few params":    func() { r.Query(func(int) {}, 1, 2) },
		"wrong pass type":   func() { r.Query(func(int, *Position) {}, "x") },
		"bad parallel func": func() { r.QueryPar(NewWorkerPool(0), func(Velocity) {}) },
	} {
		t.Run(name, func(t *testing.T) {
			requirePanicsWith(t, ErrQueryShape, fn)
		})
	}
}

func TestQuerySignatureCache(t *testing.T) {
	r := newTestRegistry(t, 4)
	fn := func(p *Position) {}
	r.Query(fn)
	r.Query(fn)
	r.QuerySelf(func(Entity, *Position) {})
	assert.Len(t, r.signatures, 2)
}

func TestQueryCreatesColumnsForUnseenTypes(t *testing.T) {
	r := newTestRegistry(t, 4)
	e := mustCreate(t, r)
	r.Query(func(h *Health) { t.Fatal("no entity has Health") })
	Emplace(r, e, Health{Current: 1})
	r.Query(func(h *Health) { h.Current++ })
	assert.Equal(t, 2, Get[Health](r, e).Current)
}

func TestQueryInfo(t *testing.T) {
	r := newTestRegistry(t, 4)
	a, b := mustCreate(t, r), mustCreate(t, r)
	Emplace(r, a, Position{})
	Emplace(r, a, Label{})
	Emplace(r, b, Velocity{})

	got := map[Entity][]string{}
	r.QueryInfo(func(e Entity, infos []TypeInfo) {
		for _, info := range infos {
			got[e] = append(got[e], info.Name)
		}
	})
	assert.Equal(t, map[Entity][]string{
		a: {"sparsecs.Position", "sparsecs.Label"},
		b: {"sparsecs.Velocity"},
	}, got)

	var keys []ComponentKey
	r.QueryInfoWith(a, func(infos []TypeInfo) {
		for _, info := range infos {
			keys = append(keys, info.Key)
		}
	})
	assert.True(t, slices.IsSorted(keys))
	assert.Equal(t, []ComponentKey{Key[Position](r), Key[Label](r)}, keys)
}

func TestIterating(t *testing.T) {
	r := newTestRegistry(t, 4)
	e := mustCreate(t, r)
	Emplace(r, e, Position{})
	assert.False(t, r.Iterating())
	r.Query(func(*Position) { assert.True(t, r.Iterating()) })
	NewFilter[Position](r).Each(func(Entity, *Position) { assert.True(t, r.Iterating()) })
	assert.False(t, r.Iterating())

	func() {
		defer func() { _ = recover() }()
		r.Query(func(*Position) { panic("boom") })
	}()
	assert.False(t, r.Iterating(), "a panicking body still ends the iteration")
}

func TestQuerySelfWith(t *testing.T) {
	r := newTestRegistry(t, 4)
	a, b := mustCreate(t, r), mustCreate(t, r)
	Emplace(r, a, Position{X: 1})
	Emplace(r, b, Velocity{})

	var got []Entity
	tag := func(e Entity, label string, p *Position) {
		got = append(got, e)
		assert.Equal(t, "moved", label)
		p.X = 7
	}
	r.QuerySelfWith(a, tag, "moved")
	r.QuerySelfWith(b, tag, "moved")
	assert.Equal(t, []Entity{a}, got)
	assert.Equal(t, float32(7), Get[Position](r, a).X)

	requirePanicsWith(t, ErrQueryShape, func() {
		r.QuerySelfWith(a, func(p *Position) {})
	})
}
