package sparsecs

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryValidatesConfig(t *testing.T) {
	null := uint64(Null)
	for name, cfg := range map[string]Config{
		"no entities":       {MaxEntities: 0, MaxComponentTypes: 1},
		"null entity":       {MaxEntities: int(null), MaxComponentTypes: 1},
		"no types":          {MaxEntities: 1, MaxComponentTypes: 0},
		"too many types":    {MaxEntities: 1, MaxComponentTypes: MaxComponentTypes + 1},
		"negative entities": {MaxEntities: -3, MaxComponentTypes: 1},
	} {
		t.Run(name, func(t *testing.T) {
			r, err := NewRegistry(cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, r)
		})
	}

	r, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().MaxEntities, r.Capacity())
	assert.Equal(t, "registry", r.Name())
}

func TestComponentKeysAreRegistryLocal(t *testing.T) {
	r1 := newTestRegistry(t, 2)
	r2 := newTestRegistry(t, 2)
	Ensure[Position](r1)
	Ensure[Velocity](r1)
	Ensure[Velocity](r2)

	assert.Equal(t, ComponentKey(1), Key[Velocity](r1))
	assert.Equal(t, ComponentKey(0), Key[Velocity](r2))
	assert.Equal(t, "sparsecs.Velocity", Info[Velocity](r2).Name)
	assert.Equal(t, uintptr(8), Info[Velocity](r2).Size)
}

// go test -run ^TestComponentTypeLimit$ . -count 1
func TestComponentTypeLimit(t *testing.T) {
	r, err := NewRegistry(Config{Name: "limit", MaxEntities: 4, MaxComponentTypes: 2})
	require.NoError(t, err)

	_, err = Register[Position](r)
	require.NoError(t, err)
	k, err := Register[Velocity](r)
	require.NoError(t, err)
	again, err := Register[Velocity](r)
	require.NoError(t, err)
	assert.Equal(t, k, again)

	_, err = Register[Label](r)
	require.ErrorIs(t, err, ErrComponentTypeLimit)
	requirePanicsWith(t, ErrComponentTypeLimit, func() { Ensure[Health](r) })

	e := mustCreate(t, r)
	_, err = r.CreateEntityWith(Position{}, Health{})
	require.ErrorIs(t, err, ErrComponentTypeLimit)
	assert.Equal(t, 1, r.Len(), "failed CreateEntityWith does not leak an entity")
	assert.True(t, r.Alive(e))
}

func TestCreateEntityWith(t *testing.T) {
	r := newTestRegistry(t, 4)
	var constructed []Entity
	OnConstruct(r, func(e Entity, l *Label) {
		constructed = append(constructed, e)
	})

	e, err := r.CreateEntityWith(Position{X: 1}, Label{Name: "a"}, Velocity{Y: 2})
	require.NoError(t, err)
	assert.Equal(t, Position{X: 1}, *Get[Position](r, e))
	assert.Equal(t, "a", Get[Label](r, e).Name)
	assert.Equal(t, float32(2), Get[Velocity](r, e).Y)
	assert.Equal(t, []Entity{e}, constructed)

	// A type first seen here gets a column usable by typed accessors.
	e2, err := r.CreateEntityWith(Health{Current: 7})
	require.NoError(t, err)
	Get[Health](r, e2).Current++
	assert.Equal(t, 8, Get[Health](r, e2).Current)

	requirePanicsWith(t, ErrInvalidEntity, func() { r.Destroy(Entity(3)) })
	assert.Panics(t, func() { _, _ = r.CreateEntityWith(nil) })
	assert.Equal(t, 2, r.Len())
}

// go test -run ^TestClone$ . -count 1
func TestClone(t *testing.T) {
	r := newTestRegistry(t, 8)
	from := mustCreate(t, r)
	Emplace(r, from, Position{X: 1, Y: 2})
	Emplace(r, from, Label{Name: "orc"})
	Emplace(r, from, Inventory{Items: []string{"axe"}})
	Ensure[Velocity](r)

	to, err := r.Clone(from)
	require.NoError(t, err)
	assert.NotEqual(t, from, to)

	var fromInfo, toInfo []TypeInfo
	r.QueryInfoWith(from, func(infos []TypeInfo) { fromInfo = append(fromInfo, infos...) })
	r.QueryInfoWith(to, func(infos []TypeInfo) { toInfo = append(toInfo, infos...) })
	assert.Equal(t, fromInfo, toInfo, "clone holds exactly the source's component types")
	assert.Len(t, toInfo, 3)

	assert.Equal(t, *Get[Position](r, from), *Get[Position](r, to))
	assert.Equal(t, *Get[Label](r, from), *Get[Label](r, to))
	Get[Inventory](r, to).Items[0] = "bow"
	assert.Equal(t, "axe", Get[Inventory](r, from).Items[0])
}

func TestCloneInto(t *testing.T) {
	r := newTestRegistry(t, 4)
	from, to := mustCreate(t, r), mustCreate(t, r)
	Emplace(r, from, Position{X: 1})
	Emplace(r, to, Position{X: 9})
	Emplace(r, to, Velocity{X: 3})

	r.CloneInto(from, to)
	assert.Equal(t, float32(1), Get[Position](r, to).X)
	assert.True(t, Has[Velocity](r, to), "components the source lacks are kept")
}

func TestCloneCapacity(t *testing.T) {
	r := newTestRegistry(t, 1)
	e := mustCreate(t, r)
	_, err := r.Clone(e)
	require.ErrorIs(t, err, ErrEntityCapacity)
}

func TestDestroyErasesEveryColumn(t *testing.T) {
	r := newTestRegistry(t, 4)
	a, b := mustCreate(t, r), mustCreate(t, r)
	Emplace(r, a, Position{})
	Emplace(r, a, Label{Name: "x"})
	Emplace(r, b, Position{})

	var destroyed []string
	OnDestroy(r, func(e Entity, l *Label) { destroyed = append(destroyed, l.Name) })
	r.Destroy(a)

	assert.Equal(t, []string{"x"}, destroyed)
	assert.Equal(t, []Entity{b}, denseOf[Position](r))
	assert.Empty(t, denseOf[Label](r))
}

func TestClear(t *testing.T) {
	r := newTestRegistry(t, 4)
	destroyed := 0
	OnDestroy(r, func(Entity, *Position) { destroyed++ })
	for range 3 {
		e := mustCreate(t, r)
		Emplace(r, e, Position{})
	}

	r.Clear()
	assert.Equal(t, 3, destroyed)
	assert.Zero(t, r.Len())
	assert.Empty(t, denseOf[Position](r))

	e := mustCreate(t, r)
	assert.Equal(t, Entity(0), e, "ids restart after Clear")
	Emplace(r, e, Position{})
	Erase[Position](r, e)
	assert.Equal(t, 4, destroyed, "hooks survive Clear")
}

func TestColumnsIterator(t *testing.T) {
	r := newTestRegistry(t, 4)
	e := mustCreate(t, r)
	Emplace(r, e, Position{})
	Emplace(r, e, Velocity{})
	Erase[Velocity](r, e)

	got := map[string]int{}
	for info, n := range r.Columns() {
		got[info.Name] = n
	}
	assert.Equal(t, map[string]int{"sparsecs.Position": 1, "sparsecs.Velocity": 0}, got)
}

func TestLogComponents(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRegistry(Config{Name: "log", MaxEntities: 4, MaxComponentTypes: 4}, WithLogger(zerolog.New(&buf)))
	require.NoError(t, err)
	e := mustCreate(t, r)
	Emplace(r, e, Position{})
	buf.Reset()

	r.LogComponents(zerolog.InfoLevel)

	var entry struct {
		Registry   string `json:"registry"`
		Total      int    `json:"total_components"`
		Entities   int    `json:"total_entities"`
		Components []struct {
			Key      uint8  `json:"component_key"`
			Name     string `json:"component_name"`
			Entities int    `json:"entities"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "log", entry.Registry)
	assert.Equal(t, 1, entry.Total)
	assert.Equal(t, 1, entry.Entities)
	require.Len(t, entry.Components, 1)
	assert.Equal(t, "sparsecs.Position", entry.Components[0].Name)
	assert.Equal(t, 1, entry.Components[0].Entities)
}

func TestTypeInfoJSON(t *testing.T) {
	r := newTestRegistry(t, 2)
	b, err := json.Marshal(Info[Health](r))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"sparsecs.Health","size":16,"align":8,"key":0}`, string(b))
}
