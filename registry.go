// Package sparsecs implements an in-process entity/component store and query
// engine built around sparse sets.
//
// Features:
//   - One densely packed column per component type, with O(1) add, remove
//     and lookup by entity through a sparse/dense index.
//   - Registry-local component keys; no global state.
//   - Queries that join columns starting from the smallest required one,
//     either through typed filters or by inspecting a callback's parameters.
//   - A fixed worker pool that splits a query into contiguous ranges.
package sparsecs

import (
	"iter"
	"math"
	"reflect"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config fixes the size of a Registry for its whole lifetime.
type Config struct {
	// Name identifies the registry in logs and metrics.
	Name string `mapstructure:"name" json:"name"`
	// MaxEntities bounds both the number of live entities and every column.
	MaxEntities int `mapstructure:"max_entities" json:"max_entities"`
	// MaxComponentTypes bounds the number of distinct component types.
	MaxComponentTypes int `mapstructure:"max_component_types" json:"max_component_types"`
}

// DefaultConfig returns a Config sized for a mid-sized simulation.
func DefaultConfig() Config {
	return Config{
		Name:              "registry",
		MaxEntities:       65536,
		MaxComponentTypes: 64,
	}
}

// Validate checks that the config describes a usable registry.
func (c Config) Validate() error {
	if c.MaxEntities <= 0 || uint64(c.MaxEntities) >= math.MaxUint32 {
		return eris.Wrapf(ErrInvalidConfig, "max entities must be in [1, %d), got %d", uint32(math.MaxUint32), c.MaxEntities)
	}
	if c.MaxComponentTypes <= 0 || c.MaxComponentTypes > MaxComponentTypes {
		return eris.Wrapf(ErrInvalidConfig, "max component types must be in [1, %d], got %d", MaxComponentTypes, c.MaxComponentTypes)
	}
	return nil
}

// Option customises a Registry at construction.
type Option func(*Registry)

// WithLogger sets the logger used for registry diagnostics. The default is
// the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry stores entities and their components. It is not safe for
// concurrent use, except that the body of a parallel query may touch the
// components of the entities in its own chunk.
type Registry struct {
	logger     zerolog.Logger
	entities   entityDirectory
	components componentDirectory
	signatures map[signatureKey]*signature
	resources  resourceSet
	events     eventBus
	name       string
	queryDepth atomic.Int32
}

// NewRegistry creates a Registry sized by cfg.
//
// Parameters:
//   - cfg: The registry's name and capacities.
//   - opts: Optional settings such as WithLogger.
//
// Returns:
//   - The new Registry, or an error wrapping ErrInvalidConfig.
func NewRegistry(cfg Config, opts ...Option) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		logger:     log.Logger,
		name:       cfg.Name,
		entities:   newEntityDirectory(cfg.MaxEntities),
		components: newComponentDirectory(cfg.MaxComponentTypes, cfg.MaxEntities),
		signatures: make(map[signatureKey]*signature),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("registry", r.name).Logger()
	return r, nil
}

// Name returns the registry's display name.
func (r *Registry) Name() string {
	return r.name
}

// Capacity returns the maximum number of live entities.
func (r *Registry) Capacity() int {
	return int(r.entities.capacity)
}

// Len returns the number of live entities.
func (r *Registry) Len() int {
	return r.entities.len()
}

// CreateEntity creates an entity with no components. Destroyed ids are
// reused most-recently-destroyed first.
//
// Returns:
//   - The new Entity, or Null and ErrEntityCapacity when the registry is full.
func (r *Registry) CreateEntity() (Entity, error) {
	e := r.entities.allocate()
	if e == Null {
		r.logger.Warn().Int("capacity", r.Capacity()).Msg("entity capacity exhausted")
		return Null, eris.Wrapf(ErrEntityCapacity, "registry %q holds %d entities", r.name, r.Capacity())
	}
	publish(&r.events, EntityCreated{Entity: e})
	return e, nil
}

// CreateEntityWith creates an entity and attaches one component per value.
// Each value's dynamic type is the component type.
func (r *Registry) CreateEntityWith(values ...any) (Entity, error) {
	e, err := r.CreateEntity()
	if err != nil {
		return Null, err
	}
	for _, v := range values {
		if v == nil {
			r.Destroy(e)
			panic(eris.New("sparsecs: nil component value"))
		}
		t := reflect.TypeOf(v)
		c := r.components.lookup(t)
		if c == nil {
			if c, err = r.createColumn(t, newReflectOps(t)); err != nil {
				r.Destroy(e)
				return Null, err
			}
		}
		p := c.prepare(e)
		reflect.NewAt(t, p).Elem().Set(reflect.ValueOf(v))
		c.constructed(e, p)
	}
	return e, nil
}

// Alive reports whether e is a live entity of this registry.
func (r *Registry) Alive(e Entity) bool {
	return r.entities.isAlive(e)
}

// Destroy erases every component of e, then releases its id. e must be
// alive.
func (r *Registry) Destroy(e Entity) {
	r.mustBeAlive(e)
	publish(&r.events, EntityDestroyed{Entity: e})
	r.components.each(func(c *column) bool {
		c.erase(e)
		return true
	})
	r.entities.release(e)
}

// Clone creates a new entity holding a copy of every component that from
// has. Copies go through Cloner when the component implements it.
func (r *Registry) Clone(from Entity) (Entity, error) {
	r.mustBeAlive(from)
	r.mustBeCopyable(from)
	to, err := r.CreateEntity()
	if err != nil {
		return Null, err
	}
	r.cloneInto(from, to)
	return to, nil
}

// CloneInto copies every component of from onto to. Components that to has
// and from lacks are left in place.
func (r *Registry) CloneInto(from, to Entity) {
	r.mustBeAlive(from)
	r.mustBeAlive(to)
	r.mustBeCopyable(from)
	r.cloneInto(from, to)
}

// mustBeCopyable panics with ErrUncopyable if from holds a component that
// cannot be copied, before anything is written.
func (r *Registry) mustBeCopyable(from Entity) {
	r.components.each(func(c *column) bool {
		if c.noCopy && c.has(from) {
			panic(eris.Wrapf(ErrUncopyable, "clone entity %d: %s", from, c.info.Name))
		}
		return true
	})
}

func (r *Registry) cloneInto(from, to Entity) {
	r.components.each(func(c *column) bool {
		if c.has(from) {
			c.copyTo(from, to)
		}
		return true
	})
}

// Clear destroys every component of every entity, firing on-destroy hooks,
// and forgets all entity ids. Columns and hooks stay registered.
func (r *Registry) Clear() {
	r.components.each(func(c *column) bool {
		c.clear()
		return true
	})
	r.entities.reset()
	r.logger.Debug().Msg("registry cleared")
}

// Entities returns an iterator over the live entities in dense order. The
// registry must not be structurally modified while iterating.
func (r *Registry) Entities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for _, e := range r.entities.dense {
			if !yield(e) {
				return
			}
		}
	}
}

// Columns returns an iterator over every existing column, yielding the
// component's TypeInfo and its occupied count, in key order.
func (r *Registry) Columns() iter.Seq2[TypeInfo, int] {
	return func(yield func(TypeInfo, int) bool) {
		r.components.each(func(c *column) bool {
			return yield(c.info, c.len())
		})
	}
}

// LogComponents writes the component directory to the registry logger.
func (r *Registry) LogComponents(level zerolog.Level) {
	arr := zerolog.Arr()
	r.components.each(func(c *column) bool {
		arr = arr.Dict(zerolog.Dict().
			Uint8("component_key", uint8(c.info.Key)).
			Str("component_name", c.info.Name).
			Int("entities", c.len()))
		return true
	})
	r.logger.WithLevel(level).
		Int("total_components", r.components.count()).
		Int("total_entities", r.Len()).
		Array("components", arr).
		Send()
}

func (r *Registry) mustBeAlive(e Entity) {
	if !r.entities.isAlive(e) {
		panic(eris.Wrapf(ErrInvalidEntity, "entity %d in registry %q", e, r.name))
	}
}

func (r *Registry) createColumn(t reflect.Type, ops componentOps) (*column, error) {
	c, err := r.components.create(t, ops)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().
		Str("component", c.info.Name).
		Uint8("key", uint8(c.info.Key)).
		Uint64("size", uint64(c.info.Size)).
		Msg("column created")
	return c, nil
}

// storageOf returns T's column, creating it on first access. Running out of
// component keys here is a programmer error; use Register to check for it.
func storageOf[T any](r *Registry) *column {
	t := reflect.TypeFor[T]()
	if c := r.components.lookup(t); c != nil {
		return c
	}
	c, err := r.createColumn(t, newTypedOps[T]())
	if err != nil {
		panic(err)
	}
	return c
}
