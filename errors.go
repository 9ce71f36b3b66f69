package sparsecs

import "github.com/rotisserie/eris"

// Recoverable conditions. These are returned, never panicked, by the
// operations that can hit them at runtime.
var (
	// ErrEntityCapacity is returned when every entity id below the registry's
	// MaxEntities is alive.
	ErrEntityCapacity = eris.New("sparsecs: entity capacity exhausted")
	// ErrComponentTypeLimit is returned by Register when the registry already
	// tracks MaxComponentTypes distinct component types.
	ErrComponentTypeLimit = eris.New("sparsecs: component type limit reached")
	// ErrInvalidConfig is returned by NewRegistry for an unusable Config.
	ErrInvalidConfig = eris.New("sparsecs: invalid config")
)

// Programmer errors. The registry panics with one of these (wrapped with
// context) when a precondition is violated.
var (
	ErrInvalidEntity     = eris.New("sparsecs: entity is not alive")
	ErrComponentMissing  = eris.New("sparsecs: component not present")
	ErrCapacityExceeded  = eris.New("sparsecs: column capacity exceeded")
	ErrUncopyable        = eris.New("sparsecs: component type cannot be copied")
	ErrQueryShape        = eris.New("sparsecs: unsupported query callback")
	ErrPoolBusy          = eris.New("sparsecs: worker pool already running a job")
	ErrPoolClosed        = eris.New("sparsecs: worker pool is closed")
	ErrFlushDuringQuery  = eris.New("sparsecs: command buffer flushed during query")
	ErrDuplicateResource = eris.New("sparsecs: resource already present")
)

func errUnknownKey(k ComponentKey) error {
	return eris.Wrapf(ErrComponentMissing, "unknown component key %d", k)
}
