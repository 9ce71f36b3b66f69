package sparsecs

import "github.com/rotisserie/eris"

// Command is a deferred registry mutation.
type Command func(r *Registry)

// CommandBuffer records structural changes requested while a query is
// iterating and applies them later, once iteration is over.
//
// Example:
//
//	cb := r.NewCommandBuffer()
//	r.QuerySelf(func(e sparsecs.Entity, h *Health) {
//	    if h.HP <= 0 {
//	        cb.Destroy(e)
//	    }
//	})
//	cb.Flush()
type CommandBuffer struct {
	registry *Registry
	commands []Command
}

// NewCommandBuffer creates an empty CommandBuffer bound to r.
func (r *Registry) NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{registry: r}
}

// Push records cmd.
func (b *CommandBuffer) Push(cmd Command) {
	if cmd == nil {
		return
	}
	b.commands = append(b.commands, cmd)
}

// Destroy records the destruction of e. Entities that are already dead when
// the buffer is flushed are skipped.
func (b *CommandBuffer) Destroy(e Entity) {
	b.Push(func(r *Registry) {
		if r.Alive(e) {
			r.Destroy(e)
		}
	})
}

// Create records the creation of an entity, handing it to init once it
// exists. Creation failures are logged and the command is dropped.
func (b *CommandBuffer) Create(init func(r *Registry, e Entity)) {
	b.Push(func(r *Registry) {
		e, err := r.CreateEntity()
		if err != nil {
			r.logger.Error().Err(err).Msg("deferred create dropped")
			return
		}
		if init != nil {
			init(r, e)
		}
	})
}

// DeferEmplace records Emplace[T](r, e, val). It is skipped if e is dead at
// flush time.
func DeferEmplace[T any](b *CommandBuffer, e Entity, val T) {
	b.Push(func(r *Registry) {
		if r.Alive(e) {
			Emplace(r, e, val)
		}
	})
}

// DeferErase records Erase[T](r, e). It is skipped if e is dead at flush
// time.
func DeferErase[T any](b *CommandBuffer, e Entity) {
	b.Push(func(r *Registry) {
		if r.Alive(e) {
			Erase[T](r, e)
		}
	})
}

// Len returns the number of pending commands.
func (b *CommandBuffer) Len() int {
	return len(b.commands)
}

// Reset discards every pending command.
func (b *CommandBuffer) Reset() {
	clear(b.commands)
	b.commands = b.commands[:0]
}

// Flush applies the pending commands in the order they were recorded.
// Commands recorded by a command during Flush run in the same Flush.
// Flushing while a query of the registry is iterating panics with
// ErrFlushDuringQuery.
func (b *CommandBuffer) Flush() {
	b.mustBeIdle()
	for i := 0; i < len(b.commands); i++ {
		b.commands[i](b.registry)
	}
	b.Reset()
}

// FlushReverse applies the pending commands most recent first.
func (b *CommandBuffer) FlushReverse() {
	b.mustBeIdle()
	for n := len(b.commands); n > 0; n = len(b.commands) {
		cmd := b.commands[n-1]
		b.commands[n-1] = nil
		b.commands = b.commands[:n-1]
		cmd(b.registry)
	}
}

func (b *CommandBuffer) mustBeIdle() {
	if b.registry.Iterating() {
		panic(eris.Wrapf(ErrFlushDuringQuery, "%d pending commands", len(b.commands)))
	}
}
