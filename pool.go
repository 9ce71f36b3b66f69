package sparsecs

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// span is a half-open range [start, end) of driver positions.
type span struct {
	start, end int
}

// PoolOption customises a WorkerPool at construction.
type PoolOption func(*WorkerPool)

// WithPoolLogger sets the logger used for pool lifecycle events.
func WithPoolLogger(logger zerolog.Logger) PoolOption {
	return func(p *WorkerPool) {
		p.logger = logger
	}
}

// WithObserver registers fn to be called after every Run with the wall
// time it took and the number of items it covered.
func WithObserver(fn func(elapsed time.Duration, items int)) PoolOption {
	return func(p *WorkerPool) {
		p.observer = fn
	}
}

// WorkerPool runs a job over [0, n) split into contiguous ranges, one per
// worker goroutine plus one for the calling goroutine. Workers are started
// once and reused; each Run costs two barrier crossings and no goroutine
// spawns. A pool runs one job at a time.
type WorkerPool struct {
	logger   zerolog.Logger
	observer func(time.Duration, int)
	barrier  *barrier
	job      func(part, start, end int)
	ranges   []span
	panics   []any // recovered per partition, read after the join
	wg       sync.WaitGroup
	workers  int
	busy     atomic.Bool
	closed   atomic.Bool
	shutdown bool // written before the release crossing only
}

// NewWorkerPool starts a pool with the given number of worker goroutines.
// The calling goroutine always takes a share of the work, so workers may be
// zero, in which case Run executes inline.
//
// Parameters:
//   - workers: Number of background goroutines, usually runtime.NumCPU()-1.
//   - opts: Optional settings such as WithPoolLogger.
//
// Returns:
//   - The started WorkerPool. Call Close to stop it.
func NewWorkerPool(workers int, opts ...PoolOption) *WorkerPool {
	if workers < 0 {
		workers = 0
	}
	p := &WorkerPool{
		logger:  log.Logger,
		workers: workers,
		barrier: newBarrier(workers + 1),
		ranges:  make([]span, workers+1),
		panics:  make([]any, workers+1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wg.Add(workers)
	for i := range workers {
		go p.loop(i)
	}
	p.logger.Debug().Int("workers", workers).Msg("worker pool started")
	return p
}

// Workers returns the number of background goroutines.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// Partitions returns the number of ranges each Run is split into.
func (p *WorkerPool) Partitions() int {
	return p.workers + 1
}

func (p *WorkerPool) loop(i int) {
	defer p.wg.Done()
	for {
		p.barrier.wait()
		if p.shutdown {
			p.barrier.wait()
			return
		}
		p.runPart(i)
		p.barrier.wait()
	}
}

// runPart runs partition i, recovering a panic into its slot so that every
// party still reaches the join.
func (p *WorkerPool) runPart(i int) {
	s := p.ranges[i]
	if s.start >= s.end {
		return
	}
	defer func() {
		if v := recover(); v != nil {
			p.panics[i] = v
		}
	}()
	p.job(i, s.start, s.end)
}

// rethrow re-raises the first recovered partition panic on the caller.
func (p *WorkerPool) rethrow() {
	var first any
	for i, v := range p.panics {
		if v != nil && first == nil {
			first = v
		}
		p.panics[i] = nil
	}
	if first != nil {
		p.logger.Error().Interface("panic", first).Msg("partition panicked")
		panic(first)
	}
}

// Run calls fn once per partition of [0, n), with the partitions covering
// the range exactly once. It returns when every partition has finished.
// Calling Run again before it returns, from fn or from another goroutine,
// panics with ErrPoolBusy.
func (p *WorkerPool) Run(n int, fn func(start, end int)) {
	p.RunPartitioned(n, func(_, start, end int) {
		fn(start, end)
	})
}

// RunPartitioned is Run with the partition index passed to fn. Partition i
// covers [i*(n/P), (i+1)*(n/P)) where P is Partitions(); the last one, run
// by the calling goroutine, also covers the remainder. Empty partitions are
// skipped. A panic in any partition is re-raised on the caller once every
// partition has finished, leaving the pool usable.
func (p *WorkerPool) RunPartitioned(n int, fn func(part, start, end int)) {
	if p.closed.Load() {
		panic(eris.Wrap(ErrPoolClosed, "Run after Close"))
	}
	if !p.busy.CompareAndSwap(false, true) {
		panic(eris.Wrap(ErrPoolBusy, "nested or concurrent Run"))
	}
	defer p.busy.Store(false)
	if n <= 0 {
		return
	}
	start := time.Now()
	if p.workers == 0 {
		fn(0, 0, n)
		p.observe(start, n)
		return
	}
	partition(n, p.ranges)
	p.job = fn
	p.barrier.wait()
	p.runPart(p.workers)
	p.barrier.wait()
	p.job = nil
	p.rethrow()
	p.observe(start, n)
}

func (p *WorkerPool) observe(start time.Time, n int) {
	if p.observer != nil {
		p.observer(time.Since(start), n)
	}
}

// Close stops the worker goroutines and waits for them to exit. It must not
// be called while Run is in progress. Close is idempotent.
func (p *WorkerPool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	if p.workers > 0 {
		p.shutdown = true
		p.barrier.wait()
		p.barrier.wait()
	}
	p.wg.Wait()
	p.logger.Debug().Int("workers", p.workers).Msg("worker pool closed")
}

// partition splits [0, n) into len(out) contiguous ranges of n/len(out)
// items; the last range also takes the remainder.
func partition(n int, out []span) {
	parts := len(out)
	chunk := n / parts
	for i := range out {
		out[i] = span{start: i * chunk, end: (i + 1) * chunk}
	}
	out[parts-1].end = n
}
