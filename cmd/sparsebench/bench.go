package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edwinsyarief/sparsecs"
	"github.com/edwinsyarief/sparsecs/metrics"
)

type position struct {
	X, Y float32
}

type velocity struct {
	X, Y float32
}

type lifetime struct {
	Frames int
}

// report is the JSON document written at the end of a run.
type report struct {
	Config     benchConfig    `json:"config"`
	Populate   time.Duration  `json:"populate_ns"`
	Simulate   time.Duration  `json:"simulate_ns"`
	PerFrame   time.Duration  `json:"per_frame_ns"`
	Alive      int            `json:"alive"`
	Despawned  int            `json:"despawned"`
	Components map[string]int `json:"components"`
}

func run(ctx context.Context, cfg benchConfig, out io.Writer) error {
	switch cfg.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	r, err := sparsecs.NewRegistry(cfg.Registry)
	if err != nil {
		return err
	}
	collector := metrics.NewCollector(r)
	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, collector)
		if err != nil {
			return err
		}
		defer stop()
	}
	pool := sparsecs.NewWorkerPool(cfg.Workers, collector.Observer())
	defer pool.Close()

	start := time.Now()
	if err := populate(r, cfg.Registry.MaxEntities); err != nil {
		return err
	}
	rep := report{Config: cfg, Populate: time.Since(start)}
	log.Info().Int("entities", r.Len()).Dur("took", rep.Populate).Msg("registry populated")

	cb := r.NewCommandBuffer()
	start = time.Now()
	for frame := range cfg.Frames {
		if err := ctx.Err(); err != nil {
			return eris.Wrapf(err, "interrupted at frame %d", frame)
		}
		rep.Despawned += step(r, pool, cb, cfg.Parallel)
		collector.Update()
	}
	rep.Simulate = time.Since(start)
	if cfg.Frames > 0 {
		rep.PerFrame = rep.Simulate / time.Duration(cfg.Frames)
	}
	rep.Alive = r.Len()
	rep.Components = make(map[string]int)
	for info, n := range r.Columns() {
		rep.Components[info.Name] = n
	}
	r.LogComponents(zerolog.DebugLevel)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// populate fills r to capacity. Every third entity is static and every
// fifth has a limited lifetime.
func populate(r *sparsecs.Registry, n int) error {
	movers := sparsecs.NewBuilder2[position, velocity](r)
	for i := range n {
		var (
			e   sparsecs.Entity
			err error
		)
		if i%3 == 0 {
			e, err = r.CreateEntityWith(position{X: float32(i)})
		} else {
			e, err = movers.NewEntity(position{X: float32(i)}, velocity{X: 1, Y: 0.5})
		}
		if err != nil {
			return err
		}
		if i%5 == 0 {
			sparsecs.Emplace(r, e, lifetime{Frames: 1 + i%60})
		}
	}
	return nil
}

// step advances every moving entity and despawns expired ones. It returns
// the number of entities despawned.
func step(r *sparsecs.Registry, pool *sparsecs.WorkerPool, cb *sparsecs.CommandBuffer, parallel bool) int {
	const dt = float32(1.0 / 60)
	move := func(dt float32, p *position, v *velocity) {
		p.X += v.X * dt
		p.Y += v.Y * dt
	}
	if parallel {
		r.QueryPar(pool, move, dt)
	} else {
		r.Query(move, dt)
	}

	despawned := 0
	r.QuerySelf(func(e sparsecs.Entity, l *lifetime) {
		l.Frames--
		if l.Frames <= 0 {
			cb.Destroy(e)
			despawned++
		}
	})
	cb.Flush()
	return despawned
}

// serveMetrics exposes collector on addr until the returned stop func is
// called.
func serveMetrics(addr string, collector *metrics.Collector) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collector); err != nil {
		return nil, eris.Wrap(err, "register collector")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
