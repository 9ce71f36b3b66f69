// Package metrics exports registry and worker pool statistics to Prometheus.
//
// A Collector is a prometheus.Collector. Registry gauges are refreshed by
// Update, which must run on the goroutine that owns the registry; pool
// metrics are recorded as runs complete and are safe from any goroutine.
//
// Basic usage:
//
//	c := metrics.NewCollector(r)
//	prometheus.MustRegister(c)
//	pool := sparsecs.NewWorkerPool(runtime.NumCPU()-1, c.Observer())
//	for frame := range frames {
//	    step(r, pool)
//	    c.Update()
//	}
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edwinsyarief/sparsecs"
)

const namespace = "sparsecs"

// Collector holds the Prometheus metrics of one registry and the pools that
// run its parallel queries.
type Collector struct {
	registry    *sparsecs.Registry
	entities    prometheus.Gauge       // live entities
	capacity    prometheus.Gauge       // MaxEntities
	columnSize  *prometheus.GaugeVec   // occupied slots per component
	runs        prometheus.Counter     // parallel runs completed
	items       prometheus.Counter     // driver positions covered by runs
	runDuration prometheus.Histogram   // wall time per parallel run
	collectors  []prometheus.Collector // everything above, for Describe/Collect
}

// NewCollector creates a Collector for r. Every metric carries r's name as
// the "registry" label.
func NewCollector(r *sparsecs.Registry) *Collector {
	labels := prometheus.Labels{"registry": r.Name()}
	c := &Collector{
		registry: r,
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "entities",
			Help:        "Number of live entities",
			ConstLabels: labels,
		}),
		capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "entity_capacity",
			Help:        "Maximum number of live entities",
			ConstLabels: labels,
		}),
		columnSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "column_entries",
			Help:        "Number of entities holding each component type",
			ConstLabels: labels,
		}, []string{"component"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "parallel_runs_total",
			Help:        "Total number of parallel query runs",
			ConstLabels: labels,
		}),
		items: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "parallel_items_total",
			Help:        "Total number of driver positions covered by parallel runs",
			ConstLabels: labels,
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "parallel_run_duration_seconds",
			Help:        "Wall time of parallel query runs",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
	c.collectors = []prometheus.Collector{c.entities, c.capacity, c.columnSize, c.runs, c.items, c.runDuration}
	c.capacity.Set(float64(r.Capacity()))
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.collectors {
		m.Describe(ch)
	}
}

// Collect implements prometheus.Collector. It reports the values recorded by
// the last Update; it never reads the registry itself.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.collectors {
		m.Collect(ch)
	}
}

// Update copies the registry's current entity and column counts into the
// gauges. It reads the registry, so call it from the registry's goroutine
// and never during a query.
func (c *Collector) Update() {
	c.entities.Set(float64(c.registry.Len()))
	for info, n := range c.registry.Columns() {
		c.columnSize.WithLabelValues(info.Name).Set(float64(n))
	}
}

// Observer returns a pool option that records every run of the pool.
func (c *Collector) Observer() sparsecs.PoolOption {
	return sparsecs.WithObserver(c.observe)
}

func (c *Collector) observe(elapsed time.Duration, items int) {
	c.runs.Inc()
	c.items.Add(float64(items))
	c.runDuration.Observe(elapsed.Seconds())
}
