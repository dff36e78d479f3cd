// Package metrics provides Prometheus instrumentation for bgpool components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for bgpool components.
type Registry struct {
	// Pool state metrics
	PoolWorkers *prometheus.GaugeVec
	PoolTasks   *prometheus.GaugeVec
	TasksActive *prometheus.GaugeVec

	// Execution metrics
	TasksExecuted *prometheus.CounterVec
	TasksFailed   *prometheus.CounterVec
	TaskWakes     *prometheus.CounterVec
	TaskDuration  *prometheus.HistogramVec
}

// DefaultRegistry is the default metrics registry used by bgpool components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		PoolWorkers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bgpool",
				Subsystem: "pool",
				Name:      "workers",
				Help:      "Number of worker goroutines in the pool",
			},
			[]string{"pool_name"},
		),

		PoolTasks: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bgpool",
				Subsystem: "pool",
				Name:      "registered_tasks",
				Help:      "Number of tasks currently registered with the pool",
			},
			[]string{"pool_name"},
		),

		TasksActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bgpool",
				Subsystem: "pool",
				Name:      "active_tasks",
				Help:      "Number of task executions currently in flight",
			},
			[]string{"pool_name"},
		),

		TasksExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bgpool",
				Subsystem: "pool",
				Name:      "tasks_executed_total",
				Help:      "Total number of task invocations",
			},
			[]string{"pool_name"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bgpool",
				Subsystem: "pool",
				Name:      "tasks_failed_total",
				Help:      "Total number of task invocations that returned an error or panicked",
			},
			[]string{"pool_name"},
		),

		TaskWakes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bgpool",
				Subsystem: "pool",
				Name:      "task_wakes_total",
				Help:      "Total number of out-of-band wake hints delivered to tasks",
			},
			[]string{"pool_name"},
		),

		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bgpool",
				Subsystem: "pool",
				Name:      "task_duration_seconds",
				Help:      "Time spent executing task bodies",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),
	}
}
