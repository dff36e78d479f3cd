// Package metrics provides Prometheus instrumentation for bgpool components.
//
// # Available Metrics
//
//   - bgpool_pool_workers: Number of worker goroutines in the pool
//   - bgpool_pool_registered_tasks: Number of tasks currently registered
//   - bgpool_pool_active_tasks: Number of task executions currently in flight
//   - bgpool_pool_tasks_executed_total: Total number of task invocations
//   - bgpool_pool_tasks_failed_total: Total invocations that errored or panicked
//   - bgpool_pool_task_wakes_total: Total out-of-band wake hints delivered
//   - bgpool_pool_task_duration_seconds: Time spent executing task bodies
//
// All metrics carry a pool_name label so that multiple pools in one process
// can be told apart.
//
// # Quick Start
//
// Enable metrics through the pool configuration:
//
//	p := pool.NewWithConfig(pool.Config{
//		Workers: 4,
//		Name:    "housekeeping",
//		Metrics: metrics.Config{Enabled: true},
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	p := pool.NewWithConfig(pool.Config{
//		Workers: 4,
//		Metrics: metrics.Config{Enabled: true, Registry: registry},
//	})
package metrics
