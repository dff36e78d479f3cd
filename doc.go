/*
Package bgpool provides a background processing pool for storage-engine style
maintenance work: many registered tasks, a small fixed set of workers, and
approximate most-due-first scheduling with self-throttling.

Scheduling (pkg/pool):
  - Fixed worker pool cycling over registered maintenance tasks
  - Wake hints that cut a task's backoff short without bypassing fairness
  - Safe synchronous removal and net-zero in-flight counters

Wake scheduling (pkg/cronwake):
  - Cron-driven wake hints for tasks whose useful moments are known in advance

Observability (pkg/metrics, pkg/export):
  - Prometheus instrumentation for pool state and task executions
  - Periodic counter snapshots published to Redis

Example usage:

	import "github.com/vnykmshr/bgpool/pkg/pool"

	p := pool.New(4)
	defer func() { <-p.Shutdown() }()

	handle := p.AddTask(func(ctx context.Context, tc *pool.TaskContext) (bool, error) {
		merged, err := table.MergeOnePart(ctx)
		return merged, err
	})

	handle.Wake() // data changed, reconsider soon
*/
package bgpool
