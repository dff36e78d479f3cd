/*
Package pool provides a background processing pool for periodic maintenance
work, in the style of a storage engine's housekeeping scheduler.

A fixed set of worker goroutines repeatedly picks the most-due task among all
registered tasks, runs it, and reschedules it based on whether it reported
useful work. Tasks that find nothing to do self-throttle: they sleep for the
pool's idle interval before being considered again, while busy tasks keep
cycling. Tasks can be added and removed while the pool is live.

Basic usage:

	p := pool.New(4)
	defer func() { <-p.Shutdown() }()

	handle := p.AddTask(func(ctx context.Context, tc *TaskContext) (bool, error) {
		merged, err := table.MergeOnePart(ctx)
		if err != nil {
			return false, err
		}
		return merged, nil
	})

	// Data changed; ask the pool to reconsider the task soon.
	handle.Wake()

	// Done with this table.
	p.RemoveTask(handle)

Scheduling model:

The registry is an ordered list acting as an approximate priority structure.
New and woken tasks go to the front; a selected task goes to the back, giving
round-robin fairness among tasks that are equally due. Each selection pass
scans at most ScanLimit entries, which bounds lock hold time when thousands
of tasks are registered at the cost of an approximate minimum. Scheduling is
best-effort: there is no guarantee a given task runs within any bounded time
if it is continuously outraced by more-due peers.

Removal is synchronous and safe: RemoveTask blocks until any in-flight
execution of the task finishes and guarantees the body never runs afterward.
There is no preemptive cancellation; a removal waits for however long the
current invocation takes, so task bodies should return promptly and do their
work in small steps.

Counters:

Tasks report transient counters through their TaskContext. Deltas are merged
into the pool-wide map as they are reported and subtracted back out when the
invocation ends, so Counter and Counters expose the contribution of work that
is currently in flight, not cumulative statistics.

Failure isolation:

Errors and panics from task bodies are logged and contained: the failing task
is retried on its next eligible turn after a full idle interval, and the pool
itself never stops because of a task failure.
*/
package pool
