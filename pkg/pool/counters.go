package pool

// TaskContext is passed to a task body for the duration of one invocation.
// It exposes the owning pool, so a task may register further tasks, and the
// invocation's counters sink.
type TaskContext struct {
	pool *backgroundPool

	// diff records this invocation's counter deltas so they can be reversed
	// when the invocation ends. Only the executing worker touches it, so it
	// needs no locking of its own.
	diff map[string]int64
}

// Pool returns the pool executing this invocation.
func (tc *TaskContext) Pool() Pool {
	return tc.pool
}

// Add applies delta to the named pool-wide counter and records it in the
// invocation's diff. The contribution is visible to Counter readers while
// the invocation is in flight and is subtracted back out when it ends:
// counters are gauges of currently-running work, not cumulative totals.
func (tc *TaskContext) Add(name string, delta int64) {
	tc.pool.countersMu.Lock()
	tc.pool.counters[name] += delta
	tc.pool.countersMu.Unlock()

	tc.diff[name] += delta
}

// revertCounters subtracts an invocation's recorded deltas from the
// pool-wide counters. Entries that net to zero are dropped from the map;
// Counter reads them as zero either way.
func (p *backgroundPool) revertCounters(diff map[string]int64) {
	if len(diff) == 0 {
		return
	}

	p.countersMu.Lock()
	defer p.countersMu.Unlock()

	for name, delta := range diff {
		p.counters[name] -= delta
		if p.counters[name] == 0 {
			delete(p.counters, name)
		}
	}
}
