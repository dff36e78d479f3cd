package pool

import (
	"container/list"
	"sync/atomic"
	"time"
)

// taskEntry is the pool's internal record for one registered task. Entries
// live in an arena keyed by id; handles refer to them only through that id,
// so reordering the registry never invalidates a handle.
type taskEntry struct {
	id   uint64
	task Task

	// elem is the entry's position in the scan order. Guarded by pool.mu,
	// as is nextRun.
	elem    *list.Element
	nextRun time.Time

	// removed transitions false to true exactly once.
	removed atomic.Bool

	guard execGuard
}

// execGuard is a single-permit semaphore enforcing at most one execution of
// a task at a time. Workers take the permit with tryAcquire and skip the
// task if it is already running; removal takes it with drain, which blocks
// until any in-flight execution finishes.
type execGuard struct {
	permit chan struct{}
}

func newExecGuard() execGuard {
	g := execGuard{permit: make(chan struct{}, 1)}
	g.permit <- struct{}{}
	return g
}

func (g execGuard) tryAcquire() bool {
	select {
	case <-g.permit:
		return true
	default:
		return false
	}
}

func (g execGuard) release() {
	g.permit <- struct{}{}
}

// drain waits for the permit and puts it straight back. Once the removed
// flag is set, a completed drain guarantees no execution is in flight and
// none will start.
func (g execGuard) drain() {
	<-g.permit
	g.permit <- struct{}{}
}

// TaskHandle refers to a registered task. Callers may hold it indefinitely,
// including after removal.
type TaskHandle struct {
	pool *backgroundPool
	id   uint64
}

// Wake requests prompt re-examination of the task: it moves the task to the
// front of the scan order, cancels any pending backoff sleep, and nudges one
// idle worker. The task still competes for selection as usual. Wake is a
// best-effort hint and a no-op on removed handles.
func (h *TaskHandle) Wake() {
	if h == nil {
		return
	}
	p := h.pool

	p.mu.Lock()
	entry, ok := p.tasks[h.id]
	if !ok || entry.removed.Load() {
		p.mu.Unlock()
		return
	}
	p.order.MoveToFront(entry.elem)
	if now := time.Now(); entry.nextRun.After(now) {
		entry.nextRun = now
	}
	p.mu.Unlock()

	if p.reg != nil {
		p.reg.TaskWakes.WithLabelValues(p.cfg.Name).Inc()
	}

	// If all workers are busy this wakes nobody, which is fine: the task is
	// already at the front for the next scan.
	p.wakeOne()
}

// selectEntry scans the registry from the front for the entry with the
// earliest nextRun, examining at most ScanLimit entries. Removed entries are
// skipped but still consume scan budget, so under heavy removal churn the
// effective window shrinks; entries beyond the window stay at the back and
// are reached by later passes. The chosen entry is moved to the back, which
// decays its priority among peers with equal eligibility and yields
// round-robin behavior for ties.
func (p *backgroundPool) selectEntry() (*taskEntry, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *taskEntry
	var minTime time.Time

	scanned := 0
	for e := p.order.Front(); e != nil; e = e.Next() {
		scanned++
		if scanned > p.cfg.ScanLimit {
			break
		}

		entry := e.Value.(*taskEntry)
		if entry.removed.Load() {
			continue
		}

		if best == nil || entry.nextRun.Before(minTime) {
			best = entry
			minTime = entry.nextRun
		}
	}

	if best != nil {
		p.order.MoveToBack(best.elem)
	}

	return best, minTime
}
