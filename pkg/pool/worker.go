package pool

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"runtime/pprof"
	"strconv"
	"time"
)

// worker runs one instance of the scheduling loop until shutdown.
func (p *backgroundPool) worker(id int) {
	defer p.wg.Done()

	labels := pprof.Labels("pool", p.cfg.Name, "worker", strconv.Itoa(id))
	pprof.Do(p.ctx, labels, func(ctx context.Context) {
		p.run(ctx, id)
	})
}

func (p *backgroundPool) run(ctx context.Context, id int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(id)<<32))

	// Desynchronize worker start so a fresh pool does not hammer the
	// registry lock in lockstep.
	if !p.idleWait(p.jitter(rng)) {
		return
	}

	for {
		if p.isShutdown() {
			return
		}

		entry, minTime := p.selectEntry()

		if p.isShutdown() {
			return
		}

		if entry == nil {
			// Registry empty or nothing viable in the scan window.
			if !p.idleWait(p.cfg.IdleSleep + p.jitter(rng)) {
				return
			}
			continue
		}

		if wait := time.Until(minTime); wait > 0 {
			// Best candidate is mid-backoff. Sleep out the remainder, then
			// rescan rather than trusting a stale selection: the task may
			// have been woken or removed in the meantime.
			if !p.idleWait(wait + p.jitter(rng)) {
				return
			}
			continue
		}

		if err := p.runTask(ctx, entry); err != nil {
			p.log.Error().Err(err).Uint64("task", entry.id).Msg("background task failed")

			// Full backoff after a failure so a broken task cannot
			// monopolize the registry lock with a tight retry loop.
			if !p.idleWait(p.cfg.IdleSleep) {
				return
			}
		}
	}
}

// runTask executes one invocation of the selected entry's body under its
// execution guard, reschedules the entry, and reverses the invocation's
// counter contribution.
func (p *backgroundPool) runTask(ctx context.Context, entry *taskEntry) error {
	if !entry.guard.tryAcquire() {
		// Another worker already has this task in flight.
		return nil
	}

	if entry.removed.Load() {
		// Removal began between selection and acquisition.
		entry.guard.release()
		return nil
	}

	tc := &TaskContext{pool: p, diff: make(map[string]int64)}

	if p.reg != nil {
		p.reg.TasksActive.WithLabelValues(p.cfg.Name).Inc()
	}

	start := time.Now()
	didWork, err := p.invoke(ctx, entry, tc)
	elapsed := time.Since(start)

	if p.reg != nil {
		p.reg.TasksActive.WithLabelValues(p.cfg.Name).Dec()
		p.reg.TasksExecuted.WithLabelValues(p.cfg.Name).Inc()
		p.reg.TaskDuration.WithLabelValues(p.cfg.Name).Observe(elapsed.Seconds())
		if err != nil {
			p.reg.TasksFailed.WithLabelValues(p.cfg.Name).Inc()
		}
	}

	// Useful work keeps the task immediately eligible; an idle pass or a
	// failure puts it to sleep for the full interval, so no other worker can
	// re-pick a failing task before its backoff elapses.
	p.mu.Lock()
	if err == nil && didWork {
		entry.nextRun = time.Now()
	} else {
		entry.nextRun = time.Now().Add(p.cfg.IdleSleep)
	}
	p.mu.Unlock()

	entry.guard.release()

	// Counters represent in-flight contribution only: whatever the body
	// reported is subtracted back out, success or not.
	p.revertCounters(tc.diff)

	return err
}

// invoke calls the task body, converting panics into errors so one task can
// never take down a worker.
func (p *backgroundPool) invoke(ctx context.Context, entry *taskEntry, tc *TaskContext) (didWork bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v\n%s", r, debug.Stack())
		}
	}()

	return entry.task(ctx, tc)
}

// idleWait blocks for up to d, returning early when a wake hint arrives.
// Returns false if the pool shut down while waiting.
func (p *backgroundPool) idleWait(d time.Duration) bool {
	if d <= 0 {
		return !p.isShutdown()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-p.wakeCh:
		return true
	case <-p.shutdownCh:
		return false
	}
}

// jitter returns a random duration in [0, SleepJitter).
func (p *backgroundPool) jitter(rng *rand.Rand) time.Duration {
	if p.cfg.SleepJitter <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(p.cfg.SleepJitter)))
}
