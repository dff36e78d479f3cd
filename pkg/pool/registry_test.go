package pool

import (
	"context"
	"testing"
	"time"

	"github.com/vnykmshr/bgpool/internal/testutil"
)

func noopTask(ctx context.Context, tc *TaskContext) (bool, error) {
	return false, nil
}

// stoppedPool returns a pool whose workers have already exited, so registry
// state can be inspected without interference.
func stoppedPool(t *testing.T, cfg Config) *backgroundPool {
	t.Helper()
	p := NewWithConfig(cfg).(*backgroundPool)
	select {
	case <-p.Shutdown():
	case <-time.After(testutil.TestTimeout):
		t.Fatal("timeout waiting for pool shutdown")
	}
	return p
}

func TestExecGuardSinglePermit(t *testing.T) {
	g := newExecGuard()

	testutil.AssertEqual(t, g.tryAcquire(), true)
	testutil.AssertEqual(t, g.tryAcquire(), false)

	g.release()
	testutil.AssertEqual(t, g.tryAcquire(), true)
	g.release()
}

func TestExecGuardDrainWaitsForHolder(t *testing.T) {
	g := newExecGuard()
	testutil.AssertEqual(t, g.tryAcquire(), true)

	drained := make(chan struct{})
	go func() {
		g.drain()
		close(drained)
	}()

	select {
	case <-drained:
		t.Fatal("drain returned while the permit was held")
	case <-time.After(20 * time.Millisecond):
	}

	g.release()

	select {
	case <-drained:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("drain did not return after release")
	}

	// drain puts the permit back.
	testutil.AssertEqual(t, g.tryAcquire(), true)
	g.release()
}

func TestSelectionMovesChosenToBack(t *testing.T) {
	p := stoppedPool(t, testConfig(1, time.Second))

	a := p.AddTask(noopTask)
	b := p.AddTask(noopTask)
	c := p.AddTask(noopTask)

	// Pin distinct registration times: clocks coarser than the registration
	// loop would otherwise make the tie-break ambiguous.
	now := time.Now()
	p.mu.Lock()
	p.tasks[a.id].nextRun = now.Add(-3 * time.Millisecond)
	p.tasks[b.id].nextRun = now.Add(-2 * time.Millisecond)
	p.tasks[c.id].nextRun = now.Add(-time.Millisecond)
	p.mu.Unlock()

	// All three are due. The earliest nextRun wins; selecting it moves it
	// behind its peers.
	entry, _ := p.selectEntry()
	testutil.AssertEqual(t, entry.id, a.id)

	entry, _ = p.selectEntry()
	testutil.AssertEqual(t, entry.id, b.id)
}

func TestSelectionSkipsRemovedEntries(t *testing.T) {
	p := stoppedPool(t, testConfig(1, time.Second))

	a := p.AddTask(noopTask)
	b := p.AddTask(noopTask)

	p.RemoveTask(a)

	entry, _ := p.selectEntry()
	testutil.AssertEqual(t, entry.id, b.id)
	testutil.AssertEqual(t, p.TaskCount(), 1)
}

func TestSelectionScanWindowIsBounded(t *testing.T) {
	cfg := testConfig(1, time.Second)
	cfg.ScanLimit = 2
	p := stoppedPool(t, cfg)

	// Registration pushes to the front, so the first task registered ends up
	// last in scan order. With a window of two, only the latest two entries
	// are examined even though the oldest has the earliest nextRun.
	oldest := p.AddTask(noopTask)
	middle := p.AddTask(noopTask)
	newest := p.AddTask(noopTask)

	now := time.Now()
	p.mu.Lock()
	p.tasks[oldest.id].nextRun = now.Add(-3 * time.Millisecond)
	p.tasks[middle.id].nextRun = now.Add(-2 * time.Millisecond)
	p.tasks[newest.id].nextRun = now.Add(-time.Millisecond)
	p.mu.Unlock()

	entry, _ := p.selectEntry()
	if entry.id == oldest.id {
		t.Fatal("selection examined an entry beyond the scan window")
	}
	testutil.AssertEqual(t, entry.id, middle.id)
}

func TestWakeMovesEntryToFront(t *testing.T) {
	p := stoppedPool(t, testConfig(1, time.Second))
	cfg := p.cfg

	a := p.AddTask(noopTask)
	_ = p.AddTask(noopTask)

	// a sits at the back of the scan order with a future nextRun.
	p.mu.Lock()
	entryA := p.tasks[a.id]
	p.order.MoveToBack(entryA.elem)
	entryA.nextRun = time.Now().Add(cfg.IdleSleep)
	p.mu.Unlock()

	a.Wake()

	p.mu.Lock()
	front := p.order.Front().Value.(*taskEntry)
	nextRun := entryA.nextRun
	p.mu.Unlock()

	testutil.AssertEqual(t, front.id, a.id)
	if nextRun.After(time.Now()) {
		t.Error("wake did not cancel the pending backoff")
	}
}
