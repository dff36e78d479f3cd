package cronwake

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/bgpool/internal/testutil"
)

type fakeHandle struct {
	wakes int32
}

func (h *fakeHandle) Wake() {
	atomic.AddInt32(&h.wakes, 1)
}

func TestAddValidation(t *testing.T) {
	w := New()
	defer func() { <-w.Stop() }()

	h := &fakeHandle{}

	tests := []struct {
		name      string
		id        string
		expr      string
		handle    Handle
		expectErr bool
	}{
		{"valid descriptor", "a", "@hourly", h, false},
		{"valid five field", "b", "*/5 * * * *", h, false},
		{"valid six field", "c", "*/10 * * * * *", h, false},
		{"empty id", "", "@hourly", h, true},
		{"empty expression", "d", "", h, true},
		{"nil handle", "e", "@hourly", nil, true},
		{"bad expression", "f", "not a cron expr", h, true},
		{"duplicate id", "a", "@daily", h, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Add(tt.id, tt.expr, tt.handle)
			if tt.expectErr {
				testutil.AssertError(t, err)
			} else {
				testutil.AssertNoError(t, err)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	w := New()
	defer func() { <-w.Stop() }()

	testutil.AssertNoError(t, w.Add("a", "@hourly", &fakeHandle{}))
	testutil.AssertEqual(t, w.Remove("a"), true)
	testutil.AssertEqual(t, w.Remove("a"), false)
	testutil.AssertEqual(t, len(w.List()), 0)
}

func TestListSortedByNextWake(t *testing.T) {
	w := New()
	defer func() { <-w.Stop() }()

	testutil.AssertNoError(t, w.Add("yearly", "@yearly", &fakeHandle{}))
	testutil.AssertNoError(t, w.Add("secondly", "* * * * * *", &fakeHandle{}))

	entries := w.List()
	testutil.AssertEqual(t, len(entries), 2)
	testutil.AssertEqual(t, entries[0].ID, "secondly")
	testutil.AssertEqual(t, entries[1].ID, "yearly")
}

func TestFireDueWakesAndAdvances(t *testing.T) {
	w := New().(*waker)
	defer func() { <-w.Stop() }()

	h := &fakeHandle{}
	testutil.AssertNoError(t, w.Add("hourly", "@hourly", h))

	// Not due yet: nothing fires.
	w.fireDue(time.Now())
	testutil.AssertEqual(t, atomic.LoadInt32(&h.wakes), int32(0))

	// Force the entry due, fire, and check it advanced.
	w.mu.Lock()
	w.entries["hourly"].next = time.Now().Add(-time.Second)
	w.mu.Unlock()

	now := time.Now()
	w.fireDue(now)
	testutil.AssertEqual(t, atomic.LoadInt32(&h.wakes), int32(1))

	w.mu.Lock()
	next := w.entries["hourly"].next
	w.mu.Unlock()
	if !next.After(now) {
		t.Errorf("entry was not advanced past %v, next = %v", now, next)
	}

	// Firing again at the same instant must not double-wake.
	w.fireDue(now)
	testutil.AssertEqual(t, atomic.LoadInt32(&h.wakes), int32(1))
}

func TestTickerFiresSchedules(t *testing.T) {
	w := NewWithConfig(Config{TickInterval: 20 * time.Millisecond})
	testutil.AssertNoError(t, w.Start())
	defer func() { <-w.Stop() }()

	h := &fakeHandle{}
	testutil.AssertNoError(t, w.Add("every-second", "* * * * * *", h))

	testutil.Eventually(t, 3*time.Second, func() bool {
		return atomic.LoadInt32(&h.wakes) >= 1
	}, "schedule never fired")
}

func TestLifecycle(t *testing.T) {
	w := New()

	testutil.AssertNoError(t, w.Start())
	testutil.AssertError(t, w.Start()) // already running

	select {
	case <-w.Stop():
	case <-time.After(testutil.TestTimeout):
		t.Fatal("Stop did not complete")
	}

	testutil.AssertError(t, w.Start()) // cannot restart
}

func TestStopWithoutStart(t *testing.T) {
	w := New()

	select {
	case <-w.Stop():
	case <-time.After(testutil.TestTimeout):
		t.Fatal("Stop on an unstarted waker did not complete")
	}
}
