package pool

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/bgpool/pkg/metrics"
)

// Task is a unit of periodic background work. It is invoked with a context
// that is canceled when the pool shuts down, and a TaskContext for reporting
// in-flight counters. The boolean return reports whether the invocation did
// useful work: tasks that return true stay eligible for immediate
// re-selection, tasks that return false are put to sleep for the pool's
// idle interval. A non-nil error is logged, never propagated, and counts as
// no useful work.
type Task func(ctx context.Context, tc *TaskContext) (didWork bool, err error)

// Pool runs registered tasks on a fixed set of worker goroutines, always
// preferring the most-due task among those registered.
type Pool interface {
	// AddTask registers a task and returns its handle. The task becomes
	// eligible immediately. Panics if task is nil.
	AddTask(task Task) *TaskHandle

	// RemoveTask unregisters the task behind the handle. It blocks until any
	// in-flight execution of the task completes; after it returns the task
	// body will never run again. Removing an already-removed handle is a
	// no-op.
	RemoveTask(handle *TaskHandle)

	// Counter returns the current pool-wide value for the named counter.
	// Unknown names read as zero.
	Counter(name string) int64

	// Counters returns a snapshot of all pool-wide counters.
	Counters() map[string]int64

	// Size returns the number of worker goroutines.
	Size() int

	// TaskCount returns the number of currently registered tasks.
	TaskCount() int

	// Shutdown stops all workers and returns a channel that closes once they
	// have exited. Tasks still registered are abandoned, not executed again.
	// Shutdown is idempotent.
	Shutdown() <-chan struct{}
}

// Config holds configuration options for creating a pool.
type Config struct {
	// Workers is the number of worker goroutines. Must be greater than 0.
	Workers int

	// IdleSleep is how long a task sleeps after reporting no useful work,
	// and how long an idle worker waits before rescanning. Default 10s.
	IdleSleep time.Duration

	// SleepJitter is the upper bound of the random duration added to every
	// idle wait, so that workers do not wake in lockstep. Default 1s.
	SleepJitter time.Duration

	// ScanLimit caps how many registry entries a selection pass examines.
	// Bounds lock hold time at the cost of approximate selection. Default 100.
	ScanLimit int

	// Name labels log records, metrics and pprof profiles. Default "bgpool".
	Name string

	// Logger receives lifecycle messages and task failures.
	// If nil, logging is disabled.
	Logger *zerolog.Logger

	// Metrics configures Prometheus instrumentation.
	Metrics metrics.Config
}

const (
	defaultIdleSleep   = 10 * time.Second
	defaultSleepJitter = time.Second
	defaultScanLimit   = 100
	defaultName        = "bgpool"
)

// backgroundPool implements the Pool interface.
type backgroundPool struct {
	cfg Config
	log zerolog.Logger
	reg *metrics.Registry // nil when metrics are disabled

	// mu guards the registry: membership, order and every entry's nextRun.
	mu     sync.Mutex
	tasks  map[uint64]*taskEntry
	order  *list.List // of *taskEntry; front is scanned first
	nextID uint64

	countersMu sync.Mutex
	counters   map[string]int64

	wakeCh       chan struct{}
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	stopped      chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a pool with the given number of workers and default
// configuration.
func New(workers int) Pool {
	return NewWithConfig(Config{Workers: workers})
}

// NewWithConfig creates a pool with the given configuration and starts its
// workers. Panics if the configuration is invalid.
func NewWithConfig(cfg Config) Pool {
	if cfg.Workers <= 0 {
		panic("pool: worker count must be positive")
	}

	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = defaultIdleSleep
	}
	if cfg.SleepJitter < 0 {
		cfg.SleepJitter = 0
	} else if cfg.SleepJitter == 0 {
		cfg.SleepJitter = defaultSleepJitter
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = defaultScanLimit
	}
	if cfg.Name == "" {
		cfg.Name = defaultName
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("pool", cfg.Name).Logger()
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.DefaultRegistry
		if cfg.Metrics.Registry != nil {
			reg = metrics.NewRegistry(cfg.Metrics.Registry)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &backgroundPool{
		cfg:        cfg,
		log:        log,
		reg:        reg,
		tasks:      make(map[uint64]*taskEntry),
		order:      list.New(),
		counters:   make(map[string]int64),
		wakeCh:     make(chan struct{}, cfg.Workers),
		shutdownCh: make(chan struct{}),
		stopped:    make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}

	if p.reg != nil {
		p.reg.PoolWorkers.WithLabelValues(cfg.Name).Set(float64(cfg.Workers))
	}

	p.log.Info().Int("workers", cfg.Workers).Msg("starting background pool")

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

// AddTask registers a task, inserting it at the front of the registry so it
// is scanned promptly, and wakes every idle worker.
func (p *backgroundPool) AddTask(task Task) *TaskHandle {
	if task == nil {
		panic("pool: task must not be nil")
	}

	entry := &taskEntry{
		task:    task,
		nextRun: time.Now(),
		guard:   newExecGuard(),
	}

	p.mu.Lock()
	p.nextID++
	entry.id = p.nextID
	p.tasks[entry.id] = entry
	entry.elem = p.order.PushFront(entry)
	registered := len(p.tasks)
	p.mu.Unlock()

	if p.reg != nil {
		p.reg.PoolTasks.WithLabelValues(p.cfg.Name).Set(float64(registered))
	}

	// An idle pool might otherwise not notice new work until its next timed
	// rescan.
	p.wakeAll()

	return &TaskHandle{pool: p, id: entry.id}
}

// RemoveTask marks the task removed, waits for any in-flight execution to
// drain, and erases the entry. Safe to call multiple times and from multiple
// goroutines; only the first call does the work.
func (p *backgroundPool) RemoveTask(handle *TaskHandle) {
	if handle == nil || handle.pool != p {
		return
	}

	p.mu.Lock()
	entry, ok := p.tasks[handle.id]
	p.mu.Unlock()
	if !ok {
		return
	}

	// The removed flag must be visible before the drain so that no new
	// execution can start once removal has begun.
	if !entry.removed.CompareAndSwap(false, true) {
		return
	}

	entry.guard.drain()

	p.mu.Lock()
	if _, ok := p.tasks[handle.id]; ok {
		p.order.Remove(entry.elem)
		delete(p.tasks, handle.id)
	}
	registered := len(p.tasks)
	p.mu.Unlock()

	if p.reg != nil {
		p.reg.PoolTasks.WithLabelValues(p.cfg.Name).Set(float64(registered))
	}
}

// Counter returns the pool-wide value for name, zero if unknown.
func (p *backgroundPool) Counter(name string) int64 {
	p.countersMu.Lock()
	defer p.countersMu.Unlock()
	return p.counters[name]
}

// Counters returns a snapshot copy of all pool-wide counters.
func (p *backgroundPool) Counters() map[string]int64 {
	p.countersMu.Lock()
	defer p.countersMu.Unlock()

	snapshot := make(map[string]int64, len(p.counters))
	for name, value := range p.counters {
		snapshot[name] = value
	}
	return snapshot
}

// Size returns the number of worker goroutines.
func (p *backgroundPool) Size() int {
	return p.cfg.Workers
}

// TaskCount returns the number of currently registered tasks.
func (p *backgroundPool) TaskCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// Shutdown stops the pool. Workers finish the step they are in, skip further
// selection, and exit; the returned channel closes after all of them have
// joined.
func (p *backgroundPool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		close(p.shutdownCh)
		p.cancel()

		go func() {
			p.wg.Wait()
			p.log.Info().Msg("background pool stopped")
			close(p.stopped)
		}()
	})

	return p.stopped
}

func (p *backgroundPool) isShutdown() bool {
	select {
	case <-p.shutdownCh:
		return true
	default:
		return false
	}
}

// wakeOne nudges a single idle worker. If every worker is busy the nudge is
// absorbed by the channel buffer or dropped, which is harmless.
func (p *backgroundPool) wakeOne() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

// wakeAll nudges up to one token per worker.
func (p *backgroundPool) wakeAll() {
	for i := 0; i < cap(p.wakeCh); i++ {
		select {
		case p.wakeCh <- struct{}{}:
		default:
			return
		}
	}
}
