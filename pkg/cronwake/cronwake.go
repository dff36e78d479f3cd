package cronwake

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Handle is the wakeable side of a registered pool task.
// *pool.TaskHandle satisfies it.
type Handle interface {
	Wake()
}

// Entry describes one registered wake schedule.
type Entry struct {
	ID         string
	Expression string
	NextWake   time.Time
}

// Waker delivers wake hints to task handles on cron schedules. It does not
// execute anything itself: firing an entry only asks the pool to reconsider
// the task sooner than its own backoff would.
type Waker interface {
	// Add registers a wake schedule for the handle. The expression uses the
	// standard cron format with an optional seconds field, plus descriptors
	// such as "@hourly".
	Add(id string, cronExpr string, handle Handle) error

	// Remove unregisters a schedule. Returns false if the id is unknown.
	Remove(id string) bool

	// List returns all registered schedules sorted by next wake time.
	List() []Entry

	// Lifecycle
	Start() error
	Stop() <-chan struct{}
}

// Config holds waker configuration.
type Config struct {
	// TickInterval is how often due schedules are checked. Default 1s.
	TickInterval time.Duration

	// Location is the timezone for cron evaluation. Default time.Local.
	Location *time.Location

	// Logger receives lifecycle messages. If nil, logging is disabled.
	Logger *zerolog.Logger
}

type entry struct {
	id       string
	expr     string
	schedule cron.Schedule
	handle   Handle
	next     time.Time
}

type waker struct {
	tick   time.Duration
	loc    *time.Location
	log    zerolog.Logger
	parser cron.Parser

	mu      sync.Mutex
	entries map[string]*entry
	ticker  *time.Ticker
	done    chan struct{}
	exited  chan struct{}
	running bool
	stopped bool
}

// New creates a waker with default configuration.
func New() Waker {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a waker with custom configuration.
func NewWithConfig(cfg Config) Waker {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = time.Second
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	return &waker{
		tick:    tick,
		loc:     loc,
		log:     log,
		parser:  cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		entries: make(map[string]*entry),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
}

func (w *waker) Add(id string, cronExpr string, handle Handle) error {
	if id == "" {
		return fmt.Errorf("schedule ID cannot be empty")
	}
	if handle == nil {
		return fmt.Errorf("handle cannot be nil")
	}
	if cronExpr == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}

	schedule, err := w.parser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.entries[id]; exists {
		return fmt.Errorf("schedule with ID %q already exists", id)
	}

	now := time.Now().In(w.loc)
	w.entries[id] = &entry{
		id:       id,
		expr:     cronExpr,
		schedule: schedule,
		handle:   handle,
		next:     schedule.Next(now),
	}

	return nil
}

func (w *waker) Remove(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.entries[id]; exists {
		delete(w.entries, id)
		return true
	}
	return false
}

func (w *waker) List() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries := make([]Entry, 0, len(w.entries))
	for _, e := range w.entries {
		entries = append(entries, Entry{
			ID:         e.id,
			Expression: e.expr,
			NextWake:   e.next,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].NextWake.Before(entries[j].NextWake)
	})

	return entries
}

func (w *waker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return fmt.Errorf("waker has been stopped and cannot be restarted")
	}
	if w.running {
		return fmt.Errorf("waker already running, call Stop() first")
	}

	w.running = true
	w.ticker = time.NewTicker(w.tick)

	go w.run()
	return nil
}

func (w *waker) Stop() <-chan struct{} {
	w.mu.Lock()
	if w.running {
		w.running = false
		w.stopped = true
		close(w.done)
		w.ticker.Stop()
	} else if !w.stopped {
		// Never started; nothing is running.
		w.stopped = true
		close(w.exited)
	}
	w.mu.Unlock()

	return w.exited
}

func (w *waker) run() {
	defer close(w.exited)

	for {
		select {
		case <-w.done:
			return
		case <-w.ticker.C:
			w.fireDue(time.Now().In(w.loc))
		}
	}
}

// fireDue wakes every entry whose schedule has come due and advances it to
// its next occurrence. Wakes are delivered outside the waker lock so a slow
// Wake cannot stall Add/Remove callers.
func (w *waker) fireDue(now time.Time) {
	w.mu.Lock()
	var due []*entry
	for _, e := range w.entries {
		if !e.next.After(now) {
			due = append(due, e)
			e.next = e.schedule.Next(now)
		}
	}
	w.mu.Unlock()

	for _, e := range due {
		w.log.Debug().Str("schedule", e.id).Msg("waking task")
		e.handle.Wake()
	}
}
