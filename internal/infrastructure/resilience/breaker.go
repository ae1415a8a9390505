package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateHalfOpen: "half-open",
	StateOpen:     "open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Settings tunes a Breaker. Zero values get defaults in New.
type Settings struct {
	// MaxRequests is both the trial request budget and the success quota of half-open.
	MaxRequests uint32
	// Interval clears closed-state counts periodically.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// ReadyToTrip sees the counts after every closed-state failure.
	ReadyToTrip func(counts Counts) bool
	// IsFailure classifies errors returned through Execute.
	IsFailure     func(err error) bool
	OnStateChange func(name string, from State, to State)
}

// Counts are reset whenever the breaker changes state or the closed
// interval rolls over.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) success() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// epoch is one stretch of a single state. Tickets remember the epoch they
// were issued in; outcomes from older epochs are discarded.
type epoch struct {
	seq      uint64
	counts   Counts
	deadline time.Time // zero means no deadline
}

// Breaker guards calls to a flaky collaborator. Short calls go through
// Execute; long ones (a file transfer) take a Ticket from Allow and report
// the outcome once classified.
type Breaker struct {
	name string
	cfg  Settings
	now  func() time.Time

	mu    sync.Mutex
	state State
	cur   epoch
}

// Ticket is one admitted request.
type Ticket struct {
	b    *Breaker
	seq  uint64
	once sync.Once
}

func New(name string, settings Settings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Interval <= 0 {
		settings.Interval = time.Minute
	}
	if settings.Timeout <= 0 {
		settings.Timeout = time.Minute
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(c Counts) bool { return c.ConsecutiveFailures > 5 }
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool { return err != nil }
	}

	b := &Breaker{name: name, cfg: settings, now: time.Now}
	b.cur.deadline = b.now().Add(settings.Interval)
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.advance(b.now())
}

func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cur.counts
}

// Allow admits one request or returns ErrCircuitOpen or ErrTooManyRequests.
func (b *Breaker) Allow() (*Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.advance(b.now()) {
	case StateOpen:
		return nil, ErrCircuitOpen
	case StateHalfOpen:
		if b.cur.counts.Requests >= b.cfg.MaxRequests {
			return nil, ErrTooManyRequests
		}
	}
	b.cur.counts.Requests++
	return &Ticket{b: b, seq: b.cur.seq}, nil
}

// Done records the outcome. Calls after the first are ignored.
func (t *Ticket) Done(success bool) {
	t.once.Do(func() { t.b.record(t.seq, success) })
}

// Execute runs fn when admitted. A panic in fn counts as a failure and is
// re-raised.
func (b *Breaker) Execute(fn func() error) (err error) {
	ticket, err := b.Allow()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			ticket.Done(false)
			panic(r)
		}
	}()

	err = fn()
	ticket.Done(!b.cfg.IsFailure(err))
	return err
}

func (b *Breaker) record(seq uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	state := b.advance(now)
	if seq != b.cur.seq {
		return
	}

	if success {
		b.cur.counts.success()
		if state == StateHalfOpen && b.cur.counts.ConsecutiveSuccesses >= b.cfg.MaxRequests {
			b.moveTo(StateClosed, now)
		}
		return
	}

	switch state {
	case StateClosed:
		b.cur.counts.failure()
		if b.cfg.ReadyToTrip(b.cur.counts) {
			b.moveTo(StateOpen, now)
		}
	case StateHalfOpen:
		b.moveTo(StateOpen, now)
	}
}

// advance applies deadline-driven transitions. Caller holds mu.
func (b *Breaker) advance(now time.Time) State {
	if b.cur.deadline.IsZero() || now.Before(b.cur.deadline) {
		return b.state
	}
	switch b.state {
	case StateClosed:
		b.rollover(now.Add(b.cfg.Interval))
	case StateOpen:
		b.moveTo(StateHalfOpen, now)
	}
	return b.state
}

// moveTo switches state and starts a fresh epoch. Caller holds mu.
func (b *Breaker) moveTo(to State, now time.Time) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	var deadline time.Time
	switch to {
	case StateClosed:
		deadline = now.Add(b.cfg.Interval)
	case StateOpen:
		deadline = now.Add(b.cfg.Timeout)
	}
	b.rollover(deadline)

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

func (b *Breaker) rollover(deadline time.Time) {
	b.cur = epoch{seq: b.cur.seq + 1, deadline: deadline}
}
