// Package monitor implements the action audit bus: many producers publish
// actions onto a bounded channel and a single consumer appends them, in
// arrival order, to an in-memory log.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/opserr"
	"github.com/Hara602/opsclean/pkg/action"
)

// DefaultCapacity is the bus size used when Options.Capacity is not positive.
const DefaultCapacity = 100

type Options struct {
	Capacity int
	// Verbose logs one debug line per recorded action.
	Verbose bool
	Logger  *zap.Logger
	// Now stamps records; defaults to time.Now.
	Now func() time.Time
}

// Monitor owns the action bus and the action log.
//
// Exactly one goroutine (the consumer started by Start) appends to the log.
// Readers take short read-locked copies; no lock is ever held across a
// channel operation or I/O.
type Monitor struct {
	bus    chan action.Action
	logger *zap.Logger
	now    func() time.Time

	verbose bool
	started atomic.Bool

	// sendMu guards closed and lets Close wait for in-flight publishes
	// before closing the bus.
	sendMu sync.RWMutex
	closed bool

	mu  sync.RWMutex
	log []action.Record

	waitMu sync.Mutex
	waiter chan action.Action

	stopped chan struct{}
}

func New(opts Options) *Monitor {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		bus:     make(chan action.Action, capacity),
		logger:  logger.Named("monitor"),
		now:     now,
		verbose: opts.Verbose,
		stopped: make(chan struct{}),
	}
}

// Capacity returns the bus size.
func (m *Monitor) Capacity() int { return cap(m.bus) }

// Publish enqueues a. It blocks while the bus is full and fails with
// ErrChannelClosed once the monitor has been closed. If the bus has room the
// action is enqueued even when ctx is already done; only a caller blocked on a
// full bus gives up with ctx.Err().
func (m *Monitor) Publish(ctx context.Context, a action.Action) error {
	m.sendMu.RLock()
	defer m.sendMu.RUnlock()

	if m.closed {
		return opserr.ErrChannelClosed
	}

	// A free slot always wins over cancellation.
	select {
	case m.bus <- a:
		return nil
	default:
	}

	select {
	case m.bus <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the single consumer. Calling it twice returns ErrAlreadyStarted.
func (m *Monitor) Start() error {
	if !m.started.CompareAndSwap(false, true) {
		return opserr.ErrAlreadyStarted
	}
	go m.consume()
	m.logger.Debug("Monitor started", zap.Int("capacity", cap(m.bus)))
	return nil
}

func (m *Monitor) consume() {
	defer close(m.stopped)

	for a := range m.bus {
		rec := action.Record{Timestamp: m.now(), Action: a}

		m.mu.Lock()
		m.log = append(m.log, rec)
		m.mu.Unlock()

		if m.verbose {
			m.logger.Debug("Action recorded",
				zap.Time("timestamp", rec.Timestamp),
				zap.String("kind", string(a.Kind)),
				zap.String("detail", a.Detail),
			)
		}

		m.notify(a)
	}
}

// notify hands a to the current waiter, if any. The waiter channel has room
// for exactly one action and is detached after the hand-off, so the consumer
// never blocks here.
func (m *Monitor) notify(a action.Action) {
	m.waitMu.Lock()
	defer m.waitMu.Unlock()

	if m.waiter == nil {
		return
	}
	m.waiter <- a
	m.waiter = nil
}

// Snapshot returns an independent copy of the log in arrival order.
func (m *Monitor) Snapshot() []action.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]action.Record, len(m.log))
	copy(out, m.log)
	return out
}

// Len returns the number of records currently in the log.
func (m *Monitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.log)
}

// Clear empties the log. Actions consumed after Clear returns are appended as usual.
func (m *Monitor) Clear() {
	m.mu.Lock()
	m.log = nil
	m.mu.Unlock()
}

// WaitFor blocks until the consumer records the next action or timeout
// elapses, in which case it returns ErrTimeoutExpired.
//
// Only one caller may wait at a time; a concurrent call fails with
// ErrWaiterBusy. The action is always appended to the log before it is
// handed to the waiter, so an expired wait never loses an action.
func (m *Monitor) WaitFor(ctx context.Context, timeout time.Duration) (action.Action, error) {
	ch := make(chan action.Action, 1)

	m.waitMu.Lock()
	if m.waiter != nil {
		m.waitMu.Unlock()
		return action.Action{}, opserr.ErrWaiterBusy
	}
	m.waiter = ch
	m.waitMu.Unlock()

	defer func() {
		m.waitMu.Lock()
		if m.waiter == ch {
			m.waiter = nil
		}
		m.waitMu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case a := <-ch:
		return a, nil
	case <-timer.C:
		return action.Action{}, opserr.ErrTimeoutExpired
	case <-ctx.Done():
		return action.Action{}, ctx.Err()
	}
}

// Close shuts the bus. It waits for publishers already inside Publish, then
// lets the consumer drain every buffered action into the log and exit.
// Later Publish calls fail with ErrChannelClosed. Close is idempotent.
//
// If the consumer was never started, buffered actions are drained inline; a
// publisher blocked on a full bus in that state holds Close up until its
// context ends.
func (m *Monitor) Close() {
	m.sendMu.Lock()
	if m.closed {
		m.sendMu.Unlock()
		<-m.stopped
		return
	}
	m.closed = true
	close(m.bus)
	m.sendMu.Unlock()

	if m.started.CompareAndSwap(false, true) {
		m.consume()
		return
	}
	<-m.stopped
	m.logger.Debug("Monitor stopped", zap.Int("records", m.Len()))
}
