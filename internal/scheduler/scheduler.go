// Package scheduler drives periodic work such as simulation ticks.
package scheduler

import (
	"sync"
	"time"
)

// DefaultInterval is the simulation cadence.
const DefaultInterval = 2 * time.Second

// TickFunc handles one tick. Ticks never overlap.
type TickFunc func(now time.Time)

// Scheduler starts and stops a tick handler.
type Scheduler interface {
	// Start installs fn and begins ticking. Starting a running scheduler is a no-op.
	Start(fn TickFunc)
	// Stop halts ticking and returns once any in-flight tick has finished.
	Stop()
	Running() bool
}

// Factory builds one scheduler per session.
type Factory func() Scheduler

// Interval ticks on a time.Ticker in its own goroutine.
type Interval struct {
	every time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewInterval returns a stopped scheduler. Non-positive durations use DefaultInterval.
func NewInterval(every time.Duration) *Interval {
	if every <= 0 {
		every = DefaultInterval
	}
	return &Interval{every: every}
}

// IntervalFactory returns a Factory of Interval schedulers.
func IntervalFactory(every time.Duration) Factory {
	return func() Scheduler { return NewInterval(every) }
}

func (s *Interval) Start(fn TickFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.every)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				// a tick that raced with Stop must not run
				select {
				case <-stop:
					return
				default:
				}
				fn(now)
			}
		}
	}()
}

// Stop must not be called from inside the tick handler.
func (s *Interval) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *Interval) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Manual ticks only when Tick is called. Used by tests.
type Manual struct {
	mu      sync.Mutex
	fn      TickFunc
	running bool
	starts  int
}

// NewManual returns a stopped manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Start(fn TickFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.fn = fn
	m.running = true
	m.starts++
}

func (m *Manual) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
}

func (m *Manual) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Starts counts how often the scheduler went from stopped to running.
func (m *Manual) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Tick runs the handler synchronously and reports whether it ran.
func (m *Manual) Tick(now time.Time) bool {
	m.mu.Lock()
	fn, running := m.fn, m.running
	m.mu.Unlock()

	if !running || fn == nil {
		return false
	}
	fn(now)
	return true
}
