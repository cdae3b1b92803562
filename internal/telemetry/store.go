// Package telemetry holds the current metrics and bounded history of every tire.
package telemetry

import (
	"sync"
	"time"

	"github.com/tpms-dashboard/backend/internal/models"
)

const (
	// DefaultHistoryPoints caps each metric series.
	DefaultHistoryPoints = 50

	// LabelLayout formats series labels like a browser locale time string.
	LabelLayout = "3:04:05 PM"
)

// Seeder returns the starting snapshot for a tire after Reset.
type Seeder func(tire int) models.MetricSnapshot

// Option configures a Store.
type Option func(*Store)

// WithHistoryPoints overrides the per-series cap. Values below 1 are ignored.
func WithHistoryPoints(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyPoints = n
		}
	}
}

// WithClock sets the time source used for labels and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLabelLayout sets the time layout of series labels.
func WithLabelLayout(layout string) Option {
	return func(s *Store) {
		if layout != "" {
			s.labelLayout = layout
		}
	}
}

// WithSeeder gives every tire a starting snapshot on Reset.
// Seeded values are not appended to the series.
func WithSeeder(seed Seeder) Option {
	return func(s *Store) {
		s.seed = seed
	}
}

type tireState struct {
	snapshot models.MetricSnapshot
	series   [3][]models.SeriesPoint
}

// Store is safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	tires         []tireState
	initialized   bool
	historyPoints int
	labelLayout   string
	now           func() time.Time
	seed          Seeder
}

// NewStore creates an uninitialized store. Call Reset before updating.
func NewStore(opts ...Option) *Store {
	s := &Store{
		historyPoints: DefaultHistoryPoints,
		labelLayout:   LabelLayout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reset discards all state and allocates tires 1..tireCount.
func (s *Store) Reset(tireCount int) {
	if tireCount < 0 {
		tireCount = 0
	}
	at := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tires = make([]tireState, tireCount)
	for i := range s.tires {
		if s.seed != nil {
			s.tires[i].snapshot = s.seed(i + 1)
		}
		s.tires[i].snapshot.UpdatedAt = at
	}
	s.initialized = true
}

// Update overwrites the present fields of m and appends them to their series.
// Unknown tires are ignored.
func (s *Store) Update(tire int, m models.MetricUpdate) {
	at := s.now()
	label := at.Format(s.labelLayout)

	s.mu.Lock()
	defer s.mu.Unlock()

	if tire < 1 || tire > len(s.tires) {
		return
	}
	state := &s.tires[tire-1]

	touched := false
	for i, kind := range models.MetricKinds {
		v, ok := m.Field(kind)
		if !ok {
			continue
		}
		switch kind {
		case models.MetricPressure:
			state.snapshot.Pressure = v
		case models.MetricTemperature:
			state.snapshot.Temperature = v
		case models.MetricBattery:
			state.snapshot.Battery = v
		}
		state.series[i] = s.appendPoint(state.series[i], models.SeriesPoint{Label: label, Value: v})
		touched = true
	}
	if touched {
		state.snapshot.UpdatedAt = at
	}
}

func (s *Store) appendPoint(series []models.SeriesPoint, p models.SeriesPoint) []models.SeriesPoint {
	series = append(series, p)
	if over := len(series) - s.historyPoints; over > 0 {
		// shift down in place so the backing array does not grow without bound
		n := copy(series, series[over:])
		series = series[:n]
	}
	return series
}

// Snapshot returns the current metrics of tire.
func (s *Store) Snapshot(tire int) (models.MetricSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if tire < 1 || tire > len(s.tires) {
		return models.MetricSnapshot{}, false
	}
	return s.tires[tire-1].snapshot, true
}

// Snapshots returns every tire's snapshot in tire order.
func (s *Store) Snapshots() []models.MetricSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MetricSnapshot, len(s.tires))
	for i := range s.tires {
		out[i] = s.tires[i].snapshot
	}
	return out
}

// Series returns a copy of one metric history, oldest first.
func (s *Store) Series(kind models.MetricKind, tire int) []models.SeriesPoint {
	idx := kindIndex(kind)
	if idx < 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if tire < 1 || tire > len(s.tires) {
		return nil
	}
	src := s.tires[tire-1].series[idx]
	out := make([]models.SeriesPoint, len(src))
	copy(out, src)
	return out
}

// TireCount returns the number of allocated tires.
func (s *Store) TireCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tires)
}

// Initialized reports whether Reset has been called.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// HistoryPoints returns the per-series cap.
func (s *Store) HistoryPoints() int {
	return s.historyPoints
}

func kindIndex(kind models.MetricKind) int {
	for i, k := range models.MetricKinds {
		if k == kind {
			return i
		}
	}
	return -1
}
