// Package session owns the per-browser dashboard state: the accepted axle
// configuration, tire positions, the tire data store and the simulation schedule.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tpms-dashboard/backend/internal/chart"
	"github.com/tpms-dashboard/backend/internal/layout"
	"github.com/tpms-dashboard/backend/internal/logging"
	"github.com/tpms-dashboard/backend/internal/metrics"
	"github.com/tpms-dashboard/backend/internal/models"
	"github.com/tpms-dashboard/backend/internal/scheduler"
	"github.com/tpms-dashboard/backend/internal/simulator"
	"github.com/tpms-dashboard/backend/internal/status"
	"github.com/tpms-dashboard/backend/internal/telemetry"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrUnknownTire = errors.New("unknown tire")
	ErrClosed      = errors.New("session closed")
)

// Options configures new sessions.
type Options struct {
	Profile       layout.Profile
	Limits        layout.Limits
	Classifier    *status.Classifier
	HistoryPoints int
	LabelLayout   string
	Mode          simulator.Mode
	Seed          uint64 // 0 seeds from the clock
	Clock         func() time.Time
	Scheduler     scheduler.Factory
	Publisher     Publisher
	Logger        zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Profile.Name == "" {
		o.Profile = layout.TruckProfile
	}
	if o.Limits.MaxTires == 0 {
		o.Limits = layout.DefaultLimits()
	}
	if o.Classifier == nil {
		o.Classifier = status.Default()
	}
	if o.Mode == "" {
		o.Mode = simulator.ModeDrift
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Scheduler == nil {
		o.Scheduler = scheduler.IntervalFactory(scheduler.DefaultInterval)
	}
	return o
}

// Session is one dashboard instance.
type Session struct {
	ID        string
	CreatedAt time.Time

	// ctrl serializes configuration and collection control.
	// It is never held by the tick handler, so Stop can wait for a tick.
	ctrl sync.Mutex

	mu           sync.RWMutex
	axles        models.AxleConfig
	positions    []models.TirePosition
	collecting   bool
	closed       bool
	selected     int
	ticks        int64
	device       models.DeviceSettings
	lastAccessed time.Time
	lastCounts   map[models.StatusLevel]int

	store      *telemetry.Store
	gen        *simulator.Generator
	classifier *status.Classifier
	sched      scheduler.Scheduler
	pub        Publisher
	profile    layout.Profile
	limits     layout.Limits
	now        func() time.Time
	log        zerolog.Logger
}

// New creates a stopped session laid out for axles.
func New(axles models.AxleConfig, device models.DeviceSettings, o Options) (*Session, error) {
	o = o.withDefaults()
	if err := layout.Validate(axles, o.Limits); err != nil {
		return nil, err
	}

	gen := simulator.NewRandom(o.Mode)
	if o.Seed != 0 {
		gen = simulator.New(o.Seed, o.Mode)
	}

	storeOpts := []telemetry.Option{
		telemetry.WithClock(o.Clock),
		telemetry.WithSeeder(gen.Seed),
		telemetry.WithHistoryPoints(o.HistoryPoints),
		telemetry.WithLabelLayout(o.LabelLayout),
	}

	id := uuid.New().String()
	now := o.Clock()
	s := &Session{
		ID:           id,
		CreatedAt:    now,
		device:       device,
		lastAccessed: now,
		store:        telemetry.NewStore(storeOpts...),
		gen:          gen,
		classifier:   o.Classifier,
		sched:        o.Scheduler(),
		pub:          o.Publisher,
		profile:      o.Profile,
		limits:       o.Limits,
		now:          o.Clock,
		log:          o.Logger.With().Str("session", logging.ShortID(id)).Logger(),
	}
	s.applyLocked(axles)
	return s, nil
}

// applyLocked installs axles and resets the store. Caller holds mu or owns s exclusively.
func (s *Session) applyLocked(axles models.AxleConfig) {
	s.axles = append(models.AxleConfig(nil), axles...)
	s.positions = layout.ComputePositions(s.axles, s.profile)
	s.store.Reset(s.axles.TotalTires())
	s.selected = 0
}

// Configure replaces the axle configuration. Collection keeps running if it was on,
// but no tick runs between the old layout and the reset store.
func (s *Session) Configure(axles models.AxleConfig) error {
	if err := layout.Validate(axles, s.limits); err != nil {
		return err
	}

	s.ctrl.Lock()
	defer s.ctrl.Unlock()

	s.sched.Stop()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.applyLocked(axles)
	collecting := s.collecting
	s.mu.Unlock()

	if collecting {
		s.sched.Start(s.tick)
	}
	s.log.Info().Str("axles", layout.String(axles)).Int("tires", axles.TotalTires()).Msg("configured")
	return nil
}

// StartCollection re-initializes tire data and starts the simulation.
func (s *Session) StartCollection() error {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()

	s.sched.Stop()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.store.Reset(s.axles.TotalTires())
	s.collecting = true
	s.mu.Unlock()

	s.sched.Start(s.tick)
	s.log.Info().Msg("collection started")
	return nil
}

// StopCollection halts the simulation. Data is kept.
func (s *Session) StopCollection() {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()

	s.mu.Lock()
	s.collecting = false
	s.mu.Unlock()

	s.sched.Stop()
	s.log.Info().Msg("collection stopped")
}

// Close stops the session for good.
func (s *Session) Close() {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()

	s.mu.Lock()
	wasClosed := s.closed
	s.closed = true
	s.collecting = false
	counts := s.lastCounts
	s.lastCounts = nil
	s.mu.Unlock()

	s.sched.Stop()
	metrics.AddTireStatus(counts, -1)

	if n, ok := s.pub.(CloseNotifier); ok && !wasClosed {
		n.SessionClosed(s.ID)
	}
}

func (s *Session) tick(now time.Time) {
	start := time.Now()

	s.mu.Lock()
	if !s.collecting || s.closed {
		s.mu.Unlock()
		return
	}
	s.gen.Tick(s.store, s.store.TireCount())
	s.ticks++
	rows := s.liveRowsLocked()
	update := models.TickUpdate{SessionID: s.ID, Tick: s.ticks, At: now, Rows: rows}

	counts := make(map[models.StatusLevel]int, 3)
	for _, r := range rows {
		counts[r.Status]++
	}
	prev := s.lastCounts
	s.lastCounts = counts
	s.mu.Unlock()

	metrics.ObserveTick(time.Since(start))
	metrics.AddTireStatus(prev, -1)
	metrics.AddTireStatus(counts, 1)

	if s.pub != nil {
		s.pub.Publish(update)
	}
}

// SelectTire marks tire as the one shown in the detail view.
func (s *Session) SelectTire(tire int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tire < 1 || tire > len(s.positions) {
		return fmt.Errorf("tire %d: %w", tire, ErrUnknownTire)
	}
	s.selected = tire
	return nil
}

// ClearSelection closes the detail view.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selected = 0
	s.mu.Unlock()
}

// SetDevice records the receiver settings shown with the session.
func (s *Session) SetDevice(d models.DeviceSettings) {
	s.mu.Lock()
	s.device = d
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastAccessed = s.now()
	s.mu.Unlock()
}

// LastAccessed returns the last time the session was read through the manager.
func (s *Session) LastAccessed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccessed
}

// Collecting reports whether the simulation is on.
func (s *Session) Collecting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collecting
}

// Axles returns the accepted configuration.
func (s *Session) Axles() models.AxleConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(models.AxleConfig(nil), s.axles...)
}

// Layout returns the tire positions in tire order.
func (s *Session) Layout() []models.TirePosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.TirePosition(nil), s.positions...)
}

// Info summarizes the session.
func (s *Session) Info() models.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.SessionInfo{
		ID:           s.ID,
		AxleConfig:   append(models.AxleConfig(nil), s.axles...),
		TireCount:    len(s.positions),
		Collecting:   s.collecting,
		SelectedTire: s.selected,
		Ticks:        s.ticks,
		Mode:         string(s.gen.Mode()),
		Device:       s.device,
		CreatedAt:    s.CreatedAt,
		LastAccessed: s.lastAccessed,
	}
}

// LiveTable returns one row per tire.
func (s *Session) LiveTable() []models.LiveRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveRowsLocked()
}

func (s *Session) liveRowsLocked() []models.LiveRow {
	snaps := s.store.Snapshots()
	rows := make([]models.LiveRow, len(snaps))
	for i, snap := range snaps {
		rows[i] = s.rowLocked(i+1, snap)
	}
	return rows
}

func (s *Session) rowLocked(tire int, snap models.MetricSnapshot) models.LiveRow {
	name := fmt.Sprintf("Tire %d", tire)
	if tire <= len(s.positions) {
		name = s.positions[tire-1].Name
	}
	return models.LiveRow{
		Tire:     tire,
		Name:     name,
		Snapshot: snap,
		Status:   s.classifier.Classify(snap),
		Metrics:  s.classifier.ClassifyAll(snap),
	}
}

// TireDetail returns the detail card data of one tire.
func (s *Session) TireDetail(tire int) (models.TireDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.store.Snapshot(tire)
	if !ok || tire > len(s.positions) {
		return models.TireDetail{}, fmt.Errorf("tire %d: %w", tire, ErrUnknownTire)
	}
	return models.TireDetail{
		LiveRow:  s.rowLocked(tire, snap),
		Position: s.positions[tire-1],
		Points:   len(s.store.Series(models.MetricPressure, tire)),
	}, nil
}

// ChartData merges the three histories of tire.
func (s *Session) ChartData(tire int) (models.ChartData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if tire < 1 || tire > s.store.TireCount() {
		return models.ChartData{}, fmt.Errorf("tire %d: %w", tire, ErrUnknownTire)
	}
	return chart.MergeTire(s.store, tire), nil
}

// Thresholds returns the active classification table.
func (s *Session) Thresholds() status.Thresholds {
	return s.classifier.Thresholds
}
