package session

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tpms-dashboard/backend/internal/logging"
	"github.com/tpms-dashboard/backend/internal/metrics"
	"github.com/tpms-dashboard/backend/internal/models"
)

// MaxSessions limits concurrent sessions to bound memory and scheduler goroutines.
const MaxSessions = 10

// SessionMaxAge is how long an idle session is kept before cleanup.
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow protects recently used sessions from cleanup.
const SessionKeepAliveWindow = 5 * time.Minute

// Manager handles active dashboard sessions.
type Manager struct {
	sessions    map[string]*Session
	mu          sync.RWMutex
	opts        Options
	maxSessions int
	log         zerolog.Logger
}

// NewManager creates a manager whose sessions use opts.
func NewManager(opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		sessions:    make(map[string]*Session),
		opts:        opts,
		maxSessions: MaxSessions,
		log:         logging.Component(opts.Logger, "session"),
	}
}

// SetMaxSessions overrides MaxSessions. Values below 1 are ignored.
func (m *Manager) SetMaxSessions(n int) {
	if n < 1 {
		return
	}
	m.mu.Lock()
	m.maxSessions = n
	m.mu.Unlock()
}

// Options returns the options new sessions are built with.
func (m *Manager) Options() Options {
	return m.opts
}

// Create opens a new session, evicting the least recently used one at capacity.
func (m *Manager) Create(axles models.AxleConfig, device models.DeviceSettings) (*Session, error) {
	opts := m.opts
	opts.Logger = m.log
	s, err := New(axles, device, opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	evicted := m.evictLocked(len(m.sessions) - m.maxSessions + 1)
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	for _, old := range evicted {
		old.Close()
		m.log.Info().Str("session", logging.ShortID(old.ID)).Msg("evicted least recently used session")
	}
	metrics.SetActiveSessions(count)
	m.log.Info().Str("session", logging.ShortID(s.ID)).Int("tires", axles.TotalTires()).Msg("session created")
	return s, nil
}

// evictLocked removes the n least recently accessed sessions.
func (m *Manager) evictLocked(n int) []*Session {
	if n <= 0 {
		return nil
	}
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].LastAccessed().Before(all[j].LastAccessed())
	})
	if n > len(all) {
		n = len(all)
	}
	for _, s := range all[:n] {
		delete(m.sessions, s.ID)
	}
	return all[:n]
}

// Get returns a session and marks it as used.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.touch()
	return s, true
}

// Delete closes and removes a session.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	metrics.SetActiveSessions(count)
	m.log.Info().Str("session", logging.ShortID(id)).Msg("session closed")
	return true
}

// List returns summaries newest first.
func (m *Manager) List() []models.SessionInfo {
	m.mu.RLock()
	out := make([]models.SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Info())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupOldSessions closes sessions idle for longer than maxAge.
// Sessions used within SessionKeepAliveWindow are always kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	now := m.opts.Clock()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		last := s.LastAccessed()
		if last.After(keepAliveCutoff) || !last.Before(cutoff) {
			continue
		}
		stale = append(stale, s)
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
		m.log.Info().
			Str("session", logging.ShortID(s.ID)).
			Dur("idle", now.Sub(s.LastAccessed()).Round(time.Second)).
			Msg("cleaned up aged session")
	}
	if len(stale) > 0 {
		metrics.SetActiveSessions(count)
	}
	return len(stale)
}

// CloseAll stops every session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	metrics.SetActiveSessions(0)
}
