package testutil

import (
	"sync"

	"github.com/tpms-dashboard/backend/internal/models"
)

// RecordingPublisher keeps every published tick update and closed session ID.
type RecordingPublisher struct {
	mu      sync.Mutex
	updates []models.TickUpdate
	closed  []string
}

// Publish records update.
func (p *RecordingPublisher) Publish(update models.TickUpdate) {
	p.mu.Lock()
	p.updates = append(p.updates, update)
	p.mu.Unlock()
}

// Updates returns a copy of the recorded updates.
func (p *RecordingPublisher) Updates() []models.TickUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.TickUpdate(nil), p.updates...)
}

// Len returns the number of recorded updates.
func (p *RecordingPublisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.updates)
}

// Last returns the most recent update.
func (p *RecordingPublisher) Last() (models.TickUpdate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.updates) == 0 {
		return models.TickUpdate{}, false
	}
	return p.updates[len(p.updates)-1], true
}

// SessionClosed records sessionID.
func (p *RecordingPublisher) SessionClosed(sessionID string) {
	p.mu.Lock()
	p.closed = append(p.closed, sessionID)
	p.mu.Unlock()
}

// Closed returns the IDs passed to SessionClosed, in call order.
func (p *RecordingPublisher) Closed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.closed...)
}
