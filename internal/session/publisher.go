package session

import "github.com/tpms-dashboard/backend/internal/models"

// Publisher receives every completed tick. Publish is called outside session locks
// and must not block for long.
type Publisher interface {
	Publish(update models.TickUpdate)
}

// CloseNotifier is implemented by publishers that hold per-session state,
// such as subscribed websocket clients. SessionClosed is called once a session
// is closed, outside session locks.
type CloseNotifier interface {
	SessionClosed(sessionID string)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(models.TickUpdate)

func (f PublisherFunc) Publish(update models.TickUpdate) { f(update) }

// Fanout publishes to each non-nil member in order.
type Fanout []Publisher

func (f Fanout) Publish(update models.TickUpdate) {
	for _, p := range f {
		if p != nil {
			p.Publish(update)
		}
	}
}

// SessionClosed forwards to every member that implements CloseNotifier.
func (f Fanout) SessionClosed(sessionID string) {
	for _, p := range f {
		if n, ok := p.(CloseNotifier); ok {
			n.SessionClosed(sessionID)
		}
	}
}
