// Package viewer tracks the dashboards connected over websocket.
package viewer

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Viewer is one connected dashboard. An empty subscription list means the
// viewer receives every event.
type Viewer struct {
	ID          string
	ConnectedAt time.Time
	UserAgent   string

	mu            sync.Mutex
	lastHeartbeat time.Time
	subscriptions []string
	eventsSent    int
}

// Info is a point-in-time copy of a Viewer safe to serialize.
type Info struct {
	ID            string    `json:"id"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	UserAgent     string    `json:"user_agent,omitempty"`
	Subscriptions []string  `json:"subscriptions,omitempty"`
	EventsSent    int       `json:"events_sent"`
}

func New(userAgent string) *Viewer {
	now := time.Now().UTC()
	return &Viewer{
		ID:            uuid.NewString(),
		ConnectedAt:   now,
		UserAgent:     userAgent,
		lastHeartbeat: now,
	}
}

func (v *Viewer) UpdateHeartbeat() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastHeartbeat = time.Now().UTC()
}

// Subscribe replaces the event filter.
func (v *Viewer) Subscribe(events []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.subscriptions = slices.Clone(events)
}

func (v *Viewer) Wants(event string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subscriptions) == 0 || slices.Contains(v.subscriptions, event)
}

func (v *Viewer) MarkSent() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.eventsSent++
}

func (v *Viewer) Info() Info {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Info{
		ID:            v.ID,
		ConnectedAt:   v.ConnectedAt,
		LastHeartbeat: v.lastHeartbeat,
		UserAgent:     v.UserAgent,
		Subscriptions: slices.Clone(v.subscriptions),
		EventsSent:    v.eventsSent,
	}
}
