package viewer

import (
	"log/slog"
	"sort"
	"sync"
)

type Stats struct {
	Connected  int `json:"connected"`
	EventsSent int `json:"events_sent"`
}

type Manager struct {
	mu      sync.RWMutex
	viewers map[string]*Viewer
	logger  *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		viewers: make(map[string]*Viewer),
		logger:  logger,
	}
}

func (m *Manager) Add(v *Viewer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewers[v.ID] = v
	m.logger.Info("viewer connected", "viewer_id", v.ID, "total", len(m.viewers))
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.viewers, id)
	m.logger.Info("viewer disconnected", "viewer_id", id, "total", len(m.viewers))
}

func (m *Manager) Get(id string) (*Viewer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.viewers[id]
	return v, ok
}

// List returns viewer snapshots ordered by connection time.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.viewers))
	for _, v := range m.viewers {
		out = append(out, v.Info())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sent int
	for _, v := range m.viewers {
		sent += v.Info().EventsSent
	}
	return Stats{Connected: len(m.viewers), EventsSent: sent}
}
