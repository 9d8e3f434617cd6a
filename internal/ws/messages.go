package ws

import (
	"time"
)

type BaseMessage struct {
	Type string `json:"type"`
}

// Viewer → Server

type SubscribeMessage struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
}

type HeartbeatMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Server → Viewer

type AckMessage struct {
	Type     string `json:"type"`
	ViewerID string `json:"viewer_id"`
	Message  string `json:"message"`
}

type EventMessage struct {
	Type   string    `json:"type"`
	Event  string    `json:"event"`
	Data   any       `json:"data"`
	SentAt time.Time `json:"sent_at"`
}
