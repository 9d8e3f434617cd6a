// Package watch is a websocket client for the viewer feed. It reconnects on
// failure and hands every event to a callback.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/floorsync/server/internal/ws"
)

type Options struct {
	// Events limits the feed. Empty receives everything.
	Events            []string
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	Logger            *slog.Logger
}

type Watcher struct {
	url      string
	opts     Options
	onEvent  func(ws.EventMessage)
	viewerID string
}

func New(url string, onEvent func(ws.EventMessage), opts Options) *Watcher {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{url: url, opts: opts, onEvent: onEvent}
}

// Run keeps a connection open until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := w.connect(ctx); err != nil && ctx.Err() == nil {
				w.opts.Logger.Warn("watch connection lost, reconnecting", "error", err, "delay", w.opts.ReconnectDelay)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(w.opts.ReconnectDelay):
				}
			}
		}
	}
}

func (w *Watcher) connect(ctx context.Context) error {
	w.opts.Logger.Debug("connecting", "url", w.url)

	conn, _, err := websocket.Dial(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "goodbye")

	var ack ws.AckMessage
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	w.viewerID = ack.ViewerID
	w.opts.Logger.Info("watching", "viewer_id", w.viewerID)

	if len(w.opts.Events) > 0 {
		sub := ws.SubscribeMessage{Type: "subscribe", Events: w.opts.Events}
		if err := wsjson.Write(ctx, conn, sub); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	hbCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.heartbeat(hbCtx, conn)

	return w.messageLoop(ctx, conn)
}

func (w *Watcher) messageLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var base ws.BaseMessage
		if err := json.Unmarshal(data, &base); err != nil {
			w.opts.Logger.Debug("invalid message", "error", err)
			continue
		}

		switch base.Type {
		case "event":
			var msg ws.EventMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				w.opts.Logger.Debug("invalid event", "error", err)
				continue
			}
			w.onEvent(msg)

		case "heartbeat":

		default:
			w.opts.Logger.Debug("unknown message type", "type", base.Type)
		}
	}
}

func (w *Watcher) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(w.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := ws.HeartbeatMessage{Type: "heartbeat"}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}
