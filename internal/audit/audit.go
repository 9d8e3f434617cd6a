// Package audit appends one JSON line per logistics mutation attempt,
// accepted or rejected. Recording is best-effort: write failures are dropped
// and never reach the caller.
package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"

	"github.com/floorsync/server/internal/job"
	"github.com/floorsync/server/internal/stamp"
)

type Event string

const (
	EventCreate         Event = "create"
	EventUpdate         Event = "update"
	EventStatusUpdate   Event = "status_update"
	EventCreateConflict Event = "create_conflict"
	EventStatusConflict Event = "status_transition_conflict"
	EventUpdateNotFound Event = "update_not_found"
	EventCreateRejected Event = "create_rejected"
	EventStatusRejected Event = "status_update_rejected"
	EventCreateFailed   Event = "create_failed"
	EventStatusFailed   Event = "status_update_failed"
)

const message = "logistics_job"

type Recorder struct {
	logger *slog.Logger
	closer io.Closer
}

// Open appends to the file at path. When mirror is non-nil every record is
// also sent to it, typically the application log handler. If the file cannot
// be opened the recorder falls back to the mirror alone.
func Open(path string, mirror slog.Handler) *Recorder {
	if path == "" {
		return New(nil, mirror)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		slog.Warn("audit log directory unavailable", "path", path, "error", err)
		return New(nil, mirror)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Warn("audit log unavailable", "path", path, "error", err)
		return New(nil, mirror)
	}
	r := New(f, mirror)
	r.closer = f
	return r
}

// New records to w (JSON lines) and mirror. Either may be nil.
func New(w io.Writer, mirror slog.Handler) *Recorder {
	var handlers []slog.Handler
	if w != nil {
		handlers = append(handlers, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if mirror != nil {
		handlers = append(handlers, mirror)
	}
	return &Recorder{logger: slog.New(slogmulti.Fanout(handlers...))}
}

// Record logs one mutation attempt. previous and note are optional.
func (r *Recorder) Record(event Event, j job.Job, previous *job.Job, note string) {
	if r == nil {
		return
	}
	defer func() {
		// A misbehaving handler must never take down a store mutation.
		if p := recover(); p != nil {
			slog.Warn("audit record dropped", "event", event, "panic", fmt.Sprint(p))
		}
	}()

	attrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("job_id", j.ID),
		slog.String("status", string(j.Status)),
		slog.String("part_code", j.PartCode),
		slog.String("from_location", j.FromLocation),
		slog.String("to_location", j.ToLocation),
	}
	if !j.UpdatedAt.IsZero() {
		attrs = append(attrs, slog.String("updated_at", stamp.Format(j.UpdatedAt)))
	}
	if previous != nil {
		attrs = append(attrs,
			slog.String("previous_status", string(previous.Status)),
			slog.String("previous_to_location", previous.ToLocation),
		)
	}
	if note != "" {
		attrs = append(attrs, slog.String("note", note))
	}

	level := slog.LevelInfo
	if note != "" {
		level = slog.LevelWarn
	}
	r.logger.LogAttrs(context.Background(), level, message, attrs...)
}

func (r *Recorder) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
