package logistics

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/floorsync/server/internal/audit"
	"github.com/floorsync/server/internal/job"
)

type emission struct {
	event   string
	payload any
}

type fakeHub struct {
	mu     sync.Mutex
	events []emission
}

func (h *fakeHub) Emit(event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, emission{event, payload})
}

type auditEntry struct {
	event    audit.Event
	job      job.Job
	previous *job.Job
	note     string
}

type fakeAuditor struct {
	entries []auditEntry
}

func (a *fakeAuditor) Record(event audit.Event, j job.Job, previous *job.Job, note string) {
	a.entries = append(a.entries, auditEntry{event, j, previous, note})
}

func (a *fakeAuditor) last() auditEntry {
	return a.entries[len(a.entries)-1]
}

func newTestService(t *testing.T, opts job.Options) (*Service, *fakeHub, *fakeAuditor) {
	t.Helper()
	opts.Path = filepath.Join(t.TempDir(), "jobs.json")
	hub := &fakeHub{}
	auditor := &fakeAuditor{}
	return NewService(job.NewStore(opts), auditor, hub, nil), hub, auditor
}

func TestCreate_DefaultsAndBroadcast(t *testing.T) {
	svc, hub, auditor := newTestService(t, job.Options{})

	j, err := svc.Create(context.Background(), CreateInput{PartCode: "PART-01", FromLocation: "RACK-A1", ToLocation: "RACK-B2"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if j.Status != job.StatusPending {
		t.Errorf("expected pending, got %s", j.Status)
	}
	if j.ID == "" || j.RequestedAt.IsZero() || j.UpdatedAt.IsZero() {
		t.Errorf("expected id and timestamps, got %+v", j)
	}

	if len(hub.events) != 1 || hub.events[0].event != EventJobUpdated {
		t.Fatalf("expected one broadcast, got %+v", hub.events)
	}
	if got := hub.events[0].payload.(job.Job); got.ID != j.ID {
		t.Errorf("broadcast payload mismatch: %+v", got)
	}
	if auditor.last().event != audit.EventCreate {
		t.Errorf("expected create audit, got %s", auditor.last().event)
	}
}

func TestCreate_TrimsAndKeepsRequestedAt(t *testing.T) {
	svc, _, _ := newTestService(t, job.Options{})
	requested := time.Date(2025, 10, 31, 21, 0, 0, 0, time.FixedZone("JST", 9*3600))

	j, err := svc.Create(context.Background(), CreateInput{
		JobID: " job-1 ", PartCode: " P ", FromLocation: "A", ToLocation: "B", RequestedAt: &requested,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if j.ID != "job-1" || j.PartCode != "P" {
		t.Errorf("expected trimmed fields, got %+v", j)
	}
	if !j.RequestedAt.Equal(requested) || j.RequestedAt.Location() != time.UTC {
		t.Errorf("expected UTC requested_at, got %v", j.RequestedAt)
	}
}

func TestCreate_MissingFields(t *testing.T) {
	svc, hub, auditor := newTestService(t, job.Options{})

	_, err := svc.Create(context.Background(), CreateInput{PartCode: "PART-01", FromLocation: "RACK-A1"})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != "missing_required_fields" {
		t.Fatalf("expected missing_required_fields, got %v", err)
	}
	if len(hub.events) != 0 {
		t.Error("expected no broadcast")
	}
	if auditor.last().event != audit.EventCreateRejected {
		t.Errorf("expected rejected audit, got %s", auditor.last().event)
	}
}

func TestCreate_InvalidStatus(t *testing.T) {
	svc, _, _ := newTestService(t, job.Options{})

	_, err := svc.Create(context.Background(), CreateInput{PartCode: "P", FromLocation: "A", ToLocation: "B", Status: "unknown"})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != "invalid_status" {
		t.Fatalf("expected invalid_status, got %v", err)
	}
}

func TestCreate_ExistingIDConflict(t *testing.T) {
	svc, hub, auditor := newTestService(t, job.Options{})
	ctx := context.Background()

	svc.Create(ctx, CreateInput{JobID: "job-1", PartCode: "P", FromLocation: "A", ToLocation: "B", Status: job.StatusCompleted})

	_, err := svc.Create(ctx, CreateInput{JobID: "job-1", PartCode: "P", FromLocation: "A", ToLocation: "B"})
	var conflict *job.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	entry := auditor.last()
	if entry.event != audit.EventCreateConflict || entry.note != "invalid_transition completed->pending" {
		t.Errorf("unexpected audit %+v", entry)
	}
	if entry.previous == nil || entry.previous.Status != job.StatusCompleted {
		t.Errorf("expected previous snapshot, got %+v", entry.previous)
	}
	if len(hub.events) != 1 {
		t.Errorf("expected only the first create broadcast, got %d", len(hub.events))
	}
}

func TestCreate_ExistingIDUpdates(t *testing.T) {
	svc, _, auditor := newTestService(t, job.Options{})
	ctx := context.Background()

	first, _ := svc.Create(ctx, CreateInput{JobID: "job-1", PartCode: "P", FromLocation: "A", ToLocation: "B"})
	second, err := svc.Create(ctx, CreateInput{JobID: "job-1", PartCode: "P", FromLocation: "A", ToLocation: "C", Status: job.StatusInTransit})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !second.RequestedAt.Equal(first.RequestedAt) {
		t.Errorf("requested_at changed: %v -> %v", first.RequestedAt, second.RequestedAt)
	}
	if auditor.last().event != audit.EventUpdate {
		t.Errorf("expected update audit, got %s", auditor.last().event)
	}
}

func TestUpdateStatus_EndToEnd(t *testing.T) {
	svc, hub, _ := newTestService(t, job.Options{})
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{PartCode: "P1", FromLocation: "A", ToLocation: "B"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, st := range []job.Status{job.StatusInTransit, job.StatusCompleted} {
		if _, err := svc.UpdateStatus(ctx, created.ID, StatusInput{Status: st}); err != nil {
			t.Fatalf("status %s: %v", st, err)
		}
	}

	_, err = svc.UpdateStatus(ctx, created.ID, StatusInput{Status: job.StatusPending})
	var conflict *job.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if conflict.Current != job.StatusCompleted || conflict.Requested != job.StatusPending {
		t.Errorf("unexpected conflict %+v", conflict)
	}
	if len(hub.events) != 3 {
		t.Errorf("expected 3 broadcasts, got %d", len(hub.events))
	}
}

func TestUpdateStatus_Overrides(t *testing.T) {
	svc, _, auditor := newTestService(t, job.Options{})
	ctx := context.Background()

	svc.Create(ctx, CreateInput{JobID: "job-001", PartCode: "PART-01", FromLocation: "RACK-A1", ToLocation: "RACK-B2"})

	j, err := svc.UpdateStatus(ctx, "job-001", StatusInput{Status: job.StatusInTransit, ToLocation: "RACK-C3"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if j.ToLocation != "RACK-C3" || j.FromLocation != "RACK-A1" {
		t.Errorf("unexpected locations %+v", j)
	}
	entry := auditor.last()
	if entry.event != audit.EventStatusUpdate || entry.previous.ToLocation != "RACK-B2" {
		t.Errorf("unexpected audit %+v", entry)
	}
}

func TestUpdateStatus_Validation(t *testing.T) {
	svc, _, _ := newTestService(t, job.Options{})
	ctx := context.Background()

	cases := map[string]struct {
		id   string
		in   StatusInput
		code string
	}{
		"missing id":     {"", StatusInput{Status: job.StatusCompleted}, "missing_job_id"},
		"missing status": {"job-1", StatusInput{FromLocation: "A"}, "missing_status"},
		"invalid status": {"job-1", StatusInput{Status: "teleported"}, "invalid_status"},
	}
	for name, c := range cases {
		_, err := svc.UpdateStatus(ctx, c.id, c.in)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Code != c.code {
			t.Errorf("%s: expected %s, got %v", name, c.code, err)
		}
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc, hub, auditor := newTestService(t, job.Options{})

	_, err := svc.UpdateStatus(context.Background(), "job-unknown", StatusInput{Status: job.StatusCompleted})
	if !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if auditor.last().event != audit.EventUpdateNotFound {
		t.Errorf("expected not-found audit, got %s", auditor.last().event)
	}
	if len(hub.events) != 0 {
		t.Error("expected no broadcast")
	}
}

func TestList_Clamped(t *testing.T) {
	svc, _, _ := newTestService(t, job.Options{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		svc.Create(ctx, CreateInput{PartCode: "P", FromLocation: "A", ToLocation: "B"})
	}

	jobs, err := svc.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("expected limit clamped to 1, got %d", len(jobs))
	}

	jobs, _ = svc.List(ctx, 10000)
	if len(jobs) != 3 {
		t.Errorf("expected 3 jobs, got %d", len(jobs))
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{-5: 1, 0: 1, 1: 1, 100: 100, 500: 500, 501: 500}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
