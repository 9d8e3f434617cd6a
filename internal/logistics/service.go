// Package logistics coordinates transport job mutations: it validates
// requests, applies them through the job store, records every attempt in the
// audit log and broadcasts accepted changes.
package logistics

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/floorsync/server/internal/audit"
	"github.com/floorsync/server/internal/job"
)

// EventJobUpdated is broadcast with the job snapshot after every accepted
// mutation.
const EventJobUpdated = "logistics_job_updated"

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Broadcaster publishes an event to connected viewers. Delivery is
// fire-and-forget.
type Broadcaster interface {
	Emit(event string, payload any)
}

type Auditor interface {
	Record(event audit.Event, j job.Job, previous *job.Job, note string)
}

// ValidationError is returned before any store access. Code is a stable
// reason string such as "missing_required_fields" or "invalid_status".
type ValidationError struct {
	Code string
}

func (e *ValidationError) Error() string {
	return e.Code
}

type CreateInput struct {
	JobID        string
	PartCode     string
	FromLocation string
	ToLocation   string
	Status       job.Status // defaults to pending
	RequestedAt  *time.Time
}

type StatusInput struct {
	Status       job.Status
	FromLocation string
	ToLocation   string
}

type Service struct {
	store  job.JobStore
	audit  Auditor
	hub    Broadcaster
	logger *slog.Logger
}

func NewService(store job.JobStore, auditor Auditor, hub Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, audit: auditor, hub: hub, logger: logger}
}

// ClampLimit bounds a requested list size to [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func (s *Service) List(ctx context.Context, limit int) ([]job.Job, error) {
	return s.store.List(ctx, ClampLimit(limit))
}

// Create adds a job. When JobID names an existing job this replaces it,
// keeping its requested_at, and the status change must be permitted.
func (s *Service) Create(ctx context.Context, in CreateInput) (job.Job, error) {
	candidate := job.Job{
		ID:           strings.TrimSpace(in.JobID),
		PartCode:     strings.TrimSpace(in.PartCode),
		FromLocation: strings.TrimSpace(in.FromLocation),
		ToLocation:   strings.TrimSpace(in.ToLocation),
		Status:       job.Status(strings.TrimSpace(string(in.Status))),
	}
	if candidate.Status == "" {
		candidate.Status = job.StatusPending
	}
	if in.RequestedAt != nil {
		candidate.RequestedAt = in.RequestedAt.UTC()
	}

	if candidate.PartCode == "" || candidate.FromLocation == "" || candidate.ToLocation == "" {
		return s.reject(audit.EventCreateRejected, candidate, "missing_required_fields")
	}
	if !s.store.Policy().Allowed(candidate.Status) {
		return s.reject(audit.EventCreateRejected, candidate, "invalid_status")
	}

	res, err := s.store.Upsert(ctx, candidate)
	if err != nil {
		var conflict *job.ConflictError
		if errors.As(err, &conflict) {
			s.record(audit.EventCreateConflict, candidate, &conflict.Job, conflict.Error())
		} else {
			s.record(audit.EventCreateFailed, candidate, nil, err.Error())
		}
		return job.Job{}, err
	}

	event := audit.EventCreate
	if !res.Created() {
		event = audit.EventUpdate
	}
	s.record(event, res.Job, res.Previous, "")
	s.emit(res.Job)
	return res.Job, nil
}

// UpdateStatus moves an existing job to a new status, applying any non-empty
// location overrides.
func (s *Service) UpdateStatus(ctx context.Context, id string, in StatusInput) (job.Job, error) {
	attempt := job.Job{
		ID:           strings.TrimSpace(id),
		Status:       job.Status(strings.TrimSpace(string(in.Status))),
		FromLocation: strings.TrimSpace(in.FromLocation),
		ToLocation:   strings.TrimSpace(in.ToLocation),
	}
	if attempt.ID == "" {
		return s.reject(audit.EventStatusRejected, attempt, "missing_job_id")
	}
	if attempt.Status == "" {
		return s.reject(audit.EventStatusRejected, attempt, "missing_status")
	}
	if !s.store.Policy().Allowed(attempt.Status) {
		return s.reject(audit.EventStatusRejected, attempt, "invalid_status")
	}

	res, err := s.store.Transition(ctx, attempt.ID, attempt.Status, job.Overrides{
		FromLocation: attempt.FromLocation,
		ToLocation:   attempt.ToLocation,
	})
	if err != nil {
		var conflict *job.ConflictError
		switch {
		case errors.As(err, &conflict):
			tried := conflict.Job
			tried.Status = attempt.Status
			s.record(audit.EventStatusConflict, tried, &conflict.Job, conflict.Error())
		case errors.Is(err, job.ErrNotFound):
			s.record(audit.EventUpdateNotFound, attempt, nil, "job_not_found")
		default:
			s.record(audit.EventStatusFailed, attempt, nil, err.Error())
		}
		return job.Job{}, err
	}

	s.record(audit.EventStatusUpdate, res.Job, res.Previous, "")
	s.emit(res.Job)
	return res.Job, nil
}

func (s *Service) reject(event audit.Event, attempt job.Job, code string) (job.Job, error) {
	s.record(event, attempt, nil, code)
	return job.Job{}, &ValidationError{Code: code}
}

func (s *Service) record(event audit.Event, j job.Job, previous *job.Job, note string) {
	if s.audit != nil {
		s.audit.Record(event, j, previous, note)
	}
}

func (s *Service) emit(j job.Job) {
	if s.hub == nil {
		return
	}
	s.hub.Emit(EventJobUpdated, j)
	s.logger.Debug("logistics job broadcast", "job_id", j.ID, "status", j.Status)
}
