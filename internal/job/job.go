package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/floorsync/server/internal/stamp"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusInTransit Status = "in_transit"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Job is a single transport task moving a part between two locations.
type Job struct {
	ID           string    `json:"job_id"`
	PartCode     string    `json:"part_code"`
	FromLocation string    `json:"from_location"`
	ToLocation   string    `json:"to_location"`
	Status       Status    `json:"status"`
	RequestedAt  time.Time `json:"requested_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UnmarshalJSON accepts the timestamp forms other tools write into the job
// file: ISO-8601 with or without a zone, and epoch seconds. A value that
// cannot be parsed decodes as the zero time instead of failing the record.
func (j *Job) UnmarshalJSON(b []byte) error {
	type plain Job
	var raw struct {
		plain
		RequestedAt any `json:"requested_at"`
		UpdatedAt   any `json:"updated_at"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*j = Job(raw.plain)
	j.RequestedAt = decodeTime(raw.RequestedAt)
	j.UpdatedAt = decodeTime(raw.UpdatedAt)
	return nil
}

func decodeTime(v any) time.Time {
	switch t := v.(type) {
	case string:
		if parsed, err := stamp.Parse(t); err == nil {
			return parsed
		}
	case float64:
		return stamp.FromUnix(t)
	}
	return time.Time{}
}

// EffectiveTime is UpdatedAt, falling back to RequestedAt for records that
// were never updated.
func (j Job) EffectiveTime() time.Time {
	if !j.UpdatedAt.IsZero() {
		return j.UpdatedAt
	}
	return j.RequestedAt
}

var (
	ErrNotFound      = errors.New("job not found")
	ErrUnavailable   = errors.New("job store unavailable")
	ErrInvalidStatus = errors.New("invalid status")
)

// ConflictError reports a status transition the policy does not permit.
type ConflictError struct {
	Job       Job // stored record, unchanged
	Current   Status
	Requested Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("invalid_transition %s->%s", e.Current, e.Requested)
}

// Overrides are optional location changes applied alongside a status change.
// Empty fields leave the stored value untouched.
type Overrides struct {
	FromLocation string
	ToLocation   string
}

// Result describes an accepted mutation.
type Result struct {
	Job      Job
	Previous *Job // nil when the job was created
}

func (r Result) Created() bool {
	return r.Previous == nil
}
