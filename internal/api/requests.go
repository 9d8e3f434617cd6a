package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/floorsync/server/internal/stamp"
)

// text is a JSON string field that records whether it was present and
// whether the value had the wrong type. null counts as absent.
type text struct {
	Value   string
	Set     bool
	Invalid bool
}

func (t *text) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	t.Set = true
	if err := json.Unmarshal(b, &t.Value); err != nil {
		t.Invalid = true
	}
	return nil
}

// timestamp accepts an ISO-8601 string or epoch seconds.
type timestamp struct {
	Time    *time.Time
	Invalid bool
}

func (ts *timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "" {
			return nil
		}
		t, err := stamp.Parse(s)
		if err != nil {
			ts.Invalid = true
			return nil
		}
		ts.Time = &t
		return nil
	}

	var secs float64
	if err := json.Unmarshal(b, &secs); err == nil {
		t := stamp.FromUnix(secs)
		ts.Time = &t
		return nil
	}
	ts.Invalid = true
	return nil
}

type createJobRequest struct {
	JobID        text      `json:"job_id"`
	PartCode     text      `json:"part_code"`
	FromLocation text      `json:"from_location"`
	ToLocation   text      `json:"to_location"`
	Status       text      `json:"status"`
	RequestedAt  timestamp `json:"requested_at"`
}

// check returns the reason code for the first mistyped field.
func (req createJobRequest) check() string {
	for _, f := range []struct {
		name string
		v    text
	}{
		{"job_id", req.JobID},
		{"part_code", req.PartCode},
		{"from_location", req.FromLocation},
		{"to_location", req.ToLocation},
		{"status", req.Status},
	} {
		if f.v.Invalid {
			return f.name + "_not_string"
		}
	}
	if req.RequestedAt.Invalid {
		return "invalid_requested_at"
	}
	return ""
}

type statusRequest struct {
	Status       text `json:"status"`
	FromLocation text `json:"from_location"`
	ToLocation   text `json:"to_location"`
}

func (req statusRequest) check() string {
	for _, f := range []struct {
		name string
		v    text
	}{
		{"status", req.Status},
		{"from_location", req.FromLocation},
		{"to_location", req.ToLocation},
	} {
		if f.v.Invalid {
			return f.name + "_not_string"
		}
	}
	return ""
}

type scanRequest struct {
	PartCode     text `json:"part_code"`
	LocationCode text `json:"location_code"`
	ScanID       text `json:"scan_id"`
	DeviceID     text `json:"device_id"`
	ScannedAt    any  `json:"scanned_at"`
}

func (req scanRequest) check() string {
	for _, f := range []struct {
		name string
		v    text
	}{
		{"part_code", req.PartCode},
		{"location_code", req.LocationCode},
		{"scan_id", req.ScanID},
		{"device_id", req.DeviceID},
	} {
		if f.v.Invalid {
			return f.name + "_not_string"
		}
	}
	return ""
}

type stationRequest struct {
	Process   any `json:"process"`
	Available any `json:"available"`
}

type refreshRequest struct {
	Keys []string `json:"keys"`
}

// decodeBody reads a JSON object from the request. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
