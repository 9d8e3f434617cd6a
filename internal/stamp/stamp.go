// Package stamp formats timestamps and generates opaque record identifiers.
package stamp

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const isoLayout = "2006-01-02T15:04:05.999999Z07:00"

// Now returns the current UTC time at microsecond precision, which is what
// survives a round trip through the ISO form.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Format renders t in UTC ISO-8601 with a trailing Z.
func Format(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// FormatPtr is Format for optional timestamps.
func FormatPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := Format(*t)
	return &s
}

// Parse accepts ISO-8601 with a Z suffix, an explicit offset, or no zone at
// all (treated as UTC). The result is always UTC.
func Parse(value string) (time.Time, error) {
	text := strings.TrimSpace(value)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999Z07:00", "2006-01-02 15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp: %q", value)
}

// FromUnix converts fractional epoch seconds to UTC.
func FromUnix(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC().Truncate(time.Microsecond)
}

// NewJobID returns a time-ordered job identifier such as
// "job-20251031120000123456-1a2b3c4d".
func NewJobID() string {
	return newID("job", time.Now())
}

// NewScanID returns a scan identifier such as "scan-20251031120000123456".
func NewScanID() string {
	return "scan-" + compact(time.Now())
}

func newID(prefix string, t time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefix, compact(t), uuid.NewString()[:8])
}

func compact(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s%06d", t.Format("20060102150405"), t.Nanosecond()/1000)
}
