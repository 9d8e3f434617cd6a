// Package mirror compares the part locations held by this node with a mirror
// node and keeps a streak of clean comparisons.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/floorsync/server/internal/scan"
	"github.com/floorsync/server/internal/stamp"
)

const (
	StatusOK    = "OK"
	StatusDiff  = "DIFF"
	StatusError = "ERROR"
)

const (
	ReasonMissingInPrimary = "missing_in_primary"
	ReasonMissingInMirror  = "missing_in_mirror"
	ReasonFieldMismatch    = "field_mismatch"
)

const (
	StatusLogName  = "mirror_status.log"
	DiffLogName    = "mirror_diff.log"
	counterName    = "ok_counter"
	partLocations  = "/api/v1/part-locations?limit="
	requestTimeout = 30 * time.Second
)

// Diff is one order code whose record differs between the two nodes.
type Diff struct {
	OrderCode string             `json:"order_code"`
	Reason    string             `json:"reason"`
	Fields    map[string][2]any  `json:"diff,omitempty"`
	Primary   *scan.PartLocation `json:"primary,omitempty"`
	Mirror    *scan.PartLocation `json:"mirror,omitempty"`
}

// Result is the outcome of one comparison as appended to the status log.
type Result struct {
	Timestamp    string `json:"timestamp"`
	Status       string `json:"status"`
	PrimaryCount int    `json:"primary_count"`
	MirrorCount  int    `json:"mirror_count"`
	DiffCount    int    `json:"diff_count"`
	OKStreak     int    `json:"ok_streak"`
}

// Compare returns the differences between two part location sets, ordered
// by order code.
func Compare(primary, mirror []scan.PartLocation) []Diff {
	p := index(primary)
	m := index(mirror)

	keys := make([]string, 0, len(p)+len(m))
	for k := range p {
		keys = append(keys, k)
	}
	for k := range m {
		if _, ok := p[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var diffs []Diff
	for _, key := range keys {
		pl, inPrimary := p[key]
		ml, inMirror := m[key]
		switch {
		case !inPrimary:
			diffs = append(diffs, Diff{OrderCode: key, Reason: ReasonMissingInPrimary, Mirror: &ml})
		case !inMirror:
			diffs = append(diffs, Diff{OrderCode: key, Reason: ReasonMissingInMirror, Primary: &pl})
		default:
			if fields := fieldDiffs(pl, ml); len(fields) > 0 {
				diffs = append(diffs, Diff{OrderCode: key, Reason: ReasonFieldMismatch, Fields: fields, Primary: &pl, Mirror: &ml})
			}
		}
	}
	return diffs
}

func index(locs []scan.PartLocation) map[string]scan.PartLocation {
	out := make(map[string]scan.PartLocation, len(locs))
	for _, l := range locs {
		out[l.OrderCode] = l
	}
	return out
}

func fieldDiffs(p, m scan.PartLocation) map[string][2]any {
	fields := map[string][2]any{}
	if p.LocationCode != m.LocationCode {
		fields["location_code"] = [2]any{p.LocationCode, m.LocationCode}
	}
	if deref(p.DeviceID) != deref(m.DeviceID) || (p.DeviceID == nil) != (m.DeviceID == nil) {
		fields["device_id"] = [2]any{p.DeviceID, m.DeviceID}
	}
	if p.LastScanID != m.LastScanID {
		fields["last_scan_id"] = [2]any{p.LastScanID, m.LastScanID}
	}
	if !p.ScannedAt.Equal(m.ScannedAt) {
		fields["scanned_at"] = [2]any{stamp.Format(p.ScannedAt), stamp.Format(m.ScannedAt)}
	}
	if !p.UpdatedAt.Equal(m.UpdatedAt) {
		fields["updated_at"] = [2]any{stamp.Format(p.UpdatedAt), stamp.Format(m.UpdatedAt)}
	}
	return fields
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Comparator fetches both nodes over HTTP, records the outcome in the
// status and diff logs and maintains the OK streak counter.
type Comparator struct {
	PrimaryURL string
	MirrorURL  string
	Token      string
	LogDir     string
	StatusDir  string
	// DryRun writes log lines to Out instead of the log files and leaves
	// the counter untouched.
	DryRun bool
	Out    io.Writer
	Client *http.Client
	Now    func() time.Time
	Logger *slog.Logger
}

func (c *Comparator) Run(ctx context.Context) (Result, []Diff, error) {
	c.defaults()
	now := stamp.Format(c.Now())

	primary, err := c.fetch(ctx, c.PrimaryURL)
	var mirror []scan.PartLocation
	if err == nil {
		mirror, err = c.fetch(ctx, c.MirrorURL)
	}
	if err != nil {
		c.Logger.Error("mirror comparison failed", "error", err)
		c.appendLine(StatusLogName, map[string]any{"timestamp": now, "status": StatusError, "message": err.Error()})
		return Result{Timestamp: now, Status: StatusError}, nil, err
	}

	diffs := Compare(primary, mirror)
	streak := 0
	if len(diffs) == 0 {
		streak = ReadCounter(c.StatusDir) + 1
	}

	res := Result{
		Timestamp:    now,
		Status:       StatusOK,
		PrimaryCount: len(primary),
		MirrorCount:  len(mirror),
		DiffCount:    len(diffs),
		OKStreak:     streak,
	}
	if len(diffs) > 0 {
		res.Status = StatusDiff
	}

	c.appendLine(StatusLogName, res)
	c.writeCounter(streak)
	if len(diffs) > 0 {
		c.appendLine(DiffLogName, map[string]any{"timestamp": now, "diff": diffs})
	}
	c.Logger.Info("mirror comparison finished", "status", res.Status, "diff_count", res.DiffCount, "ok_streak", res.OKStreak)
	return res, diffs, nil
}

func (c *Comparator) defaults() {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: requestTimeout}
	}
	if c.Now == nil {
		c.Now = stamp.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
}

func (c *Comparator) fetch(ctx context.Context, base string) ([]scan.PartLocation, error) {
	if base == "" {
		return nil, errors.New("node url not configured")
	}
	url := strings.TrimRight(base, "/") + partLocations + strconv.Itoa(scan.MaxListLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", base, resp.StatusCode)
	}

	var body struct {
		Entries []scan.PartLocation `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", base, err)
	}
	return body.Entries, nil
}

func (c *Comparator) appendLine(name string, payload any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		c.Logger.Error("encode mirror log line", "error", err)
		return
	}
	if c.DryRun {
		c.Out.Write(buf.Bytes())
		return
	}

	if err := os.MkdirAll(c.LogDir, 0755); err != nil {
		c.Logger.Error("mirror log directory unavailable", "dir", c.LogDir, "error", err)
		return
	}
	f, err := os.OpenFile(filepath.Join(c.LogDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		c.Logger.Error("mirror log unavailable", "file", name, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(buf.Bytes()); err != nil {
		c.Logger.Error("mirror log write failed", "file", name, "error", err)
	}
}

func (c *Comparator) writeCounter(n int) {
	if c.DryRun {
		return
	}
	if err := os.MkdirAll(c.StatusDir, 0755); err != nil {
		c.Logger.Error("mirror status directory unavailable", "dir", c.StatusDir, "error", err)
		return
	}
	path := filepath.Join(c.StatusDir, counterName)
	if err := os.WriteFile(path, []byte(strconv.Itoa(n)+"\n"), 0644); err != nil {
		c.Logger.Error("write ok counter", "path", path, "error", err)
	}
}

// ReadCounter returns the current OK streak, 0 when missing or unreadable.
func ReadCounter(statusDir string) int {
	data, err := os.ReadFile(filepath.Join(statusDir, counterName))
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return n
}

// Summary is the state shown by the status command.
type Summary struct {
	OKStreak   int     `json:"ok_streak"`
	LastStatus *string `json:"last_status"`
	LastDiff   *string `json:"last_diff"`
}

func ReadSummary(logDir, statusDir string) Summary {
	return Summary{
		OKStreak:   ReadCounter(statusDir),
		LastStatus: lastLine(filepath.Join(logDir, StatusLogName)),
		LastDiff:   lastLine(filepath.Join(logDir, DiffLogName)),
	}
}

func lastLine(path string) *string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	last := lines[len(lines)-1]
	if last == "" {
		return nil
	}
	return &last
}
