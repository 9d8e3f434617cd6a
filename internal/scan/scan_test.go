package scan

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/floorsync/server/internal/db"
)

type fakeHub struct {
	mu     sync.Mutex
	events []string
	last   any
}

func (h *fakeHub) Emit(event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	h.last = payload
}

func newTestService(t *testing.T) (*Service, *fakeHub) {
	t.Helper()
	store, err := db.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	hub := &fakeHub{}
	svc := NewService(store, hub, nil)
	clock := time.Date(2025, 10, 31, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, hub
}

func TestRecord_UpsertsAndBroadcasts(t *testing.T) {
	svc, hub := newTestService(t)

	receipt, err := svc.Record(Input{PartCode: " PART-01 ", LocationCode: "RACK-A1", DeviceID: "handy-1"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !receipt.Accepted || receipt.OrderCode != "PART-01" || receipt.LocationCode != "RACK-A1" {
		t.Errorf("unexpected receipt %+v", receipt)
	}
	if !strings.HasPrefix(receipt.ScanID, "scan-") {
		t.Errorf("expected generated scan id, got %s", receipt.ScanID)
	}
	if receipt.DeviceID == nil || *receipt.DeviceID != "handy-1" {
		t.Errorf("unexpected device %v", receipt.DeviceID)
	}
	if receipt.ScannedAt != receipt.UpdatedAt {
		t.Errorf("expected scanned_at to default to now, got %s / %s", receipt.ScannedAt, receipt.UpdatedAt)
	}

	if len(hub.events) != 2 || hub.events[0] != EventPartLocationUpdated || hub.events[1] != EventScanUpdate {
		t.Errorf("unexpected events %v", hub.events)
	}
	if got, ok := hub.last.(Receipt); !ok || got.ScanID != receipt.ScanID {
		t.Errorf("unexpected payload %+v", hub.last)
	}

	svc.Record(Input{PartCode: "PART-01", LocationCode: "RACK-B2", ScanID: "scan-2"})
	locs, err := svc.List(DefaultListLimit)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(locs) != 1 || locs[0].LocationCode != "RACK-B2" || locs[0].LastScanID != "scan-2" {
		t.Errorf("expected single updated location, got %+v", locs)
	}
	if locs[0].DeviceID != nil {
		t.Errorf("expected device cleared, got %v", *locs[0].DeviceID)
	}
}

func TestRecord_MissingFields(t *testing.T) {
	svc, hub := newTestService(t)

	_, err := svc.Record(Input{PartCode: "PART-01", LocationCode: "  "})
	if !errors.Is(err, ErrMissingPartOrLocation) {
		t.Errorf("expected ErrMissingPartOrLocation, got %v", err)
	}
	if len(hub.events) != 0 {
		t.Error("expected no broadcast")
	}
}

func TestRecord_ScannedAt(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		in   any
		want string
	}{
		{"2025-10-31T09:00:00Z", "2025-10-31T09:00:00Z"},
		{"2025-10-31T18:00:00+09:00", "2025-10-31T09:00:00Z"},
		{"2025-10-31T09:00:00", "2025-10-31T09:00:00Z"},
		{float64(1761901200), "2025-10-31T09:00:00Z"},
	}
	for _, c := range cases {
		receipt, err := svc.Record(Input{PartCode: "P", LocationCode: "L", ScannedAt: c.in})
		if err != nil {
			t.Errorf("%v: %v", c.in, err)
			continue
		}
		if receipt.ScannedAt != c.want {
			t.Errorf("%v: expected %s, got %s", c.in, c.want, receipt.ScannedAt)
		}
	}

	for _, bad := range []any{"yesterday", true, []any{}} {
		if _, err := svc.Record(Input{PartCode: "P", LocationCode: "L", ScannedAt: bad}); !errors.Is(err, ErrInvalidScannedAt) {
			t.Errorf("%v: expected ErrInvalidScannedAt, got %v", bad, err)
		}
	}
}

func TestList_NewestFirstAndLimited(t *testing.T) {
	svc, _ := newTestService(t)

	for _, part := range []string{"A", "B", "C"} {
		if _, err := svc.Record(Input{PartCode: part, LocationCode: "L"}); err != nil {
			t.Fatalf("record %s: %v", part, err)
		}
	}

	locs, err := svc.List(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(locs) != 2 || locs[0].OrderCode != "C" || locs[1].OrderCode != "B" {
		t.Errorf("unexpected order %+v", locs)
	}

	locs, _ = svc.List(0)
	if len(locs) != 1 {
		t.Errorf("expected limit clamped to 1, got %d", len(locs))
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{-1: 1, 0: 1, 200: 200, 1000: 1000, 5000: 1000}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
