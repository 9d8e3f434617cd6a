// Package scan records barcode scans and keeps the latest location of every
// part.
package scan

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/floorsync/server/internal/db"
	"github.com/floorsync/server/internal/stamp"
)

const (
	EventPartLocationUpdated = "part_location_updated"
	EventScanUpdate          = "scan_update"
)

const (
	DefaultListLimit = 200
	MaxListLimit     = 1000
)

const namespace = "part_locations/"

var (
	ErrMissingPartOrLocation = errors.New("missing_part_or_location")
	ErrInvalidScannedAt      = errors.New("invalid_scanned_at")
)

// PartLocation is the last known location of a part, keyed by order code.
type PartLocation struct {
	OrderCode    string    `json:"order_code"`
	LocationCode string    `json:"location_code"`
	DeviceID     *string   `json:"device_id"`
	LastScanID   string    `json:"last_scan_id"`
	ScannedAt    time.Time `json:"scanned_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Receipt is returned to the scanner and broadcast to viewers.
type Receipt struct {
	Accepted     bool    `json:"accepted"`
	OrderCode    string  `json:"order_code"`
	LocationCode string  `json:"location_code"`
	DeviceID     *string `json:"device_id"`
	ScanID       string  `json:"scan_id"`
	ScannedAt    string  `json:"scanned_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// Input is a single scan. ScannedAt is either an ISO-8601 string or epoch
// seconds; nil means now.
type Input struct {
	PartCode     string
	LocationCode string
	ScanID       string
	DeviceID     string
	ScannedAt    any
}

type Broadcaster interface {
	Emit(event string, payload any)
}

type Service struct {
	store  *db.Store
	hub    Broadcaster
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store *db.Store, hub Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, hub: hub, logger: logger, now: stamp.Now}
}

// Record upserts the part location for a scan and broadcasts the receipt.
func (s *Service) Record(in Input) (Receipt, error) {
	partCode := strings.TrimSpace(in.PartCode)
	locationCode := strings.TrimSpace(in.LocationCode)
	if partCode == "" || locationCode == "" {
		return Receipt{}, ErrMissingPartOrLocation
	}

	now := s.now()
	scannedAt := now
	if in.ScannedAt != nil {
		t, err := parseScannedAt(in.ScannedAt)
		if err != nil {
			return Receipt{}, err
		}
		scannedAt = t
	}

	scanID := strings.TrimSpace(in.ScanID)
	if scanID == "" {
		scanID = stamp.NewScanID()
	}

	loc := PartLocation{
		OrderCode:    partCode,
		LocationCode: locationCode,
		LastScanID:   scanID,
		ScannedAt:    scannedAt,
		UpdatedAt:    now,
	}
	if device := strings.TrimSpace(in.DeviceID); device != "" {
		loc.DeviceID = &device
	}

	if err := s.store.SetJSON(namespace, partCode, loc); err != nil {
		return Receipt{}, fmt.Errorf("save part location: %w", err)
	}

	receipt := Receipt{
		Accepted:     true,
		OrderCode:    loc.OrderCode,
		LocationCode: loc.LocationCode,
		DeviceID:     loc.DeviceID,
		ScanID:       loc.LastScanID,
		ScannedAt:    stamp.Format(loc.ScannedAt),
		UpdatedAt:    stamp.Format(loc.UpdatedAt),
	}
	s.logger.Info("scan recorded", "order_code", partCode, "location_code", locationCode, "scan_id", scanID)

	if s.hub != nil {
		s.hub.Emit(EventPartLocationUpdated, receipt)
		s.hub.Emit(EventScanUpdate, receipt)
	}
	return receipt, nil
}

// List returns part locations, most recently updated first.
func (s *Service) List(limit int) ([]PartLocation, error) {
	limit = ClampLimit(limit)

	var out []PartLocation
	err := s.store.Scan(namespace, "", func(key string, value []byte) error {
		var loc PartLocation
		if err := json.Unmarshal(value, &loc); err != nil {
			s.logger.Warn("skipping unreadable part location", "key", key, "error", err)
			return nil
		}
		out = append(out, loc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan part locations: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ClampLimit bounds a requested list size to [1, MaxListLimit].
func ClampLimit(limit int) int {
	return max(1, min(limit, MaxListLimit))
}

func parseScannedAt(value any) (time.Time, error) {
	switch v := value.(type) {
	case string:
		t, err := stamp.Parse(v)
		if err != nil {
			return time.Time{}, ErrInvalidScannedAt
		}
		return t, nil
	case float64:
		return stamp.FromUnix(v), nil
	case int64:
		return stamp.FromUnix(float64(v)), nil
	case int:
		return stamp.FromUnix(float64(v)), nil
	default:
		return time.Time{}, ErrInvalidScannedAt
	}
}
