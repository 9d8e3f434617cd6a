// Package station persists which process a floor station runs and which
// machines are available to it.
package station

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/floorsync/server/internal/db"
	"github.com/floorsync/server/internal/stamp"
)

const (
	namespace = "station/"
	configKey = "config"
)

var (
	ErrInvalidProcess   = errors.New("invalid_station_process")
	ErrInvalidAvailable = errors.New("invalid_station_available")
)

type Config struct {
	Process   string   `json:"process"`
	Available []string `json:"available"`
	UpdatedAt *string  `json:"updated_at"`
}

type Store struct {
	kv     *db.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(kv *db.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger, now: stamp.Now}
}

// Get returns the saved config, or an empty one when nothing usable is stored.
func (s *Store) Get() Config {
	var cfg Config
	if err := s.kv.GetJSON(namespace, configKey, &cfg); err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("station config unreadable, using defaults", "error", err)
		}
		return Config{Available: []string{}}
	}
	cfg.Process = strings.TrimSpace(cfg.Process)
	cfg.Available = cleanList(cfg.Available)
	return cfg
}

// Save normalizes and stores process and available, which arrive as decoded
// JSON values. nil means empty.
func (s *Store) Save(process, available any) (Config, error) {
	proc, err := normalizeProcess(process)
	if err != nil {
		return Config{}, err
	}
	avail, err := normalizeAvailable(available)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Process:   proc,
		Available: avail,
		UpdatedAt: stamp.FormatPtr(ptr(s.now())),
	}
	if err := s.kv.SetJSON(namespace, configKey, cfg); err != nil {
		return Config{}, fmt.Errorf("save station config: %w", err)
	}
	s.logger.Info("station config saved", "process", cfg.Process, "available", len(cfg.Available))
	return cfg, nil
}

func normalizeProcess(v any) (string, error) {
	switch p := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(p), nil
	default:
		return "", ErrInvalidProcess
	}
}

func normalizeAvailable(v any) ([]string, error) {
	switch items := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return cleanList(items), nil
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, ErrInvalidAvailable
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, ErrInvalidAvailable
	}
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }
