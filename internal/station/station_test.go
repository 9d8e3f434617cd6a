package station

import (
	"errors"
	"testing"
	"time"

	"github.com/floorsync/server/internal/db"
)

func newTestStore(t *testing.T) (*Store, *db.Store) {
	t.Helper()
	kv, err := db.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("create kv: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	s := NewStore(kv, nil)
	s.now = func() time.Time { return time.Date(2025, 10, 31, 12, 0, 0, 0, time.UTC) }
	return s, kv
}

func TestGet_Default(t *testing.T) {
	s, _ := newTestStore(t)

	cfg := s.Get()
	if cfg.Process != "" || cfg.Available == nil || len(cfg.Available) != 0 || cfg.UpdatedAt != nil {
		t.Errorf("unexpected default %+v", cfg)
	}
}

func TestSave_TrimsAndStamps(t *testing.T) {
	s, _ := newTestStore(t)

	saved, err := s.Save(" 切削 ", []any{" M1 ", "", "M2"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Process != "切削" || len(saved.Available) != 2 || saved.Available[0] != "M1" {
		t.Errorf("unexpected saved %+v", saved)
	}
	if saved.UpdatedAt == nil || *saved.UpdatedAt != "2025-10-31T12:00:00Z" {
		t.Errorf("unexpected updated_at %v", saved.UpdatedAt)
	}

	got := s.Get()
	if got.Process != "切削" || len(got.Available) != 2 || got.UpdatedAt == nil {
		t.Errorf("unexpected reload %+v", got)
	}
}

func TestSave_NilMeansEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	saved, err := s.Save(nil, nil)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Process != "" || len(saved.Available) != 0 {
		t.Errorf("unexpected saved %+v", saved)
	}
}

func TestSave_Invalid(t *testing.T) {
	s, _ := newTestStore(t)

	if _, err := s.Save(42.0, nil); !errors.Is(err, ErrInvalidProcess) {
		t.Errorf("expected ErrInvalidProcess, got %v", err)
	}
	if _, err := s.Save("p", "M1"); !errors.Is(err, ErrInvalidAvailable) {
		t.Errorf("expected ErrInvalidAvailable, got %v", err)
	}
	if _, err := s.Save("p", []any{"M1", 3.0}); !errors.Is(err, ErrInvalidAvailable) {
		t.Errorf("expected ErrInvalidAvailable, got %v", err)
	}
	if got := s.Get(); got.UpdatedAt != nil {
		t.Errorf("expected nothing saved, got %+v", got)
	}
}

func TestGet_CorruptFallsBack(t *testing.T) {
	s, kv := newTestStore(t)

	kv.Set(namespace, configKey, []byte("{not json"))
	cfg := s.Get()
	if cfg.Process != "" || len(cfg.Available) != 0 {
		t.Errorf("expected default, got %+v", cfg)
	}
}
