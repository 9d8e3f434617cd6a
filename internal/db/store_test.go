package db

import (
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_GetSet(t *testing.T) {
	store := newTestStore(t)

	if err := store.Set("part_locations/", "PART-01", []byte("RACK-A1")); err != nil {
		t.Fatalf("set value: %v", err)
	}

	got, err := store.Get("part_locations/", "PART-01")
	if err != nil {
		t.Fatalf("get value: %v", err)
	}
	if string(got) != "RACK-A1" {
		t.Errorf("expected RACK-A1, got %s", got)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("part_locations/", "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)

	store.Set("station/", "config", []byte("{}"))
	if err := store.Delete("station/", "config"); err != nil {
		t.Fatalf("delete value: %v", err)
	}
	if _, err := store.Get("station/", "config"); err == nil {
		t.Error("expected error after delete")
	}
}

func TestStore_JSONRoundTrip(t *testing.T) {
	store := newTestStore(t)

	type station struct {
		Process   string   `json:"process"`
		Available []string `json:"available"`
	}
	in := station{Process: "切削", Available: []string{"M1", "M2"}}
	if err := store.SetJSON("station/", "config", in); err != nil {
		t.Fatalf("set json: %v", err)
	}

	var out station
	if err := store.GetJSON("station/", "config", &out); err != nil {
		t.Fatalf("get json: %v", err)
	}
	if out.Process != in.Process || len(out.Available) != 2 {
		t.Errorf("unexpected %+v", out)
	}
}

func TestStore_ScanAndList(t *testing.T) {
	store := newTestStore(t)

	store.Set("part_locations/", "A", []byte("1"))
	store.Set("part_locations/", "B", []byte("2"))
	store.Set("station/", "config", []byte("3"))

	seen := map[string]string{}
	err := store.Scan("part_locations/", "", func(key string, value []byte) error {
		seen[key] = string(value)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(seen) != 2 || seen["A"] != "1" || seen["B"] != "2" {
		t.Errorf("unexpected scan result %v", seen)
	}

	keys, err := store.List("part_locations/", "", 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 || keys[0] != "A" {
		t.Errorf("expected [A], got %v", keys)
	}
}

func TestStore_Ping(t *testing.T) {
	store, err := NewInMemoryStore()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if err := store.Ping(); err != nil {
		t.Errorf("expected ping ok, got %v", err)
	}
	store.Close()
	if err := store.Ping(); err == nil {
		t.Error("expected ping to fail after close")
	}
}
