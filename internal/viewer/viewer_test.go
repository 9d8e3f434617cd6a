package viewer

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	v := New("Mozilla/5.0")

	if v.ID == "" {
		t.Error("expected ID to be set")
	}
	info := v.Info()
	if info.UserAgent != "Mozilla/5.0" || info.ConnectedAt.IsZero() || info.LastHeartbeat.IsZero() {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestViewer_Heartbeat(t *testing.T) {
	v := New("")
	before := v.Info().LastHeartbeat

	time.Sleep(2 * time.Millisecond)
	v.UpdateHeartbeat()

	if !v.Info().LastHeartbeat.After(before) {
		t.Error("expected heartbeat to advance")
	}
}

func TestViewer_Subscriptions(t *testing.T) {
	v := New("")

	if !v.Wants("scan_update") {
		t.Error("expected empty subscription to accept everything")
	}

	v.Subscribe([]string{"logistics_job_updated"})
	if v.Wants("scan_update") {
		t.Error("expected scan_update to be filtered")
	}
	if !v.Wants("logistics_job_updated") {
		t.Error("expected logistics_job_updated to pass")
	}

	v.Subscribe(nil)
	if !v.Wants("scan_update") {
		t.Error("expected reset subscription to accept everything")
	}
}

func TestManager_AddRemoveStats(t *testing.T) {
	m := NewManager(nil)
	a, b := New("a"), New("b")

	m.Add(a)
	m.Add(b)
	a.MarkSent()
	a.MarkSent()
	b.MarkSent()

	stats := m.Stats()
	if stats.Connected != 2 || stats.EventsSent != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if _, ok := m.Get(a.ID); !ok {
		t.Error("expected viewer to be found")
	}

	m.Remove(a.ID)
	if _, ok := m.Get(a.ID); ok {
		t.Error("expected viewer to be removed")
	}
	if got := m.List(); len(got) != 1 || got[0].ID != b.ID {
		t.Errorf("unexpected list %+v", got)
	}
}
