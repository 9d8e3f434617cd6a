package job

import "testing"

func TestPolicy_DefaultTable(t *testing.T) {
	p := NewPolicy(nil)

	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPending, true},
		{StatusPending, StatusInTransit, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusCancelled, true},
		{StatusInTransit, StatusPending, false},
		{StatusInTransit, StatusInTransit, true},
		{StatusInTransit, StatusCompleted, true},
		{StatusInTransit, StatusCancelled, true},
		{StatusCompleted, StatusCompleted, true},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusInTransit, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusCancelled, true},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusCompleted, false},
	}
	for _, c := range cases {
		if got := p.CanTransition(c.from, c.to); got != c.want {
			t.Errorf("%s -> %s: expected %v, got %v", c.from, c.to, c.want, got)
		}
	}
}

func TestPolicy_UnknownStatusSelfLoopOnly(t *testing.T) {
	p := NewPolicy([]Status{"pending", "on_hold"})

	dest := p.AllowedDestinations("on_hold")
	if len(dest) != 1 || !dest["on_hold"] {
		t.Errorf("expected only on_hold, got %v", dest)
	}
}

func TestPolicy_ConfiguredSetShrinksDestinations(t *testing.T) {
	p := NewPolicy([]Status{StatusPending, StatusCompleted})

	if p.CanTransition(StatusPending, StatusInTransit) {
		t.Error("in_transit is not configured")
	}
	if !p.CanTransition(StatusPending, StatusCompleted) {
		t.Error("expected pending -> completed")
	}
	if p.Allowed(StatusCancelled) {
		t.Error("cancelled is not configured")
	}
}

func TestPolicy_ConfiguredSetCannotExpand(t *testing.T) {
	p := NewPolicy([]Status{StatusPending, StatusCompleted, "archived"})

	if p.CanTransition(StatusCompleted, "archived") {
		t.Error("completed must stay terminal")
	}
}

func TestPolicy_Statuses(t *testing.T) {
	got := NewPolicy(nil).Statuses()
	want := []Status{StatusCancelled, StatusCompleted, StatusInTransit, StatusPending}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
}
