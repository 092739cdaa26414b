package grid

import "testing"

func TestManhattan(t *testing.T) {
	cases := []struct {
		a, b Vec2i
		want int
	}{
		{Vec2i{0, 0}, Vec2i{0, 0}, 0},
		{Vec2i{0, 0}, Vec2i{3, 4}, 7},
		{Vec2i{-2, 5}, Vec2i{1, -1}, 9},
	}
	for _, c := range cases {
		if got := Manhattan(c.a, c.b); got != c.want {
			t.Fatalf("Manhattan(%v,%v)=%d want %d", c.a, c.b, got, c.want)
		}
		if got := Manhattan(c.b, c.a); got != c.want {
			t.Fatalf("Manhattan not symmetric for %v,%v", c.a, c.b)
		}
	}
}

func TestWalkability_DefaultsAndToggle(t *testing.T) {
	m := NewMap()
	c := Vec2i{X: 7, Y: -3}
	if !m.Walkable(c) {
		t.Fatalf("unknown cell should be walkable")
	}

	var changes []Vec2i
	m.WatchWalkability(func(at Vec2i) { changes = append(changes, at) })

	m.SetBlocked(c, true)
	if m.Walkable(c) {
		t.Fatalf("blocked cell reported walkable")
	}
	m.SetBlocked(c, true) // no change, no notification
	m.SetBlocked(c, false)
	if !m.Walkable(c) {
		t.Fatalf("unblocked cell reported blocked")
	}

	if len(changes) != 2 {
		t.Fatalf("expected 2 notifications, got %d (%v)", len(changes), changes)
	}
	if m.BlockedCount() != 0 {
		t.Fatalf("blocked map should be empty after unblock")
	}
}

func TestOccupancy_IsSeparateFromWalkability(t *testing.T) {
	m := NewMap()
	c := Vec2i{X: 1, Y: 1}
	m.SetOccupant(c, "station-1")
	if !m.Walkable(c) {
		t.Fatalf("occupancy must not affect walkability")
	}
	id, ok := m.OccupantAt(c)
	if !ok || id != "station-1" {
		t.Fatalf("OccupantAt=%q,%v", id, ok)
	}

	// Clearing with the wrong id is a no-op.
	m.ClearOccupant(c, "station-2")
	if _, ok := m.OccupantAt(c); !ok {
		t.Fatalf("wrong-id clear removed occupant")
	}
	m.ClearOccupant(c, "station-1")
	if _, ok := m.OccupantAt(c); ok {
		t.Fatalf("occupant not cleared")
	}
}

func TestNeighbors4_CanonicalOrder(t *testing.T) {
	n := Neighbors4(Vec2i{X: 2, Y: 2})
	want := [4]Vec2i{{2, 1}, {2, 3}, {1, 2}, {3, 2}}
	if n != want {
		t.Fatalf("Neighbors4=%v want %v", n, want)
	}
}
