package flowfield

import (
	"testing"

	"colonycraft.ai/internal/sim/grid"
)

// follow walks from start by repeatedly querying Direction, failing the
// test on unreachable cells, loops, or paths longer than maxSteps.
func follow(t *testing.T, p *Pathfinder, start, dest grid.Vec2i, maxSteps int) int {
	t.Helper()
	seen := map[grid.Vec2i]bool{}
	cur := start
	for steps := 0; steps <= maxSteps; steps++ {
		if cur == dest {
			return steps
		}
		if seen[cur] {
			t.Fatalf("revisited %v on the way %v -> %v", cur, start, dest)
		}
		seen[cur] = true
		d, ok := p.Direction(cur, dest)
		if !ok {
			t.Fatalf("unreachable at %v heading to %v", cur, dest)
		}
		cur = grid.Step(cur, d)
	}
	t.Fatalf("did not reach %v from %v within %d steps", dest, start, maxSteps)
	return 0
}

func TestDirection_ArrivedAndBlockedDest(t *testing.T) {
	m := grid.NewMap()
	p := New(m, 10)

	dest := grid.Vec2i{X: 3, Y: 3}
	if d, ok := p.Direction(dest, dest); !ok || d != (grid.Dir{}) {
		t.Fatalf("arrival should be zero dir, ok; got %v %v", d, ok)
	}

	m.SetBlocked(dest, true)
	if _, ok := p.Direction(grid.Vec2i{}, dest); ok {
		t.Fatalf("blocked destination should be unreachable")
	}
}

func TestDirection_OpenGridReachesDestination(t *testing.T) {
	m := grid.NewMap()
	p := New(m, 10)

	dest := grid.Vec2i{X: 10, Y: 10}
	start := grid.Vec2i{X: 0, Y: 0}
	steps := follow(t, p, start, dest, 100)
	if steps != grid.Manhattan(start, dest) {
		t.Fatalf("open grid path took %d steps, want %d", steps, grid.Manhattan(start, dest))
	}
}

func TestDirection_RoutesAroundWall(t *testing.T) {
	m := grid.NewMap()
	// Vertical wall at x=5 spanning y in [-3,3]; paths must detour around
	// either end.
	for y := -3; y <= 3; y++ {
		m.SetBlocked(grid.Vec2i{X: 5, Y: y}, true)
	}
	p := New(m, 20)

	dest := grid.Vec2i{X: 10, Y: 0}
	start := grid.Vec2i{X: 0, Y: 0}
	follow(t, p, start, dest, 60)
}

func TestDirection_DisconnectedRegionUnreachable(t *testing.T) {
	m := grid.NewMap()
	// Box in the destination completely.
	dest := grid.Vec2i{X: 0, Y: 0}
	for _, c := range grid.Neighbors4(dest) {
		m.SetBlocked(c, true)
	}
	p := New(m, 10)

	if _, ok := p.Direction(grid.Vec2i{X: 5, Y: 5}, dest); ok {
		t.Fatalf("boxed-in destination should be unreachable")
	}
}

func TestExpansion_IsIncrementalAndResumable(t *testing.T) {
	m := grid.NewMap()
	p := New(m, 5)
	dest := grid.Vec2i{X: 0, Y: 0}

	// Near query: small boundary.
	if _, ok := p.Direction(grid.Vec2i{X: 2, Y: 0}, dest); !ok {
		t.Fatalf("near query failed")
	}
	f, ok := p.Field(dest)
	if !ok {
		t.Fatalf("field not cached")
	}
	if f.Boundary() != 2+5 {
		t.Fatalf("boundary=%d want %d", f.Boundary(), 7)
	}
	resolvedNear := f.Resolved()

	// A second query inside the boundary does no work.
	if _, ok := p.Direction(grid.Vec2i{X: 0, Y: 3}, dest); !ok {
		t.Fatalf("in-boundary query failed")
	}
	if f.Resolved() != resolvedNear {
		t.Fatalf("in-boundary query expanded the field")
	}

	// Far query resumes expansion on the same field.
	if _, ok := p.Direction(grid.Vec2i{X: 20, Y: 0}, dest); !ok {
		t.Fatalf("far query failed")
	}
	if f.Boundary() != 25 {
		t.Fatalf("boundary=%d want 25", f.Boundary())
	}
	if f.Resolved() <= resolvedNear {
		t.Fatalf("far query did not grow the field")
	}
	if p.Builds() != 1 {
		t.Fatalf("expansion must reuse the field, builds=%d", p.Builds())
	}
}

func TestInvalidation_EvictsFieldsWithinMargin(t *testing.T) {
	m := grid.NewMap()
	p := New(m, 10)

	dest := grid.Vec2i{X: 10, Y: 10}
	if _, ok := p.Direction(grid.Vec2i{X: 0, Y: 0}, dest); !ok {
		t.Fatalf("initial query failed")
	}
	f, _ := p.Field(dest)
	if f.Boundary() < 20 {
		t.Fatalf("boundary=%d want >= 20", f.Boundary())
	}

	// Change far outside boundary+1: field survives.
	m.SetBlocked(grid.Vec2i{X: 100, Y: 100}, true)
	if _, ok := p.Field(dest); !ok {
		t.Fatalf("far change must not evict")
	}

	// Change inside the boundary: field evicted.
	m.SetBlocked(grid.Vec2i{X: 15, Y: 10}, true)
	if _, ok := p.Field(dest); ok {
		t.Fatalf("in-boundary change must evict the field")
	}
	if p.Evictions() != 1 {
		t.Fatalf("evictions=%d want 1", p.Evictions())
	}

	// Next query rebuilds lazily and routes around the new wall.
	follow(t, p, grid.Vec2i{X: 20, Y: 10}, dest, 40)
	if p.Builds() != 2 {
		t.Fatalf("builds=%d want 2", p.Builds())
	}
}

func TestInvalidation_UnblockReopensPath(t *testing.T) {
	m := grid.NewMap()
	dest := grid.Vec2i{X: 0, Y: 0}
	for _, c := range grid.Neighbors4(dest) {
		m.SetBlocked(c, true)
	}
	p := New(m, 10)

	start := grid.Vec2i{X: 4, Y: 0}
	if _, ok := p.Direction(start, dest); ok {
		t.Fatalf("expected unreachable while boxed in")
	}

	// Opening the box must evict the stale field so the next query sees
	// the new opening.
	m.SetBlocked(grid.Vec2i{X: 1, Y: 0}, false)
	follow(t, p, start, dest, 10)
}
