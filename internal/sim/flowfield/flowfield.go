// Package flowfield computes shared per-destination direction fields over
// the walkability map. Fields are built lazily, expanded incrementally as
// farther queries arrive, and dropped wholesale when a nearby walkability
// change could affect them.
package flowfield

import (
	"colonycraft.ai/internal/sim/grid"
)

// Field is one cached direction field, keyed by its destination cell.
//
// dirs maps every reachable cell inside the boundary to the step an agent
// standing there should take to head toward the destination. frontier
// holds cells discovered beyond the boundary, kept so a later expansion
// can resume the search instead of restarting it.
type Field struct {
	dest     grid.Vec2i
	dirs     map[grid.Vec2i]grid.Dir
	frontier []grid.Vec2i
	boundary int // Manhattan radius within which dirs is authoritative
}

// Boundary reports the radius within which the field answers queries
// without further expansion.
func (f *Field) Boundary() int { return f.boundary }

// Resolved reports the number of cells with a computed direction.
func (f *Field) Resolved() int { return len(f.dirs) }

func newField(dest grid.Vec2i) *Field {
	return &Field{
		dest:     dest,
		dirs:     map[grid.Vec2i]grid.Dir{},
		frontier: []grid.Vec2i{dest},
	}
}

// expandTo grows the field's boundary to radius, resuming multi-source BFS
// from the stored frontier. Cells discovered beyond the new boundary are
// parked on the stored frontier for a future expansion.
func (f *Field) expandTo(m *grid.Map, radius int) {
	if radius <= f.boundary {
		return
	}
	f.boundary = radius

	working := f.frontier
	f.frontier = nil

	for head := 0; head < len(working); head++ {
		c := working[head]
		// The frontier can go stale between expansions; re-check before
		// expanding from a cell.
		if !m.Walkable(c) {
			delete(f.dirs, c)
			continue
		}
		for _, n := range grid.Neighbors4(c) {
			if n == f.dest {
				continue
			}
			if _, seen := f.dirs[n]; seen {
				continue
			}
			if !m.Walkable(n) {
				continue
			}
			// The step from n back toward the cell that discovered it;
			// following these steps propagates toward the destination.
			f.dirs[n] = grid.Dir{DX: c.X - n.X, DY: c.Y - n.Y}
			if grid.Manhattan(f.dest, n) <= radius {
				working = append(working, n)
			} else {
				f.frontier = append(f.frontier, n)
			}
		}
	}
}

// Pathfinder owns the field cache. All access must happen on the world
// loop goroutine.
type Pathfinder struct {
	grid   *grid.Map
	buffer int // extra radius computed past the queried start cell

	fields map[grid.Vec2i]*Field

	builds    uint64
	evictions uint64
}

const defaultExpansionBuffer = 10

// New creates a pathfinder over m and subscribes it to walkability
// changes. buffer is the extra Manhattan radius computed beyond each
// queried start cell; values <= 0 fall back to the default.
func New(m *grid.Map, buffer int) *Pathfinder {
	if buffer <= 0 {
		buffer = defaultExpansionBuffer
	}
	p := &Pathfinder{
		grid:   m,
		buffer: buffer,
		fields: map[grid.Vec2i]*Field{},
	}
	m.WatchWalkability(p.onWalkabilityChanged)
	return p
}

// Direction returns the next step for an agent at start heading to dest.
// ok=false means dest cannot be reached from start (blocked destination or
// disconnected region). Arrival (start == dest) returns the zero Dir with
// ok=true.
func (p *Pathfinder) Direction(start, dest grid.Vec2i) (grid.Dir, bool) {
	if start == dest {
		return grid.Dir{}, true
	}
	if !p.grid.Walkable(dest) {
		return grid.Dir{}, false
	}

	f := p.fields[dest]
	if f == nil {
		f = newField(dest)
		p.fields[dest] = f
		p.builds++
	}

	if d := grid.Manhattan(dest, start); d > f.boundary {
		f.expandTo(p.grid, d+p.buffer)
	}

	dir, ok := f.dirs[start]
	return dir, ok
}

// onWalkabilityChanged drops every field the change could affect. The +1
// margin covers a newly blocked cell changing flow for neighbors just
// inside the boundary, and a newly opened cell creating a path the old
// boundary considered closed.
func (p *Pathfinder) onWalkabilityChanged(at grid.Vec2i) {
	for dest, f := range p.fields {
		if grid.Manhattan(at, dest) <= f.boundary+1 {
			delete(p.fields, dest)
			p.evictions++
		}
	}
}

// Field returns the cached field for dest, if one exists. Test and
// stats helper; callers must not mutate it.
func (p *Pathfinder) Field(dest grid.Vec2i) (*Field, bool) {
	f, ok := p.fields[dest]
	return f, ok
}

// CachedFields reports the number of live fields.
func (p *Pathfinder) CachedFields() int { return len(p.fields) }

// Builds reports how many fields have been created since startup.
func (p *Pathfinder) Builds() uint64 { return p.builds }

// Evictions reports how many fields have been invalidated since startup.
func (p *Pathfinder) Evictions() uint64 { return p.evictions }
