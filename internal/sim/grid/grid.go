// Package grid is the sole authority for walkability and infrastructure
// occupancy. Everything that asks "can an entity stand or operate here"
// asks this package.
package grid

// Vec2i addresses a cell. The map is conceptually unbounded; cells are
// walkable unless explicitly blocked.
type Vec2i struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (v Vec2i) Add(o Vec2i) Vec2i { return Vec2i{X: v.X + o.X, Y: v.Y + o.Y} }

// Manhattan returns the L1 distance between two cells.
func Manhattan(a, b Vec2i) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Dir is a unit step toward one of the four orthogonal neighbors.
type Dir struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

var (
	DirNorth = Dir{DX: 0, DY: -1}
	DirSouth = Dir{DX: 0, DY: 1}
	DirWest  = Dir{DX: -1, DY: 0}
	DirEast  = Dir{DX: 1, DY: 0}
)

// dirs4 is the canonical neighbor order. Iteration order matters for
// deterministic flow fields, so enumeration always uses this slice.
var dirs4 = [4]Dir{DirNorth, DirSouth, DirWest, DirEast}

// Neighbors4 returns the four orthogonal neighbors of c in canonical order.
func Neighbors4(c Vec2i) [4]Vec2i {
	var out [4]Vec2i
	for i, d := range dirs4 {
		out[i] = Vec2i{X: c.X + d.DX, Y: c.Y + d.DY}
	}
	return out
}

// Step applies d to c.
func Step(c Vec2i, d Dir) Vec2i { return Vec2i{X: c.X + d.DX, Y: c.Y + d.DY} }

// Map owns the walkability and occupancy state.
// All access must happen on the world loop goroutine.
type Map struct {
	blocked  map[Vec2i]bool
	occupied map[Vec2i]string // cell -> occupying entity id

	watchers []func(Vec2i)
}

func NewMap() *Map {
	return &Map{
		blocked:  map[Vec2i]bool{},
		occupied: map[Vec2i]string{},
	}
}

// Walkable reports whether c can be stood on. Unknown cells are walkable.
func (m *Map) Walkable(c Vec2i) bool { return !m.blocked[c] }

// SetBlocked toggles walkability at c and notifies watchers on any change.
func (m *Map) SetBlocked(c Vec2i, blocked bool) {
	if m.blocked[c] == blocked {
		return
	}
	if blocked {
		m.blocked[c] = true
	} else {
		delete(m.blocked, c)
	}
	for _, fn := range m.watchers {
		fn(c)
	}
}

// WatchWalkability registers fn to be called with every cell whose
// walkability changes. There is no unregister; watchers live as long as
// the map.
func (m *Map) WatchWalkability(fn func(Vec2i)) {
	m.watchers = append(m.watchers, fn)
}

// OccupantAt returns the entity id occupying c, if any.
func (m *Map) OccupantAt(c Vec2i) (string, bool) {
	id, ok := m.occupied[c]
	return id, ok
}

// SetOccupant records entity id as occupying c. Occupancy is separate from
// walkability: a station cell may stay walkable while occupied.
func (m *Map) SetOccupant(c Vec2i, id string) {
	if id == "" {
		delete(m.occupied, c)
		return
	}
	m.occupied[c] = id
}

// ClearOccupant removes any occupancy record for entity id at c.
// It is a no-op when a different entity occupies the cell.
func (m *Map) ClearOccupant(c Vec2i, id string) {
	if m.occupied[c] == id {
		delete(m.occupied, c)
	}
}

// BlockedCount reports the number of explicitly blocked cells; used by
// stats and the state digest.
func (m *Map) BlockedCount() int { return len(m.blocked) }
