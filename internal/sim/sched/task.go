package sched

import "colonycraft.ai/internal/sim/grid"

// Category selects the behavior of a task at its two or three decision
// sites (promotion, binding, completion). Matched exhaustively; an
// unknown category is an invariant violation.
type Category string

const (
	CatProduction  Category = "PRODUCTION"
	CatRefinement  Category = "REFINEMENT"
	CatDelivery    Category = "DELIVERY"
	CatConsumption Category = "CONSUMPTION"
)

// consumesInput reports whether binding must reserve one input item at
// the station.
func (c Category) consumesInput() bool {
	return c == CatRefinement || c == CatConsumption
}

// RespawnInfinite makes a definition respawn forever.
const RespawnInfinite = -1

// TransformRule describes what a refinement turns its input into.
// Advisory at this layer; buffers count items, promises route them.
type TransformRule struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Definition is an immutable task template. Many Instances may reference
// one Definition; definitions are never mutated after catalog load.
type Definition struct {
	ID          string
	Category    Category
	StationType string // empty for Delivery
	Duration    int    // execution ticks
	Transform   *TransformRule
	Promise     string // Delivery: the item contract to move
	Respawn     int    // 0 one-shot, N more times, RespawnInfinite unbounded
}

// Instance is one runtime unit of work. Exactly one of Station or
// {Pickup, Dropoff} is bound while the instance holds resources,
// depending on category.
type Instance struct {
	ID    string
	Def   *Definition
	State State

	Respawn   int
	Remaining int // execution ticks left once Executing

	Station *Station
	Pickup  *Buffer
	Dropoff *Buffer

	// Delivery progress. Pickup commits the source reservation, dropoff
	// commits the destination reservation.
	PickedUp   bool
	DroppedOff bool

	// Continuation hints: resource ids from the completed predecessor,
	// used by ClaimWith for zero-latency rebinding. Advisory only and
	// cleared on any failed attempt.
	HintStation string
	HintPickup  string
	HintDropoff string
}

func (in *Instance) clearBindings() {
	in.Station = nil
	in.Pickup = nil
	in.Dropoff = nil
	in.PickedUp = false
	in.DroppedOff = false
}

func (in *Instance) clearHints() {
	in.HintStation = ""
	in.HintPickup = ""
	in.HintDropoff = ""
}

// Target is the cell a claimed agent should walk to next: the station
// cell for station work, else pickup before the item is in hand, else
// the dropoff.
func (in *Instance) Target() (pos grid.Vec2i, ok bool) {
	switch {
	case in.Station != nil:
		return in.Station.Pos, true
	case in.Pickup != nil && !in.PickedUp:
		return in.Pickup.Pos, true
	case in.Dropoff != nil:
		return in.Dropoff.Pos, true
	}
	return grid.Vec2i{}, false
}
