package sched

import "colonycraft.ai/internal/sim/grid"

// Station is a fixed location offering a place to perform work, with up
// to two colocated buffers: In receives the station's inputs (a dropoff),
// Out holds what it produces (a pickup). Producers have only Out, sinks
// only In, refiners both.
type Station struct {
	ID   string
	Type string
	Pos  grid.Vec2i

	In  *Buffer
	Out *Buffer
}
