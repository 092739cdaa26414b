package world

import (
	"colonycraft.ai/internal/sim/grid"
	"colonycraft.ai/internal/sim/sched"
)

// Agent is a worker. It claims one task at a time, walks to the task's
// target by following flow fields, and drives the task through execution.
// Hands is a capacity-1 buffer so carried items obey the same
// reserve-then-commit protocol as station buffers.
type Agent struct {
	Name  string
	Pos   grid.Vec2i
	Hands *sched.Buffer
	Task  *sched.Instance
}

// arrived uses adjacency: agents work a station (or a colocated buffer)
// from any of its four neighbors, or from the cell itself.
func (a *Agent) arrived(target grid.Vec2i) bool {
	return grid.Manhattan(a.Pos, target) <= 1
}

func (w *World) stepAgent(a *Agent) {
	if a.Task != nil && a.Task.State == sched.StatePending {
		// Revoked under us (station destroyed). The scheduler already
		// released the bindings; we just let go.
		w.dropTask(a)
	}
	if a.Task == nil {
		a.Task = w.sched.Claim()
		if a.Task == nil {
			return
		}
	}

	in := a.Task
	switch in.State {
	case sched.StateClaimed:
		target, ok := in.Target()
		if !ok {
			w.abandon(a)
			return
		}
		if !a.arrived(target) {
			w.walkToward(a, target)
			return
		}
		if err := w.sched.Begin(in); err != nil {
			w.cfg.Logger.Printf("agent %s: begin %s: %v", a.Name, in.ID, err)
			w.dropTask(a)
			return
		}
		if in.Def.Category == sched.CatDelivery {
			if err := w.sched.PickUp(in, a.Hands); err != nil {
				w.cfg.Logger.Printf("agent %s: pickup %s: %v", a.Name, in.ID, err)
				w.abandon(a)
			}
		}

	case sched.StateExecuting:
		if in.Def.Category == sched.CatDelivery && !in.DroppedOff {
			target, ok := in.Target()
			if !ok {
				w.abandon(a)
				return
			}
			if !a.arrived(target) {
				w.walkToward(a, target)
				return
			}
			if err := w.sched.DropOff(in, a.Hands); err != nil {
				w.cfg.Logger.Printf("agent %s: dropoff %s: %v", a.Name, in.ID, err)
				w.abandon(a)
			}
			return
		}
		done, err := w.sched.Advance(in)
		if err != nil {
			w.cfg.Logger.Printf("agent %s: advance %s: %v", a.Name, in.ID, err)
			w.dropTask(a)
			return
		}
		if done {
			w.complete(a)
		}
	}
}

// walkToward takes one flow-field step. An unreachable target interrupts
// the task; it re-enters the pending pool and is rebound elsewhere once
// topology or resources allow.
func (w *World) walkToward(a *Agent, target grid.Vec2i) {
	d, ok := w.paths.Direction(a.Pos, target)
	if !ok {
		w.cfg.Logger.Printf("agent %s: %s target %v unreachable from %v", a.Name, a.Task.ID, target, a.Pos)
		w.abandon(a)
		return
	}
	a.Pos = grid.Step(a.Pos, d)
}

// complete retires the agent's task and, when the scheduler respawned it,
// immediately tries the continuation claim so back-to-back runs at the
// same station skip the pending/ready round trip.
func (w *World) complete(a *Agent) {
	in := a.Task
	respawned, err := w.sched.Complete(in)
	if err != nil {
		w.cfg.Logger.Printf("agent %s: complete %s: %v", a.Name, in.ID, err)
	}
	a.Task = nil
	if respawned != nil && w.sched.ClaimWith(respawned) {
		a.Task = respawned
	}
}

// abandon interrupts the current task and empties the agent's hands.
// An item in hand at this point has no destination anymore; it is
// discarded and the loss is visible in the tick log.
func (w *World) abandon(a *Agent) {
	in := a.Task
	if in != nil && (in.State == sched.StateClaimed || in.State == sched.StateExecuting) {
		if err := w.sched.Interrupt(in); err != nil {
			w.cfg.Logger.Printf("agent %s: interrupt %s: %v", a.Name, in.ID, err)
		}
	}
	w.dropTask(a)
}

func (w *World) dropTask(a *Agent) {
	a.Task = nil
	if a.Hands.AvailableItems() > 0 && a.Hands.TryReserveItems(1) {
		if err := a.Hands.ConsumeItems(1); err == nil {
			w.cfg.Logger.Printf("agent %s: discarded carried item", a.Name)
		}
	}
}
