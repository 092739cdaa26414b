package sched

import (
	"testing"

	"pgregory.net/rapid"

	"colonycraft.ai/internal/sim/grid"
)

// For any interleaving of reserve/commit/release operations the
// conservation invariants hold: counters never go negative,
// queued + reservedSlots never exceeds capacity, and reservedItems never
// exceeds queued.
func TestBuffer_ConservationUnderRandomOps(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(0, 8).Draw(rt, "capacity")
		b := NewBuffer("b", grid.Vec2i{}, capacity)

		check := func() {
			if b.ReservedSlots() < 0 || b.ReservedItems() < 0 {
				rt.Fatalf("negative reservation (%d slots, %d items)", b.ReservedSlots(), b.ReservedItems())
			}
			if b.AvailableSlots() < 0 || b.AvailableItems() < 0 {
				rt.Fatalf("negative availability (%d slots, %d items)", b.AvailableSlots(), b.AvailableItems())
			}
			if b.Queued()+b.ReservedSlots() > b.Capacity() {
				rt.Fatalf("queued %d + reservedSlots %d > capacity %d", b.Queued(), b.ReservedSlots(), b.Capacity())
			}
			if b.ReservedItems() > b.Queued() {
				rt.Fatalf("reservedItems %d > queued %d", b.ReservedItems(), b.Queued())
			}
		}

		steps := rapid.IntRange(1, 200).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			n := rapid.IntRange(1, 3).Draw(rt, "n")
			switch rapid.IntRange(0, 5).Draw(rt, "op") {
			case 0:
				b.TryReserveSlots(n)
			case 1:
				if n <= b.ReservedSlots() {
					if err := b.AddItems(n); err != nil {
						rt.Fatalf("legal add failed: %v", err)
					}
				}
			case 2:
				b.TryReserveItems(n)
			case 3:
				if n <= b.ReservedItems() && n <= b.Queued() {
					if err := b.ConsumeItems(n); err != nil {
						rt.Fatalf("legal consume failed: %v", err)
					}
				}
			case 4:
				b.ReleaseReservedSlots(n)
			case 5:
				b.ReleaseReservedItems(n)
			}
			check()
		}
	})
}
