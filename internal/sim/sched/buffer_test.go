package sched

import (
	"errors"
	"testing"

	"colonycraft.ai/internal/sim/grid"
)

func TestBuffer_SlotProtocol(t *testing.T) {
	b := NewBuffer("chest-1", grid.Vec2i{}, 2)
	if b.AvailableSlots() != 2 || b.AvailableItems() != 0 {
		t.Fatalf("fresh buffer slots=%d items=%d", b.AvailableSlots(), b.AvailableItems())
	}

	if !b.TryReserveSlots(2) {
		t.Fatalf("reserve 2 of 2 slots failed")
	}
	if b.TryReserveSlots(1) {
		t.Fatalf("over-reservation succeeded")
	}
	if err := b.AddItems(1); err != nil {
		t.Fatalf("add against reservation: %v", err)
	}
	if b.Queued() != 1 || b.ReservedSlots() != 1 {
		t.Fatalf("queued=%d reservedSlots=%d", b.Queued(), b.ReservedSlots())
	}

	// Commit without reservation is a defect, not a clamp.
	if err := b.AddItems(2); !errors.Is(err, ErrInvariant) {
		t.Fatalf("unreserved add err=%v", err)
	}

	b.ReleaseReservedSlots(1)
	if b.AvailableSlots() != 1 {
		t.Fatalf("slots after release=%d", b.AvailableSlots())
	}
}

func TestBuffer_ItemProtocol(t *testing.T) {
	b := NewBuffer("chest-2", grid.Vec2i{}, 4)
	b.TryReserveSlots(3)
	if err := b.AddItems(3); err != nil {
		t.Fatalf("seed items: %v", err)
	}

	if !b.TryReserveItems(2) {
		t.Fatalf("reserve 2 of 3 items failed")
	}
	if b.AvailableItems() != 1 {
		t.Fatalf("available items=%d want 1", b.AvailableItems())
	}
	if b.TryReserveItems(2) {
		t.Fatalf("over-reservation of items succeeded")
	}

	if err := b.ConsumeItems(2); err != nil {
		t.Fatalf("consume reserved: %v", err)
	}
	if b.Queued() != 1 || b.ReservedItems() != 0 {
		t.Fatalf("queued=%d reservedItems=%d", b.Queued(), b.ReservedItems())
	}
	if err := b.ConsumeItems(1); !errors.Is(err, ErrInvariant) {
		t.Fatalf("unreserved consume err=%v", err)
	}

	// Release clamps at zero for unconditional rollback paths.
	b.ReleaseReservedItems(5)
	if b.ReservedItems() != 0 {
		t.Fatalf("reservedItems=%d after clamped release", b.ReservedItems())
	}
}

func TestBuffer_ZeroCapacity(t *testing.T) {
	b := NewBuffer("void", grid.Vec2i{}, 0)
	if b.TryReserveSlots(1) {
		t.Fatalf("reserved a slot in a zero-capacity buffer")
	}
	if b.TryReserveItems(1) {
		t.Fatalf("reserved an item in an empty buffer")
	}
}
