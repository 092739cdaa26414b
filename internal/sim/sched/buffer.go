package sched

import (
	"fmt"

	"colonycraft.ai/internal/sim/grid"
)

// Buffer is a reservable item store. Workstations, producers, sinks and
// agent hands all play this role. Items are interchangeable within a
// buffer; what a buffer holds is declared by its promise tag, which is
// advisory routing metadata and not enforced here.
//
// The reserve-then-commit split on both the add and remove sides is the
// core correctness mechanism: the scheduler proves availability for every
// buffer in a multi-buffer transaction before mutating any of them, and
// unwinds a partially successful bind via the Release operations.
type Buffer struct {
	ID      string
	Pos     grid.Vec2i
	Promise string // item-routing contract this buffer accepts/provides
	Pickup  bool   // advisory: delivery source
	Dropoff bool   // advisory: delivery destination

	capacity      int
	queued        int
	reservedSlots int
	reservedItems int
}

func NewBuffer(id string, pos grid.Vec2i, capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{ID: id, Pos: pos, capacity: capacity}
}

func (b *Buffer) Capacity() int { return b.capacity }
func (b *Buffer) Queued() int   { return b.queued }

// AvailableSlots is capacity not yet holding or promised to incoming items.
func (b *Buffer) AvailableSlots() int { return b.capacity - b.queued - b.reservedSlots }

// AvailableItems is queued items not yet promised for removal.
func (b *Buffer) AvailableItems() int { return b.queued - b.reservedItems }

func (b *Buffer) ReservedSlots() int { return b.reservedSlots }
func (b *Buffer) ReservedItems() int { return b.reservedItems }

// TryReserveSlots pre-commits capacity for n incoming items. Failure means
// contention, not an error.
func (b *Buffer) TryReserveSlots(n int) bool {
	if n <= 0 || n > b.AvailableSlots() {
		return false
	}
	b.reservedSlots += n
	return true
}

// AddItems commits n items against previously reserved slots.
func (b *Buffer) AddItems(n int) error {
	if n <= 0 || n > b.reservedSlots {
		return fmt.Errorf("%w: add %d items to %s with %d reserved slots", ErrInvariant, n, b.ID, b.reservedSlots)
	}
	b.reservedSlots -= n
	b.queued += n
	return nil
}

// TryReserveItems pre-commits n queued items for removal.
func (b *Buffer) TryReserveItems(n int) bool {
	if n <= 0 || n > b.AvailableItems() {
		return false
	}
	b.reservedItems += n
	return true
}

// ConsumeItems removes n items against previously reserved items.
func (b *Buffer) ConsumeItems(n int) error {
	if n <= 0 || n > b.reservedItems || n > b.queued {
		return fmt.Errorf("%w: consume %d items from %s (reserved %d, queued %d)", ErrInvariant, n, b.ID, b.reservedItems, b.queued)
	}
	b.reservedItems -= n
	b.queued -= n
	return nil
}

// ReleaseReservedSlots unwinds up to n slot reservations. Clamped at zero
// so rollback paths can release unconditionally.
func (b *Buffer) ReleaseReservedSlots(n int) {
	if n <= 0 {
		return
	}
	b.reservedSlots -= n
	if b.reservedSlots < 0 {
		b.reservedSlots = 0
	}
}

// ReleaseReservedItems unwinds up to n item reservations.
func (b *Buffer) ReleaseReservedItems(n int) {
	if n <= 0 {
		return
	}
	b.reservedItems -= n
	if b.reservedItems < 0 {
		b.reservedItems = 0
	}
}
