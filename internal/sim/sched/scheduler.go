// Package sched decides when work becomes executable. It owns task
// instances across their lifecycle and guarantees, via a two-phase
// test-then-reserve protocol against resource buffers, that no two
// agents ever double-claim the same station, item or slot.
package sched

import (
	"fmt"
	"sort"
)

// Counts is the scheduler's observable backlog, one number per lifecycle
// partition. A perpetually nonzero Pending count is backpressure (or a
// content gap), not an error.
type Counts struct {
	Pending   int `json:"pending"`
	Ready     int `json:"ready"`
	Claimed   int `json:"claimed"`
	Executing int `json:"executing"`
}

type Scheduler struct {
	// strict makes invariant violations panic instead of no-op with an
	// error. On in tests and debug runs, off in release.
	strict bool

	nextTask uint64

	instances map[string]*Instance
	pending   []*Instance // FIFO promotion order
	ready     []*Instance // FIFO claim order

	stations   map[string]*Station
	free       map[string]bool     // station id -> present in free index
	freeByType map[string][]string // registration-order free lists

	buffers []*Buffer         // delivery candidates, registration order
	owner   map[string]string // buffer id -> owning station id

	overflow  uint64 // produced items discarded because Out was full
	completed uint64
}

func New(strict bool) *Scheduler {
	return &Scheduler{
		strict:     strict,
		instances:  map[string]*Instance{},
		stations:   map[string]*Station{},
		free:       map[string]bool{},
		freeByType: map[string][]string{},
		owner:      map[string]string{},
	}
}

// --- infrastructure lifecycle ---

// OnStationStarted registers a station and its buffers. Registration
// order is the canonical selection order for promotion.
func (s *Scheduler) OnStationStarted(st *Station) {
	if st == nil || st.ID == "" {
		return
	}
	if _, dup := s.stations[st.ID]; dup {
		return
	}
	s.stations[st.ID] = st
	s.free[st.ID] = true
	s.freeByType[st.Type] = append(s.freeByType[st.Type], st.ID)
	for _, b := range []*Buffer{st.In, st.Out} {
		if b != nil {
			s.buffers = append(s.buffers, b)
			s.owner[b.ID] = st.ID
		}
	}
}

// OnStationDestroyed evicts the station from every index (eager sweep;
// the free lists are additionally filtered lazily on scan) and revokes
// the bindings of every task that held it or one of its buffers.
func (s *Scheduler) OnStationDestroyed(id string) {
	st := s.stations[id]
	if st == nil {
		return
	}
	delete(s.stations, id)
	delete(s.free, id)

	list := s.freeByType[st.Type]
	kept := list[:0]
	for _, sid := range list {
		if sid != id {
			kept = append(kept, sid)
		}
	}
	s.freeByType[st.Type] = kept

	keptBufs := s.buffers[:0]
	for _, b := range s.buffers {
		if b != st.In && b != st.Out {
			keptBufs = append(keptBufs, b)
		}
	}
	s.buffers = keptBufs
	if st.In != nil {
		delete(s.owner, st.In.ID)
	}
	if st.Out != nil {
		delete(s.owner, st.Out.ID)
	}

	for _, in := range s.sortedInstances() {
		if in.Station == st ||
			(in.Pickup != nil && (in.Pickup == st.In || in.Pickup == st.Out)) ||
			(in.Dropoff != nil && (in.Dropoff == st.In || in.Dropoff == st.Out)) {
			s.revoke(in)
		}
	}
}

func (s *Scheduler) Station(id string) *Station { return s.stations[id] }

func (s *Scheduler) bufferByID(id string) *Buffer {
	for _, b := range s.buffers {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// --- task creation ---

// Spawn creates a Pending instance from def.
func (s *Scheduler) Spawn(def *Definition) *Instance {
	return s.spawn(def, def.Respawn)
}

func (s *Scheduler) spawn(def *Definition, respawn int) *Instance {
	s.nextTask++
	in := &Instance{
		ID:      fmt.Sprintf("T-%06d", s.nextTask),
		Def:     def,
		State:   StatePending,
		Respawn: respawn,
	}
	s.instances[in.ID] = in
	s.pending = append(s.pending, in)
	return in
}

// --- promotion ---

// PromoteAll runs the two-phase find/bind sweep over every Pending task,
// oldest first, and returns how many were promoted to Ready. A task that
// finds no resources stays Pending and is retried next sweep.
func (s *Scheduler) PromoteAll() int {
	promoted := 0
	sweep := append([]*Instance(nil), s.pending...)
	for _, in := range sweep {
		if in.State != StatePending {
			continue
		}
		if s.promote(in) {
			promoted++
		}
	}
	return promoted
}

func (s *Scheduler) promote(in *Instance) bool {
	switch in.Def.Category {
	case CatProduction, CatRefinement, CatConsumption:
		st := s.findStation(in.Def)
		if st == nil {
			return false
		}
		return s.bindStation(in, st)
	case CatDelivery:
		pu, do := s.findDelivery(in.Def)
		if pu == nil || do == nil {
			return false
		}
		return s.bindDelivery(in, pu, do)
	default:
		err := fmt.Errorf("%w: task %s has unknown category %q", ErrInvariant, in.ID, in.Def.Category)
		if s.strict {
			panic(err)
		}
		return false
	}
}

// findStation scans the type's free list in registration order, lazily
// compacting entries for stations that were destroyed or taken since
// they were indexed. Selection is first match; proximity is the agent's
// concern at claim time, not the scheduler's.
func (s *Scheduler) findStation(def *Definition) *Station {
	list := s.freeByType[def.StationType]
	kept := list[:0]
	var found *Station
	for _, id := range list {
		st := s.stations[id]
		if st == nil || !s.free[id] {
			continue
		}
		kept = append(kept, id)
		if found == nil && s.stationSatisfies(st, def) {
			found = st
		}
	}
	s.freeByType[def.StationType] = kept
	return found
}

func (s *Scheduler) stationSatisfies(st *Station, def *Definition) bool {
	if !def.Category.consumesInput() {
		return true
	}
	return st.In != nil && st.In.AvailableItems() > 0
}

func (s *Scheduler) findDelivery(def *Definition) (pickup, dropoff *Buffer) {
	for _, b := range s.buffers {
		if b.Pickup && b.Promise == def.Promise && b.AvailableItems() > 0 {
			pickup = b
			break
		}
	}
	if pickup == nil {
		return nil, nil
	}
	for _, b := range s.buffers {
		if b.Dropoff && b.Promise == def.Promise && b != pickup && b.AvailableSlots() > 0 {
			dropoff = b
			break
		}
	}
	if dropoff == nil {
		return nil, nil
	}
	return pickup, dropoff
}

// bindStation atomically reserves the station (and one input item for
// consuming categories) and moves the task Pending -> Ready.
func (s *Scheduler) bindStation(in *Instance, st *Station) bool {
	if in.State != StatePending { // idempotence guard
		return false
	}
	if in.Def.Category == CatDelivery {
		err := fmt.Errorf("%w: delivery task %s routed through station binding", ErrInvariant, in.ID)
		if s.strict {
			panic(err)
		}
		return false
	}
	if in.Def.Category.consumesInput() {
		if st.In == nil || !st.In.TryReserveItems(1) {
			return false
		}
	}
	s.free[st.ID] = false
	in.Station = st
	if err := s.transition(in, StateReady); err != nil {
		return false
	}
	s.dropPending(in)
	s.ready = append(s.ready, in)
	return true
}

// bindDelivery reserves source item then destination slot, rolling the
// source back if the destination fails. Ordering matters: a single-sided
// reservation must never survive this function.
func (s *Scheduler) bindDelivery(in *Instance, pickup, dropoff *Buffer) bool {
	if in.State != StatePending {
		return false
	}
	if in.Def.Category != CatDelivery {
		err := fmt.Errorf("%w: task %s (%s) routed through delivery binding", ErrInvariant, in.ID, in.Def.Category)
		if s.strict {
			panic(err)
		}
		return false
	}
	if !pickup.TryReserveItems(1) {
		return false
	}
	if !dropoff.TryReserveSlots(1) {
		pickup.ReleaseReservedItems(1)
		return false
	}
	in.Pickup = pickup
	in.Dropoff = dropoff
	if err := s.transition(in, StateReady); err != nil {
		pickup.ReleaseReservedItems(1)
		dropoff.ReleaseReservedSlots(1)
		in.clearBindings()
		return false
	}
	s.dropPending(in)
	s.ready = append(s.ready, in)
	return true
}

// --- agent API ---

// Claim pops the oldest Ready task (FIFO, no affinity) and hands it to
// the calling agent, or returns nil when none exist.
func (s *Scheduler) Claim() *Instance {
	if len(s.ready) == 0 {
		return nil
	}
	in := s.ready[0]
	s.ready = s.ready[1:]
	if err := s.transition(in, StateClaimed); err != nil {
		return nil
	}
	return in
}

// ClaimWith attempts to bind a Pending task directly to its hinted
// resources and claim it, bypassing the Ready queue. Used for
// continuation after a respawn; opportunistic only. On any failure the
// task stays Pending with its hints cleared and no residual priority.
func (s *Scheduler) ClaimWith(in *Instance) bool {
	if in == nil || in.State != StatePending || s.instances[in.ID] != in {
		return false
	}
	ok := false
	switch in.Def.Category {
	case CatDelivery:
		pu := s.bufferByID(in.HintPickup)
		do := s.bufferByID(in.HintDropoff)
		if pu != nil && do != nil && pu != do &&
			pu.Pickup && do.Dropoff &&
			pu.Promise == in.Def.Promise && do.Promise == in.Def.Promise {
			ok = s.bindDelivery(in, pu, do)
		}
	default:
		st := s.stations[in.HintStation]
		if st != nil && s.free[st.ID] && st.Type == in.Def.StationType && s.stationSatisfies(st, in.Def) {
			ok = s.bindStation(in, st)
		}
	}
	if !ok {
		in.clearHints()
		return false
	}
	s.dropReady(in)
	if err := s.transition(in, StateClaimed); err != nil {
		return false
	}
	return true
}

// Begin marks the claimed task as in progress and arms its countdown.
func (s *Scheduler) Begin(in *Instance) error {
	if err := s.transition(in, StateExecuting); err != nil {
		return err
	}
	in.Remaining = in.Def.Duration
	return nil
}

// Advance decrements the execution countdown by one tick.
func (s *Scheduler) Advance(in *Instance) (done bool, err error) {
	if in.State != StateExecuting {
		return false, s.invariant("advance on task %s in state %s", in.ID, in.State)
	}
	if in.Remaining > 0 {
		in.Remaining--
	}
	return in.Remaining <= 0, nil
}

// PickUp commits the source side of a delivery: the reserved item leaves
// the pickup buffer and enters the agent's hands.
func (s *Scheduler) PickUp(in *Instance, hands *Buffer) error {
	if in.Def.Category != CatDelivery || in.State != StateExecuting || in.PickedUp || in.Pickup == nil {
		return s.invariant("pickup on task %s (%s, state %s)", in.ID, in.Def.Category, in.State)
	}
	if !hands.TryReserveSlots(1) {
		return s.invariant("pickup with full hands %s for task %s", hands.ID, in.ID)
	}
	if err := in.Pickup.ConsumeItems(1); err != nil {
		hands.ReleaseReservedSlots(1)
		return err
	}
	if err := hands.AddItems(1); err != nil {
		return err
	}
	in.PickedUp = true
	return nil
}

// DropOff commits the destination side: the carried item leaves the
// agent's hands and fills the slot reserved at bind time.
func (s *Scheduler) DropOff(in *Instance, hands *Buffer) error {
	if in.Def.Category != CatDelivery || in.State != StateExecuting || !in.PickedUp || in.DroppedOff || in.Dropoff == nil {
		return s.invariant("dropoff on task %s (picked_up=%v, state %s)", in.ID, in.PickedUp, in.State)
	}
	if !hands.TryReserveItems(1) {
		return s.invariant("dropoff with empty hands %s for task %s", hands.ID, in.ID)
	}
	if err := hands.ConsumeItems(1); err != nil {
		return err
	}
	if err := in.Dropoff.AddItems(1); err != nil {
		return err
	}
	in.DroppedOff = true
	return nil
}

// Complete retires an executing task: applies its category's completion
// effects, releases whatever it still holds, and, when its respawn
// counter is nonzero, spawns a successor carrying continuation hints for
// an immediate ClaimWith by the same agent.
func (s *Scheduler) Complete(in *Instance) (respawned *Instance, err error) {
	if terr := s.transition(in, StateCompleted); terr != nil {
		return nil, terr
	}

	switch in.Def.Category {
	case CatProduction:
		s.produce(in.Station)
	case CatRefinement:
		if in.Station != nil && in.Station.In != nil {
			if cerr := in.Station.In.ConsumeItems(1); cerr != nil {
				err = cerr
			}
		}
		s.produce(in.Station)
	case CatConsumption:
		if in.Station != nil && in.Station.In != nil {
			if cerr := in.Station.In.ConsumeItems(1); cerr != nil {
				err = cerr
			}
		}
	case CatDelivery:
		// Normal completion has both sides committed; release anything
		// an aborted transfer left reserved.
		if !in.PickedUp && in.Pickup != nil {
			in.Pickup.ReleaseReservedItems(1)
		}
		if !in.DroppedOff && in.Dropoff != nil {
			in.Dropoff.ReleaseReservedSlots(1)
		}
	}

	if in.Station != nil {
		s.returnStation(in.Station)
	}

	hintStation, hintPickup, hintDropoff := "", "", ""
	if in.Station != nil {
		hintStation = in.Station.ID
	}
	if in.Pickup != nil {
		hintPickup = in.Pickup.ID
	}
	if in.Dropoff != nil {
		hintDropoff = in.Dropoff.ID
	}

	in.clearBindings()
	delete(s.instances, in.ID)
	s.completed++

	if in.Respawn != 0 {
		next := in.Respawn
		if next > 0 {
			next--
		}
		respawned = s.spawn(in.Def, next)
		respawned.HintStation = hintStation
		respawned.HintPickup = hintPickup
		respawned.HintDropoff = hintDropoff
	}
	return respawned, err
}

// Interrupt aborts a claimed or executing task (agent failure or an
// unreachable target), releasing every reservation it held before it
// re-enters the Pending pool.
func (s *Scheduler) Interrupt(in *Instance) error {
	if in.State != StateClaimed && in.State != StateExecuting {
		return s.invariant("interrupt on task %s in state %s", in.ID, in.State)
	}
	s.release(in)
	in.clearBindings()
	in.clearHints()
	if err := s.transition(in, StatePending); err != nil {
		return err
	}
	s.pending = append(s.pending, in)
	return nil
}

// revoke strips a task of bindings that no longer exist (station
// destroyed). Unlike Interrupt it also applies to Ready tasks.
func (s *Scheduler) revoke(in *Instance) {
	switch in.State {
	case StateReady:
		s.dropReady(in)
	case StateClaimed, StateExecuting:
	default:
		return
	}
	s.release(in)
	in.clearBindings()
	in.clearHints()
	if err := s.transition(in, StatePending); err != nil {
		return
	}
	s.pending = append(s.pending, in)
}

// release unwinds the uncommitted reservations bound to in.
func (s *Scheduler) release(in *Instance) {
	if in.Station != nil {
		if in.Def.Category.consumesInput() && in.Station.In != nil {
			in.Station.In.ReleaseReservedItems(1)
		}
		s.returnStation(in.Station)
	}
	if in.Pickup != nil && !in.PickedUp {
		in.Pickup.ReleaseReservedItems(1)
	}
	if in.Dropoff != nil && !in.DroppedOff {
		in.Dropoff.ReleaseReservedSlots(1)
	}
}

func (s *Scheduler) produce(st *Station) {
	if st == nil || st.Out == nil {
		return
	}
	if !st.Out.TryReserveSlots(1) {
		s.overflow++
		return
	}
	_ = st.Out.AddItems(1)
}

// returnStation puts a taken station back into its type's free index.
// No-op for destroyed or already-free stations. Binding only flips the
// free flag and leaves the list entry for the lazy scan to reuse, so the
// id is usually still listed; append only when compaction removed it.
func (s *Scheduler) returnStation(st *Station) {
	if s.stations[st.ID] == nil || s.free[st.ID] {
		return
	}
	s.free[st.ID] = true
	for _, id := range s.freeByType[st.Type] {
		if id == st.ID {
			return
		}
	}
	s.freeByType[st.Type] = append(s.freeByType[st.Type], st.ID)
}

// --- partitions & metrics ---

func (s *Scheduler) dropPending(in *Instance) {
	for i, p := range s.pending {
		if p == in {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) dropReady(in *Instance) {
	for i, r := range s.ready {
		if r == in {
			s.ready = append(s.ready[:i], s.ready[i+1:]...)
			return
		}
	}
}

// Counts reports the live partition sizes. Configuration gaps (a task
// demanding a station type nobody registered) show up here as a pinned
// Pending count.
func (s *Scheduler) Counts() Counts {
	var c Counts
	for _, in := range s.instances {
		switch in.State {
		case StatePending:
			c.Pending++
		case StateReady:
			c.Ready++
		case StateClaimed:
			c.Claimed++
		case StateExecuting:
			c.Executing++
		}
	}
	return c
}

// Completed reports tasks retired since startup.
func (s *Scheduler) Completed() uint64 { return s.completed }

// Overflow reports produced items discarded because the output buffer
// was full.
func (s *Scheduler) Overflow() uint64 { return s.overflow }

func (s *Scheduler) sortedInstances() []*Instance {
	out := make([]*Instance, 0, len(s.instances))
	for _, in := range s.instances {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Instances returns all live instances in id order; used by digests and
// tests.
func (s *Scheduler) Instances() []*Instance { return s.sortedInstances() }

func (s *Scheduler) invariant(format string, args ...any) error {
	err := fmt.Errorf("%w: "+format, append([]any{ErrInvariant}, args...)...)
	if s.strict {
		panic(err)
	}
	return err
}
