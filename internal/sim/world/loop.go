package world

import (
	"context"
	"time"

	"colonycraft.ai/internal/protocol"
)

// Run drives the world at the configured tick rate until ctx is
// cancelled. Requests posted with Do interleave between ticks on the
// same goroutine, so they see consistent state.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.Tuning.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.cfg.Logger.Printf("running: %d agents, %d stations, tick %v",
		len(w.agents), len(w.stationOrder), interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-w.req:
			fn(w)
		case <-ticker.C:
			w.StepOnce()
		}
	}
}

// Do posts fn to execute on the world loop goroutine and waits for it.
func (w *World) Do(fn func(*World)) {
	done := make(chan struct{})
	w.req <- func(w *World) {
		fn(w)
		close(done)
	}
	<-done
}

// StepOnce advances the simulation one tick: promotion sweep first so
// freshly satisfiable tasks are claimable this tick, then every agent in
// spawn order, then observers and the tick log.
func (w *World) StepOnce() {
	w.tick++

	if w.tick%int64(w.cfg.Tuning.PromotionEveryTicks) == 0 {
		w.sched.PromoteAll()
	}
	for _, a := range w.agents {
		w.stepAgent(a)
	}

	broadcast := w.tick%int64(w.cfg.Tuning.BroadcastEveryTicks) == 0 && len(w.sinks) > 0
	logTick := w.cfg.TickLog != nil && w.tick%int64(w.cfg.Tuning.LogEveryTicks) == 0
	if !broadcast && !logTick {
		return
	}
	msg := w.Snapshot()
	if broadcast {
		for _, sink := range w.sinks {
			select {
			case sink <- msg:
			default: // slow observer: drop the frame, never stall the loop
			}
		}
	}
	if logTick {
		if err := w.cfg.TickLog.LogTick(msg); err != nil {
			w.cfg.Logger.Printf("tick log: %v", err)
		}
	}
}

// StepN advances n ticks; test helper.
func (w *World) StepN(n int) {
	for i := 0; i < n; i++ {
		w.StepOnce()
	}
}

// AttachSink registers a state channel for broadcast. Loop-goroutine
// only; transports call it through Do.
func (w *World) AttachSink(ch chan<- protocol.StateMsg) uint64 {
	w.nextSink++
	w.sinks[w.nextSink] = ch
	return w.nextSink
}

// DetachSink unregisters a sink. The channel is not closed; the owner
// closes it after detaching.
func (w *World) DetachSink(id uint64) {
	delete(w.sinks, id)
}
