// Package world owns the authoritative simulation state: the grid, the
// scheduler, the pathfinder and the agents. All state lives on a single
// goroutine; everything outside reaches it through the request channel.
package world

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"

	"colonycraft.ai/internal/protocol"
	"colonycraft.ai/internal/sim/catalogs"
	"colonycraft.ai/internal/sim/flowfield"
	"colonycraft.ai/internal/sim/grid"
	"colonycraft.ai/internal/sim/sched"
	"colonycraft.ai/internal/sim/tuning"
)

// TickLogger receives one entry per logged tick. Implementations must not
// block the world loop; buffer or drop instead.
type TickLogger interface {
	LogTick(protocol.StateMsg) error
}

type Config struct {
	Catalogs *catalogs.Catalogs
	Layout   *catalogs.Layout
	Tuning   tuning.Tuning
	Logger   *log.Logger
	TickLog  TickLogger
}

// applyDefaults fills unset knobs field by field. StepOnce divides by
// the interval fields, so a partially built Config must never leave one
// at zero.
func (c *Config) applyDefaults() {
	def := tuning.Default()
	if c.Tuning.TickRateHz <= 0 {
		c.Tuning.TickRateHz = def.TickRateHz
	}
	if c.Tuning.PromotionEveryTicks <= 0 {
		c.Tuning.PromotionEveryTicks = def.PromotionEveryTicks
	}
	if c.Tuning.BroadcastEveryTicks <= 0 {
		c.Tuning.BroadcastEveryTicks = def.BroadcastEveryTicks
	}
	if c.Tuning.LogEveryTicks <= 0 {
		c.Tuning.LogEveryTicks = def.LogEveryTicks
	}
	if c.Tuning.ExpansionBuffer <= 0 {
		c.Tuning.ExpansionBuffer = def.ExpansionBuffer
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stderr, "world: ", log.LstdFlags)
	}
}

type World struct {
	cfg Config

	grid  *grid.Map
	paths *flowfield.Pathfinder
	sched *sched.Scheduler

	agents       []*Agent
	stationOrder []string // placement order, for stable snapshots

	digests protocol.CatalogDigest
	tick    int64

	req      chan func(*World)
	sinks    map[uint64]chan<- protocol.StateMsg
	nextSink uint64
}

func New(cfg Config) (*World, error) {
	cfg.applyDefaults()
	if cfg.Catalogs == nil || cfg.Layout == nil {
		return nil, fmt.Errorf("world: catalogs and layout are required")
	}

	w := &World{
		cfg:   cfg,
		grid:  grid.NewMap(),
		sched: sched.New(cfg.Tuning.StrictInvariants),
		req:   make(chan func(*World), 64),
		sinks: map[uint64]chan<- protocol.StateMsg{},
		digests: protocol.CatalogDigest{
			Items:    cfg.Catalogs.Items.Digest,
			Stations: cfg.Catalogs.Stations.Digest,
			Tasks:    cfg.Catalogs.Tasks.Digest,
			Layout:   cfg.Layout.Digest,
		},
	}
	w.paths = flowfield.New(w.grid, cfg.Tuning.ExpansionBuffer)

	for _, wall := range cfg.Layout.Walls {
		w.grid.SetBlocked(grid.Vec2i{X: wall[0], Y: wall[1]}, true)
	}
	for _, ps := range cfg.Layout.Stations {
		if err := w.StartStation(ps); err != nil {
			return nil, err
		}
	}
	for _, td := range taskDefsInOrder(cfg.Catalogs) {
		def := toDefinition(td)
		for i := 0; i < td.Count; i++ {
			w.sched.Spawn(def)
		}
	}
	for _, pa := range cfg.Layout.Agents {
		pos := grid.Vec2i{X: pa.Pos[0], Y: pa.Pos[1]}
		w.agents = append(w.agents, &Agent{
			Name:  pa.Name,
			Pos:   pos,
			Hands: sched.NewBuffer(pa.Name+"/hands", pos, 1),
		})
	}
	return w, nil
}

func taskDefsInOrder(c *catalogs.Catalogs) []catalogs.TaskDef {
	out := make([]catalogs.TaskDef, 0, len(c.Tasks.Order))
	for _, id := range c.Tasks.Order {
		out = append(out, c.Tasks.ByID[id])
	}
	return out
}

func toDefinition(td catalogs.TaskDef) *sched.Definition {
	def := &sched.Definition{
		ID:          td.ID,
		Category:    sched.Category(td.Category),
		StationType: td.StationType,
		Duration:    td.DurationTicks,
		Promise:     td.Promise,
		Respawn:     td.Respawn,
	}
	if td.Transform != nil {
		def.Transform = &sched.TransformRule{Input: td.Transform.Input, Output: td.Transform.Output}
	}
	return def
}

// StartStation places a station from the catalogs and registers it with
// the scheduler. Loop-goroutine only.
func (w *World) StartStation(ps catalogs.PlacedStation) error {
	def, ok := w.cfg.Catalogs.Stations.Defs[ps.Type]
	if !ok {
		return fmt.Errorf("world: station %s: unknown type %q", ps.ID, ps.Type)
	}
	pos := grid.Vec2i{X: ps.Pos[0], Y: ps.Pos[1]}
	if !w.grid.Walkable(pos) {
		return fmt.Errorf("world: station %s placed on blocked cell %v", ps.ID, pos)
	}
	if id, taken := w.grid.OccupantAt(pos); taken {
		return fmt.Errorf("world: station %s overlaps %s at %v", ps.ID, id, pos)
	}

	st := &sched.Station{ID: ps.ID, Type: ps.Type, Pos: pos}
	if def.InCapacity > 0 {
		b := sched.NewBuffer(ps.ID+"/in", pos, def.InCapacity)
		b.Promise = def.InPromise
		b.Dropoff = true
		st.In = b
	}
	if def.OutCapacity > 0 {
		b := sched.NewBuffer(ps.ID+"/out", pos, def.OutCapacity)
		b.Promise = def.OutPromise
		b.Pickup = true
		st.Out = b
	}
	w.sched.OnStationStarted(st)
	w.grid.SetOccupant(pos, ps.ID)
	w.stationOrder = append(w.stationOrder, ps.ID)
	return nil
}

// DestroyStation removes a station. Tasks bound to it are revoked by the
// scheduler; agents holding such a task notice on their next step.
func (w *World) DestroyStation(id string) {
	st := w.sched.Station(id)
	if st == nil {
		return
	}
	w.sched.OnStationDestroyed(id)
	w.grid.ClearOccupant(st.Pos, id)
	for i, sid := range w.stationOrder {
		if sid == id {
			w.stationOrder = append(w.stationOrder[:i], w.stationOrder[i+1:]...)
			break
		}
	}
}

// SetWall toggles a wall cell. Nearby cached flow fields are dropped via
// the walkability watcher.
func (w *World) SetWall(c grid.Vec2i, blocked bool) {
	w.grid.SetBlocked(c, blocked)
}

// Tick reports the current tick. Loop-goroutine only.
func (w *World) Tick() int64 { return w.tick }

// Scheduler exposes the task scheduler for tests and stats.
func (w *World) Scheduler() *sched.Scheduler { return w.sched }

// Pathfinder exposes the flow-field cache for tests and stats.
func (w *World) Pathfinder() *flowfield.Pathfinder { return w.paths }

// Grid exposes the walkability map.
func (w *World) Grid() *grid.Map { return w.grid }

// Agent returns the named agent, or nil.
func (w *World) Agent(name string) *Agent {
	for _, a := range w.agents {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Snapshot assembles the observer state message for the current tick.
func (w *World) Snapshot() protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:      protocol.TypeState,
		Tick:      w.tick,
		Tasks:     protocol.TaskCounts(w.sched.Counts()),
		Completed: int64(w.sched.Completed()),
		Overflow:  int64(w.sched.Overflow()),
		Fields: protocol.FlowFieldStats{
			Cached:    w.paths.CachedFields(),
			Builds:    int64(w.paths.Builds()),
			Evictions: int64(w.paths.Evictions()),
		},
	}
	for _, a := range w.agents {
		as := protocol.AgentState{Name: a.Name, X: a.Pos.X, Y: a.Pos.Y, Holding: a.Hands.Queued()}
		if a.Task != nil {
			as.Task = a.Task.ID
		}
		msg.Agents = append(msg.Agents, as)
	}
	for _, id := range w.stationOrder {
		st := w.sched.Station(id)
		if st == nil {
			continue
		}
		ss := protocol.StationState{ID: st.ID, X: st.Pos.X, Y: st.Pos.Y}
		if st.In != nil {
			ss.In = st.In.Queued()
		}
		if st.Out != nil {
			ss.Out = st.Out.Queued()
		}
		msg.Stations = append(msg.Stations, ss)
	}
	msg.Digest = w.stateDigest(msg)
	return msg
}

// stateDigest condenses the observable state into a short hex string.
// Two runs from the same catalogs and inputs produce identical digests
// tick for tick; divergence pinpoints lost determinism.
func (w *World) stateDigest(msg protocol.StateMsg) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "t=%d c=%d/%d/%d/%d done=%d ovf=%d blk=%d",
		msg.Tick, msg.Tasks.Pending, msg.Tasks.Ready, msg.Tasks.Claimed, msg.Tasks.Executing,
		msg.Completed, msg.Overflow, w.grid.BlockedCount())
	for _, a := range msg.Agents {
		fmt.Fprintf(&sb, " %s@%d,%d+%d", a.Name, a.X, a.Y, a.Holding)
	}
	for _, s := range msg.Stations {
		fmt.Fprintf(&sb, " %s:%d/%d", s.ID, s.In, s.Out)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:8])
}

// Welcome builds the handshake reply for a new observer.
func (w *World) Welcome() protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:    protocol.TypeWelcome,
		Version: protocol.Version,
		Tick:    w.tick,
		Digests: w.digests,
	}
}
