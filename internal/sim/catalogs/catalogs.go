// Package catalogs loads the immutable definition data: items, station
// types, task templates and the world layout. Everything here is
// load-once; nothing is mutated at runtime.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Catalogs struct {
	Items    ItemCatalog
	Stations StationCatalog
	Tasks    TaskCatalog
}

type ItemCatalog struct {
	Palette []string
	Index   map[string]uint16
	Defs    map[string]ItemDef
	Digest  string
}

// ItemDef ties an item id to the promise tag delivery routing uses.
// The promise is the declared routing contract, not the item's physical
// composition; several items may share one promise.
type ItemDef struct {
	ID      string `json:"id"`
	Promise string `json:"promise"`
}

type StationCatalog struct {
	Defs   map[string]StationDef
	Digest string
}

// StationDef describes a station type. InCapacity/OutCapacity of zero
// mean the station has no buffer on that side (producers have no In,
// sinks no Out).
type StationDef struct {
	ID          string `json:"id"`
	InCapacity  int    `json:"in_capacity"`
	OutCapacity int    `json:"out_capacity"`
	InPromise   string `json:"in_promise,omitempty"`
	OutPromise  string `json:"out_promise,omitempty"`
}

type TaskCatalog struct {
	ByID   map[string]TaskDef
	Order  []string // file order; the spawn order at world start
	Digest string
}

type TaskDef struct {
	ID            string         `json:"id"`
	Category      string         `json:"category"` // PRODUCTION, REFINEMENT, DELIVERY, CONSUMPTION
	StationType   string         `json:"station_type,omitempty"`
	DurationTicks int            `json:"duration_ticks"`
	Transform     *TransformSpec `json:"transform,omitempty"`
	Promise       string         `json:"promise,omitempty"`
	Respawn       int            `json:"respawn"` // 0 one-shot, N more times, -1 infinite
	Count         int            `json:"count"`   // instances spawned at world start (default 1)
}

type TransformSpec struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadStations(filepath.Join(configDir, "stations.json"), &c.Stations); err != nil {
		return nil, err
	}
	if err := loadTasks(filepath.Join(configDir, "tasks.json"), &c.Tasks); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %q", d.ID)
		}
		if d.Promise == "" {
			d.Promise = d.ID
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	return nil
}

func loadStations(path string, out *StationCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []StationDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("stations.json: %w", err)
	}
	out.Defs = map[string]StationDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("stations.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("stations.json: duplicate id %q", d.ID)
		}
		if d.InCapacity < 0 || d.OutCapacity < 0 {
			return fmt.Errorf("stations.json: %s: negative capacity", d.ID)
		}
		if d.InCapacity == 0 && d.OutCapacity == 0 {
			return fmt.Errorf("stations.json: %s: no buffer on either side", d.ID)
		}
		if d.InCapacity > 0 && d.InPromise == "" {
			return fmt.Errorf("stations.json: %s: in buffer without in_promise", d.ID)
		}
		if d.OutCapacity > 0 && d.OutPromise == "" {
			return fmt.Errorf("stations.json: %s: out buffer without out_promise", d.ID)
		}
		out.Defs[d.ID] = d
	}
	return nil
}

func loadTasks(path string, out *TaskCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []TaskDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("tasks.json: %w", err)
	}
	out.ByID = map[string]TaskDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("tasks.json: empty id")
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("tasks.json: duplicate id %q", d.ID)
		}
		if d.Count <= 0 {
			d.Count = 1
		}
		if d.Respawn < -1 {
			return fmt.Errorf("tasks.json: %s: respawn %d", d.ID, d.Respawn)
		}
		out.ByID[d.ID] = d
		out.Order = append(out.Order, d.ID)
	}
	return nil
}

// validate cross-checks references between the three catalogs. A task
// whose station type exists but has no instances placed is a content
// issue, visible at runtime as a pinned Pending count, not a load error.
func (c *Catalogs) validate() error {
	promises := map[string]bool{}
	for _, it := range c.Items.Defs {
		promises[it.Promise] = true
	}
	for _, sd := range c.Stations.Defs {
		if sd.InPromise != "" && !promises[sd.InPromise] {
			return fmt.Errorf("stations.json: %s: unknown in_promise %q", sd.ID, sd.InPromise)
		}
		if sd.OutPromise != "" && !promises[sd.OutPromise] {
			return fmt.Errorf("stations.json: %s: unknown out_promise %q", sd.ID, sd.OutPromise)
		}
	}
	for _, id := range c.Tasks.Order {
		td := c.Tasks.ByID[id]
		switch td.Category {
		case "PRODUCTION", "REFINEMENT", "CONSUMPTION":
			if td.StationType == "" {
				return fmt.Errorf("tasks.json: %s: %s task without station_type", id, td.Category)
			}
			sd, ok := c.Stations.Defs[td.StationType]
			if !ok {
				return fmt.Errorf("tasks.json: %s: unknown station_type %q", id, td.StationType)
			}
			if td.Category != "PRODUCTION" && sd.InCapacity == 0 {
				return fmt.Errorf("tasks.json: %s: %s at station %s with no input buffer", id, td.Category, sd.ID)
			}
			if td.Category == "REFINEMENT" && td.Transform == nil {
				return fmt.Errorf("tasks.json: %s: refinement without transform", id)
			}
		case "DELIVERY":
			if td.StationType != "" {
				return fmt.Errorf("tasks.json: %s: delivery with station_type %q", id, td.StationType)
			}
			if td.Promise == "" {
				return fmt.Errorf("tasks.json: %s: delivery without promise", id)
			}
			if !promises[td.Promise] {
				return fmt.Errorf("tasks.json: %s: unknown promise %q", id, td.Promise)
			}
		default:
			return fmt.Errorf("tasks.json: %s: unknown category %q", id, td.Category)
		}
		if td.DurationTicks < 0 {
			return fmt.Errorf("tasks.json: %s: negative duration", id)
		}
	}
	return nil
}
