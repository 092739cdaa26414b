package catalogs

import (
	"encoding/json"
	"fmt"
	"os"
)

// Layout is the static world content: wall cells, placed stations and
// agent spawn points. Coordinates are [x, y] pairs.
type Layout struct {
	Walls    [][2]int        `json:"walls"`
	Stations []PlacedStation `json:"stations"`
	Agents   []PlacedAgent   `json:"agents"`
	Digest   string          `json:"-"`
}

type PlacedStation struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Pos  [2]int `json:"pos"`
}

type PlacedAgent struct {
	Name string `json:"name"`
	Pos  [2]int `json:"pos"`
}

func LoadLayout(path string, c *Catalogs) (*Layout, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l Layout
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	l.Digest = sha256Hex(raw)

	seen := map[string]bool{}
	cells := map[[2]int]string{}
	for _, w := range l.Walls {
		cells[w] = "wall"
	}
	for _, ps := range l.Stations {
		if ps.ID == "" {
			return nil, fmt.Errorf("layout: station with empty id")
		}
		if seen[ps.ID] {
			return nil, fmt.Errorf("layout: duplicate station id %q", ps.ID)
		}
		seen[ps.ID] = true
		if _, ok := c.Stations.Defs[ps.Type]; !ok {
			return nil, fmt.Errorf("layout: station %s: unknown type %q", ps.ID, ps.Type)
		}
		if prev, taken := cells[ps.Pos]; taken {
			return nil, fmt.Errorf("layout: station %s overlaps %s at %v", ps.ID, prev, ps.Pos)
		}
		cells[ps.Pos] = ps.ID
	}
	for i, pa := range l.Agents {
		if pa.Name == "" {
			return nil, fmt.Errorf("layout: agent %d with empty name", i)
		}
		if cells[pa.Pos] == "wall" {
			return nil, fmt.Errorf("layout: agent %s spawns inside a wall at %v", pa.Name, pa.Pos)
		}
	}
	return &l, nil
}
