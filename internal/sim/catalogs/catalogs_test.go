package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, "items.json", `[
		{"id": "ORE"},
		{"id": "INGOT"}
	]`)
	writeFixture(t, dir, "stations.json", `[
		{"id": "MINE", "out_capacity": 4, "out_promise": "ORE"},
		{"id": "SMELTER", "in_capacity": 2, "out_capacity": 2, "in_promise": "ORE", "out_promise": "INGOT"}
	]`)
	writeFixture(t, dir, "tasks.json", `[
		{"id": "mine", "category": "PRODUCTION", "station_type": "MINE", "duration_ticks": 3, "respawn": -1},
		{"id": "haul", "category": "DELIVERY", "promise": "ORE", "duration_ticks": 1, "respawn": -1},
		{"id": "smelt", "category": "REFINEMENT", "station_type": "SMELTER", "duration_ticks": 5,
		 "transform": {"input": "ORE", "output": "INGOT"}, "respawn": 2}
	]`)
	return dir
}

func TestLoad_Fixture(t *testing.T) {
	c, err := Load(fixtureDir(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Items.Palette) != 2 || c.Items.Palette[0] != "INGOT" {
		t.Fatalf("palette = %v", c.Items.Palette)
	}
	if c.Items.Defs["ORE"].Promise != "ORE" {
		t.Fatalf("promise should default to item id")
	}
	if got := c.Tasks.Order; len(got) != 3 || got[0] != "mine" {
		t.Fatalf("task order = %v", got)
	}
	if c.Tasks.ByID["mine"].Count != 1 {
		t.Fatalf("count should default to 1")
	}
	for _, d := range []string{c.Items.Digest, c.Stations.Digest, c.Tasks.Digest} {
		if len(d) != 64 {
			t.Fatalf("digest %q", d)
		}
	}
}

func TestLoad_RejectsBadReferences(t *testing.T) {
	cases := []struct {
		name, file, body, want string
	}{
		{"unknown station type", "tasks.json",
			`[{"id": "t", "category": "PRODUCTION", "station_type": "FORGE", "duration_ticks": 1, "respawn": 0}]`,
			"unknown station_type"},
		{"delivery with station", "tasks.json",
			`[{"id": "t", "category": "DELIVERY", "station_type": "MINE", "promise": "ORE", "duration_ticks": 1, "respawn": 0}]`,
			"delivery with station_type"},
		{"refinement without transform", "tasks.json",
			`[{"id": "t", "category": "REFINEMENT", "station_type": "SMELTER", "duration_ticks": 1, "respawn": 0}]`,
			"without transform"},
		{"refinement at bufferless station", "tasks.json",
			`[{"id": "t", "category": "REFINEMENT", "station_type": "MINE", "duration_ticks": 1,
			   "transform": {"input": "ORE", "output": "INGOT"}, "respawn": 0}]`,
			"no input buffer"},
		{"unknown promise", "stations.json",
			`[{"id": "MINE", "out_capacity": 1, "out_promise": "GOLD"}]`,
			"unknown out_promise"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := fixtureDir(t)
			writeFixture(t, dir, tc.file, tc.body)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestLoadLayout(t *testing.T) {
	dir := fixtureDir(t)
	c, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	writeFixture(t, dir, "layout.json", `{
		"walls": [[3, 0], [3, 1]],
		"stations": [
			{"id": "mine-1", "type": "MINE", "pos": [1, 1]},
			{"id": "smelter-1", "type": "SMELTER", "pos": [6, 1]}
		],
		"agents": [{"name": "ada", "pos": [0, 0]}]
	}`)
	l, err := LoadLayout(filepath.Join(dir, "layout.json"), c)
	if err != nil {
		t.Fatalf("LoadLayout: %v", err)
	}
	if len(l.Walls) != 2 || len(l.Stations) != 2 || len(l.Agents) != 1 {
		t.Fatalf("layout = %+v", l)
	}

	writeFixture(t, dir, "layout.json", `{
		"stations": [{"id": "x", "type": "FORGE", "pos": [0, 0]}]
	}`)
	if _, err := LoadLayout(filepath.Join(dir, "layout.json"), c); err == nil {
		t.Fatal("unknown station type accepted")
	}

	writeFixture(t, dir, "layout.json", `{
		"walls": [[0, 0]],
		"agents": [{"name": "ada", "pos": [0, 0]}]
	}`)
	if _, err := LoadLayout(filepath.Join(dir, "layout.json"), c); err == nil {
		t.Fatal("agent inside wall accepted")
	}
}

func TestLoad_ShippedConfigs(t *testing.T) {
	root := filepath.Join("..", "..", "..", "configs")
	c, err := Load(root)
	if err != nil {
		t.Fatalf("shipped configs: %v", err)
	}
	if _, err := LoadLayout(filepath.Join(root, "layout.json"), c); err != nil {
		t.Fatalf("shipped layout: %v", err)
	}
}
