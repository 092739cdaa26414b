package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "tuning.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if got != Default() {
		t.Fatalf("got %+v", got)
	}
}

func TestLoad_OverridesAndValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 20\nstrict_invariants: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.TickRateHz != 20 || !got.StrictInvariants {
		t.Fatalf("got %+v", got)
	}
	if got.ExpansionBuffer != Default().ExpansionBuffer {
		t.Fatalf("unset field should keep default, got %d", got.ExpansionBuffer)
	}

	if err := os.WriteFile(path, []byte("tick_rate_hz: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("zero tick rate accepted")
	}
}
