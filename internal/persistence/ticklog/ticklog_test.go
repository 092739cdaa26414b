package ticklog

import (
	"testing"
	"time"

	"colonycraft.ai/internal/protocol"
)

func entry(tick int64) protocol.StateMsg {
	return protocol.StateMsg{
		Type:      protocol.TypeState,
		Tick:      tick,
		Tasks:     protocol.TaskCounts{Pending: 1, Executing: 2},
		Completed: tick * 3,
		Agents:    []protocol.AgentState{{Name: "ada", X: int(tick), Y: 0, Holding: 1}},
		Digest:    "d",
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i := int64(1); i <= 5; i++ {
		if err := w.LogTick(entry(i * 10)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	files, err := Files(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("files = %v, %v", files, err)
	}
	got, err := ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("entries = %d", len(got))
	}
	for i, msg := range got {
		if msg.Tick != int64(i+1)*10 {
			t.Fatalf("entry %d tick = %d", i, msg.Tick)
		}
	}
	if got[0].Agents[0].Name != "ada" || got[4].Completed != 150 {
		t.Fatalf("payload mangled: %+v", got[4])
	}
}

func TestWriter_RotatesOnHourBoundary(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	clock := time.Date(2026, 8, 30, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.LogTick(entry(1)); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.LogTick(entry(2)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	files, _ := Files(dir)
	if len(files) != 2 {
		t.Fatalf("files = %v, want one per hour", files)
	}
	for i, path := range files {
		got, err := ReadFile(path)
		if err != nil || len(got) != 1 || got[0].Tick != int64(i+1) {
			t.Fatalf("file %s: %v %v", path, got, err)
		}
	}
}
