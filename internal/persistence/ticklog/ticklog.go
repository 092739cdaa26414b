// Package ticklog persists periodic state snapshots as zstd-compressed
// JSONL, one file per hour. The log is append-only and replayable; a
// digest mismatch between two replays of the same content flags lost
// determinism.
package ticklog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"colonycraft.ai/internal/protocol"
)

type Writer struct {
	mu   sync.Mutex
	dir  string
	hour string
	f    *os.File
	zw   *zstd.Encoder

	now func() time.Time
}

func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

// LogTick appends one snapshot. Rotation happens on the hour boundary of
// the wall clock, not the simulation tick.
func (w *Writer) LogTick(msg protocol.StateMsg) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006010215")
	if hour != w.hour {
		if err := w.rotate(hour); err != nil {
			return err
		}
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := w.zw.Write(append(raw, '\n')); err != nil {
		return err
	}
	return nil
}

func (w *Writer) rotate(hour string) error {
	if err := w.closeCurrent(); err != nil {
		return err
	}
	path := filepath.Join(w.dir, "ticks-"+hour+".jsonl.zst")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	w.f, w.zw, w.hour = f, zw, hour
	return nil
}

func (w *Writer) closeCurrent() error {
	if w.zw == nil {
		return nil
	}
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return err
	}
	err := w.f.Close()
	w.f, w.zw = nil, nil
	return err
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeCurrent()
}

// ReadFile decodes every snapshot in one log file, in write order.
func ReadFile(path string) ([]protocol.StateMsg, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var out []protocol.StateMsg
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<24)
	line := 0
	for sc.Scan() {
		line++
		var msg protocol.StateMsg
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			return out, fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		out = append(out, msg)
	}
	return out, sc.Err()
}

// Files lists the log files in dir, oldest first.
func Files(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "ticks-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
