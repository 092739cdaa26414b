// Package indexdb keeps a queryable sqlite index of tick metrics next to
// the raw tick log. Inserts go through a buffered channel into a single
// writer goroutine so the world loop never blocks on disk.
package indexdb

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"colonycraft.ai/internal/protocol"
)

const schema = `
CREATE TABLE IF NOT EXISTS ticks (
	tick      INTEGER PRIMARY KEY,
	pending   INTEGER NOT NULL,
	ready     INTEGER NOT NULL,
	claimed   INTEGER NOT NULL,
	executing INTEGER NOT NULL,
	completed INTEGER NOT NULL,
	overflow  INTEGER NOT NULL,
	agents    INTEGER NOT NULL,
	digest    TEXT NOT NULL
);
`

type Index struct {
	db *sql.DB

	ch      chan protocol.StateMsg
	done    chan struct{}
	dropped atomic.Uint64

	closeOnce sync.Once
}

func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	ix := &Index{
		db:   db,
		ch:   make(chan protocol.StateMsg, 256),
		done: make(chan struct{}),
	}
	go ix.writer()
	return ix, nil
}

// LogTick enqueues one row. When the writer is behind and the buffer is
// full the row is dropped and counted; the raw tick log remains complete.
func (ix *Index) LogTick(msg protocol.StateMsg) error {
	select {
	case ix.ch <- msg:
	default:
		ix.dropped.Add(1)
	}
	return nil
}

func (ix *Index) writer() {
	defer close(ix.done)
	for msg := range ix.ch {
		_, err := ix.db.Exec(`INSERT OR REPLACE INTO ticks
			(tick, pending, ready, claimed, executing, completed, overflow, agents, digest)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.Tick, msg.Tasks.Pending, msg.Tasks.Ready, msg.Tasks.Claimed, msg.Tasks.Executing,
			msg.Completed, msg.Overflow, len(msg.Agents), msg.Digest)
		if err != nil {
			// Keep draining; a transient disk error must not wedge the
			// channel and back up into LogTick drops forever.
			continue
		}
	}
}

// Close drains pending rows and shuts the database.
func (ix *Index) Close() error {
	var err error
	ix.closeOnce.Do(func() {
		close(ix.ch)
		<-ix.done
		err = ix.db.Close()
	})
	return err
}

// Dropped reports rows lost to a full write buffer. Safe to read from
// any goroutine while the world loop keeps logging.
func (ix *Index) Dropped() uint64 { return ix.dropped.Load() }

// Row is one indexed tick.
type Row struct {
	Tick      int64
	Counts    protocol.TaskCounts
	Completed int64
	Overflow  int64
	Agents    int
	Digest    string
}

func scanRow(s interface{ Scan(...any) error }) (Row, error) {
	var r Row
	err := s.Scan(&r.Tick, &r.Counts.Pending, &r.Counts.Ready, &r.Counts.Claimed, &r.Counts.Executing,
		&r.Completed, &r.Overflow, &r.Agents, &r.Digest)
	return r, err
}

// Latest returns the highest-tick row.
func (ix *Index) Latest() (Row, error) {
	return scanRow(ix.db.QueryRow(`SELECT * FROM ticks ORDER BY tick DESC LIMIT 1`))
}

// At returns the row for an exact tick.
func (ix *Index) At(tick int64) (Row, error) {
	return scanRow(ix.db.QueryRow(`SELECT * FROM ticks WHERE tick = ?`, tick))
}

// Range returns rows with from <= tick <= to, ascending.
func (ix *Index) Range(from, to int64) ([]Row, error) {
	rows, err := ix.db.Query(`SELECT * FROM ticks WHERE tick BETWEEN ? AND ? ORDER BY tick`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("indexdb: %w", err)
	}
	return out, nil
}
