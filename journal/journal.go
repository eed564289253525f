// Package journal keeps an append-only sqlite log of eliminations. It is a
// record of what happened, not a way to restore the world.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"agar/world"
)

const schema = `
CREATE TABLE IF NOT EXISTS eliminations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	tick        INTEGER NOT NULL,
	eater       TEXT NOT NULL,
	victim      TEXT NOT NULL,
	victim_mass REAL NOT NULL,
	created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS eliminations_eater ON eliminations (eater);
`

const queueSize = 1024

var ErrClosed = errors.New("journal closed")

type Score struct {
	Player    string  `json:"player"`
	Kills     int     `json:"kills"`
	MassEaten float64 `json:"mass_eaten"`
}

type item struct {
	elimination world.Elimination
	flushed     chan struct{}
}

// Journal writes eliminations from a single goroutine so the game tick
// never waits on disk.
type Journal struct {
	db      *sql.DB
	queue   chan item
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
	mu      sync.RWMutex
}

func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{
		db:    db,
		queue: make(chan item, queueSize),
		done:  make(chan struct{}),
	}
	go j.writeLoop()
	log.Printf("journal opened at %s", path)
	return j, nil
}

// Record queues e. When the queue is full the record is dropped and
// counted rather than blocking the caller.
func (j *Journal) Record(e world.Elimination) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed.Load() {
		return
	}
	select {
	case j.queue <- item{elimination: e}:
	default:
		if n := j.dropped.Add(1); n%100 == 1 {
			log.Printf("journal queue full, %d records dropped so far", n)
		}
	}
}

func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Flush waits until everything recorded so far is written.
func (j *Journal) Flush(ctx context.Context) error {
	flushed := make(chan struct{})
	j.mu.RLock()
	if j.closed.Load() {
		j.mu.RUnlock()
		return ErrClosed
	}
	select {
	case j.queue <- item{flushed: flushed}:
		j.mu.RUnlock()
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TopEaters ranks players by eliminations, then by mass eaten.
func (j *Journal) TopEaters(ctx context.Context, n int) ([]Score, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT eater, COUNT(*), SUM(victim_mass)
		FROM eliminations
		GROUP BY eater
		ORDER BY COUNT(*) DESC, SUM(victim_mass) DESC, eater ASC
		LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make([]Score, 0, n)
	for rows.Next() {
		var s Score
		if err := rows.Scan(&s.Player, &s.Kills, &s.MassEaten); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// Eliminations returns how many times victim has been eaten.
func (j *Journal) Eliminations(ctx context.Context, victim string) (int, error) {
	var count int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM eliminations WHERE victim = ?`, victim).Scan(&count)
	return count, err
}

// Close drains the queue and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed.Swap(true) {
		j.mu.Unlock()
		return ErrClosed
	}
	close(j.queue)
	j.mu.Unlock()

	<-j.done
	return j.db.Close()
}

func (j *Journal) writeLoop() {
	defer close(j.done)
	for it := range j.queue {
		if it.flushed != nil {
			close(it.flushed)
			continue
		}
		e := it.elimination
		_, err := j.db.Exec(
			`INSERT INTO eliminations (tick, eater, victim, victim_mass, created_at) VALUES (?, ?, ?, ?, ?)`,
			e.Tick, e.Eater, e.Victim, e.VictimMass, time.Now().UTC(),
		)
		if err != nil {
			log.Printf("journal: record %s eaten by %s: %v", e.Victim, e.Eater, err)
		}
	}
}
