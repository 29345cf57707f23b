// Package trace records every frame exchanged with the console into SQLite.
package trace

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// AutoPath asks Open to pick a fresh file name in the working directory.
const AutoPath = "auto"

// Config selects the trace database.
type Config struct {
	Path          string        `help:"Record frames into this SQLite file (\"auto\" picks a name); empty disables" env:"NSCON_TRACE_PATH"`
	BatchSize     int           `help:"Frames buffered before a write" default:"256" env:"NSCON_TRACE_BATCH"`
	FlushInterval time.Duration `help:"Upper bound on how long a frame stays buffered" default:"1s" env:"NSCON_TRACE_FLUSH"`
}

// Frame is one recorded frame.
type Frame struct {
	ID       int64     `json:"id"`
	Session  string    `json:"session"`
	Time     time.Time `json:"time"`
	In       bool      `json:"in"`
	ReportID byte      `json:"reportId"`
	Sub      int       `json:"sub"` // subcommand id, -1 when absent
	Label    string    `json:"label"`
	Hex      string    `json:"hex"`
}

const (
	reportSubcommand    = 0x01
	reportSubcommandAck = 0x21
	requestSubOffset    = 10
	replySubOffset      = 14

	maxPendingBatches = 16
)

const (
	createFramesTable = `CREATE TABLE IF NOT EXISTS frames (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session TEXT NOT NULL,
	ts_ns INTEGER NOT NULL,
	dir TEXT NOT NULL,
	report INTEGER NOT NULL,
	sub INTEGER NOT NULL,
	label TEXT NOT NULL,
	hex TEXT NOT NULL
)`
	createSessionIndex = `CREATE INDEX IF NOT EXISTS frames_session ON frames(session, ts_ns)`
	insertFrame        = `INSERT INTO frames (session, ts_ns, dir, report, sub, label, hex) VALUES (?, ?, ?, ?, ?, ?, ?)`
)

// Recorder buffers frames and writes them to SQLite in batches.
type Recorder struct {
	db        *sql.DB
	statement *sql.Stmt
	path      string
	logger    *slog.Logger

	mu        sync.Mutex
	pending   []Frame
	batchSize int

	kick      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open creates or appends to the trace database at cfg.Path.
func Open(cfg Config, logger *slog.Logger) (*Recorder, error) {
	if cfg.Path == "" {
		return nil, errors.New("trace path is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	path := cfg.Path
	if path == AutoPath {
		path = "nscon_trace_" + xid.New().String() + ".sqlite3"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trace db: %w", err)
	}
	// A single connection keeps BEGIN and COMMIT on the same session.
	db.SetMaxOpenConns(1)
	for _, q := range []string{createFramesTable, createSessionIndex} {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create trace schema: %w", err)
		}
	}
	stmt, err := db.Prepare(insertFrame)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare trace insert: %w", err)
	}

	r := &Recorder{
		db:        db,
		statement: stmt,
		path:      path,
		logger:    logger,
		batchSize: cfg.BatchSize,
		kick:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if r.batchSize <= 0 {
		r.batchSize = 256
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	go r.flushLoop(interval)

	atexit.Register(func() { _ = r.Close() })

	fmt.Fprintf(os.Stderr, "Frame trace is collected in %s\n", path)
	return r, nil
}

// Path returns the database file in use.
func (r *Recorder) Path() string { return r.path }

// ObserveFrame buffers one frame. It never blocks on the database.
func (r *Recorder) ObserveFrame(session string, in bool, data []byte, label string) {
	f := Frame{
		Session: session,
		Time:    time.Now(),
		In:      in,
		Sub:     -1,
		Label:   label,
		Hex:     hex.EncodeToString(trimZeros(data)),
	}
	if len(data) > 0 {
		f.ReportID = data[0]
		switch {
		case in && data[0] == reportSubcommand && len(data) > requestSubOffset:
			f.Sub = int(data[requestSubOffset])
		case !in && data[0] == reportSubcommandAck && len(data) > replySubOffset:
			f.Sub = int(data[replySubOffset])
		}
	}

	r.mu.Lock()
	r.pending = append(r.pending, f)
	full := len(r.pending) >= r.batchSize
	r.mu.Unlock()

	if full {
		select {
		case r.kick <- struct{}{}:
		default:
		}
	}
}

func (r *Recorder) flushLoop(interval time.Duration) {
	defer close(r.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
		case <-r.kick:
		}
		if err := r.Flush(); err != nil {
			r.logger.Error("trace flush failed", "error", err)
		}
	}
}

// Flush writes all buffered frames in one transaction. A batch that cannot be
// written is put back in front of frames observed since, up to maxPending.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	if err := r.insert(batch); err != nil {
		r.requeue(batch)
		return err
	}
	return nil
}

func (r *Recorder) insert(batch []Frame) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt := tx.Stmt(r.statement)
	for _, f := range batch {
		dir := "out"
		if f.In {
			dir = "in"
		}
		if _, err := stmt.Exec(f.Session, f.Time.UnixNano(), dir, int(f.ReportID), f.Sub, f.Label, f.Hex); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert frame: %w", err)
		}
	}
	return tx.Commit()
}

// requeue restores an unwritten batch. The oldest frames are dropped once the
// buffer would exceed maxPending.
func (r *Recorder) requeue(batch []Frame) {
	r.mu.Lock()
	r.pending = append(batch, r.pending...)
	dropped := 0
	if limit := r.maxPending(); len(r.pending) > limit {
		dropped = len(r.pending) - limit
		r.pending = append([]Frame(nil), r.pending[dropped:]...)
	}
	r.mu.Unlock()
	if dropped > 0 {
		r.logger.Warn("trace buffer full, dropping frames", "dropped", dropped)
	}
}

func (r *Recorder) maxPending() int { return r.batchSize * maxPendingBatches }

// Recent returns up to limit of the latest frames, newest first.
func (r *Recorder) Recent(limit int) ([]Frame, error) {
	if err := r.Flush(); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(
		`SELECT id, session, ts_ns, dir, report, sub, label, hex FROM frames ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		var (
			f      Frame
			ts     int64
			dir    string
			report int
		)
		if err := rows.Scan(&f.ID, &f.Session, &ts, &dir, &report, &f.Sub, &f.Label, &f.Hex); err != nil {
			return nil, err
		}
		f.Time = time.Unix(0, ts)
		f.In = dir == "in"
		f.ReportID = byte(report)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Count returns the number of stored frames of a session, or of all sessions
// when session is empty.
func (r *Recorder) Count(session string) (int, error) {
	if err := r.Flush(); err != nil {
		return 0, err
	}
	var n int
	var err error
	if session == "" {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM frames`).Scan(&n)
	} else {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM frames WHERE session = ?`, session).Scan(&n)
	}
	return n, err
}

// Close flushes pending frames and closes the database. It is safe to call
// more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.stop)
		<-r.done
		err := r.Flush()
		err = errors.Join(err, r.statement.Close(), r.db.Close())
		r.closeErr = err
	})
	return r.closeErr
}

func trimZeros(b []byte) []byte {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return b[:n]
}
