// Package diag records advisory diagnostics for an engine run: page
// screenshots on failure, a timeline of notable events, and an SQLite
// index over both so a run can be inspected after the fact.
//
// Everything here is best-effort. A diagnostics failure is logged and
// swallowed; it never changes the outcome of the operation that triggered
// it.
package diag

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/traderig/dbopen"
	"github.com/hazyhaar/traderig/idgen"
)

// Schema creates the diagnostics tables. Pass it to dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id         TEXT PRIMARY KEY,
    run_id     TEXT NOT NULL,
    name       TEXT NOT NULL,
    path       TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id, created_at);

CREATE TABLE IF NOT EXISTS events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL,
    level      TEXT NOT NULL,
    message    TEXT NOT NULL,
    attrs      TEXT,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, created_at);
`

// Source produces a PNG of the current page state.
type Source interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Snapshot is one indexed screenshot.
type Snapshot struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is one timeline entry.
type Event struct {
	RunID     string            `json:"run_id"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Sink captures screenshots and events for a single run.
type Sink struct {
	runID string
	dir   string
	db    *sql.DB
	log   *slog.Logger
	newID idgen.Generator

	mu     sync.RWMutex
	source Source
}

// NewSink creates a Sink writing screenshots under dir and indexing them
// in db. The screenshot source is usually not available yet at
// construction time; install it later with SetSource.
func NewSink(runID, dir string, db *sql.DB, log *slog.Logger) (*Sink, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("diag: create dir %s: %w", dir, err)
	}
	return &Sink{
		runID: runID,
		dir:   dir,
		db:    db,
		log:   log,
		newID: idgen.Prefixed("snap_", idgen.NanoID(10)),
	}, nil
}

// RunID returns the run this sink records for.
func (s *Sink) RunID() string { return s.runID }

// SetSource installs or replaces the screenshot source. A nil source
// disables capture.
func (s *Sink) SetSource(src Source) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

// Capture takes a screenshot and indexes it under name. Fire and forget:
// every failure is logged at warn and discarded.
func (s *Sink) Capture(ctx context.Context, name string) {
	s.mu.RLock()
	src := s.source
	s.mu.RUnlock()
	if src == nil {
		s.log.Debug("diag: capture skipped, no source", "name", name)
		return
	}

	png, err := src.Screenshot(ctx)
	if err != nil {
		s.log.Warn("diag: screenshot failed", "name", name, "error", err)
		return
	}

	id := s.newID()
	now := time.Now()
	file := fmt.Sprintf("%s_%s_%s.png", now.Format("20060102_150405"), sanitize(name), id)
	path := filepath.Join(s.dir, file)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		s.log.Warn("diag: write screenshot", "path", path, "error", err)
		return
	}

	// Index row and timeline entry land together or not at all.
	err = dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (id, run_id, name, path, created_at) VALUES (?,?,?,?,?)`,
			id, s.runID, name, path, now.Unix()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (run_id, level, message, attrs, created_at) VALUES (?,?,?,?,?)`,
			s.runID, "info", "snapshot "+name, sql.NullString{}, now.Unix())
		return err
	})
	if err != nil {
		s.log.Warn("diag: index snapshot", "name", name, "error", err)
		return
	}
	RecordSnapshot()
	s.log.Info("diag: snapshot saved", "name", name, "path", path)
}

// Event records a timeline entry. Fire and forget.
func (s *Sink) Event(ctx context.Context, level, message string, attrs map[string]string) {
	var attrsJSON sql.NullString
	if len(attrs) > 0 {
		if b, err := json.Marshal(attrs); err == nil {
			attrsJSON = sql.NullString{String: string(b), Valid: true}
		}
	}
	_, err := dbopen.Exec(ctx, s.db,
		`INSERT INTO events (run_id, level, message, attrs, created_at) VALUES (?,?,?,?,?)`,
		s.runID, level, message, attrsJSON, time.Now().Unix())
	if err != nil {
		s.log.Warn("diag: record event", "message", message, "error", err)
	}
}

// Snapshots lists this run's snapshots, newest first.
func (s *Sink) Snapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, name, path, created_at FROM snapshots WHERE run_id = ? ORDER BY created_at DESC`,
		s.runID)
	if err != nil {
		return nil, fmt.Errorf("diag: query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var ts int64
		if err := rows.Scan(&snap.ID, &snap.RunID, &snap.Name, &snap.Path, &ts); err != nil {
			return nil, fmt.Errorf("diag: scan snapshot: %w", err)
		}
		snap.CreatedAt = time.Unix(ts, 0)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// SnapshotByID returns a single snapshot or sql.ErrNoRows.
func (s *Sink) SnapshotByID(ctx context.Context, id string) (Snapshot, error) {
	var snap Snapshot
	var ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, name, path, created_at FROM snapshots WHERE id = ?`, id).
		Scan(&snap.ID, &snap.RunID, &snap.Name, &snap.Path, &ts)
	if err != nil {
		return Snapshot{}, err
	}
	snap.CreatedAt = time.Unix(ts, 0)
	return snap, nil
}

// Events lists this run's timeline, oldest first.
func (s *Sink) Events(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, level, message, attrs, created_at FROM events WHERE run_id = ? ORDER BY created_at ASC, id ASC`,
		s.runID)
	if err != nil {
		return nil, fmt.Errorf("diag: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var ts int64
		var attrsJSON sql.NullString
		if err := rows.Scan(&ev.RunID, &ev.Level, &ev.Message, &attrsJSON, &ts); err != nil {
			return nil, fmt.Errorf("diag: scan event: %w", err)
		}
		if attrsJSON.Valid {
			var attrs map[string]string
			if json.Unmarshal([]byte(attrsJSON.String), &attrs) == nil {
				ev.Attrs = attrs
			}
		}
		ev.CreatedAt = time.Unix(ts, 0)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// sanitize turns an arbitrary snapshot name into a safe filename fragment.
func sanitize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		out = "snapshot"
	}
	return out
}
