package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/posematch/internal/domain/model"
	"github.com/okian/posematch/pkg/metrics"
)

const defaultHistoryLimit = 100

const historySchema = `
CREATE TABLE IF NOT EXISTS motion_events (
    id         TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    kind       TEXT NOT NULL,
    step_index INTEGER NOT NULL,
    label      TEXT NOT NULL DEFAULT '',
    score      REAL NOT NULL,
    next_index INTEGER NOT NULL,
    next_label TEXT NOT NULL DEFAULT '',
    ts         DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_motion_events_session ON motion_events(session_id, ts);
`

var historyPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

// History persists motion events in SQLite. It satisfies the publisher
// interface so it can sit in the event fan-out.
type History struct {
	db *sqlx.DB
}

// OpenHistory opens or creates the database at path and applies the schema.
func OpenHistory(ctx context.Context, path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create directory: %w", ErrHistory, err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrHistory, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrHistory, err)
	}
	for _, pragma := range historyPragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrHistory, pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, historySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", ErrHistory, err)
	}
	return &History{db: db}, nil
}

// Publish stores ev. Re-publishing an id is ignored.
func (h *History) Publish(ctx context.Context, ev model.MotionEvent) error { //nolint:gocritic // hugeParam: events travel by value
	ev.TS = ev.TS.UTC()
	_, err := h.db.NamedExecContext(ctx, `
		INSERT OR IGNORE INTO motion_events
			(id, session_id, kind, step_index, label, score, next_index, next_label, ts)
		VALUES
			(:id, :session_id, :kind, :step_index, :label, :score, :next_index, :next_label, :ts)`, ev)
	if err != nil {
		metrics.RecordPublished("history", "error")
		return fmt.Errorf("%w: insert event %s: %w", ErrHistory, ev.ID, err)
	}
	metrics.RecordPublished("history", "ok")
	return nil
}

// ListBySession returns the newest limit events of a session, oldest first.
func (h *History) ListBySession(ctx context.Context, sessionID string, limit int) ([]model.MotionEvent, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var rows []model.MotionEvent
	err := h.db.SelectContext(ctx, &rows, `
		SELECT id, session_id, kind, step_index, label, score, next_index, next_label, ts
		FROM (
			SELECT rowid AS seq, id, session_id, kind, step_index, label, score, next_index, next_label, ts
			FROM motion_events
			WHERE session_id = ?
			ORDER BY ts DESC, rowid DESC
			LIMIT ?
		)
		ORDER BY ts ASC, seq ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrHistory, sessionID, err)
	}
	return rows, nil
}

// DeleteBefore removes events older than cutoff and returns how many went.
func (h *History) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM motion_events WHERE ts < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: prune: %w", ErrHistory, err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}
