// Package store persists dispatch history for the monitoring session: every
// spawn decision and spawn result is appended to a sqlite database under
// .roboswarm/, queryable by the status command.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"roboswarm/internal/dispatch"
	"roboswarm/internal/logging"
	"roboswarm/internal/spawn"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at   INTEGER NOT NULL,
	signal_type  TEXT NOT NULL,
	should_spawn INTEGER NOT NULL,
	agent_type   TEXT,
	priority     INTEGER NOT NULL,
	reason       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS spawns (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at  INTEGER NOT NULL,
	agent_id    TEXT,
	agent_type  TEXT NOT NULL,
	success     INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
CREATE INDEX IF NOT EXISTS idx_spawns_type ON spawns(agent_type);
`

// History is the append-only dispatch history store.
type History struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens workspace/.roboswarm/history.db and ensures the
// schema exists.
func Open(workspace string) (*History, error) {
	dir := filepath.Join(workspace, ".roboswarm")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .roboswarm dir: %w", err)
	}

	path := filepath.Join(dir, "history.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	logging.Store("history: opened %s", path)
	return &History{db: db}, nil
}

// RecordDecision appends one spawn decision for a signal type.
func (h *History) RecordDecision(signalType string, d dispatch.Decision) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	shouldSpawn := 0
	if d.ShouldSpawn {
		shouldSpawn = 1
	}
	_, err := h.db.Exec(
		`INSERT INTO decisions (created_at, signal_type, should_spawn, agent_type, priority, reason) VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UnixMilli(), signalType, shouldSpawn, d.AgentType, d.Priority, d.Reason,
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// RecordSpawnResult appends one spawn outcome.
func (h *History) RecordSpawnResult(r spawn.Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	success := 0
	if r.Success {
		success = 1
	}
	_, err := h.db.Exec(
		`INSERT INTO spawns (created_at, agent_id, agent_type, success, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UnixMilli(), r.AgentID, r.AgentType, success, r.Duration.Milliseconds(), r.Error,
	)
	if err != nil {
		return fmt.Errorf("record spawn result: %w", err)
	}
	return nil
}

// TypeSummary aggregates spawn outcomes for one agent type.
type TypeSummary struct {
	AgentType string
	Spawned   int64
	Failed    int64
}

// Summary returns per-agent-type spawn counts, ordered by type.
func (h *History) Summary() ([]TypeSummary, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rows, err := h.db.Query(`
		SELECT agent_type,
		       SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END),
		       SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END)
		FROM spawns GROUP BY agent_type ORDER BY agent_type`)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []TypeSummary
	for rows.Next() {
		var s TypeSummary
		if err := rows.Scan(&s.AgentType, &s.Spawned, &s.Failed); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DecisionRow is one persisted decision.
type DecisionRow struct {
	CreatedAt   time.Time
	SignalType  string
	ShouldSpawn bool
	AgentType   string
	Priority    int
	Reason      string
}

// RecentDecisions returns the newest limit decisions, newest first.
func (h *History) RecentDecisions(limit int) ([]DecisionRow, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.Query(`
		SELECT created_at, signal_type, should_spawn, agent_type, priority, reason
		FROM decisions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRow
	for rows.Next() {
		var (
			r         DecisionRow
			createdAt int64
			spawned   int
			agentType sql.NullString
		)
		if err := rows.Scan(&createdAt, &r.SignalType, &spawned, &agentType, &r.Priority, &r.Reason); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		r.ShouldSpawn = spawned == 1
		r.AgentType = agentType.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.db.Close()
}
