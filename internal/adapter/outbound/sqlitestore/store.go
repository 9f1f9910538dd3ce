// Package sqlitestore gives the sync loop (spec §4.9) and the explanation
// trail (spec §4.12) a durable home that survives a process restart: the
// last-known-good rule set per tool, and a bounded history of rendered
// decisions for offline audit review. It is a supporting store, not the
// engine's hot path — the in-memory cache.Cache remains authoritative for
// every live Decide call.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vetoguard/veto/internal/domain/audit"
	"github.com/vetoguard/veto/internal/domain/rule"
)

const schema = `
CREATE TABLE IF NOT EXISTS last_known_good (
	tool_name  TEXT PRIMARY KEY,
	rule_set   TEXT NOT NULL,
	hash       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	tool_name  TEXT NOT NULL,
	decision   TEXT NOT NULL,
	reason     TEXT NOT NULL,
	rule_id    TEXT NOT NULL,
	entries    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS decision_log_created_at ON decision_log(created_at);
`

// Store persists LKG rule sets and a bounded decision/audit log to a SQLite
// file, guarded by a companion advisory lock file so multiple veto
// processes sharing one database don't interleave writes (spec §5's
// "file-based concurrency guards" carried forward from the teacher's
// flock-based state store, here backing a SQL store instead of JSON).
type Store struct {
	db        *sql.DB
	lock      *lockFile
	logger    *slog.Logger
	maxLogRows int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxLogRows bounds the decision_log table, trimming oldest rows past
// the limit on each Append. Zero (the default) disables trimming.
func WithMaxLogRows(n int) Option {
	return func(s *Store) { s.maxLogRows = n }
}

// Open opens (creating if absent) a SQLite database at path, acquiring an
// advisory lock on path+".lock" for the lifetime of the Store.
func Open(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	lf, err := acquireLock(path + ".lock")
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: acquire lock: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		lf.release()
		return nil, fmt.Errorf("sqlitestore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time, per its own docs

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		lf.release()
		return nil, fmt.Errorf("sqlitestore: migrate schema: %w", err)
	}

	s := &Store{db: db, lock: lf, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database handle and the advisory lock.
func (s *Store) Close() error {
	err := s.db.Close()
	s.lock.release()
	return err
}

// SaveLastKnownGood upserts the last-known-good rule set for a tool.
func (s *Store) SaveLastKnownGood(ctx context.Context, toolName string, rs *rule.RuleSet, now time.Time) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal rule set: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO last_known_good (tool_name, rule_set, hash, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tool_name) DO UPDATE SET rule_set = excluded.rule_set, hash = excluded.hash, updated_at = excluded.updated_at
	`, toolName, string(data), rs.Hash, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlitestore: save last-known-good for %q: %w", toolName, err)
	}
	return nil
}

// LoadLastKnownGood returns the persisted rule set for a tool, or
// (nil, nil) if none has ever been saved — callers fall back to the
// engine's own default decision, matching the sync package's in-memory
// LKG behavior on first boot.
func (s *Store) LoadLastKnownGood(ctx context.Context, toolName string) (*rule.RuleSet, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT rule_set FROM last_known_good WHERE tool_name = ?`, toolName).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load last-known-good for %q: %w", toolName, err)
	}
	var rs rule.RuleSet
	if err := json.Unmarshal([]byte(data), &rs); err != nil {
		return nil, fmt.Errorf("sqlitestore: decode last-known-good for %q: %w", toolName, err)
	}
	return &rs, nil
}

// AppendDecision records one rendered decision's audit trail entries for
// offline review. Entries may be nil when the trail verbosity is none.
func (s *Store) AppendDecision(ctx context.Context, requestID, toolName, decision, reason, ruleID string, entries []audit.Entry, now time.Time) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal trail entries: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_log (request_id, tool_name, decision, reason, rule_id, entries, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, requestID, toolName, decision, reason, ruleID, string(data), now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlitestore: append decision log: %w", err)
	}

	if s.maxLogRows > 0 {
		if _, err := s.db.ExecContext(ctx, `
			DELETE FROM decision_log WHERE id NOT IN (
				SELECT id FROM decision_log ORDER BY id DESC LIMIT ?
			)
		`, s.maxLogRows); err != nil {
			s.logger.Warn("sqlitestore: trim decision log failed", "error", err)
		}
	}
	return nil
}

// DecisionLogEntry is one row read back from the decision log.
type DecisionLogEntry struct {
	RequestID string
	ToolName  string
	Decision  string
	Reason    string
	RuleID    string
	Entries   []audit.Entry
	CreatedAt time.Time
}

// RecentDecisions returns up to limit of the most recent decision log rows,
// newest first.
func (s *Store) RecentDecisions(ctx context.Context, limit int) ([]DecisionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, tool_name, decision, reason, rule_id, entries, created_at
		FROM decision_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query recent decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionLogEntry
	for rows.Next() {
		var e DecisionLogEntry
		var entriesJSON, createdAt string
		if err := rows.Scan(&e.RequestID, &e.ToolName, &e.Decision, &e.Reason, &e.RuleID, &entriesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan decision log row: %w", err)
		}
		if err := json.Unmarshal([]byte(entriesJSON), &e.Entries); err != nil {
			return nil, fmt.Errorf("sqlitestore: decode trail entries: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: parse created_at: %w", err)
		}
		e.CreatedAt = parsed
		out = append(out, e)
	}
	return out, rows.Err()
}

// lockFile wraps the companion ".lock" file held for the Store's lifetime.
type lockFile struct {
	f *os.File
}

func acquireLock(path string) (*lockFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := flockLock(f.Fd()); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquire file lock: %w", err)
	}
	return &lockFile{f: f}, nil
}

func (l *lockFile) release() {
	if l == nil || l.f == nil {
		return
	}
	_ = flockUnlock(l.f.Fd())
	_ = l.f.Close()
}
