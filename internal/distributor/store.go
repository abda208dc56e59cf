// Package distributor implements the durable, append-only record store
// that backs the orchestrator's Distributor component: completed tasks
// are saved once and polled incrementally by time-cursor.
package distributor

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/edgeflow/conductor/internal/task"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	connectTimeout = 5 * time.Second
	busyTimeoutMS  = 5000
)

// Record is one row of the distributor store: a completed, serialised
// Task plus the bookkeeping columns used for incremental polling.
type Record struct {
	SourceID int
	TaskID   int
	CTime    float64
	Payload  json.RawMessage
}

// Store is the durable, concurrent-safe result store. Multiple writers
// (one per source) insert concurrently; one or more readers poll
// concurrently. The store exclusively owns the underlying database file.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates (if needed) and migrates the sqlite-backed record store at
// path, configuring WAL mode and a 5-second busy timeout so a write lock
// on an individual record blocks rather than failing immediately, per the
// distributor's concurrency contract.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create distributor db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path, busyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open distributor db: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time, WAL still allows concurrent readers.

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, log: log}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose migrate: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Save persists one record. If (source_id, task_id) already exists, it
// logs a warning and keeps the old record — it never overwrites, even
// though in practice the later record usually carries the final stage's
// content (see DESIGN.md "Open Questions resolved" #3; this preserves the
// teacher/original behaviour deliberately, flagged as possibly wrong).
func (s *Store) Save(ctx context.Context, t *task.Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	ctime := float64(time.Now().UnixNano()) / 1e9
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (source_id, task_id, ctime, payload) VALUES (?, ?, ?, ?)`,
		t.SourceID, t.TaskID, ctime, string(payload),
	)
	if err != nil {
		if isUniqueViolation(err) {
			s.log.WarnContext(ctx, "duplicate task record, keeping existing",
				"source_id", t.SourceID, "task_id", t.TaskID)
			return nil
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// QuerySince returns up to limit records with ctime > cursor, ordered by
// ctime ascending. newCursor is the ctime of the last returned record, or
// cursor unchanged if none matched. The limit is applied at the storage
// layer and always selects the oldest `limit` rows above the cursor (via
// an ORDER BY ctime ASC LIMIT ? subquery), so a client
// polling with its own last cursor makes linear forward progress instead
// of skipping ahead to the newest rows.
func (s *Store) QuerySince(ctx context.Context, cursor float64, limit int) (records []Record, newCursor float64, size int, err error) {
	newCursor = cursor

	var rows *sql.Rows
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT source_id, task_id, ctime, payload FROM (
				SELECT source_id, task_id, ctime, payload
				FROM records WHERE ctime > ?
				ORDER BY ctime ASC LIMIT ?
			) ORDER BY ctime ASC`, cursor, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT source_id, task_id, ctime, payload
			FROM records WHERE ctime > ?
			ORDER BY ctime ASC`, cursor)
	}
	if err != nil {
		return nil, cursor, 0, fmt.Errorf("query_since: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Record
		var payload string
		if err := rows.Scan(&r.SourceID, &r.TaskID, &r.CTime, &payload); err != nil {
			return nil, cursor, 0, fmt.Errorf("scan record: %w", err)
		}
		r.Payload = json.RawMessage(payload)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, cursor, 0, err
	}
	if len(records) > 0 {
		newCursor = records[len(records)-1].CTime
	}
	return records, newCursor, len(records), nil
}

// QueryAll returns every record ordered by (source_id, task_id).
func (s *Store) QueryAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, task_id, ctime, payload FROM records
		ORDER BY source_id ASC, task_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query_all: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var payload string
		if err := rows.Scan(&r.SourceID, &r.TaskID, &r.CTime, &payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Payload = json.RawMessage(payload)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Clear removes all records; the schema is left in place.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}
