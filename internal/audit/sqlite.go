package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchemaVersion = 2

const sqliteSchemaV1 = `
CREATE TABLE IF NOT EXISTS audit_events (
  id          TEXT PRIMARY KEY,
  created_at  INTEGER NOT NULL,
  principal   TEXT NOT NULL,
  transport   TEXT NOT NULL,
  tool        TEXT NOT NULL,
  grp         TEXT NOT NULL,
  input_hash  TEXT NOT NULL,
  result      TEXT NOT NULL,
  duration_ms INTEGER NOT NULL,
  error       TEXT NOT NULL DEFAULT '',
  request_id  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_created
  ON audit_events(created_at DESC, id DESC);
`

const sqliteSchemaV2 = `
CREATE INDEX IF NOT EXISTS idx_audit_tool_created
  ON audit_events(tool, created_at DESC);
`

// SQLiteStore keeps audit events in a local SQLite database.
type SQLiteStore struct {
	db        *sql.DB
	nowFn     func() time.Time
	retention time.Duration
}

type SQLiteOption func(*SQLiteStore)

// WithSQLiteRetention drops events older than d on every write. Zero keeps
// everything.
func WithSQLiteRetention(d time.Duration) SQLiteOption {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

func WithSQLiteNowFunc(fn func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

func NewSQLiteStore(dbPath string, opts ...SQLiteOption) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("empty db path")
	}

	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, nowFn: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	ctx := context.Background()

	var mode string
	if err := s.db.QueryRowContext(ctx, `PRAGMA journal_mode=WAL;`).Scan(&mode); err != nil {
		return fmt.Errorf("sqlite: set journal_mode=wal: %w", err)
	}
	if !strings.EqualFold(mode, "wal") {
		return fmt.Errorf("sqlite: journal_mode=%q, want wal", mode)
	}
	if _, err := s.db.ExecContext(ctx, `PRAGMA synchronous=FULL;`); err != nil {
		return fmt.Errorf("sqlite: set synchronous: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `PRAGMA busy_timeout=5000;`); err != nil {
		return fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}
	return s.migrate(ctx)
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE;"); err != nil {
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		_, _ = conn.ExecContext(ctx, "ROLLBACK;")
	}()

	if _, err := conn.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER NOT NULL
);
`); err != nil {
		return fmt.Errorf("sqlite: init migrations table: %w", err)
	}

	current, err := readSchemaVersion(ctx, conn)
	if err != nil {
		return err
	}
	if current > sqliteSchemaVersion {
		return fmt.Errorf("sqlite: schema_version=%d, want <=%d", current, sqliteSchemaVersion)
	}

	for v := current + 1; v <= sqliteSchemaVersion; v++ {
		var stmt string
		switch v {
		case 1:
			stmt = sqliteSchemaV1
		case 2:
			stmt = sqliteSchemaV2
		default:
			return fmt.Errorf("sqlite: unknown migration v%d", v)
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate v%d: %w", v, err)
		}
	}
	if current != sqliteSchemaVersion {
		if _, err := conn.ExecContext(ctx, `INSERT OR REPLACE INTO schema_migrations(rowid, version) VALUES (1, ?);`, sqliteSchemaVersion); err != nil {
			return fmt.Errorf("sqlite: write schema_version: %w", err)
		}
	}

	if _, err := conn.ExecContext(ctx, "COMMIT;"); err != nil {
		return err
	}
	committed = true
	return nil
}

func readSchemaVersion(ctx context.Context, conn *sql.Conn) (int, error) {
	var v int
	err := conn.QueryRowContext(ctx, `SELECT version FROM schema_migrations LIMIT 1;`).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("sqlite: read schema_version: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) Record(ctx context.Context, e Event) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	now := s.nowFn()
	e, err := Normalize(e, now)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO audit_events (`+selectColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		e.ID,
		e.Timestamp.UnixNano(),
		e.Principal,
		e.Transport,
		e.Tool,
		e.Group,
		e.InputHash,
		string(e.Result),
		e.DurationMS,
		e.Error,
		e.RequestID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert audit event: %w", err)
	}
	if s.retention > 0 {
		if _, err := s.Prune(ctx, now.Add(-s.retention)); err != nil {
			return err
		}
	}
	return nil
}

// Prune deletes events recorded before cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < ?;`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune audit events: %w", err)
	}
	return res.RowsAffected()
}

// List returns matching events, newest first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Event, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	where, args := f.where(
		func(int) string { return "?" },
		func(t time.Time) any { return t.UnixNano() },
	)
	args = append(args, f.limit())
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM audit_events`+where+
		` ORDER BY created_at DESC, id DESC LIMIT ?;`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		e, err := scanSQLiteEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanSQLiteEvent(r scanner) (Event, error) {
	var (
		e       Event
		created int64
		result  string
	)
	if err := r.Scan(&e.ID, &created, &e.Principal, &e.Transport, &e.Tool, &e.Group,
		&e.InputHash, &result, &e.DurationMS, &e.Error, &e.RequestID); err != nil {
		return e, err
	}
	e.Timestamp = time.Unix(0, created).UTC()
	e.Result = Result(result)
	return e, nil
}
