package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchemaV1 = `
CREATE TABLE IF NOT EXISTS audit_events (
  id          TEXT PRIMARY KEY,
  created_at  TIMESTAMPTZ NOT NULL,
  principal   TEXT NOT NULL,
  transport   TEXT NOT NULL,
  tool        TEXT NOT NULL,
  grp         TEXT NOT NULL,
  input_hash  TEXT NOT NULL,
  result      TEXT NOT NULL,
  duration_ms BIGINT NOT NULL,
  error       TEXT NOT NULL DEFAULT '',
  request_id  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_created
  ON audit_events(created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_audit_tool_created
  ON audit_events(tool, created_at DESC);
`

// PostgresStore keeps audit events in PostgreSQL, for deployments that run
// several replicas against one audit trail.
type PostgresStore struct {
	db    *sql.DB
	nowFn func() time.Time
}

type PostgresOption func(*PostgresStore)

func WithPostgresNowFunc(fn func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

func NewPostgresStore(dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty postgres dsn")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &PostgresStore{db: db, nowFn: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) init() error {
	_, err := s.db.ExecContext(context.Background(), postgresSchemaV1)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, e Event) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store is closed")
	}
	e, err := Normalize(e, s.nowFn())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO audit_events (`+selectColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`,
		e.ID,
		e.Timestamp,
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
		return fmt.Errorf("postgres: insert audit event: %w", err)
	}
	return nil
}

// List returns matching events, newest first.
func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Event, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("postgres store is closed")
	}
	where, args := f.where(
		func(n int) string { return fmt.Sprintf("$%d", n) },
		func(t time.Time) any { return t.UTC() },
	)
	args = append(args, f.limit())
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM audit_events`+where+
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d;`, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var (
			e      Event
			result string
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Principal, &e.Transport, &e.Tool, &e.Group,
			&e.InputHash, &result, &e.DurationMS, &e.Error, &e.RequestID); err != nil {
			return nil, err
		}
		e.Timestamp = e.Timestamp.UTC()
		e.Result = Result(result)
		out = append(out, e)
	}
	return out, rows.Err()
}
