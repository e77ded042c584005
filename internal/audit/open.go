package audit

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Config selects and configures the audit sink.
type Config struct {
	Sink      string // none, stderr, sqlite or postgres
	Path      string
	DSN       string
	Retention time.Duration
}

// Open builds the sink named by cfg. stderr receives the JSON line sink.
func Open(cfg Config, stderr io.Writer) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Sink)) {
	case "", "none":
		return Nop{}, nil
	case "stderr":
		return NewJSONWriter(stderr), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path, WithSQLiteRetention(cfg.Retention))
	case "postgres":
		return NewPostgresStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown audit sink %q (want none|stderr|sqlite|postgres)", cfg.Sink)
	}
}
