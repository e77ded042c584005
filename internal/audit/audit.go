// Package audit records mutating tool calls.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

type Result string

const (
	ResultSuccess  Result = "success"
	ResultError    Result = "error"
	ResultRejected Result = "rejected"
)

// Event is one audited tool call.
type Event struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Principal  string    `json:"principal"`
	Transport  string    `json:"transport"`
	Tool       string    `json:"tool"`
	Group      string    `json:"group"`
	InputHash  string    `json:"input_hash"`
	Result     Result    `json:"result"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Sink persists events. Record must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, e Event) error
	Close() error
}

// Lister is implemented by sinks that can read events back.
type Lister interface {
	List(ctx context.Context, f Filter) ([]Event, error)
}

// Filter selects events for List. Blank fields match everything.
type Filter struct {
	Tool      string
	Principal string
	Result    Result
	Since     time.Time
	Limit     int
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	}
	return f.Limit
}

var ErrClosed = errors.New("audit store is closed")

// Normalize fills ID and Timestamp when missing and validates the result.
func Normalize(e Event, now time.Time) (Event, error) {
	if strings.TrimSpace(e.Tool) == "" {
		return e, errors.New("audit: tool is required")
	}
	switch e.Result {
	case ResultSuccess, ResultError, ResultRejected:
	default:
		return e, fmt.Errorf("audit: invalid result %q", e.Result)
	}
	if e.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return e, fmt.Errorf("audit: new id: %w", err)
		}
		e.ID = id.String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

// InputHash is the hex sha256 of args as JSON. encoding/json sorts map keys,
// so equal argument sets hash equally.
func InputHash(args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte("{}")
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }
