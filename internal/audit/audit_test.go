package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInputHashIsOrderIndependent(t *testing.T) {
	a := InputHash(map[string]any{"topic": "T", "brokerAddr": "b:10911"})
	b := InputHash(map[string]any{"brokerAddr": "b:10911", "topic": "T"})
	if a != b {
		t.Fatalf("hash differs: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("hash length: got %d", len(a))
	}
	if InputHash(nil) != InputHash(map[string]any{}) {
		t.Fatalf("nil args should hash like empty args")
	}
}

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e, err := Normalize(Event{Tool: "createUser", Result: ResultSuccess}, now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if e.ID == "" || !e.Timestamp.Equal(now) {
		t.Fatalf("unexpected event: %#v", e)
	}

	if _, err := Normalize(Event{Result: ResultSuccess}, now); err == nil {
		t.Fatalf("expected error for missing tool")
	}
	if _, err := Normalize(Event{Tool: "x", Result: "maybe"}, now); err == nil {
		t.Fatalf("expected error for invalid result")
	}
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONWriter(&buf)
	if err := w.Record(context.Background(), Event{Tool: "deleteTopic", Group: "topic", Result: ResultRejected}); err != nil {
		t.Fatalf("record: %v", err)
	}
	var got Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Tool != "deleteTopic" || got.Result != ResultRejected || got.ID == "" {
		t.Fatalf("unexpected event: %#v", got)
	}

	_ = w.Close()
	if err := w.Record(context.Background(), Event{Tool: "x", Result: ResultSuccess}); err != ErrClosed {
		t.Fatalf("record after close: got %v, want ErrClosed", err)
	}
}

func TestSQLiteStoreRecordAndList(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit", "audit.db")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := NewSQLiteStore(dbPath, WithSQLiteNowFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	events := []Event{
		{Tool: "createUser", Group: "acl", Principal: "ops", Result: ResultSuccess, Timestamp: now.Add(-3 * time.Minute)},
		{Tool: "deleteTopic", Group: "topic", Principal: "ops", Result: ResultError, Error: "boom", Timestamp: now.Add(-2 * time.Minute)},
		{Tool: "createUser", Group: "acl", Principal: "ci", Result: ResultRejected, Timestamp: now.Add(-1 * time.Minute)},
	}
	for _, e := range events {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	all, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("list: got %d events, want 3", len(all))
	}
	if all[0].Result != ResultRejected || all[2].Result != ResultSuccess {
		t.Fatalf("list is not newest first: %#v", all)
	}
	if all[1].Error != "boom" || !all[1].Timestamp.Equal(now.Add(-2*time.Minute)) {
		t.Fatalf("round trip mismatch: %#v", all[1])
	}

	byTool, err := s.List(ctx, Filter{Tool: "createUser", Principal: "ops"})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(byTool) != 1 || byTool[0].Principal != "ops" {
		t.Fatalf("filtered list: %#v", byTool)
	}

	recent, err := s.List(ctx, Filter{Since: now.Add(-90 * time.Second), Limit: 10})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("since filter: got %d events", len(recent))
	}

	n, err := s.Prune(ctx, now.Add(-150*time.Second))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("prune: removed %d, want 1", n)
	}
}

func TestSQLiteStoreReopenKeepsSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Record(context.Background(), Event{Tool: "putKVConfig", Result: ResultSuccess}); err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = s.Close()

	s, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Tool != "putKVConfig" {
		t.Fatalf("unexpected events after reopen: %#v", got)
	}
}

func TestSQLiteStoreRetention(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"),
		WithSQLiteNowFunc(func() time.Time { return now }),
		WithSQLiteRetention(time.Hour),
	)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	_ = s.Record(ctx, Event{Tool: "old", Result: ResultSuccess, Timestamp: now.Add(-2 * time.Hour)})
	_ = s.Record(ctx, Event{Tool: "new", Result: ResultSuccess})
	got, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Tool != "new" {
		t.Fatalf("retention did not prune: %#v", got)
	}
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStore("  "); err == nil || !strings.Contains(err.Error(), "empty db path") {
		t.Fatalf("expected empty db path error, got %v", err)
	}
}

func TestNewPostgresStore_EmptyDSN(t *testing.T) {
	_, err := NewPostgresStore("  ")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "empty postgres dsn") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpen(t *testing.T) {
	var buf bytes.Buffer
	for _, kind := range []string{"", "none", "stderr"} {
		s, err := Open(Config{Sink: kind}, &buf)
		if err != nil {
			t.Fatalf("open %q: %v", kind, err)
		}
		_ = s.Close()
	}
	if _, err := Open(Config{Sink: "kafka"}, &buf); err == nil {
		t.Fatalf("expected error for unknown sink")
	}
	s, err := Open(Config{Sink: "sqlite", Path: filepath.Join(t.TempDir(), "a.db")}, &buf)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, ok := s.(Lister); !ok {
		t.Fatalf("sqlite sink should implement Lister")
	}
	_ = s.Close()
}
