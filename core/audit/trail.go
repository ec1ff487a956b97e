package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteTrail persists events in SQLite with every row hash-chained to the
// one before it, so edits or deletions inside the trail are detectable.
type SQLiteTrail struct {
	db  *sql.DB
	log zerolog.Logger

	mu       sync.Mutex
	lastHash string
}

// OpenTrail creates or opens the trail at path. Uses WAL mode and a single
// writer connection.
func OpenTrail(path string, log zerolog.Logger) (*SQLiteTrail, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply audit schema: %w", err)
	}

	t := &SQLiteTrail{db: db, log: log.With().Str("component", "audit_trail").Logger()}
	err = db.QueryRow(`SELECT hash FROM audit_events ORDER BY seq DESC LIMIT 1`).Scan(&t.lastHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		db.Close()
		return nil, fmt.Errorf("read audit head: %w", err)
	}
	return t, nil
}

func (t *SQLiteTrail) Close() error {
	if t.db == nil {
		return nil
	}
	return t.db.Close()
}

// LogEvent appends the event; failures are logged and dropped.
func (t *SQLiteTrail) LogEvent(event Event) {
	if err := t.Append(context.Background(), event); err != nil {
		t.log.Error().Err(err).Str("event", event.EventType).Msg("audit append failed")
	}
}

// Append writes one event and advances the chain head.
func (t *SQLiteTrail) Append(ctx context.Context, event Event) error {
	event = Stamp(event)
	meta, err := json.Marshal(orEmpty(event.Metadata))
	if err != nil {
		return err
	}
	at := event.Timestamp.UTC().Format(time.RFC3339Nano)

	t.mu.Lock()
	defer t.mu.Unlock()

	h := rowHash(t.lastHash, at, event.EventType, event.EntityID, event.Actor, event.Result, event.Reason, string(meta))
	_, err = t.db.ExecContext(ctx, `
		INSERT INTO audit_events (at, event_type, entity_id, actor, result, reason, metadata, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		at, event.EventType, event.EntityID, event.Actor, event.Result, event.Reason, string(meta), t.lastHash, h)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	t.lastHash = h
	return nil
}

// Events returns the trail for entityID in insertion order.
func (t *SQLiteTrail) Events(ctx context.Context, entityID string) ([]Event, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT at, event_type, entity_id, actor, result, reason, metadata
		FROM audit_events WHERE entity_id = ? ORDER BY seq`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e        Event
			at, meta string
		)
		if err := rows.Scan(&at, &e.EventType, &e.EntityID, &e.Actor, &e.Result, &e.Reason, &meta); err != nil {
			return nil, err
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Verify recomputes the chain from the first row.
func (t *SQLiteTrail) Verify(ctx context.Context) error {
	rows, err := t.db.QueryContext(ctx, `
		SELECT seq, at, event_type, entity_id, actor, result, reason, metadata, prev_hash, hash
		FROM audit_events ORDER BY seq`)
	if err != nil {
		return err
	}
	defer rows.Close()

	prev := ""
	for rows.Next() {
		var (
			seq                                               int64
			at, typ, entity, actor, result, reason, meta, p, h string
		)
		if err := rows.Scan(&seq, &at, &typ, &entity, &actor, &result, &reason, &meta, &p, &h); err != nil {
			return err
		}
		if p != prev {
			return fmt.Errorf("audit row %d: broken link", seq)
		}
		if rowHash(p, at, typ, entity, actor, result, reason, meta) != h {
			return fmt.Errorf("audit row %d: hash mismatch", seq)
		}
		prev = h
	}
	return rows.Err()
}

func rowHash(fields ...string) string {
	h := sha256.New()
	for _, f := range fields {
		fmt.Fprintf(h, "%d:%s;", len(f), f)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
