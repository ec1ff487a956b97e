// Package ledger defines the narrow key/value interface the record store uses
// to reach the replicated ledger, plus the journal types shared by backends.
//
// Every Client call is individually atomic and linearizable per key. There are
// no multi-key transactions; PutIfAbsent and CompareAndSwap are the only
// conditional primitives.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrUnavailable = errors.New("ledger: unavailable")
	ErrKeyExists   = errors.New("ledger: key exists")
	ErrConflict    = errors.New("ledger: compare-and-swap mismatch")
	ErrInvalidKey  = errors.New("ledger: invalid key")
	ErrNotFound    = errors.New("ledger: key not found")
)

// Op names a committed ledger operation.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// MaxKeyLen bounds ledger keys.
const MaxKeyLen = 512

// Client is the ledger surface the record store consumes.
type Client interface {
	// Get returns the latest committed value, or found=false when absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Put upserts value under key.
	Put(ctx context.Context, key string, value []byte) (Receipt, error)
	// PutIfAbsent writes only when key has no value; otherwise ErrKeyExists.
	PutIfAbsent(ctx context.Context, key string, value []byte) (Receipt, error)
	// CompareAndSwap writes only when the current value equals expected.
	// An absent key never matches and yields ErrConflict.
	CompareAndSwap(ctx context.Context, key string, expected, value []byte) (Receipt, error)
	// Delete removes key's current value. Deleting an absent key commits
	// nothing and yields ErrNotFound, so of two racing deletes only one wins.
	Delete(ctx context.Context, key string) (Receipt, error)
}

// HistoryReader exposes the append-only journal for a key.
type HistoryReader interface {
	History(ctx context.Context, key string) ([]Entry, error)
}

// Receipt acknowledges a committed write.
type Receipt struct {
	TxID        string    `json:"txId"`
	Seq         uint64    `json:"seq"`
	Key         string    `json:"key"`
	Op          Op        `json:"op"`
	CommittedAt time.Time `json:"committedAt"`
}

// ValidateKey rejects keys the backends cannot store safely.
func ValidateKey(key string) error {
	if key == "" || len(key) > MaxKeyLen {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, "\x00\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// IsUnavailable reports whether err means the ledger could not be reached or
// did not commit in time.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
