// Package memledger is an in-process ledger.Client used by tests and the
// "memory" ledger mode. It keeps the same journal as the durable backends.
package memledger

import (
	"bytes"
	"context"
	"sync"
	"time"

	"patientledger/core/ledger"
)

// Ledger is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	state   map[string][]byte
	journal []ledger.Entry
	byKey   map[string][]int
	writes  int
	reads   int
	failErr error
	now     func() time.Time
}

func New() *Ledger {
	return &Ledger{
		state: make(map[string][]byte),
		byKey: make(map[string][]int),
		now:   time.Now,
	}
}

// FailNext makes the next call, of any kind, return err without touching state.
func (l *Ledger) FailNext(err error) {
	l.mu.Lock()
	l.failErr = err
	l.mu.Unlock()
}

// Writes counts committed mutations.
func (l *Ledger) Writes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writes
}

// Reads counts Get calls that reached state.
func (l *Ledger) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

// Raw returns the stored bytes for key, bypassing every check.
func (l *Ledger) Raw(key string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.state[key]
	return bytes.Clone(v), ok
}

// SetRaw overwrites state for key without journaling, for corruption tests.
func (l *Ledger) SetRaw(key string, value []byte) {
	l.mu.Lock()
	l.state[key] = bytes.Clone(value)
	l.mu.Unlock()
}

// Journal returns a copy of the full commit journal.
func (l *Ledger) Journal() []ledger.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledger.Entry(nil), l.journal...)
}

func (l *Ledger) takeFailure(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.failErr; err != nil {
		l.failErr = nil
		return err
	}
	return ledger.ValidateKey(key)
}

func (l *Ledger) Get(ctx context.Context, key string) ([]byte, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(ctx, key); err != nil {
		return nil, false, err
	}
	l.reads++
	v, ok := l.state[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (l *Ledger) Put(ctx context.Context, key string, value []byte) (ledger.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(ctx, key); err != nil {
		return ledger.Receipt{}, err
	}
	return l.commit(ledger.OpPut, key, value)
}

func (l *Ledger) PutIfAbsent(ctx context.Context, key string, value []byte) (ledger.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(ctx, key); err != nil {
		return ledger.Receipt{}, err
	}
	if _, ok := l.state[key]; ok {
		return ledger.Receipt{}, ledger.ErrKeyExists
	}
	return l.commit(ledger.OpPut, key, value)
}

func (l *Ledger) CompareAndSwap(ctx context.Context, key string, expected, value []byte) (ledger.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(ctx, key); err != nil {
		return ledger.Receipt{}, err
	}
	cur, ok := l.state[key]
	if !ok || !bytes.Equal(cur, expected) {
		return ledger.Receipt{}, ledger.ErrConflict
	}
	return l.commit(ledger.OpPut, key, value)
}

func (l *Ledger) Delete(ctx context.Context, key string) (ledger.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(ctx, key); err != nil {
		return ledger.Receipt{}, err
	}
	if _, ok := l.state[key]; !ok {
		return ledger.Receipt{}, ledger.ErrNotFound
	}
	return l.commit(ledger.OpDelete, key, nil)
}

func (l *Ledger) History(ctx context.Context, key string) ([]ledger.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(ctx, key); err != nil {
		return nil, err
	}
	idx := l.byKey[key]
	out := make([]ledger.Entry, 0, len(idx))
	for _, i := range idx {
		out = append(out, l.journal[i])
	}
	return out, nil
}

// commit must be called with mu held.
func (l *Ledger) commit(op ledger.Op, key string, value []byte) (ledger.Receipt, error) {
	prev := ""
	if n := len(l.journal); n > 0 {
		prev = l.journal[n-1].EntryHash
	}
	e, err := ledger.NewEntry(uint64(len(l.journal)+1), op, key, value, prev, l.now())
	if err != nil {
		return ledger.Receipt{}, err
	}
	rcpt, err := e.Receipt()
	if err != nil {
		return ledger.Receipt{}, err
	}
	if op == ledger.OpDelete {
		delete(l.state, key)
	} else {
		l.state[key] = bytes.Clone(value)
	}
	l.byKey[key] = append(l.byKey[key], len(l.journal))
	l.journal = append(l.journal, e)
	l.writes++
	return rcpt, nil
}

var (
	_ ledger.Client        = (*Ledger)(nil)
	_ ledger.HistoryReader = (*Ledger)(nil)
)
