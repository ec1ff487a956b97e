// Package leveldb is the durable single-node ledger backend.
//
// Key layout:
//
//	state:<key>            latest committed value
//	journal:<seq>          JSON Entry, seq zero-padded to 20 digits
//	history:<key>:<seq>    empty marker indexing the journal by key
//	meta:head              JSON {seq, hash} of the newest entry
package leveldb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"patientledger/core/ledger"
)

const (
	statePrefix   = "state:"
	journalPrefix = "journal:"
	historyPrefix = "history:"
	headKey       = "meta:head"
)

type head struct {
	Seq  uint64 `json:"seq"`
	Hash string `json:"hash"`
}

// Storage is a ledger.Client backed by LevelDB. Mutations are serialized so
// conditional writes and the journal head stay consistent; each commit is one
// atomic batch.
type Storage struct {
	db  *leveldb.DB
	mu  sync.Mutex
	now func() time.Time
}

func Open(path string) (*Storage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open ledger db %s: %w", path, err)
	}
	return &Storage{db: db, now: time.Now}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func seqKey(seq uint64) string {
	return fmt.Sprintf("%s%020d", journalPrefix, seq)
}

func (s *Storage) get(key string) ([]byte, bool, error) {
	v, err := s.db.Get([]byte(statePrefix+key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	return v, true, nil
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := ledger.ValidateKey(key); err != nil {
		return nil, false, err
	}
	return s.get(key)
}

func (s *Storage) Put(ctx context.Context, key string, value []byte) (ledger.Receipt, error) {
	return s.mutate(ctx, key, func(cur []byte, found bool) (ledger.Op, error) {
		return ledger.OpPut, nil
	}, value)
}

func (s *Storage) PutIfAbsent(ctx context.Context, key string, value []byte) (ledger.Receipt, error) {
	return s.mutate(ctx, key, func(cur []byte, found bool) (ledger.Op, error) {
		if found {
			return "", ledger.ErrKeyExists
		}
		return ledger.OpPut, nil
	}, value)
}

func (s *Storage) CompareAndSwap(ctx context.Context, key string, expected, value []byte) (ledger.Receipt, error) {
	return s.mutate(ctx, key, func(cur []byte, found bool) (ledger.Op, error) {
		if !found || !bytes.Equal(cur, expected) {
			return "", ledger.ErrConflict
		}
		return ledger.OpPut, nil
	}, value)
}

func (s *Storage) Delete(ctx context.Context, key string) (ledger.Receipt, error) {
	return s.mutate(ctx, key, func(cur []byte, found bool) (ledger.Op, error) {
		if !found {
			return "", ledger.ErrNotFound
		}
		return ledger.OpDelete, nil
	}, nil)
}

func (s *Storage) mutate(ctx context.Context, key string, check func([]byte, bool) (ledger.Op, error), value []byte) (ledger.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Receipt{}, err
	}
	if err := ledger.ValidateKey(key); err != nil {
		return ledger.Receipt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, found, err := s.get(key)
	if err != nil {
		return ledger.Receipt{}, err
	}
	op, err := check(cur, found)
	if err != nil {
		return ledger.Receipt{}, err
	}
	h, err := s.head()
	if err != nil {
		return ledger.Receipt{}, err
	}
	e, err := ledger.NewEntry(h.Seq+1, op, key, value, h.Hash, s.now())
	if err != nil {
		return ledger.Receipt{}, err
	}
	rcpt, err := e.Receipt()
	if err != nil {
		return ledger.Receipt{}, err
	}
	encEntry, err := json.Marshal(e)
	if err != nil {
		return ledger.Receipt{}, err
	}
	encHead, err := json.Marshal(head{Seq: e.Seq, Hash: e.EntryHash})
	if err != nil {
		return ledger.Receipt{}, err
	}

	batch := new(leveldb.Batch)
	if op == ledger.OpDelete {
		batch.Delete([]byte(statePrefix + key))
	} else {
		batch.Put([]byte(statePrefix+key), value)
	}
	batch.Put([]byte(seqKey(e.Seq)), encEntry)
	batch.Put([]byte(fmt.Sprintf("%s%s:%020d", historyPrefix, key, e.Seq)), nil)
	batch.Put([]byte(headKey), encHead)
	if err := s.db.Write(batch, nil); err != nil {
		return ledger.Receipt{}, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	return rcpt, nil
}

func (s *Storage) head() (head, error) {
	var h head
	data, err := s.db.Get([]byte(headKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return h, nil
	}
	if err != nil {
		return h, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("decode journal head: %w", err)
	}
	return h, nil
}

func (s *Storage) entry(seq uint64) (ledger.Entry, error) {
	var e ledger.Entry
	data, err := s.db.Get([]byte(seqKey(seq)), nil)
	if err != nil {
		return e, fmt.Errorf("journal entry %d: %w", seq, err)
	}
	err = json.Unmarshal(data, &e)
	return e, err
}

// History returns key's journal entries in commit order.
func (s *Storage) History(ctx context.Context, key string) ([]ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ledger.ValidateKey(key); err != nil {
		return nil, err
	}
	prefix := []byte(historyPrefix + key + ":")
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var out []ledger.Entry
	for iter.Next() {
		rest := string(iter.Key()[len(prefix):])
		if len(rest) != 20 {
			// belongs to a longer key sharing this prefix
			continue
		}
		seq, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			continue
		}
		e, err := s.entry(seq)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, iter.Error()
}

// Journal returns the whole commit journal in order.
func (s *Storage) Journal(ctx context.Context) ([]ledger.Entry, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(journalPrefix)), nil)
	defer iter.Release()

	var out []ledger.Entry
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var e ledger.Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, iter.Error()
}

// Verify walks the whole journal and checks the hash chain against the head.
func (s *Storage) Verify(ctx context.Context) error {
	entries, err := s.Journal(ctx)
	if err != nil {
		return err
	}
	if err := ledger.VerifyChain(entries); err != nil {
		return err
	}
	h, err := s.head()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		if h.Seq != 0 {
			return fmt.Errorf("journal empty but head at %d", h.Seq)
		}
		return nil
	}
	last := entries[len(entries)-1]
	if last.Seq != h.Seq || last.EntryHash != h.Hash {
		return fmt.Errorf("journal head mismatch at %d", last.Seq)
	}
	if entries[0].Seq != 1 || entries[0].PrevHash != "" {
		return fmt.Errorf("journal does not start at genesis")
	}
	return nil
}

// Height is the sequence number of the newest committed entry.
func (s *Storage) Height() (uint64, error) {
	h, err := s.head()
	return h.Seq, err
}

var (
	_ ledger.Client        = (*Storage)(nil)
	_ ledger.HistoryReader = (*Storage)(nil)
)
