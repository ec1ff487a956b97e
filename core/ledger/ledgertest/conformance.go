// Package ledgertest holds the behavioural suite every ledger.Client backend
// must pass.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patientledger/core/ledger"
)

// NewClient constructs a fresh, empty backend isolated from other tests.
type NewClient func(t *testing.T) ledger.Client

func RunConformance(t *testing.T, newClient NewClient) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		c := newClient(t)
		v, found, err := c.Get(ctx, "patient:none")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, v)
	})

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		c := newClient(t)
		rcpt, err := c.Put(ctx, "k1", []byte("v1"))
		require.NoError(t, err)
		assert.NotEmpty(t, rcpt.TxID)
		assert.Equal(t, ledger.OpPut, rcpt.Op)
		assert.Equal(t, "k1", rcpt.Key)

		v, found, err := c.Get(ctx, "k1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("v1"), v)

		_, err = c.Put(ctx, "k1", []byte("v2"))
		require.NoError(t, err)
		v, _, err = c.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), v)
	})

	t.Run("PutIfAbsent", func(t *testing.T) {
		c := newClient(t)
		_, err := c.PutIfAbsent(ctx, "k", []byte("first"))
		require.NoError(t, err)
		_, err = c.PutIfAbsent(ctx, "k", []byte("second"))
		assert.ErrorIs(t, err, ledger.ErrKeyExists)
		v, _, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), v)
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		c := newClient(t)
		_, err := c.CompareAndSwap(ctx, "k", []byte("x"), []byte("y"))
		assert.ErrorIs(t, err, ledger.ErrConflict, "absent key never matches")

		_, err = c.Put(ctx, "k", []byte("a"))
		require.NoError(t, err)
		_, err = c.CompareAndSwap(ctx, "k", []byte("stale"), []byte("b"))
		assert.ErrorIs(t, err, ledger.ErrConflict)
		_, err = c.CompareAndSwap(ctx, "k", []byte("a"), []byte("b"))
		require.NoError(t, err)
		v, _, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("b"), v)
	})

	t.Run("DeleteRemovesState", func(t *testing.T) {
		c := newClient(t)
		_, err := c.Put(ctx, "k", []byte("v"))
		require.NoError(t, err)
		rcpt, err := c.Delete(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, ledger.OpDelete, rcpt.Op)
		_, found, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)

		_, err = c.Delete(ctx, "k")
		assert.ErrorIs(t, err, ledger.ErrNotFound, "second delete finds nothing")

		_, err = c.PutIfAbsent(ctx, "k", []byte("again"))
		assert.NoError(t, err, "deleted key is free again")
	})

	t.Run("RejectInvalidKey", func(t *testing.T) {
		c := newClient(t)
		_, err := c.Put(ctx, "", []byte("v"))
		assert.ErrorIs(t, err, ledger.ErrInvalidKey)
		_, _, err = c.Get(ctx, "bad\x00key")
		assert.ErrorIs(t, err, ledger.ErrInvalidKey)
	})

	t.Run("ConcurrentPutIfAbsentSingleWinner", func(t *testing.T) {
		c := newClient(t)
		const n = 16
		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			wins   int
			losses int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := c.PutIfAbsent(ctx, "race", []byte(fmt.Sprintf("v%d", i)))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, ledger.ErrKeyExists):
					losses++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
		assert.Equal(t, n-1, losses)
	})

	t.Run("HistoryChains", func(t *testing.T) {
		c := newClient(t)
		hr, ok := c.(ledger.HistoryReader)
		if !ok {
			t.Skip("backend keeps no journal")
		}
		_, err := c.Put(ctx, "h", []byte("1"))
		require.NoError(t, err)
		_, err = c.Put(ctx, "other", []byte("x"))
		require.NoError(t, err)
		_, err = c.Put(ctx, "h", []byte("2"))
		require.NoError(t, err)
		_, err = c.Delete(ctx, "h")
		require.NoError(t, err)

		entries, err := hr.History(ctx, "h")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, ledger.OpPut, entries[0].Op)
		assert.Equal(t, ledger.OpDelete, entries[2].Op)
		assert.Empty(t, entries[2].ValueCID)
		for i := 1; i < len(entries); i++ {
			assert.Greater(t, entries[i].Seq, entries[i-1].Seq)
		}
		for _, e := range entries {
			assert.NoError(t, ledger.VerifyEntry(e))
		}
		want, err := ledger.ContentID([]byte("2"))
		require.NoError(t, err)
		assert.Equal(t, want, entries[1].ValueCID)
	})
}
