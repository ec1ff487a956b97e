package leveldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patientledger/core/ledger"
	"patientledger/core/ledger/ledgertest"
)

func openTemp(t *testing.T) *Storage {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	ledgertest.RunConformance(t, func(t *testing.T) ledger.Client { return openTemp(t) })
}

func TestJournalSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "ledger")

	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.Put(ctx, "patient:P1", []byte("v1"))
	require.NoError(t, err)
	_, err = s.Put(ctx, "patient:P1", []byte("v2"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	v, found, err := s.Get(ctx, "patient:P1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v2"), v)

	rcpt, err := s.Put(ctx, "patient:P2", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), rcpt.Seq)
	require.NoError(t, s.Verify(ctx))

	h, err := s.Height()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), h)
}

func TestHistoryIgnoresKeysSharingPrefix(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	_, err := s.Put(ctx, "a", []byte("1"))
	require.NoError(t, err)
	_, err = s.Put(ctx, "a:00000000000000000001", []byte("2"))
	require.NoError(t, err)

	entries, err := s.History(ctx, "a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Key)
}

func TestVerifyDetectsTamperedJournal(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	for _, v := range []string{"1", "2", "3"} {
		_, err := s.Put(ctx, "k", []byte(v))
		require.NoError(t, err)
	}
	require.NoError(t, s.Verify(ctx))

	e, err := s.entry(2)
	require.NoError(t, err)
	e.Key = "forged"
	raw := []byte(`{"seq":2,"op":"put","key":"forged","prevHash":"` + e.PrevHash + `","entryHash":"` + e.EntryHash + `","committedAt":"2024-01-01T00:00:00Z"}`)
	require.NoError(t, s.db.Put([]byte(seqKey(2)), raw, nil))
	assert.Error(t, s.Verify(ctx))
}
