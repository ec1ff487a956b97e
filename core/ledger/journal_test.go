package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T, n int) []Entry {
	t.Helper()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var out []Entry
	prev := ""
	for i := 1; i <= n; i++ {
		e, err := NewEntry(uint64(i), OpPut, "patient:P1", []byte{byte(i)}, prev, at.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		out = append(out, e)
		prev = e.EntryHash
	}
	return out
}

func TestVerifyChain(t *testing.T) {
	chain := buildChain(t, 4)
	require.NoError(t, VerifyChain(chain))

	tampered := append([]Entry(nil), chain...)
	tampered[2].Key = "patient:P2"
	assert.Error(t, VerifyChain(tampered))

	relinked := append([]Entry(nil), chain...)
	relinked[2].PrevHash = chain[0].EntryHash
	relinked[2].EntryHash = relinked[2].computeHash()
	assert.ErrorContains(t, VerifyChain(relinked), "broken link")

	assert.ErrorContains(t, VerifyChain([]Entry{chain[0], chain[2]}), "sequence gap")
}

func TestDeleteEntryCarriesNoValue(t *testing.T) {
	e, err := NewEntry(1, OpDelete, "consent:ab", []byte("ignored"), "", time.Now())
	require.NoError(t, err)
	assert.Empty(t, e.ValueCID)
}

func TestReceiptTxIDIsStable(t *testing.T) {
	chain := buildChain(t, 1)
	a, err := chain[0].Receipt()
	require.NoError(t, err)
	b, err := chain[0].Receipt()
	require.NoError(t, err)
	assert.Equal(t, a.TxID, b.TxID)
	assert.Equal(t, uint64(1), a.Seq)
	assert.Contains(t, a.TxID, "bafk")
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("patient:abc"))
	assert.ErrorIs(t, ValidateKey(""), ErrInvalidKey)
	assert.ErrorIs(t, ValidateKey("a\nb"), ErrInvalidKey)
	long := make([]byte, MaxKeyLen+1)
	for i := range long {
		long[i] = 'x'
	}
	assert.ErrorIs(t, ValidateKey(string(long)), ErrInvalidKey)
}
