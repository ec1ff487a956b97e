package memledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patientledger/core/ledger"
	"patientledger/core/ledger/ledgertest"
)

func TestConformance(t *testing.T) {
	ledgertest.RunConformance(t, func(t *testing.T) ledger.Client { return New() })
}

func TestFailNextLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	l := New()
	l.FailNext(ledger.ErrUnavailable)
	_, err := l.Put(ctx, "k", []byte("v"))
	assert.ErrorIs(t, err, ledger.ErrUnavailable)
	assert.Equal(t, 0, l.Writes())
	_, found := l.Raw("k")
	assert.False(t, found)

	_, err = l.Put(ctx, "k", []byte("v"))
	require.NoError(t, err, "failure is one-shot")
	assert.Equal(t, 1, l.Writes())
}

func TestJournalIsVerifiable(t *testing.T) {
	ctx := context.Background()
	l := New()
	for _, k := range []string{"a", "b", "a"} {
		_, err := l.Put(ctx, k, []byte(k))
		require.NoError(t, err)
	}
	_, err := l.Delete(ctx, "b")
	require.NoError(t, err)

	j := l.Journal()
	require.Len(t, j, 4)
	assert.NoError(t, ledger.VerifyChain(j))
}

func TestDeleteAbsentCommitsNothing(t *testing.T) {
	l := New()
	_, err := l.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Equal(t, 0, l.Writes())
	assert.Empty(t, l.Journal())
}
