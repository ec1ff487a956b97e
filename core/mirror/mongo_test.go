package mirror

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only when PL_TEST_MONGO_URI points at a disposable server.
func TestMongoMirrorRoundTrip(t *testing.T) {
	uri := os.Getenv("PL_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PL_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	dbName := "pl_test_" + uuid.NewString()[:8]
	m, err := NewMongo(ctx, MongoOptions{URI: uri, Database: dbName, Timeout: 5 * time.Second}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.client.Database(dbName).Drop(context.Background())
		_ = m.Close(context.Background())
	})

	doc := Document{ID: "P1", LedgerKey: "patient:P1", DocType: "patient", PatientID: "P1", Payload: []byte{1, 2, 3}, UpdatedAt: time.Now().UTC().Truncate(time.Millisecond)}
	require.NoError(t, m.UpsertPatient(ctx, doc))
	doc.Payload = []byte{4, 5}
	require.NoError(t, m.UpsertPatient(ctx, doc))

	got, found, err := m.FindPatient(ctx, "P1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte{4, 5}, got.Payload)

	require.NoError(t, m.DeletePatient(ctx, "P1"))
	_, found, err = m.FindPatient(ctx, "P1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNopMirror(t *testing.T) {
	var m Mirror = Nop{}
	assert.NoError(t, m.UpsertConsent(context.Background(), Document{ID: "x"}))
	assert.NoError(t, m.DeleteConsent(context.Background(), "x"))
}
