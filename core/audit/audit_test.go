package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTrail(t *testing.T) (*SQLiteTrail, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	tr, err := OpenTrail(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr, path
}

func TestTrailAppendAndVerify(t *testing.T) {
	tr, _ := openTrail(t)
	ctx := context.Background()

	require.NoError(t, tr.Append(ctx, Event{EventType: "PatientCreate", EntityID: "P1", Result: ResultSuccess}))
	require.NoError(t, tr.Append(ctx, Event{EventType: "Authorization", EntityID: "C1", Actor: "dr-1", Result: ResultFailure, Reason: "actor mismatch"}))
	require.NoError(t, tr.Append(ctx, Event{EventType: "PatientUpdate", EntityID: "P1", Result: ResultSuccess, Metadata: map[string]string{"txId": "bafk"}}))
	require.NoError(t, tr.Verify(ctx))

	events, err := tr.Events(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "PatientCreate", events[0].EventType)
	assert.Equal(t, "bafk", events[1].Metadata["txId"])
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestTrailDetectsTampering(t *testing.T) {
	tr, _ := openTrail(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, tr.Append(ctx, Event{EventType: "PatientUpdate", EntityID: "P1", Result: ResultSuccess}))
	}
	_, err := tr.db.Exec(`UPDATE audit_events SET result = 'failure' WHERE seq = 2`)
	require.NoError(t, err)
	assert.ErrorContains(t, tr.Verify(ctx), "hash mismatch")
}

func TestTrailDetectsDeletedRow(t *testing.T) {
	tr, _ := openTrail(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, tr.Append(ctx, Event{EventType: "ConsentUpdate", EntityID: "C1", Result: ResultSuccess}))
	}
	_, err := tr.db.Exec(`DELETE FROM audit_events WHERE seq = 2`)
	require.NoError(t, err)
	assert.ErrorContains(t, tr.Verify(ctx), "broken link")
}

func TestTrailChainContinuesAcrossReopen(t *testing.T) {
	tr, path := openTrail(t)
	ctx := context.Background()
	require.NoError(t, tr.Append(ctx, Event{EventType: "PatientCreate", EntityID: "P1", Result: ResultSuccess}))
	require.NoError(t, tr.Close())

	tr2, err := OpenTrail(path, zerolog.Nop())
	require.NoError(t, err)
	defer tr2.Close()
	require.NoError(t, tr2.Append(ctx, Event{EventType: "PatientDelete", EntityID: "P1", Result: ResultSuccess}))
	assert.NoError(t, tr2.Verify(ctx))
}

func TestZerologLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(zerolog.New(&buf))
	l.LogEvent(Event{
		Timestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		EventType: "Authorization",
		EntityID:  "consent:ab",
		Actor:     "dr-2",
		Result:    ResultFailure,
		Reason:    "actor mismatch",
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "Authorization", line["event"])
	assert.Equal(t, "dr-2", line["actor"])
	assert.Equal(t, "audit", line["component"])
}

type recorder struct{ got []Event }

func (r *recorder) LogEvent(e Event) { r.got = append(r.got, e) }

func TestMultiFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, nil, b}.LogEvent(Event{EventType: "x"})
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}
