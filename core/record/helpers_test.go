package record

import (
	"context"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"patientledger/core/audit"
	"patientledger/core/auth"
	"patientledger/core/codec"
	"patientledger/core/ledger/memledger"
	"patientledger/core/mirror"
)

type auditSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *auditSink) LogEvent(e audit.Event) {
	a.mu.Lock()
	a.events = append(a.events, e)
	a.mu.Unlock()
}

func (a *auditSink) byType(t string) []audit.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []audit.Event
	for _, e := range a.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) UpsertPatient(ctx context.Context, doc mirror.Document) error {
	return m.Called(ctx, doc).Error(0)
}
func (m *MockMirror) UpsertConsent(ctx context.Context, doc mirror.Document) error {
	return m.Called(ctx, doc).Error(0)
}
func (m *MockMirror) DeletePatient(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockMirror) DeleteConsent(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type fixture struct {
	svc    *Service
	ledger *memledger.Ledger
	audit  *auditSink
	codec  *codec.Codec
}

func newFixture(t *testing.T, m mirror.Mirror) *fixture {
	t.Helper()
	key := make([]byte, codec.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c, err := codec.New(key)
	require.NoError(t, err)

	l := memledger.New()
	sink := &auditSink{}
	svc, err := NewService(Deps{
		Ledger: l,
		Codec:  c,
		Mirror: m,
		Audit:  sink,
		Now:    func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	require.NoError(t, err)
	return &fixture{svc: svc, ledger: l, audit: sink, codec: c}
}

var (
	alice = PatientData{Name: "Alice", DateOfBirth: "1990-01-01", ContactInfo: "a@x.com"}
	clerk = auth.Identity{Subject: "clerk-1"}
	prov1 = auth.Identity{Subject: "Prov1"}
	prov2 = auth.Identity{Subject: "Prov2"}
)
