package record

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patientledger/core/errs"
)

func TestScenarioPatientRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Patients.CreateWithID(ctx, clerk, "P1", alice)
	require.NoError(t, err)
	got, err := f.svc.GetPatient(ctx, clerk, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "1990-01-01", got.DateOfBirth)
	assert.Equal(t, "a@x.com", got.ContactInfo)
}

func TestScenarioConsentLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CreateConsent(ctx, prov1, "P1", "Prov1", true)
	require.NoError(t, err)

	_, err = f.svc.CreateConsent(ctx, prov1, "P1", "Prov1", true)
	assert.True(t, errs.IsKind(err, errs.KindAlreadyExists))

	got, err := f.svc.GetConsent(ctx, prov1, "P1", "Prov1")
	require.NoError(t, err)
	assert.True(t, got.ConsentGiven)

	_, err = f.svc.UpdateConsent(ctx, prov2, "P1", "Prov1", false)
	assert.True(t, errs.IsKind(err, errs.KindUnauthorized))
	got, err = f.svc.GetConsent(ctx, prov1, "P1", "Prov1")
	require.NoError(t, err)
	assert.True(t, got.ConsentGiven)
}

func TestScenarioDeleteUnknownPatient(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.DeletePatient(context.Background(), clerk, "P2")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
	assert.Equal(t, 0, f.ledger.Writes())
}

func TestConcurrentCreateHasOneWinner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	const n = 24

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		dupes   int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			name := fmt.Sprintf("Writer %d", i)
			_, err := f.svc.Patients.CreateWithID(ctx, clerk, "P1", PatientData{Name: name, DateOfBirth: "1990-01-01", ContactInfo: "a@x.com"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, name)
			case errs.IsKind(err, errs.KindAlreadyExists):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, n-1, dupes)
	assert.Equal(t, 1, f.ledger.Writes())

	got, err := f.svc.GetPatient(ctx, clerk, "P1")
	require.NoError(t, err)
	assert.Equal(t, winners[0], got.Name, "stored value is the winner's")
}

func TestConcurrentConsentUpdatesAllLand(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.CreateConsent(ctx, prov1, "P1", "Prov1", true)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.UpdateConsent(ctx, prov1, "P1", "Prov1", i%2 == 0)
		}(i)
	}
	wg.Wait()
	for _, err := range results {
		if err != nil {
			assert.True(t, errs.IsKind(err, errs.KindConflict), "only contention may fail an update, got %v", err)
		}
	}
	_, err = f.svc.GetConsent(ctx, prov1, "P1", "Prov1")
	assert.NoError(t, err)
}
