package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patientledger/core/auth"
	"patientledger/core/codec"
	"patientledger/core/ledger"
	"patientledger/core/ledger/memledger"
	"patientledger/core/record"
)

var testSecret = []byte("test-secret")

type harness struct {
	srv    *httptest.Server
	ledger *memledger.Ledger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	key := make([]byte, codec.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c, err := codec.New(key)
	require.NoError(t, err)

	l := memledger.New()
	svc, err := record.NewService(record.Deps{Ledger: l, Codec: c})
	require.NoError(t, err)
	s, err := NewServer(Options{
		Service:  svc,
		Verifier: auth.NewTokenVerifier(testSecret, "patientledger"),
		Ledger:   l,
		Log:      zerolog.Nop(),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &harness{srv: ts, ledger: l}
}

func token(t *testing.T, subject string) string {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, "patientledger", subject, time.Hour)
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path, subject string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rdr)
	require.NoError(t, err)
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, subject))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestPatientEndpoints(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/api/v1/patients", "clerk", map[string]string{
		"patientId": "P1", "name": "Alice", "dateOfBirth": "1990-01-01", "contactInfo": "a@x.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "P1", body["patientId"])
	assert.NotEmpty(t, body["receipt"].(map[string]any)["txId"])

	resp, body = h.do(t, http.MethodGet, "/api/v1/patients/P1", "clerk", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Alice", body["name"])
	assert.Equal(t, "1990-01-01", body["dateOfBirth"])

	resp, _ = h.do(t, http.MethodPost, "/api/v1/patients", "clerk", map[string]string{
		"patientId": "P1", "name": "Mallory", "dateOfBirth": "1990-01-01", "contactInfo": "m@x.com",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPut, "/api/v1/patients/P1", "clerk", map[string]string{
		"name": "Alice B", "dateOfBirth": "1990-01-01", "contactInfo": "a@x.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/api/v1/history/patients/P1", "clerk", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["entries"], 2)

	resp, _ = h.do(t, http.MethodDelete, "/api/v1/patients/P1", "clerk", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.do(t, http.MethodGet, "/api/v1/patients/P1", "clerk", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreatePatientGeneratesID(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, http.MethodPost, "/api/v1/patients", "clerk", map[string]string{
		"name": "Bob", "dateOfBirth": "1985-05-05", "contactInfo": "b@x.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, body["patientId"], 36)
}

func TestConsentEndpoints(t *testing.T) {
	h := newHarness(t)
	create := map[string]any{"patientId": "P1", "providerId": "Prov1", "consentGiven": true}

	resp, body := h.do(t, http.MethodPost, "/api/v1/consents", "Prov1", create)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, record.ConsentID("P1", "Prov1"), body["consentId"])

	resp, _ = h.do(t, http.MethodPost, "/api/v1/consents", "Prov1", create)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	writes := h.ledger.Writes()
	resp, body = h.do(t, http.MethodPut, "/api/v1/consents/P1/Prov1", "Prov2", map[string]any{"consentGiven": false})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Unauthorized", body["error"])
	assert.Equal(t, writes, h.ledger.Writes())

	resp, body = h.do(t, http.MethodGet, "/api/v1/consents/P1/Prov1", "Prov2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["consentGiven"])

	resp, _ = h.do(t, http.MethodPut, "/api/v1/consents/P1/Prov1", "Prov1", map[string]any{"patientId": "P9", "consentGiven": false})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPut, "/api/v1/consents/P1/Prov1", "Prov1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(t, http.MethodDelete, "/api/v1/consents/P1/Prov1", "Prov1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/api/v1/history/consents/P1/Prov1", "Prov1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["entries"], 2)
}

func TestRejectsMissingOrBadToken(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(t, http.MethodGet, "/api/v1/patients/P1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/api/v1/patients/P1", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, r2.StatusCode)
	assert.Equal(t, 0, h.ledger.Reads())
}

func TestBadRequests(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(t, http.MethodPost, "/api/v1/patients", "clerk", map[string]string{"name": "A", "shoeSize": "9"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/api/v1/patients", "clerk", map[string]string{
		"name": "A", "dateOfBirth": "01/01/1990", "contactInfo": "x",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLedgerOutageIs503(t *testing.T) {
	h := newHarness(t)
	h.ledger.FailNext(ledger.ErrUnavailable)
	resp, body := h.do(t, http.MethodGet, "/api/v1/patients/P1", "clerk", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "LedgerUnavailable", body["error"])
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, http.MethodGet, "/health/liveness", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["alive"])

	resp, body = h.do(t, http.MethodGet, "/health/readiness", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ready"])

	h.ledger.FailNext(ledger.ErrUnavailable)
	resp, body = h.do(t, http.MethodGet, "/health/readiness", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, false, body["ready"])

	resp, body = h.do(t, http.MethodGet, "/status", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "v1", body["api_version"])
	assert.Contains(t, body, "metrics")
}

func TestStartStopsOnCancel(t *testing.T) {
	l := memledger.New()
	c, err := codec.New(make([]byte, codec.KeySize))
	require.NoError(t, err)
	svc, err := record.NewService(record.Deps{Ledger: l, Codec: c})
	require.NoError(t, err)
	s, err := NewServer(Options{Service: svc, Verifier: auth.NewTokenVerifier(testSecret, ""), Ledger: l, ListenAddr: "127.0.0.1:0", Log: zerolog.Nop()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor("CorruptPayload"))
	assert.Equal(t, http.StatusInternalServerError, statusFor(""))
	assert.Equal(t, http.StatusConflict, statusFor("Conflict"))
}
