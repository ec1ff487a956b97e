// Package server is the HTTP front end of the record service. It verifies
// bearer tokens, decodes requests and maps store errors onto status codes;
// every invariant check lives in the record store.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"patientledger/core/auth"
	"patientledger/core/ledger"
	"patientledger/core/record"
)

const maxBodyBytes = 64 << 10

// Options configure a Server. Service and Verifier are required.
type Options struct {
	Service    *record.Service
	Verifier   *auth.TokenVerifier
	Ledger     ledger.Client // probed for readiness
	ListenAddr string
	Log        zerolog.Logger
}

type Server struct {
	svc      *record.Service
	verifier *auth.TokenVerifier
	ledger   ledger.Client
	addr     string
	log      zerolog.Logger
	started  time.Time
	handler  http.Handler
}

func NewServer(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("server: record service is required")
	}
	if opts.Verifier == nil {
		return nil, errors.New("server: token verifier is required")
	}
	s := &Server{
		svc:      opts.Service,
		verifier: opts.Verifier,
		ledger:   opts.Ledger,
		addr:     opts.ListenAddr,
		log:      opts.Log.With().Str("component", "http").Logger(),
		started:  time.Now(),
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/liveness", s.HandleLiveness)
	mux.HandleFunc("GET /health/readiness", s.HandleReadiness)
	mux.HandleFunc("GET /status", s.HandleStatus)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/patients", s.handleCreatePatient)
	api.HandleFunc("GET /api/v1/patients/{patientId}", s.handleGetPatient)
	api.HandleFunc("PUT /api/v1/patients/{patientId}", s.handleUpdatePatient)
	api.HandleFunc("DELETE /api/v1/patients/{patientId}", s.handleDeletePatient)

	api.HandleFunc("POST /api/v1/consents", s.handleCreateConsent)
	api.HandleFunc("GET /api/v1/consents/{patientId}/{providerId}", s.handleGetConsent)
	api.HandleFunc("PUT /api/v1/consents/{patientId}/{providerId}", s.handleUpdateConsent)
	api.HandleFunc("DELETE /api/v1/consents/{patientId}/{providerId}", s.handleDeleteConsent)

	api.HandleFunc("GET /api/v1/history/patients/{patientId}", s.handlePatientHistory)
	api.HandleFunc("GET /api/v1/history/consents/{patientId}/{providerId}", s.handleConsentHistory)

	mux.Handle("/api/", s.requireToken(api))
	return s.logRequests(mux)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info().Msg("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
