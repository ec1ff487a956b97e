// health_handler.go - HTTP handlers for /health/liveness, /health/readiness, /status
package server

import (
	"errors"
	"net/http"
)

var errNoLedger = errors.New("no ledger configured")

func (s *Server) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{Alive: s.NodeLiveness()})
}

func (s *Server) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ready := s.NodeReadiness(r.Context())
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, ReadinessResponse{Ready: ready})
}

// HandleStatus reports derived health plus raw metrics.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	metrics := s.GetNodeMetrics()

	status := "healthy"
	ledgerErr := s.ledgerError(r.Context())
	switch {
	case ledgerErr != nil:
		status = "ledger_unavailable"
	case metrics.MirrorFailures > 0:
		status = "degraded"
	}

	resp := StatusResponse{
		Status:     status,
		Uptime:     metrics.UptimeSeconds,
		Version:    NodeVersion(),
		APIVersion: APIVersion(),
		Metrics:    metrics,
	}
	if ledgerErr != nil {
		resp.LedgerError = ledgerErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
