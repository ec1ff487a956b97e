// readiness.go - probe logic for the health endpoints
package server

import (
	"context"
	"time"
)

const (
	probeKey     = "health:probe"
	probeTimeout = 2 * time.Second
)

// NodeLiveness is true while the process can serve requests.
func (s *Server) NodeLiveness() bool {
	return true
}

// NodeReadiness is true when the ledger answers a read within probeTimeout.
// A missing ledger handle counts as not ready.
func (s *Server) NodeReadiness(ctx context.Context) bool {
	return s.ledgerError(ctx) == nil
}

func (s *Server) ledgerError(ctx context.Context) error {
	if s.ledger == nil {
		return errNoLedger
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, _, err := s.ledger.Get(ctx, probeKey)
	return err
}
