package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"patientledger/core/audit"
	"patientledger/core/config"
	"patientledger/core/ledger"
	"patientledger/core/ledger/grpcledger"
	"patientledger/core/ledger/leveldb"
	"patientledger/core/ledger/memledger"
	"patientledger/core/mirror"
)

// openLedger returns the configured backend wrapped with the per-call
// deadline, and a func releasing it.
func openLedger(cfg config.Config, log zerolog.Logger) (ledger.Client, func(), error) {
	var (
		client ledger.Client
		closer = func() {}
	)
	switch cfg.Ledger {
	case config.LedgerLevelDB:
		store, err := leveldb.Open(cfg.LedgerPath)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Verify(context.Background()); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("ledger journal failed verification: %w", err)
		}
		client = store
		closer = func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("close ledger")
			}
		}
	case config.LedgerGRPC:
		gc, err := grpcledger.Dial(cfg.LedgerAddr, grpcledger.DialOptions{Timeout: cfg.LedgerTimeout})
		if err != nil {
			return nil, nil, fmt.Errorf("dial ledger %s: %w", cfg.LedgerAddr, err)
		}
		gc.Timeout = cfg.LedgerTimeout
		client = gc
		closer = func() { _ = gc.Close() }
	case config.LedgerMemory:
		log.Warn().Msg("using in-memory ledger; records are lost on exit")
		client = memledger.New()
	default:
		return nil, nil, fmt.Errorf("unknown ledger %q", cfg.Ledger)
	}
	return ledger.WithDeadline(client, cfg.LedgerTimeout), closer, nil
}

// openAudit fans events out to the log and, when configured, the SQLite trail.
func openAudit(cfg config.Config, log zerolog.Logger) (audit.Logger, func(), error) {
	zl := audit.NewZerologLogger(log)
	if cfg.AuditDB == "" {
		return zl, func() {}, nil
	}
	trail, err := audit.OpenTrail(cfg.AuditDB, log)
	if err != nil {
		return nil, nil, err
	}
	if err := trail.Verify(context.Background()); err != nil {
		log.Error().Err(err).Msg("audit trail failed verification")
	}
	return audit.Multi{zl, trail}, func() { _ = trail.Close() }, nil
}

func openMirror(ctx context.Context, cfg config.Config, log zerolog.Logger) (mirror.Mirror, func(), error) {
	if cfg.MongoURI == "" {
		return mirror.Nop{}, func() {}, nil
	}
	m, err := mirror.NewMongo(ctx, mirror.MongoOptions{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDB,
		Timeout:  cfg.LedgerTimeout,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return m, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Close(closeCtx)
	}, nil
}
