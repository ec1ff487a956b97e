// Command patientledger serves the patient and consent record API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"patientledger/api/server"
	"patientledger/core/auth"
	"patientledger/core/codec"
	"patientledger/core/config"
	"patientledger/core/logging"
	"patientledger/core/record"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.Setup("info", false)
		boot.Fatal().Err(err).Msg("configuration")
	}
	log := logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("patientledger stopped")
	}
	log.Info().Msg("patientledger stopped")
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	key, err := cfg.MasterKey()
	if err != nil {
		return err
	}
	c, err := codec.New(key)
	if err != nil {
		return err
	}

	client, closeLedger, err := openLedger(cfg, log)
	if err != nil {
		return err
	}
	defer closeLedger()

	auditLog, closeAudit, err := openAudit(cfg, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	m, closeMirror, err := openMirror(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeMirror()

	svc, err := record.NewService(record.Deps{
		Ledger: client,
		Codec:  c,
		Guard:  auth.NewGuard(auditLog),
		Mirror: m,
		Audit:  auditLog,
		Log:    log,
	})
	if err != nil {
		return err
	}

	verifier := auth.NewTokenVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	srv, err := server.NewServer(server.Options{
		Service:    svc,
		Verifier:   verifier,
		Ledger:     client,
		ListenAddr: cfg.ListenAddr,
		Log:        log,
	})
	if err != nil {
		return err
	}
	log.Info().
		Str("ledger", cfg.Ledger).
		Bool("mirror", cfg.MongoURI != "").
		Bool("auditTrail", cfg.AuditDB != "").
		Msg("patientledger starting")
	return srv.Start(ctx)
}
