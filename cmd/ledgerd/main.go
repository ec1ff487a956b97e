// Command ledgerd serves a LevelDB-backed ledger over gRPC.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"patientledger/core/ledger/grpcledger"
	"patientledger/core/ledger/leveldb"
	"patientledger/core/logging"
)

func main() {
	_ = godotenv.Load()
	var (
		addr     = flag.String("listen", envOr("PL_LEDGERD_LISTEN", ":7051"), "gRPC listen address")
		path     = flag.String("db", envOr("PL_LEDGER_PATH", "./ledger_db"), "LevelDB directory")
		level    = flag.String("log-level", envOr("PL_LOG_LEVEL", "info"), "log level")
		maxBytes = flag.Int("max-msg-bytes", 8<<20, "max gRPC message size")
	)
	flag.Parse()
	log := logging.Setup(*level, false).With().Str("component", "ledgerd").Logger()

	store, err := leveldb.Open(*path)
	if err != nil {
		log.Fatal().Err(err).Msg("open ledger")
	}
	defer store.Close()
	if err := store.Verify(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("journal failed verification")
	}
	height, _ := store.Height()

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", *addr).Msg("listen")
	}
	srv := grpc.NewServer(grpc.MaxRecvMsgSize(*maxBytes), grpc.MaxSendMsgSize(*maxBytes))
	grpcledger.RegisterLedgerServer(srv, &grpcledger.Server{Ledger: store})
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	log.Info().Str("addr", *addr).Str("db", *path).Uint64("height", height).Msg("ledgerd listening")
	if err := srv.Serve(lis); err != nil {
		log.Error().Err(err).Msg("serve")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
