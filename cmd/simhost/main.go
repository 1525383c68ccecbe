// Command simhost runs a long-lived process hosting many concurrent
// simulation sessions behind internal/wire's TCP protocol, following
// cmd/server/server.go's shutdown shape: signal.NotifyContext plus
// defer stop(), a background Run(ctx), and a block on <-ctx.Done().
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"marketsim/internal/engine"
	"marketsim/internal/host"
	"marketsim/internal/metrics"
	"marketsim/internal/store"
)

func main() {
	listenAddr := flag.String("listen", "0.0.0.0:9101", "Address the session-control TCP server listens on")
	metricsAddr := flag.String("metrics-addr", "0.0.0.0:9102", "Address the Prometheus /metrics endpoint listens on")
	tapeDir := flag.String("tape-dir", "./tapes", "Directory sessions write their tape files into")
	maxConcurrent := flag.Int("max-concurrent", 8, "Maximum number of concurrently running sessions")
	storeDriver := flag.String("store", "memory", "Persistence backend: 'memory' or 'postgres'")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres DSN, required when -store=postgres")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := os.MkdirAll(*tapeDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", *tapeDir).Msg("creating tape directory failed")
	}

	stores, err := buildStores(*storeDriver, *postgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing store failed")
	}

	m := metrics.New()

	h := host.New(host.Options{
		MaxConcurrent: *maxConcurrent,
		TapeDir:       *tapeDir,
		Stores:        stores,
		EventSink:     func(_ string, ev engine.Event) { m.ObserveEvent(ev) },
		RejectSink:    func(_, _ string, _ error) { m.ObserveRejectedOrder() },
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	srv := host.NewServer(*listenAddr, h)
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Error().Err(err).Msg("session-control server stopped")
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	log.Info().
		Str("listen", *listenAddr).
		Str("metrics", *metricsAddr).
		Str("store", *storeDriver).
		Msg("simhost running")

	<-ctx.Done()
	h.Shutdown()
}

func buildStores(driver, dsn string) (host.Stores, error) {
	switch driver {
	case "memory":
		return store.NewMemory(), nil
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("cmd/simhost: -postgres-dsn is required when -store=postgres")
		}
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("cmd/simhost: opening postgres: %w", err)
		}
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(); err != nil {
			return nil, fmt.Errorf("cmd/simhost: ensuring schema: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("cmd/simhost: unknown store driver %q", driver)
	}
}
