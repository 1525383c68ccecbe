// Command simrun drives a single simulation session from a config file to
// completion, writing its tape and a final summary. Its flag handling
// follows cmd/client/client.go's convention: flag.String/flag.Parse, then
// fail fast with flag.Usage() on a missing required flag.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"marketsim/internal/config"
	"marketsim/internal/engine"
	"marketsim/internal/metrics"
	"marketsim/internal/runner"
	"marketsim/internal/store"
	"marketsim/internal/tape"
)

func main() {
	configPath := flag.String("config", "", "Path to the session config YAML file (compulsory)")
	tapeDir := flag.String("tape-dir", ".", "Directory to write the session's tape file into")
	metricsAddr := flag.String("metrics-addr", "", "If set, serve Prometheus metrics on this address while the session runs")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	if *configPath == "" {
		fmt.Println("Error: -config is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config failed")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation failed")
	}

	sessionConfig := cfg.ToSessionConfig()
	mem := store.NewMemory()
	m := metrics.New()

	if *metricsAddr != "" {
		go func() {
			if err := runMetricsServer(*metricsAddr, m); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	opts := runner.Options{
		TapePath: *tapeDir + "/" + sessionConfig.SessionID + ".tape",
		Indexer: func(id string, eventType tape.EventType, timestampMs int64, sequence uint64, offset int64) error {
			return mem.IndexEvent(sessionConfig.SessionID, id, eventType, timestampMs, sequence, offset)
		},
		OHLCVSink:      mem,
		SnapshotSink:   mem,
		SessionUpdater: mem,
		EventSink:      func(ev engine.Event) { m.ObserveEvent(ev) },
		RejectSink:     func(agentID string, _ error) { m.ObserveRejectedOrder() },
	}

	r, err := runner.New(sessionConfig, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("constructing session failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := r.Run(ctx.Done()); err != nil {
		log.Error().Err(err).Msg("session ended with error")
	}

	sess, _, _ := mem.Get(sessionConfig.SessionID)
	fmt.Printf("session %s: status=%s events=%d trades=%d finalPrice=%s\n",
		sess.SessionID, sess.Status, sess.EventCount, sess.TradeCount, sess.FinalPrice.String())
	if sess.Status == "error" {
		os.Exit(1)
	}
}

func runMetricsServer(addr string, m *metrics.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
