// Package main loads the per-customer transaction corpus into storage.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"customer-segment-lab/internal/bootstrap"
	"customer-segment-lab/internal/config"
	"customer-segment-lab/internal/ingestion"
	"customer-segment-lab/internal/logging"
	"customer-segment-lab/internal/observability"
)

func main() {
	proc, err := bootstrap.Load("")
	if err != nil {
		bootstrap.Usage(err.Error())
	}
	cfg := proc.Config

	// Parse flags (env vars as defaults)
	corpusDir := flag.String("corpus-dir", cfg.CorpusDir, "Directory of per-customer JSON files")
	workers := flag.Int("workers", cfg.IngestWorkers, "Files processed concurrently")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Validate into in-memory storage instead of PostgreSQL")
	tuningFile := flag.String("tuning", "", "Tuning YAML (category rules)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	log := logging.Component(proc.Logger, "ingest")

	tuning := proc.Tuning
	if *tuningFile != "" {
		if tuning, err = config.LoadTuning(*tuningFile); err != nil {
			bootstrap.Fatal(log, "load tuning", err)
		}
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, log)
	}

	ctx, stop := bootstrap.SignalContext(context.Background(), log, cfg.ShutdownGrace)
	defer stop()

	result, err := run(ctx, proc.Logger, runOptions{
		corpusDir:   *corpusDir,
		workers:     *workers,
		postgresDSN: *postgresDSN,
		useMemory:   *useMemory,
		tuning:      tuning,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("ingestion cancelled")
			return
		}
		bootstrap.Fatal(log, "ingestion failed", err)
	}

	log.WithFields(logrus.Fields{
		"loaded":   result.Loaded,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
		"accepted": result.Stats.Accepted,
		"dropped":  result.Stats.Dropped,
		"duration": result.Duration.Round(time.Millisecond).String(),
	}).Info("ingestion complete")
	for _, reason := range result.Stats.DropReasonKeys() {
		log.WithFields(logrus.Fields{
			"reason": reason,
			"count":  result.Stats.DropReasons[reason],
		}).Info("records dropped")
	}
	for _, e := range result.Errors {
		log.Warn(e)
	}
}

type runOptions struct {
	corpusDir   string
	workers     int
	postgresDSN string
	useMemory   bool
	tuning      config.Tuning
}

func run(ctx context.Context, logger *logrus.Logger, opts runOptions) (*ingestion.LoadResult, error) {
	log := logging.Component(logger, "ingest")

	stores, cleanup, err := bootstrap.OpenStores(ctx, bootstrap.StoreOptions{
		UseMemory:   opts.useMemory,
		PostgresDSN: opts.postgresDSN,
		Migrate:     true,
	}, log)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	log.WithFields(logrus.Fields{
		"corpus_dir": opts.corpusDir,
		"workers":    opts.workers,
	}).Info("loading corpus")
	return bootstrap.IngestCorpus(ctx, stores, opts.tuning, opts.corpusDir, opts.workers, logger)
}

func serveMetrics(addr string, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	log.WithField("addr", addr).Info("starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("metrics server")
	}
}
