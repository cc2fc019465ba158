// Package main provides the long-running service:
// - Refit (scheduled): fit → gate → publish snapshot
// - Reporting: report artifacts written by every refit
// - HTTP: predictions, merchant CLV queries, health, metrics, status
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"

	"golang.org/x/sync/errgroup"

	"customer-segment-lab/internal/bootstrap"
	"customer-segment-lab/internal/clv"
	"customer-segment-lab/internal/config"
	"customer-segment-lab/internal/fixtures"
	"customer-segment-lab/internal/logging"
	"customer-segment-lab/internal/prediction"
	"customer-segment-lab/internal/server"
)

func main() {
	proc, err := bootstrap.Load("")
	if err != nil {
		bootstrap.Usage(err.Error())
	}
	cfg := proc.Config

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	useFixtures := flag.Bool("use-fixtures", false, "Serve a generated corpus (implies --use-memory)")
	corpusDir := flag.String("corpus-dir", cfg.CorpusDir, "Corpus ingested at startup with --use-memory")
	outputDir := flag.String("output-dir", cfg.OutputDir, "Output directory for reports")
	refitInterval := flag.Duration("refit-interval", cfg.RefitInterval, "Model refit interval")
	httpAddr := flag.String("http-addr", cfg.HTTPAddr, "HTTP listen address")
	tuningFile := flag.String("tuning", cfg.TuningFile, "Tuning YAML")
	merchants := flag.String("merchants", "", "Comma-separated merchants summarized in reports")
	flag.Parse()

	log := logging.Component(proc.Logger, "server")

	tuning, err := config.LoadTuning(*tuningFile)
	if err != nil {
		bootstrap.Fatal(log, "load tuning", err)
	}

	ctx, stop := bootstrap.SignalContext(context.Background(), log, cfg.ShutdownGrace)
	defer stop()

	stores, cleanup, err := bootstrap.OpenStores(ctx, bootstrap.StoreOptions{
		UseMemory:     *useMemory || *useFixtures,
		PostgresDSN:   *postgresDSN,
		ClickHouseDSN: *clickhouseDSN,
		Migrate:       true,
	}, log)
	if err != nil {
		bootstrap.Fatal(log, "create stores", err)
	}
	defer cleanup()

	p := bootstrap.NewReportPipeline(stores, tuning, *outputDir, bootstrap.SplitList(*merchants), log).
		WithTuningFile(*tuningFile)
	switch {
	case *useFixtures:
		if err := fixtures.Load(ctx, stores.Transactions, fixtures.Customers(200, 1)); err != nil {
			bootstrap.Fatal(log, "load fixtures", err)
		}
		p = p.WithDataSource("fixtures")
	case *useMemory:
		if _, err := bootstrap.IngestCorpus(ctx, stores, tuning, *corpusDir, cfg.IngestWorkers, proc.Logger); err != nil {
			bootstrap.Fatal(log, "ingest corpus", err)
		}
		p = p.WithDataSource("corpus")
	default:
		p = p.WithDBSource(*postgresDSN, *clickhouseDSN)
	}

	srv := server.New(server.Options{
		Refitter:      p,
		Predictor:     prediction.NewPredictor(tuning.Prediction),
		CLV:           clv.NewService(stores.Transactions, clv.NewScorer(tuning.CLV)),
		RefitInterval: *refitInterval,
		Logger:        log,
	})

	httpServer := &http.Server{Addr: *httpAddr, Handler: srv.Handler()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", *httpAddr).Info("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownGrace)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return srv.RunScheduler(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		bootstrap.Fatal(log, "server error", err)
	}
	log.Info("shutdown complete")
}
