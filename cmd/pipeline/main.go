// Package main provides the end-to-end segmentation entry point.
// Executes: load → sufficiency → fit → evaluate → cross-validate → gate → reporting
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"customer-segment-lab/internal/bootstrap"
	"customer-segment-lab/internal/config"
	"customer-segment-lab/internal/fixtures"
	"customer-segment-lab/internal/logging"
	"customer-segment-lab/internal/pipeline"
)

func main() {
	proc, err := bootstrap.Load("")
	if err != nil {
		bootstrap.Usage(err.Error())
	}
	cfg := proc.Config

	// Parse flags (env vars as defaults)
	outputDir := flag.String("output-dir", cfg.OutputDir, "Output directory for generated files")
	useFixtures := flag.Bool("use-fixtures", false, "Run on a generated corpus in memory")
	fixtureCustomers := flag.Int("fixture-customers", 200, "Customers generated with --use-fixtures")
	fixtureSeed := flag.Uint64("fixture-seed", 1, "Seed of the generated corpus")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Ingest --corpus-dir into memory and run on it")
	corpusDir := flag.String("corpus-dir", cfg.CorpusDir, "Corpus directory for --use-memory")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string")
	tuningFile := flag.String("tuning", cfg.TuningFile, "Tuning YAML")
	merchants := flag.String("merchants", "", "Comma-separated merchants to summarize")
	flag.Parse()

	log := logging.Component(proc.Logger, "pipeline")

	tuning, err := config.LoadTuning(*tuningFile)
	if err != nil {
		bootstrap.Fatal(log, "load tuning", err)
	}

	ctx, stop := bootstrap.SignalContext(context.Background(), log, cfg.ShutdownGrace)
	defer stop()

	stores, cleanup, err := bootstrap.OpenStores(ctx, bootstrap.StoreOptions{
		UseMemory:     *useFixtures || *useMemory,
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

	// Load data according to the selected source
	switch {
	case *useFixtures:
		customers := fixtures.Customers(*fixtureCustomers, *fixtureSeed)
		if err := fixtures.Load(ctx, stores.Transactions, customers); err != nil {
			bootstrap.Fatal(log, "load fixtures", err)
		}
		log.WithField("customers", len(customers)).Info("fixtures loaded")
		p = p.WithDataSource("fixtures")
	case *useMemory:
		result, err := bootstrap.IngestCorpus(ctx, stores, tuning, *corpusDir, cfg.IngestWorkers, proc.Logger)
		if err != nil {
			bootstrap.Fatal(log, "ingest corpus", err)
		}
		log.WithFields(logrus.Fields{
			"loaded":   result.Loaded,
			"failed":   result.Failed,
			"accepted": result.Stats.Accepted,
			"dropped":  result.Stats.Dropped,
		}).Info("corpus ingested")
		p = p.WithDataSource("corpus")
	default:
		p = p.WithDBSource(*postgresDSN, *clickhouseDSN)
	}

	outcome, err := p.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("pipeline cancelled")
			return
		}
		bootstrap.Fatal(log, "pipeline failed", err)
	}

	printOutcome(outcome)
}

func printOutcome(outcome *pipeline.Outcome) {
	fmt.Println("=== Segmentation Pipeline ===")
	fmt.Printf("Decision: %s\n", outcome.Decision)
	if run := outcome.Run; run != nil {
		model := run.Model()
		fmt.Printf("  Run: %s\n", run.RunID)
		fmt.Printf("  Model: %s (k=%d)\n", model.ModelID, model.K)
		fmt.Printf("  Customers: %d (train %d, test %d)\n",
			run.CustomersLoaded, len(run.Split.Train), len(run.Split.Test))
		if run.TestQuality.Silhouette != nil {
			fmt.Printf("  Holdout silhouette: %.4f\n", *run.TestQuality.Silhouette)
		}
		if len(run.Errors) > 0 {
			fmt.Printf("  Errors: %d\n", len(run.Errors))
			for _, e := range run.Errors {
				fmt.Printf("    - %s\n", e)
			}
		}
	}
	fmt.Println("\nFiles:")
	for _, f := range outcome.Files {
		fmt.Printf("  - %s\n", f)
	}
}
