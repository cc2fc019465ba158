// Package main answers merchant CLV queries from the transaction store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"customer-segment-lab/internal/bootstrap"
	"customer-segment-lab/internal/clv"
	"customer-segment-lab/internal/config"
	"customer-segment-lab/internal/fixtures"
	"customer-segment-lab/internal/logging"
)

func main() {
	proc, err := bootstrap.Load("")
	if err != nil {
		bootstrap.Usage(err.Error())
	}
	cfg := proc.Config

	merchant := flag.String("merchant", "", "Merchant name, domain or URL (required)")
	prospects := flag.Bool("prospects", false, "List similar non-customers instead of insights")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	useFixtures := flag.Bool("use-fixtures", false, "Query a generated corpus instead of the database")
	tuningFile := flag.String("tuning", cfg.TuningFile, "Tuning YAML (CLV weights)")
	flag.Parse()

	log := logging.Component(proc.Logger, "clv")

	if *merchant == "" {
		bootstrap.Usage("Error: --merchant is required")
	}
	tuning, err := config.LoadTuning(*tuningFile)
	if err != nil {
		bootstrap.Fatal(log, "load tuning", err)
	}

	ctx := context.Background()
	stores, cleanup, err := bootstrap.OpenStores(ctx, bootstrap.StoreOptions{
		UseMemory:   *useFixtures,
		PostgresDSN: *postgresDSN,
	}, log)
	if err != nil {
		bootstrap.Fatal(log, "create stores", err)
	}
	defer cleanup()

	if *useFixtures {
		if err := fixtures.Load(ctx, stores.Transactions, fixtures.Customers(200, 1)); err != nil {
			bootstrap.Fatal(log, "load fixtures", err)
		}
	}

	svc := clv.NewService(stores.Transactions, clv.NewScorer(tuning.CLV))

	var out any
	if *prospects {
		out, err = svc.Prospects(ctx, *merchant)
	} else {
		out, err = svc.Insights(ctx, *merchant)
	}
	if err != nil {
		bootstrap.Fatal(log, "merchant query", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		bootstrap.Fatal(log, "encode result", err)
	}
}
