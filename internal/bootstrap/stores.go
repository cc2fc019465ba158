// Package bootstrap wires process dependencies shared by the command binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"customer-segment-lab/internal/pipeline"
	chstore "customer-segment-lab/internal/storage/clickhouse"
	"customer-segment-lab/internal/storage/memory"
	"customer-segment-lab/internal/storage/migrations"
	pgstore "customer-segment-lab/internal/storage/postgres"
)

// ErrMissingDSN is returned when database mode is selected without a PostgreSQL DSN.
var ErrMissingDSN = errors.New("--postgres-dsn is required (use --use-memory for in-memory storage)")

// StoreOptions selects the storage backends.
type StoreOptions struct {
	UseMemory     bool
	PostgresDSN   string
	ClickHouseDSN string // empty keeps profiles and quality reports in memory
	Migrate       bool   // apply pending migrations before use
}

// OpenStores creates the stores for opts. The returned cleanup closes any
// database connections and is never nil.
func OpenStores(ctx context.Context, opts StoreOptions, log *logrus.Entry) (pipeline.Stores, func(), error) {
	if opts.UseMemory {
		log.Info("using in-memory storage")
		return MemoryStores(), func() {}, nil
	}
	if opts.PostgresDSN == "" {
		return pipeline.Stores{}, nil, ErrMissingDSN
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, opts.PostgresDSN)
	if err != nil {
		return pipeline.Stores{}, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if opts.Migrate {
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			pool.Close()
			return pipeline.Stores{}, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		log.WithField("applied", len(applied)).Info("postgres migrations complete")
	}

	stores := pipeline.Stores{
		Transactions: pgstore.NewTransactionStore(pool),
		Models:       pgstore.NewModelStore(pool),
		Assignments:  pgstore.NewAssignmentStore(pool),
		Progress:     pgstore.NewIngestionProgressStore(pool),
	}

	// ClickHouse
	if opts.ClickHouseDSN == "" {
		log.Warn("no clickhouse DSN, cluster profiles and quality reports kept in memory")
		stores.Profiles = memory.NewClusterProfileStore()
		stores.Quality = memory.NewQualityReportStore()
		return stores, pool.Close, nil
	}

	var conn *chstore.Conn
	if opts.Migrate {
		conn, err = migrations.RunClickhouseMigrations(ctx, opts.ClickHouseDSN)
	} else {
		conn, err = chstore.NewConn(ctx, opts.ClickHouseDSN)
	}
	if err != nil {
		pool.Close()
		return pipeline.Stores{}, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	stores.Profiles = chstore.NewClusterProfileStore(conn)
	stores.Quality = chstore.NewQualityReportStore(conn)

	cleanup := func() {
		if err := conn.Close(); err != nil {
			log.WithError(err).Warn("close clickhouse")
		}
		pool.Close()
	}
	return stores, cleanup, nil
}

// MemoryStores returns a fresh set of in-memory stores.
func MemoryStores() pipeline.Stores {
	return pipeline.Stores{
		Transactions: memory.NewTransactionStore(),
		Models:       memory.NewModelStore(),
		Assignments:  memory.NewAssignmentStore(),
		Profiles:     memory.NewClusterProfileStore(),
		Quality:      memory.NewQualityReportStore(),
		Progress:     memory.NewIngestionProgressStore(),
	}
}
