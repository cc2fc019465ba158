package bootstrap

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"customer-segment-lab/internal/clv"
	"customer-segment-lab/internal/config"
	"customer-segment-lab/internal/ingestion"
	"customer-segment-lab/internal/normalization"
	"customer-segment-lab/internal/orchestrator"
	"customer-segment-lab/internal/pipeline"
	"customer-segment-lab/internal/segmentation"
)

// NewOrchestrator builds an orchestrator over stores from the tuning.
func NewOrchestrator(stores pipeline.Stores, tuning config.Tuning, log *logrus.Entry) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Options{
		TransactionStore:    stores.Transactions,
		ModelStore:          stores.Models,
		AssignmentStore:     stores.Assignments,
		ClusterProfileStore: stores.Profiles,
		QualityReportStore:  stores.Quality,
		Engine:              segmentation.NewEngine(tuning.Segmentation),
		TestFraction:        tuning.Validation.TestFraction,
		Folds:               tuning.Validation.Folds,
		Seed:                tuning.Validation.Seed,
		Logger:              log,
	})
}

// NewReportPipeline builds the report pipeline with sufficiency checks and
// merchant summaries for merchants.
func NewReportPipeline(stores pipeline.Stores, tuning config.Tuning, outputDir string, merchants []string, log *logrus.Entry) *pipeline.ReportPipeline {
	svc := clv.NewService(stores.Transactions, clv.NewScorer(tuning.CLV))
	return pipeline.NewReportPipeline(stores, NewOrchestrator(stores, tuning, log), tuning.Gate, outputDir).
		WithSufficiencyChecker(tuning.Sufficiency).
		WithMerchants(svc, merchants...)
}

// IngestCorpus loads the corpus under dir into stores.
func IngestCorpus(ctx context.Context, stores pipeline.Stores, tuning config.Tuning, dir string, workers int, logger *logrus.Logger) (*ingestion.LoadResult, error) {
	rules, err := tuning.Rules()
	if err != nil {
		return nil, err
	}
	normalizer := normalization.NewNormalizer(rules, logger.WithField("component", "normalization"))
	loader := ingestion.NewLoader(ingestion.LoaderOptions{
		Source:        ingestion.NewDirSource(dir),
		Runner:        normalization.NewRunner(normalizer, stores.Transactions),
		ProgressStore: stores.Progress,
		Workers:       workers,
		Logger:        logger.WithField("corpus_dir", dir),
	})
	return loader.Load(ctx)
}

// SplitList splits a comma-separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
