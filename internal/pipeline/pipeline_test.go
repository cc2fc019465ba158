package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"customer-segment-lab/internal/clv"
	"customer-segment-lab/internal/decision"
	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/fixtures"
	"customer-segment-lab/internal/logging"
	"customer-segment-lab/internal/orchestrator"
	"customer-segment-lab/internal/segmentation"
	"customer-segment-lab/internal/storage"
	"customer-segment-lab/internal/storage/memory"
)

var fixedTime = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

func newStores() Stores {
	return Stores{
		Transactions: memory.NewTransactionStore(),
		Models:       memory.NewModelStore(),
		Assignments:  memory.NewAssignmentStore(),
		Profiles:     memory.NewClusterProfileStore(),
		Quality:      memory.NewQualityReportStore(),
		Progress:     memory.NewIngestionProgressStore(),
	}
}

func newTestPipeline(t *testing.T, stores Stores, customers []domain.Customer, outputDir string) *ReportPipeline {
	t.Helper()
	ctx := context.Background()
	if err := fixtures.Load(ctx, stores.Transactions, customers); err != nil {
		t.Fatalf("Failed to load fixtures: %v", err)
	}

	clock := func() time.Time { return fixedTime }
	orch := orchestrator.New(orchestrator.Options{
		TransactionStore:    stores.Transactions,
		ModelStore:          stores.Models,
		AssignmentStore:     stores.Assignments,
		ClusterProfileStore: stores.Profiles,
		QualityReportStore:  stores.Quality,
		Engine:              segmentation.NewEngine(segmentation.DefaultConfig()).WithClock(clock),
		TestFraction:        0.25,
		Folds:               3,
		Seed:                7,
		Logger:              logrus.NewEntry(logging.Discard()),
		Clock:               clock,
		RunID:               func() string { return "run-test" },
	})

	scorer := clv.NewScorer(clv.DefaultConfig()).WithClock(clock)
	return NewReportPipeline(stores, orch, decision.DefaultThresholds(), outputDir).
		WithSufficiencyChecker(DefaultThresholds()).
		WithMerchants(clv.NewService(stores.Transactions, scorer), "amazon", "nosuchshop").
		WithDataSource("fixtures").
		WithClock(clock)
}

func TestReportPipeline_Run(t *testing.T) {
	dir := t.TempDir()
	stores := newStores()
	p := newTestPipeline(t, stores, fixtures.Customers(40, 3), dir)

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Pipeline run failed: %v", err)
	}

	if outcome.Decision != decision.DecisionPublish && outcome.Decision != decision.DecisionHold {
		t.Errorf("unexpected decision %s", outcome.Decision)
	}
	if outcome.Gate == nil || outcome.Gate.Decision != outcome.Decision {
		t.Errorf("gate result does not match outcome decision")
	}
	if outcome.Report.ExecutiveSummary.Decision != string(outcome.Decision) {
		t.Errorf("report decision = %s, want %s", outcome.Report.ExecutiveSummary.Decision, outcome.Decision)
	}

	// Verify all files exist
	files := []string{
		ReportFile, DecisionFile, ClusterProfilesFile, QualityFile,
		CVSummaryFile, SelectionFile, AssignmentsFile, MerchantFile,
	}
	if len(outcome.Files) != len(files) {
		t.Errorf("expected %d files, got %d", len(files), len(outcome.Files))
	}
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("expected file %s: %v", f, err)
		}
	}

	report := outcome.Report
	k := outcome.Run.Model().K
	if report.K != k || len(report.Clusters) != k {
		t.Errorf("report K = %d with %d clusters, model K = %d", report.K, len(report.Clusters), k)
	}
	if report.DataSummary.TrainCustomers+report.DataSummary.TestCustomers != 40 {
		t.Errorf("split sizes = %d + %d, want 40", report.DataSummary.TrainCustomers, report.DataSummary.TestCustomers)
	}
	if len(report.Selection) == 0 {
		t.Error("expected selection trials")
	}
	if len(report.CrossValidation) == 0 {
		t.Error("expected cross-validation summary")
	}
	if len(report.Merchants) != 2 || report.Merchants[0].Customers == 0 || report.Merchants[1].Customers != 0 {
		t.Errorf("merchant rows = %+v", report.Merchants)
	}
	if report.Reproducibility.ReplayCommand != "go run ./cmd/pipeline --use-fixtures" {
		t.Errorf("ReplayCommand = %q", report.Reproducibility.ReplayCommand)
	}
	if len(report.Reproducibility.DataVersion) != 12 {
		t.Errorf("DataVersion = %q, want 12 hex chars", report.Reproducibility.DataVersion)
	}

	assignments, err := os.ReadFile(filepath.Join(dir, AssignmentsFile))
	if err != nil {
		t.Fatalf("read assignments: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(assignments)), "\n")
	if len(lines) != 41 {
		t.Errorf("assignments.csv has %d lines, want header + 40", len(lines))
	}
	for _, line := range lines[1:] {
		if !strings.HasSuffix(line, ",train") && !strings.HasSuffix(line, ",holdout") {
			t.Errorf("assignment row without partition: %s", line)
			break
		}
	}

	md, err := os.ReadFile(filepath.Join(dir, ReportFile))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	for _, want := range []string{
		"# Customer Segmentation Report",
		"Run: run-test",
		"## Segments",
		"## Cross-Validation",
		"## Merchant Lifetime Value",
		"**All checks passed.**",
		"| Decision | " + string(outcome.Decision) + " |",
	} {
		if !strings.Contains(string(md), want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestReportPipeline_Deterministic(t *testing.T) {
	run := func() []byte {
		dir := t.TempDir()
		p := newTestPipeline(t, newStores(), fixtures.Customers(40, 3), dir)
		if _, err := p.Run(context.Background()); err != nil {
			t.Fatalf("Pipeline run failed: %v", err)
		}
		md, err := os.ReadFile(filepath.Join(dir, ReportFile))
		if err != nil {
			t.Fatalf("read report: %v", err)
		}
		return md
	}

	first, second := run(), run()
	if string(first) != string(second) {
		t.Error("identical inputs produced different reports")
	}
}

func TestReportPipeline_InsufficientData(t *testing.T) {
	dir := t.TempDir()
	stores := newStores()
	p := newTestPipeline(t, stores, fixtures.Customers(3, 3), dir)

	outcome, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Pipeline run failed: %v", err)
	}

	if outcome.Decision != decision.DecisionInsufficientData {
		t.Errorf("expected INSUFFICIENT_DATA, got %s", outcome.Decision)
	}
	if outcome.Run != nil {
		t.Error("no run expected when data is insufficient")
	}
	if len(outcome.Files) != 2 {
		t.Errorf("expected report and gate files only, got %v", outcome.Files)
	}
	if _, err := os.Stat(filepath.Join(dir, AssignmentsFile)); !os.IsNotExist(err) {
		t.Error("assignments.csv should not be written")
	}

	gate, err := os.ReadFile(filepath.Join(dir, DecisionFile))
	if err != nil {
		t.Fatalf("read gate report: %v", err)
	}
	if !strings.Contains(string(gate), "## Decision: INSUFFICIENT_DATA") {
		t.Error("gate report should state INSUFFICIENT_DATA")
	}

	if _, err := stores.Models.GetLatest(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("no model should be stored, got %v", err)
	}
}

func TestBuildReplayCommand(t *testing.T) {
	p := &ReportPipeline{}
	if got := p.buildReplayCommand(); got != "go run ./cmd/pipeline --use-fixtures" {
		t.Errorf("default = %q", got)
	}

	p.WithDBSource("postgres://pg", "clickhouse://ch").WithTuningFile("tuning.yaml")
	want := `go run ./cmd/pipeline --postgres-dsn "postgres://pg" --clickhouse-dsn "clickhouse://ch" --tuning "tuning.yaml"`
	if got := p.buildReplayCommand(); got != want {
		t.Errorf("db = %q, want %q", got, want)
	}
}
