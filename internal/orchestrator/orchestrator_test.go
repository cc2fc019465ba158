package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/fixtures"
	"customer-segment-lab/internal/logging"
	"customer-segment-lab/internal/segmentation"
	"customer-segment-lab/internal/storage/memory"
)

var fixedTime = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

type testStores struct {
	transactions *memory.TransactionStore
	models       *memory.ModelStore
	assignments  *memory.AssignmentStore
	profiles     *memory.ClusterProfileStore
	quality      *memory.QualityReportStore
}

func createTestStores(t *testing.T, customers []domain.Customer) testStores {
	t.Helper()
	s := testStores{
		transactions: memory.NewTransactionStore(),
		models:       memory.NewModelStore(),
		assignments:  memory.NewAssignmentStore(),
		profiles:     memory.NewClusterProfileStore(),
		quality:      memory.NewQualityReportStore(),
	}
	if err := fixtures.Load(context.Background(), s.transactions, customers); err != nil {
		t.Fatalf("Failed to load fixtures: %v", err)
	}
	return s
}

func newTestOrchestrator(s testStores, folds int) *Orchestrator {
	clock := func() time.Time { return fixedTime }
	run := 0
	return New(Options{
		TransactionStore:    s.transactions,
		ModelStore:          s.models,
		AssignmentStore:     s.assignments,
		ClusterProfileStore: s.profiles,
		QualityReportStore:  s.quality,
		Engine:              segmentation.NewEngine(segmentation.DefaultConfig()).WithClock(clock),
		TestFraction:        0.25,
		Folds:               folds,
		Seed:                7,
		Logger:              logrus.NewEntry(logging.Discard()),
		Clock:               clock,
		RunID: func() string {
			run++
			return fmt.Sprintf("run-%d", run)
		},
	})
}

func TestOrchestrator_Run(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores(t, fixtures.Customers(40, 3))

	result, err := newTestOrchestrator(stores, 3).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.RunID != "run-1" {
		t.Errorf("RunID = %s, want run-1", result.RunID)
	}
	if result.CustomersLoaded != 40 {
		t.Errorf("CustomersLoaded = %d, want 40", result.CustomersLoaded)
	}
	if len(result.Split.Train) != 30 || len(result.Split.Test) != 10 {
		t.Errorf("split = %d/%d, want 30/10", len(result.Split.Train), len(result.Split.Test))
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}

	model := result.Model()
	if model == nil {
		t.Fatal("expected fitted model")
	}
	if model.K < 2 {
		t.Errorf("K = %d, want >= 2", model.K)
	}
	if !model.FittedAt.Equal(fixedTime) {
		t.Errorf("FittedAt = %v, want %v", model.FittedAt, fixedTime)
	}
	if len(result.Profiles) != model.K {
		t.Errorf("profiles = %d, want %d", len(result.Profiles), model.K)
	}
	if len(result.TestAssignments) != 10 {
		t.Errorf("test assignments = %d, want 10", len(result.TestAssignments))
	}
	if result.CrossValidation == nil || len(result.CrossValidation.Folds) != 3 {
		t.Fatalf("expected 3 cross-validation folds, got %+v", result.CrossValidation)
	}

	// Snapshot covers both partitions
	if result.Snapshot == nil {
		t.Fatal("expected snapshot")
	}
	if result.Snapshot.CustomerCount() != 40 {
		t.Errorf("snapshot customers = %d, want 40", result.Snapshot.CustomerCount())
	}
	if _, ok := result.Snapshot.Customer(result.Split.Test[0]); !ok {
		t.Errorf("test customer %s missing from snapshot", result.Split.Test[0])
	}

	// Persisted artifacts
	if result.AssignmentsStored != 40 {
		t.Errorf("AssignmentsStored = %d, want 40", result.AssignmentsStored)
	}
	if result.ProfilesStored != model.K {
		t.Errorf("ProfilesStored = %d, want %d", result.ProfilesStored, model.K)
	}
	if result.QualityRowsStored != 2+3 {
		t.Errorf("QualityRowsStored = %d, want 5", result.QualityRowsStored)
	}

	stored, err := stores.models.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if stored.ModelID != model.ModelID {
		t.Errorf("stored model = %s, want %s", stored.ModelID, model.ModelID)
	}
	assignments, err := stores.assignments.GetByModelID(ctx, model.ModelID)
	if err != nil {
		t.Fatalf("GetByModelID failed: %v", err)
	}
	if len(assignments) != 40 {
		t.Errorf("stored assignments = %d, want 40", len(assignments))
	}
	reports, err := stores.quality.GetByRunID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(reports) != 5 {
		t.Errorf("stored quality reports = %d, want 5", len(reports))
	}
}

func TestOrchestrator_Run_RerunSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores(t, fixtures.Customers(24, 5))
	orch := newTestOrchestrator(stores, 0)

	first, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if first.Model().ModelID != second.Model().ModelID {
		t.Errorf("model ids differ: %s vs %s", first.Model().ModelID, second.Model().ModelID)
	}
	if len(second.Errors) != 0 {
		t.Errorf("duplicates should be skipped silently, got %v", second.Errors)
	}
	if second.AssignmentsStored != 0 || second.ProfilesStored != 0 {
		t.Errorf("second run stored %d assignments, %d profiles; want 0",
			second.AssignmentsStored, second.ProfilesStored)
	}
	// Quality is keyed by run, so the second run still records its own rows
	if second.QualityRowsStored != 2 {
		t.Errorf("second run QualityRowsStored = %d, want 2", second.QualityRowsStored)
	}
	if second.CrossValidation != nil {
		t.Error("expected no cross-validation with folds=0")
	}
}

func TestOrchestrator_Run_CrossValidationFailureIsReported(t *testing.T) {
	// 8 customers split 6/2; 5 folds need at least 10 customers
	stores := createTestStores(t, fixtures.Customers(8, 11))

	result, err := newTestOrchestrator(stores, 5).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.CrossValidation != nil {
		t.Error("expected cross-validation to be skipped")
	}
	if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "cross-validation:") {
		t.Errorf("Errors = %v, want one cross-validation error", result.Errors)
	}
	if result.Model() == nil {
		t.Error("expected model despite cross-validation failure")
	}
}

func TestOrchestrator_Run_Errors(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		stores := createTestStores(t, nil)
		_, err := newTestOrchestrator(stores, 0).Run(context.Background())
		var insufficient *domain.InsufficientDataError
		if !errors.As(err, &insufficient) {
			t.Fatalf("expected InsufficientDataError, got %v", err)
		}
		if insufficient.Stage != "split" {
			t.Errorf("stage = %s, want split", insufficient.Stage)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		stores := createTestStores(t, fixtures.Customers(20, 1))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestOrchestrator(stores, 3).Run(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if _, err := stores.models.GetLatest(context.Background()); err == nil {
			t.Error("cancelled run must not persist a model")
		}
	})
}

func TestRunResult_ModelNil(t *testing.T) {
	var r *RunResult
	if r.Model() != nil {
		t.Error("nil result should have nil model")
	}
	if (&RunResult{}).Model() != nil {
		t.Error("result without fit should have nil model")
	}
}
