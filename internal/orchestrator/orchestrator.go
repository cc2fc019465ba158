// Package orchestrator provides end-to-end segmentation runs.
// It coordinates: load → split → fit → evaluate → cross-validate → profile → persist
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/idhash"
	"customer-segment-lab/internal/metrics"
	"customer-segment-lab/internal/observability"
	"customer-segment-lab/internal/prediction"
	"customer-segment-lab/internal/profiling"
	"customer-segment-lab/internal/segmentation"
	"customer-segment-lab/internal/storage"
	"customer-segment-lab/internal/validation"
)

// Orchestrator coordinates a full segmentation run.
type Orchestrator struct {
	// Stores
	transactionStore storage.TransactionStore
	modelStore       storage.ModelStore
	assignmentStore  storage.AssignmentStore
	profileStore     storage.ClusterProfileStore
	qualityStore     storage.QualityReportStore

	engine *segmentation.Engine

	testFraction float64
	folds        int
	seed         uint64

	log   *logrus.Entry
	clock func() time.Time
	runID func() string
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	TransactionStore    storage.TransactionStore
	ModelStore          storage.ModelStore
	AssignmentStore     storage.AssignmentStore
	ClusterProfileStore storage.ClusterProfileStore
	QualityReportStore  storage.QualityReportStore

	// Engine used for the main fit and every fold. Defaults to segmentation.DefaultConfig().
	Engine *segmentation.Engine

	TestFraction float64 // share of customers held out for evaluation
	Folds        int     // cross-validation folds; 0 skips cross-validation
	Seed         uint64  // split and fold shuffling

	Logger *logrus.Entry
	Clock  func() time.Time
	RunID  func() string // defaults to idhash.NewRunID
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		transactionStore: opts.TransactionStore,
		modelStore:       opts.ModelStore,
		assignmentStore:  opts.AssignmentStore,
		profileStore:     opts.ClusterProfileStore,
		qualityStore:     opts.QualityReportStore,
		engine:           opts.Engine,
		testFraction:     opts.TestFraction,
		folds:            opts.Folds,
		seed:             opts.Seed,
		log:              opts.Logger,
		clock:            opts.Clock,
		runID:            opts.RunID,
	}
	if o.engine == nil {
		o.engine = segmentation.NewEngine(segmentation.DefaultConfig())
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	o.log = o.log.WithField("component", "orchestrator")
	if o.clock == nil {
		o.clock = func() time.Time { return time.Now().UTC() }
	}
	if o.runID == nil {
		o.runID = idhash.NewRunID
	}
	return o
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	RunID             string
	CustomersLoaded   int
	Split             domain.SplitResult
	Fit               *segmentation.FitResult
	TestAssignments   []domain.ClusterAssignment
	TestQuality       domain.QualityMetrics
	CrossValidation   *domain.CrossValidationResult // nil when skipped or failed
	Profiles          []domain.ClusterProfile
	Snapshot          *prediction.Snapshot
	AssignmentsStored int
	ProfilesStored    int
	QualityRowsStored int
	Errors            []string
}

// Model returns the fitted model, or nil.
func (r *RunResult) Model() *domain.ClusterModel {
	if r == nil || r.Fit == nil {
		return nil
	}
	return r.Fit.Model
}

// Run executes the full segmentation run.
// Phases:
//  1. Load customers
//  2. Split into train and test
//  3. Fit on train
//  4. Evaluate on test
//  5. Cross-validate (optional, failures are reported, not fatal)
//  6. Profile clusters over both partitions
//  7. Persist model, assignments, profiles and quality
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{RunID: o.runID()}
	log := o.log.WithField("run_id", result.RunID)

	// Phase 1: Load customers
	log.Info("phase 1: loading customers")
	customers, err := storage.LoadCustomers(ctx, o.transactionStore)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (load customers) failed: %w", err)
	}
	result.CustomersLoaded = len(customers)
	log.WithField("customers", len(customers)).Info("customers loaded")

	// Phase 2: Split
	log.Info("phase 2: splitting train/test")
	train, test, err := validation.SplitCustomers(customers, o.testFraction, o.seed)
	if err != nil {
		return nil, fmt.Errorf("phase 2 (split) failed: %w", err)
	}
	result.Split = domain.SplitResult{Train: ids(train), Test: ids(test)}
	log.WithFields(logrus.Fields{"train": len(train), "test": len(test)}).Info("split complete")

	// Phase 3: Fit
	log.Info("phase 3: fitting model")
	start := time.Now()
	fit, err := o.engine.Fit(ctx, train)
	observability.RecordFit(fitK(fit), len(train), fitSilhouette(fit), time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("phase 3 (fit) failed: %w", err)
	}
	result.Fit = fit
	observability.MarkFit(o.clock().Unix())
	log.WithFields(logrus.Fields{
		"model_id": fit.Model.ModelID,
		"k":        fit.Model.K,
		"trials":   len(fit.Trials),
		"inertia":  fit.Model.Inertia,
	}).Info("model fitted")

	// Phase 4: Evaluate
	log.Info("phase 4: evaluating on test partition")
	testAssignments, testQuality, err := o.engine.Evaluate(ctx, fit.Model, test)
	if err != nil {
		return nil, fmt.Errorf("phase 4 (evaluate) failed: %w", err)
	}
	result.TestAssignments = testAssignments
	result.TestQuality = testQuality
	entry := log.WithField("test", len(testAssignments))
	if testQuality.Silhouette != nil {
		entry = entry.WithField("silhouette", *testQuality.Silhouette)
	}
	entry.Info("evaluation complete")

	// Phase 5: Cross-validation
	if o.folds > 0 {
		log.WithField("folds", o.folds).Info("phase 5: cross-validating")
		cv, err := validation.NewCrossValidator(o.engine, o.log).Run(ctx, customers, o.folds, o.seed)
		switch {
		case err == nil:
			result.CrossValidation = cv
			observability.RecordFolds(len(cv.Folds))
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("phase 5 (cross-validation) failed: %w", err)
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("cross-validation: %v", err))
			log.WithError(err).Warn("cross-validation skipped")
		}
	} else {
		log.Info("phase 5: skipping cross-validation (folds=0)")
	}

	// Phase 6: Profiles
	log.Info("phase 6: profiling clusters")
	all := make([]domain.ClusterAssignment, 0, len(fit.Assignments)+len(testAssignments))
	all = append(all, fit.Assignments...)
	all = append(all, testAssignments...)
	profiles, err := profiling.Build(fit.Model, all, customers)
	if err != nil {
		return nil, fmt.Errorf("phase 6 (profile) failed: %w", err)
	}
	result.Profiles = profiles

	snapshot, err := prediction.NewSnapshot(fit.Model, profiles, customers, result.Split)
	if err != nil {
		return nil, fmt.Errorf("phase 6 (snapshot) failed: %w", err)
	}
	result.Snapshot = snapshot.WithQuality(fit.Quality)

	// Phase 7: Persist
	log.Info("phase 7: persisting results")
	persistErrors := o.persist(ctx, result, all)
	result.Errors = append(result.Errors, persistErrors...)

	log.WithFields(logrus.Fields{
		"customers":   result.CustomersLoaded,
		"k":           fit.Model.K,
		"assignments": result.AssignmentsStored,
		"profiles":    result.ProfilesStored,
		"errors":      len(result.Errors),
	}).Info("run completed")

	return result, nil
}

// persist writes the run's artifacts. Duplicate keys mean an identical fit was
// already stored and are skipped.
func (o *Orchestrator) persist(ctx context.Context, r *RunResult, assignments []domain.ClusterAssignment) []string {
	var errs []string
	model := r.Fit.Model

	if o.modelStore != nil {
		if err := o.modelStore.Insert(ctx, model); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			errs = append(errs, fmt.Sprintf("store model %s: %v", model.ModelID, err))
		}
	}

	if o.assignmentStore != nil {
		batch := make([]*domain.ClusterAssignment, len(assignments))
		for i := range assignments {
			batch[i] = &assignments[i]
		}
		switch err := o.assignmentStore.InsertBulk(ctx, batch); {
		case err == nil:
			r.AssignmentsStored = len(batch)
		case errors.Is(err, storage.ErrDuplicateKey):
		default:
			errs = append(errs, fmt.Sprintf("store assignments: %v", err))
		}
	}

	if o.profileStore != nil {
		batch := make([]*domain.ClusterProfile, len(r.Profiles))
		for i := range r.Profiles {
			batch[i] = &r.Profiles[i]
		}
		switch err := o.profileStore.InsertBulk(ctx, batch); {
		case err == nil:
			r.ProfilesStored = len(batch)
		case errors.Is(err, storage.ErrDuplicateKey):
		default:
			errs = append(errs, fmt.Sprintf("store profiles: %v", err))
		}
	}

	if o.qualityStore != nil {
		agg := metrics.NewAggregator(o.qualityStore).WithClock(o.clock)
		if err := agg.RecordFit(ctx, r.RunID, model, r.Fit.Quality, r.TestQuality); err != nil {
			errs = append(errs, err.Error())
		} else {
			r.QualityRowsStored += 2
		}
		if r.CrossValidation != nil {
			if _, err := agg.RecordCrossValidation(ctx, r.RunID, model.ModelID, r.CrossValidation); err != nil {
				errs = append(errs, err.Error())
			} else {
				r.QualityRowsStored += len(r.CrossValidation.Folds)
			}
		}
	}

	return errs
}

func ids(customers []domain.Customer) []string {
	out := make([]string, len(customers))
	for i := range customers {
		out[i] = customers[i].ID
	}
	return out
}

func fitK(fit *segmentation.FitResult) int {
	if fit == nil {
		return 0
	}
	return fit.Model.K
}

func fitSilhouette(fit *segmentation.FitResult) *float64 {
	if fit == nil {
		return nil
	}
	return fit.Quality.Silhouette
}
