package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/metrics"
	"customer-segment-lab/internal/segmentation"
)

// ErrNoFoldCompleted is returned when every fold failed to fit or evaluate.
var ErrNoFoldCompleted = errors.New("no cross-validation fold completed")

// CrossValidator refits the segmentation on k-1 folds and scores the held-out fold.
type CrossValidator struct {
	engine *segmentation.Engine
	log    *logrus.Entry
}

// NewCrossValidator creates a cross-validator using engine for every fold fit.
func NewCrossValidator(engine *segmentation.Engine, log *logrus.Entry) *CrossValidator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CrossValidator{
		engine: engine,
		log:    log.WithField("component", "cross_validation"),
	}
}

// Run cross-validates over customers with kFolds folds. Cancellation is
// observed between folds; a cancelled run returns no partial result.
// Each fold refits schema, scaler, cluster count and centroids from its
// training part only. A fold that fails is logged and left out of the
// summary; the run fails only when no fold completes.
func (cv *CrossValidator) Run(ctx context.Context, customers []domain.Customer, kFolds int, seed uint64) (*domain.CrossValidationResult, error) {
	ids := customerIDs(customers)
	if kFolds >= 2 && len(ids) < MinPartitionSize*kFolds {
		return nil, &domain.InsufficientDataError{Stage: "cross-validation", Required: MinPartitionSize * kFolds, Actual: len(ids)}
	}
	folds, err := Folds(ids, kFolds, seed)
	if err != nil {
		return nil, err
	}

	result := &domain.CrossValidationResult{Folds: make([]domain.FoldResult, 0, kFolds)}
	var lastErr error
	for i, testIDs := range folds {
		if err := ctx.Err(); err != nil {
			cv.log.WithField("fold", i).Warn("cross-validation cancelled")
			return nil, err
		}

		fold, err := cv.runFold(context.WithoutCancel(ctx), customers, folds, i)
		if err != nil {
			cv.log.WithError(err).WithField("fold", i).Warn("fold skipped")
			lastErr = fmt.Errorf("fold %d: %w", i, err)
			continue
		}
		result.Folds = append(result.Folds, *fold)

		entry := cv.log.WithFields(logrus.Fields{
			"fold":  i,
			"k":     fold.K,
			"train": fold.TrainSize,
			"test":  len(testIDs),
		})
		if fold.Metrics.Silhouette != nil {
			entry = entry.WithField("silhouette", *fold.Metrics.Silhouette)
		}
		entry.Info("fold complete")
	}

	if len(result.Folds) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoFoldCompleted, lastErr)
	}

	result.Summary = metrics.SummarizeFolds(result.Folds)
	return result, nil
}

func (cv *CrossValidator) runFold(ctx context.Context, customers []domain.Customer, folds [][]string, held int) (*domain.FoldResult, error) {
	var trainIDs []string
	for j, f := range folds {
		if j != held {
			trainIDs = append(trainIDs, f...)
		}
	}
	train := Select(customers, trainIDs)
	test := Select(customers, folds[held])

	fit, err := cv.engine.Fit(ctx, train)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	_, quality, err := cv.engine.Evaluate(ctx, fit.Model, test)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	return &domain.FoldResult{
		Fold:      held,
		K:         fit.Model.K,
		TrainSize: len(train),
		TestSize:  len(test),
		TestIDs:   folds[held],
		Metrics:   quality,
	}, nil
}
