// Package ingestion loads the per-customer transaction corpus into storage.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"customer-segment-lab/internal/normalization"
	"customer-segment-lab/internal/observability"
	"customer-segment-lab/internal/storage"
)

// ErrChecksumMismatch is returned when a previously ingested file has changed.
var ErrChecksumMismatch = errors.New("corpus file changed since ingestion")

// File outcomes.
const (
	OutcomeLoaded  = "loaded"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Loader reads corpus files, normalizes them and records progress so that a
// re-run over the same corpus loads nothing twice.
type Loader struct {
	source        CorpusSource
	runner        *normalization.Runner
	progressStore storage.IngestionProgressStore
	workers       int
	log           *logrus.Entry
	clock         func() time.Time
}

// LoaderOptions contains configuration for creating a Loader.
type LoaderOptions struct {
	Source        CorpusSource
	Runner        *normalization.Runner
	ProgressStore storage.IngestionProgressStore // nil disables resume
	Workers       int                            // defaults to 4
	Logger        *logrus.Entry
	Clock         func() time.Time
}

// NewLoader creates a new corpus loader.
func NewLoader(opts LoaderOptions) *Loader {
	l := &Loader{
		source:        opts.Source,
		runner:        opts.Runner,
		progressStore: opts.ProgressStore,
		workers:       opts.Workers,
		log:           opts.Logger,
		clock:         opts.Clock,
	}
	if l.workers <= 0 {
		l.workers = 4
	}
	if l.log == nil {
		l.log = logrus.NewEntry(logrus.StandardLogger())
	}
	l.log = l.log.WithField("component", "ingestion")
	if l.clock == nil {
		l.clock = func() time.Time { return time.Now().UTC() }
	}
	return l
}

// FileResult is the outcome of one corpus file.
type FileResult struct {
	Source     string
	CustomerID string
	Checksum   string
	Outcome    string
	Stats      normalization.NormalizeStats
	Err        error
}

// LoadResult contains statistics from a corpus load.
type LoadResult struct {
	Files    []FileResult // in source order
	Loaded   int
	Skipped  int
	Failed   int
	Stats    normalization.NormalizeStats // summed over loaded files
	Errors   []string
	Duration time.Duration
}

// Load ingests every file of the source. Per-file failures are reported in
// the result; only listing errors and cancellation fail the whole load.
func (l *Loader) Load(ctx context.Context) (*LoadResult, error) {
	start := time.Now()

	names, err := l.source.List(ctx)
	if err != nil {
		return nil, err
	}
	l.log.WithField("files", len(names)).Info("loading corpus")

	slots := make([]FileResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = l.loadFile(gctx, name)
			if errors.Is(slots[i].Err, context.Canceled) || errors.Is(slots[i].Err, context.DeadlineExceeded) {
				return slots[i].Err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &LoadResult{Files: slots}
	for _, f := range slots {
		observability.RecordFileIngested(f.Outcome)
		switch f.Outcome {
		case OutcomeLoaded:
			result.Loaded++
			result.Stats.Add(f.Stats)
		case OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.Source, f.Err))
		}
	}
	result.Duration = time.Since(start)

	observability.RecordNormalized(result.Stats.Accepted, result.Stats.DropReasons)
	observability.RecordWarnings(string(normalization.WarnSplitMismatch), result.Stats.SplitMismatches)
	observability.RecordWarnings(string(normalization.WarnSubtotalMismatch), result.Stats.SubtotalMismatches)
	if result.Failed == 0 {
		observability.MarkIngestion(l.clock().Unix())
	}

	l.log.WithFields(logrus.Fields{
		"loaded":   result.Loaded,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
		"accepted": result.Stats.Accepted,
		"dropped":  result.Stats.Dropped,
		"duration": result.Duration,
	}).Info("corpus load complete")

	return result, nil
}

func (l *Loader) loadFile(ctx context.Context, name string) FileResult {
	res := FileResult{Source: name, Outcome: OutcomeFailed}
	log := l.log.WithField("source", name)

	data, err := l.source.Read(ctx, name)
	if err != nil {
		res.Err = fmt.Errorf("read: %w", err)
		return res
	}
	sum := sha256.Sum256(data)
	res.Checksum = hex.EncodeToString(sum[:])

	if l.progressStore != nil {
		prev, err := l.progressStore.Get(ctx, name)
		switch {
		case err == nil:
			res.CustomerID = prev.CustomerID
			if prev.Checksum != res.Checksum {
				res.Err = fmt.Errorf("%w: stored %s, now %s", ErrChecksumMismatch, short(prev.Checksum), short(res.Checksum))
				return res
			}
			res.Outcome = OutcomeSkipped
			log.Debug("already ingested")
			return res
		case !errors.Is(err, storage.ErrNotFound):
			res.Err = fmt.Errorf("get progress: %w", err)
			return res
		}
	}

	var doc normalization.CorpusDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		res.Err = fmt.Errorf("decode: %w", err)
		return res
	}
	res.CustomerID = doc.CustomerID
	if res.CustomerID == "" {
		res.CustomerID = customerFromName(name)
	}

	stats, err := l.runner.NormalizeCustomer(ctx, res.CustomerID, doc.Transactions)
	res.Stats = stats
	if err != nil {
		res.Err = err
		return res
	}

	if l.progressStore != nil {
		err := l.progressStore.Mark(ctx, &storage.IngestionProgress{
			Source:     name,
			Checksum:   res.Checksum,
			CustomerID: res.CustomerID,
			Loaded:     stats.Accepted,
			Dropped:    stats.Dropped,
			LoadedAt:   l.clock(),
		})
		if err != nil {
			res.Err = fmt.Errorf("mark progress: %w", err)
			return res
		}
	}

	res.Outcome = OutcomeLoaded
	if stats.Dropped > 0 {
		log.WithFields(logrus.Fields{
			"customer_id": res.CustomerID,
			"dropped":     stats.Dropped,
		}).Warn("records dropped")
	}
	return res
}

func short(checksum string) string {
	if len(checksum) > 12 {
		return checksum[:12]
	}
	return checksum
}
