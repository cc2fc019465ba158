package clickhouse

import (
	"context"
	"fmt"
	"time"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

// QualityReportStore implements storage.QualityReportStore using ClickHouse.
type QualityReportStore struct {
	conn *Conn
}

// NewQualityReportStore creates a new QualityReportStore.
func NewQualityReportStore(conn *Conn) *QualityReportStore {
	return &QualityReportStore{conn: conn}
}

// Compile-time interface check.
var _ storage.QualityReportStore = (*QualityReportStore)(nil)

// InsertBulk adds reports atomically. Fails entire batch on any duplicate (run_id, fold).
func (s *QualityReportStore) InsertBulk(ctx context.Context, reports []*domain.QualityReport) (err error) {
	if len(reports) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_quality_reports", start, err) }(time.Now())

	seen := make(map[string]struct{})
	for _, r := range reports {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
		key := fmt.Sprintf("%s|%d", r.RunID, r.Fold)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	for _, r := range reports {
		exists, err := s.exists(ctx, r.RunID, r.Fold)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO quality_reports (
			run_id, model_id, fold, k,
			silhouette, calinski_harabasz, davies_bouldin, inertia, cluster_sizes,
			avg_inter_cluster_distance, min_inter_cluster_distance, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range reports {
		m := r.Metrics
		sizes := make([]int64, len(m.ClusterSizes))
		for i, n := range m.ClusterSizes {
			sizes[i] = int64(n)
		}
		err = batch.Append(
			r.RunID, r.ModelID, int32(r.Fold), uint32(r.K),
			m.Silhouette, m.CalinskiHarabasz, m.DaviesBouldin, m.Inertia, sizes,
			m.AvgInterClusterDistance, m.MinInterClusterDistance, r.RecordedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves all reports of a run, ordered by fold ASC.
func (s *QualityReportStore) GetByRunID(ctx context.Context, runID string) (result []*domain.QualityReport, err error) {
	defer func(start time.Time) { observe("get_quality_by_run", start, err) }(time.Now())

	rows, err := s.conn.Query(ctx, `
		SELECT
			run_id, model_id, fold, k,
			silhouette, calinski_harabasz, davies_bouldin, inertia, cluster_sizes,
			avg_inter_cluster_distance, min_inter_cluster_distance, recorded_at
		FROM quality_reports FINAL
		WHERE run_id = ?
		ORDER BY fold ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query quality by run: %w", err)
	}
	defer rows.Close()

	result = []*domain.QualityReport{}
	for rows.Next() {
		var (
			r     domain.QualityReport
			fold  int32
			k     uint32
			sizes []int64
		)
		err := rows.Scan(
			&r.RunID, &r.ModelID, &fold, &k,
			&r.Metrics.Silhouette, &r.Metrics.CalinskiHarabasz, &r.Metrics.DaviesBouldin,
			&r.Metrics.Inertia, &sizes,
			&r.Metrics.AvgInterClusterDistance, &r.Metrics.MinInterClusterDistance, &r.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan quality report: %w", err)
		}
		r.Fold = int(fold)
		r.K = int(k)
		r.Metrics.ClusterSizes = make([]int, len(sizes))
		for i, n := range sizes {
			r.Metrics.ClusterSizes[i] = int(n)
		}
		r.RecordedAt = r.RecordedAt.UTC()
		result = append(result, &r)
	}
	return result, rows.Err()
}

func (s *QualityReportStore) exists(ctx context.Context, runID string, fold int) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM quality_reports
		WHERE run_id = ? AND fold = ?
	`, runID, int32(fold)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
