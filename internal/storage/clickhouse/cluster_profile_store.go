package clickhouse

import (
	"context"
	"fmt"
	"time"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

// ClusterProfileStore implements storage.ClusterProfileStore using ClickHouse.
type ClusterProfileStore struct {
	conn *Conn
}

// NewClusterProfileStore creates a new ClusterProfileStore.
func NewClusterProfileStore(conn *Conn) *ClusterProfileStore {
	return &ClusterProfileStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ClusterProfileStore = (*ClusterProfileStore)(nil)

// InsertBulk adds profiles atomically. Fails entire batch on any duplicate (model_id, cluster_id).
// ReplacingMergeTree would collapse duplicates silently, so they are checked before insert.
func (s *ClusterProfileStore) InsertBulk(ctx context.Context, profiles []*domain.ClusterProfile) (err error) {
	if len(profiles) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_profiles", start, err) }(time.Now())

	// Check for intra-batch duplicates
	seen := make(map[string]struct{})
	for _, p := range profiles {
		if p == nil || p.ModelID == "" {
			return storage.ErrInvalidInput
		}
		key := fmt.Sprintf("%s|%d", p.ModelID, p.ClusterID)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, p := range profiles {
		exists, err := s.exists(ctx, p.ModelID, p.ClusterID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO cluster_profiles (
			model_id, cluster_id, size, population_share,
			mean_features, category_distribution, payment_distribution,
			timing_weekend, timing_morning, timing_afternoon, timing_evening,
			mean_amount, next_brand, label
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range profiles {
		err = batch.Append(
			p.ModelID, int32(p.ClusterID), uint32(p.Size), p.PopulationShare,
			orEmpty(p.MeanFeatureValues), orEmpty(p.CategoryDistribution), orEmpty(p.PaymentDistribution),
			p.TimingDistribution.Weekend, p.TimingDistribution.Morning,
			p.TimingDistribution.Afternoon, p.TimingDistribution.Evening,
			p.MeanTransactionAmount, p.DominantNextBrand, p.Label,
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

// GetByModelID retrieves all profiles of a model, ordered by cluster_id ASC.
func (s *ClusterProfileStore) GetByModelID(ctx context.Context, modelID string) (result []*domain.ClusterProfile, err error) {
	defer func(start time.Time) { observe("get_profiles_by_model", start, err) }(time.Now())

	rows, err := s.conn.Query(ctx, `
		SELECT
			model_id, cluster_id, size, population_share,
			mean_features, category_distribution, payment_distribution,
			timing_weekend, timing_morning, timing_afternoon, timing_evening,
			mean_amount, next_brand, label
		FROM cluster_profiles FINAL
		WHERE model_id = ?
		ORDER BY cluster_id ASC
	`, modelID)
	if err != nil {
		return nil, fmt.Errorf("query profiles by model: %w", err)
	}
	defer rows.Close()

	result = []*domain.ClusterProfile{}
	for rows.Next() {
		var (
			p         domain.ClusterProfile
			clusterID int32
			size      uint32
		)
		err := rows.Scan(
			&p.ModelID, &clusterID, &size, &p.PopulationShare,
			&p.MeanFeatureValues, &p.CategoryDistribution, &p.PaymentDistribution,
			&p.TimingDistribution.Weekend, &p.TimingDistribution.Morning,
			&p.TimingDistribution.Afternoon, &p.TimingDistribution.Evening,
			&p.MeanTransactionAmount, &p.DominantNextBrand, &p.Label,
		)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.ClusterID = int(clusterID)
		p.Size = int(size)
		result = append(result, &p)
	}
	return result, rows.Err()
}

func (s *ClusterProfileStore) exists(ctx context.Context, modelID string, clusterID int) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM cluster_profiles
		WHERE model_id = ? AND cluster_id = ?
	`, modelID, int32(clusterID)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func orEmpty(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
