package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"customer-segment-lab/internal/clv"
	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/metrics"
	"customer-segment-lab/internal/profiling"
	"customer-segment-lab/internal/storage"
)

// ErrNoModel is returned when a report is requested before any fit.
var ErrNoModel = errors.New("no model available for report")

// Generator produces reports from stored run artifacts.
type Generator struct {
	transactionStore storage.TransactionStore
	modelStore       storage.ModelStore
	assignmentStore  storage.AssignmentStore
	profileStore     storage.ClusterProfileStore
	qualityStore     storage.QualityReportStore
	now              func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	transactionStore storage.TransactionStore,
	modelStore storage.ModelStore,
	assignmentStore storage.AssignmentStore,
	profileStore storage.ClusterProfileStore,
	qualityStore storage.QualityReportStore,
) *Generator {
	return &Generator{
		transactionStore: transactionStore,
		modelStore:       modelStore,
		assignmentStore:  assignmentStore,
		profileStore:     profileStore,
		qualityStore:     qualityStore,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a report for the model and quality records of a run.
func (g *Generator) Generate(ctx context.Context, runID, modelID string) (*Report, error) {
	if modelID == "" {
		return nil, ErrNoModel
	}
	model, err := g.modelStore.GetByID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelID, err)
	}

	dataSummary, err := g.SummarizeData(ctx)
	if err != nil {
		return nil, err
	}

	profiles, err := g.profileStore.GetByModelID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	clusters := generateClusterRows(profiles)

	assignments, err := g.assignmentStore.GetByModelID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}

	reports, err := g.qualityStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load quality reports: %w", err)
	}
	quality := generateQualityRows(reports)

	return &Report{
		GeneratedAt:     g.now(),
		RunID:           runID,
		ModelID:         modelID,
		K:               model.K,
		DataSummary:     *dataSummary,
		Clusters:        clusters,
		Quality:         quality,
		CrossValidation: generateCVSummary(reports),
		Assignments:     generateAssignmentRows(assignments, profiles),
		Reproducibility: ReproducibilityMetadata{ModelID: modelID, Seed: model.Seed},
	}, nil
}

// SummarizeData computes corpus totals from stored transactions.
func (g *Generator) SummarizeData(ctx context.Context) (*DataSummary, error) {
	txs, err := g.transactionStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	summary := &DataSummary{Transactions: len(txs)}
	customers := make(map[string]struct{})
	merchants := make(map[string]struct{})
	for i, t := range txs {
		customers[t.CustomerID] = struct{}{}
		if t.MerchantID != "" {
			merchants[t.MerchantID] = struct{}{}
		}
		summary.TotalSpend += t.TotalAmount
		if i == 0 || t.Timestamp.Before(summary.FirstTransaction) {
			summary.FirstTransaction = t.Timestamp
		}
		if i == 0 || t.Timestamp.After(summary.LastTransaction) {
			summary.LastTransaction = t.Timestamp
		}
	}
	summary.Customers = len(customers)
	summary.Merchants = len(merchants)
	return summary, nil
}

// generateClusterRows converts profiles into table rows, ordered by cluster_id.
func generateClusterRows(profiles []*domain.ClusterProfile) []ClusterRow {
	rows := make([]ClusterRow, 0, len(profiles))
	for _, p := range profiles {
		row := ClusterRow{
			ClusterID:  p.ClusterID,
			Label:      p.Label,
			Size:       p.Size,
			Share:      p.PopulationShare,
			MeanAmount: p.MeanTransactionAmount,
			PeakTiming: p.TimingDistribution.Largest(),
			NextBrand:  p.DominantNextBrand,
		}
		if cats := profiling.RankShares(p.CategoryDistribution); len(cats) > 0 {
			row.TopCategory = cats[0]
			row.TopCategoryShare = p.CategoryDistribution[cats[0]]
		}
		if pays := profiling.RankShares(p.PaymentDistribution); len(pays) > 0 {
			row.TopPayment = pays[0]
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ClusterID < rows[j].ClusterID })
	return rows
}

// generateQualityRows lists training fit, holdout, then folds ascending.
func generateQualityRows(reports []*domain.QualityReport) []QualityRow {
	rows := make([]QualityRow, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, QualityRow{
			Partition:        partitionOf(r.Fold),
			Fold:             r.Fold,
			K:                r.K,
			Silhouette:       r.Metrics.Silhouette,
			CalinskiHarabasz: r.Metrics.CalinskiHarabasz,
			DaviesBouldin:    r.Metrics.DaviesBouldin,
			Inertia:          r.Metrics.Inertia,
			MinInterCluster:  r.Metrics.MinInterClusterDistance,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return qualityOrder(rows[i].Fold) < qualityOrder(rows[j].Fold)
	})
	return rows
}

func partitionOf(fold int) string {
	switch fold {
	case domain.FoldTrainFit:
		return PartitionTrain
	case domain.FoldHoldout:
		return PartitionHoldout
	default:
		return PartitionFold
	}
}

// qualityOrder puts the training fit first and the holdout second.
func qualityOrder(fold int) int {
	switch fold {
	case domain.FoldTrainFit:
		return -2
	case domain.FoldHoldout:
		return -1
	default:
		return fold
	}
}

// generateCVSummary summarizes persisted folds. Empty when the run had none.
func generateCVSummary(reports []*domain.QualityReport) []MetricSummaryRow {
	var folds []domain.FoldResult
	for _, r := range reports {
		if r.Fold >= 0 {
			folds = append(folds, domain.FoldResult{Fold: r.Fold, K: r.K, Metrics: r.Metrics})
		}
	}
	if len(folds) == 0 {
		return nil
	}

	summary := metrics.SummarizeFolds(folds)
	rows := make([]MetricSummaryRow, 0, len(summary))
	for _, name := range metrics.MetricNames() {
		s := summary[name]
		rows = append(rows, MetricSummaryRow{
			Metric:  name,
			Mean:    s.Mean,
			Std:     s.Std,
			Defined: s.Defined,
			Folds:   len(folds),
		})
	}
	return rows
}

func generateAssignmentRows(assignments []*domain.ClusterAssignment, profiles []*domain.ClusterProfile) []AssignmentRow {
	labels := make(map[int]string, len(profiles))
	for _, p := range profiles {
		labels[p.ClusterID] = p.Label
	}
	rows := make([]AssignmentRow, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, AssignmentRow{
			CustomerID: a.CustomerID,
			ClusterID:  a.ClusterID,
			Label:      labels[a.ClusterID],
			Distance:   a.Distance,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CustomerID < rows[j].CustomerID })
	return rows
}

// SelectionRows converts selection trials into rows ordered by k.
func SelectionRows(trials []domain.SelectionTrial, selectedK int) []SelectionRow {
	rows := make([]SelectionRow, 0, len(trials))
	for _, t := range trials {
		rows = append(rows, SelectionRow{
			K:                t.K,
			Silhouette:       t.Silhouette,
			CalinskiHarabasz: t.CalinskiHarabasz,
			DaviesBouldin:    t.DaviesBouldin,
			Inertia:          t.Inertia,
			Composite:        t.Composite,
			Selected:         t.K == selectedK,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].K < rows[j].K })
	return rows
}

// TagPartitions marks each assignment row with its split partition.
func TagPartitions(rows []AssignmentRow, split domain.SplitResult) {
	partition := make(map[string]string, len(split.Train)+len(split.Test))
	for _, id := range split.Train {
		partition[id] = PartitionTrain
	}
	for _, id := range split.Test {
		partition[id] = PartitionHoldout
	}
	for i := range rows {
		rows[i].Partition = partition[rows[i].CustomerID]
	}
}

// MerchantRows queries CLV insights for each merchant, in request order.
// Unknown merchants yield rows with zero customers.
func MerchantRows(ctx context.Context, svc *clv.Service, merchants []string) ([]MerchantRow, error) {
	rows := make([]MerchantRow, 0, len(merchants))
	for _, m := range merchants {
		ins, err := svc.Insights(ctx, m)
		if err != nil {
			return nil, err
		}
		row := MerchantRow{
			MerchantID:    ins.MerchantID,
			Customers:     ins.TotalCustomers,
			Revenue:       ins.TotalRevenue,
			AvgTicket:     ins.AvgTransactionValue,
			MonthlyFreq:   ins.AvgMonthlyFrequency,
			RetentionRate: ins.RetentionRate,
			ChurnRate:     ins.ChurnRate,
			AvgGapDays:    ins.AvgPurchaseGapDays,
		}
		if len(ins.TopCustomers) > 0 {
			row.TopCustomerID = ins.TopCustomers[0].CustomerID
			row.TopCustomerCLV = ins.TopCustomers[0].CLVScore
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// PopulateExecutiveSummary fills the headline from report sections.
// Decision is left unchanged.
func PopulateExecutiveSummary(r *Report) {
	s := &r.ExecutiveSummary
	s.Customers = r.DataSummary.Customers
	s.K = r.K
	s.DataPeriodStart = r.DataSummary.FirstTransaction
	s.DataPeriodEnd = r.DataSummary.LastTransaction

	s.HoldoutSilhouette = nil
	for _, q := range r.Quality {
		if q.Partition == PartitionHoldout {
			s.HoldoutSilhouette = q.Silhouette
		}
	}

	s.LargestSegment, s.LargestSegmentShare = "", 0
	for _, c := range r.Clusters {
		if s.LargestSegment == "" || c.Share > s.LargestSegmentShare {
			s.LargestSegment = c.Label
			s.LargestSegmentShare = c.Share
		}
	}
}
