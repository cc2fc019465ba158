package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
)

// RenderClusterProfilesCSV renders segment rows as CSV string.
func RenderClusterProfilesCSV(rows []ClusterRow) string {
	header := []string{
		"cluster_id", "label", "size", "share_pct", "mean_amount",
		"top_category", "top_category_share", "top_payment", "peak_timing", "next_brand",
	}
	records := make([][]string, 0, len(rows))
	for _, c := range rows {
		records = append(records, []string{
			strconv.Itoa(c.ClusterID),
			c.Label,
			strconv.Itoa(c.Size),
			formatFloat(c.Share),
			formatFloat(c.MeanAmount),
			c.TopCategory,
			formatFloat(c.TopCategoryShare),
			c.TopPayment,
			c.PeakTiming,
			c.NextBrand,
		})
	}
	return renderCSV(header, records)
}

// RenderQualityCSV renders quality rows as CSV string. Undefined metrics are empty.
func RenderQualityCSV(rows []QualityRow) string {
	header := []string{
		"partition", "fold", "k", "silhouette", "calinski_harabasz",
		"davies_bouldin", "inertia", "min_inter_cluster_distance",
	}
	records := make([][]string, 0, len(rows))
	for _, q := range rows {
		records = append(records, []string{
			q.Partition,
			strconv.Itoa(q.Fold),
			strconv.Itoa(q.K),
			formatOptionalCSV(q.Silhouette),
			formatOptionalCSV(q.CalinskiHarabasz),
			formatOptionalCSV(q.DaviesBouldin),
			formatFloat(q.Inertia),
			formatOptionalCSV(q.MinInterCluster),
		})
	}
	return renderCSV(header, records)
}

// RenderCVSummaryCSV renders the cross-validation summary as CSV string.
func RenderCVSummaryCSV(rows []MetricSummaryRow) string {
	header := []string{"metric", "mean", "std", "defined_folds", "folds"}
	records := make([][]string, 0, len(rows))
	for _, m := range rows {
		records = append(records, []string{
			m.Metric,
			formatFloat(m.Mean),
			formatFloat(m.Std),
			strconv.Itoa(m.Defined),
			strconv.Itoa(m.Folds),
		})
	}
	return renderCSV(header, records)
}

// RenderSelectionCSV renders selection trials as CSV string.
func RenderSelectionCSV(rows []SelectionRow) string {
	header := []string{"k", "silhouette", "calinski_harabasz", "davies_bouldin", "inertia", "composite", "selected"}
	records := make([][]string, 0, len(rows))
	for _, t := range rows {
		records = append(records, []string{
			strconv.Itoa(t.K),
			formatFloat(t.Silhouette),
			formatFloat(t.CalinskiHarabasz),
			formatFloat(t.DaviesBouldin),
			formatFloat(t.Inertia),
			formatFloat(t.Composite),
			strconv.FormatBool(t.Selected),
		})
	}
	return renderCSV(header, records)
}

// RenderAssignmentsCSV renders per-customer assignments as CSV string.
func RenderAssignmentsCSV(rows []AssignmentRow) string {
	header := []string{"customer_id", "cluster_id", "label", "distance", "partition"}
	records := make([][]string, 0, len(rows))
	for _, a := range rows {
		records = append(records, []string{
			a.CustomerID,
			strconv.Itoa(a.ClusterID),
			a.Label,
			formatFloat(a.Distance),
			a.Partition,
		})
	}
	return renderCSV(header, records)
}

// RenderMerchantCSV renders merchant CLV rows as CSV string.
func RenderMerchantCSV(rows []MerchantRow) string {
	header := []string{
		"merchant_id", "customers", "revenue", "avg_ticket", "monthly_frequency",
		"retention_rate", "churn_rate", "avg_gap_days", "top_customer_id", "top_customer_clv",
	}
	records := make([][]string, 0, len(rows))
	for _, m := range rows {
		records = append(records, []string{
			m.MerchantID,
			strconv.Itoa(m.Customers),
			formatFloat(m.Revenue),
			formatFloat(m.AvgTicket),
			formatFloat(m.MonthlyFreq),
			formatFloat(m.RetentionRate),
			formatFloat(m.ChurnRate),
			formatFloat(m.AvgGapDays),
			m.TopCustomerID,
			formatFloat(m.TopCustomerCLV),
		})
	}
	return renderCSV(header, records)
}

func renderCSV(header []string, records [][]string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	// strings.Builder never fails a write
	_ = w.Write(header)
	_ = w.WriteAll(records)
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatOptionalCSV(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
