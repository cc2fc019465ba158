package reporting

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Customer Segmentation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Model: %s | K: %d\n\n", r.RunID, r.ModelID, r.K))

	// Executive Summary
	s := r.ExecutiveSummary
	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Customers | %d |\n", s.Customers))
	sb.WriteString(fmt.Sprintf("| Segments | %d |\n", s.K))
	sb.WriteString(fmt.Sprintf("| Holdout Silhouette | %s |\n", formatOptional(s.HoldoutSilhouette)))
	if s.LargestSegment != "" {
		sb.WriteString(fmt.Sprintf("| Largest Segment | %s (%.1f%%) |\n", s.LargestSegment, s.LargestSegmentShare))
	}
	sb.WriteString(fmt.Sprintf("| Data Period | %s |\n", formatPeriod(s.DataPeriodStart, s.DataPeriodEnd)))
	sb.WriteString(fmt.Sprintf("| Decision | %s |\n", orDefault(s.Decision, "PENDING")))
	sb.WriteString("\n")

	// Data Summary
	d := r.DataSummary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Customers | %d |\n", d.Customers))
	sb.WriteString(fmt.Sprintf("| Transactions | %d |\n", d.Transactions))
	sb.WriteString(fmt.Sprintf("| Merchants | %d |\n", d.Merchants))
	sb.WriteString(fmt.Sprintf("| Total Spend | %.2f |\n", d.TotalSpend))
	sb.WriteString(fmt.Sprintf("| First Transaction | %s |\n", formatDate(d.FirstTransaction)))
	sb.WriteString(fmt.Sprintf("| Last Transaction | %s |\n", formatDate(d.LastTransaction)))
	sb.WriteString(fmt.Sprintf("| Train / Test Customers | %d / %d |\n", d.TrainCustomers, d.TestCustomers))
	sb.WriteString("\n")

	renderDataQuality(&sb, r.DataQuality)

	// Selection
	sb.WriteString("## Cluster Count Selection\n\n")
	if len(r.Selection) > 0 {
		sb.WriteString("| K | Silhouette | Calinski-Harabasz | Davies-Bouldin | Inertia | Composite | Selected |\n")
		sb.WriteString("|---|------------|-------------------|----------------|---------|-----------|----------|\n")
		for _, t := range r.Selection {
			selected := ""
			if t.Selected {
				selected = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %d | %.4f | %.2f | %.4f | %.2f | %.4f | %s |\n",
				t.K, t.Silhouette, t.CalinskiHarabasz, t.DaviesBouldin, t.Inertia, t.Composite, selected))
		}
	} else {
		sb.WriteString("No selection trials (fixed k).\n")
	}
	sb.WriteString("\n")

	// Segments
	sb.WriteString("## Segments\n\n")
	if len(r.Clusters) > 0 {
		sb.WriteString("| Cluster | Label | Size | Share | Avg Amount | Top Category | Top Payment | Peak Timing | Next Brand |\n")
		sb.WriteString("|---------|-------|------|-------|------------|--------------|-------------|-------------|------------|\n")
		for _, c := range r.Clusters {
			sb.WriteString(fmt.Sprintf("| %d | %s | %d | %.1f%% | %.2f | %s (%.0f%%) | %s | %s | %s |\n",
				c.ClusterID, c.Label, c.Size, c.Share, c.MeanAmount,
				orDefault(c.TopCategory, "-"), c.TopCategoryShare*100,
				orDefault(c.TopPayment, "-"), c.PeakTiming, orDefault(c.NextBrand, "-")))
		}
	} else {
		sb.WriteString("No segments available.\n")
	}
	sb.WriteString("\n")

	// Quality
	sb.WriteString("## Clustering Quality\n\n")
	if len(r.Quality) > 0 {
		sb.WriteString("| Partition | K | Silhouette | Calinski-Harabasz | Davies-Bouldin | Inertia | Min Separation |\n")
		sb.WriteString("|-----------|---|------------|-------------------|----------------|---------|----------------|\n")
		for _, q := range r.Quality {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %.2f | %s |\n",
				qualityName(q), q.K, formatOptional(q.Silhouette), formatOptional(q.CalinskiHarabasz),
				formatOptional(q.DaviesBouldin), q.Inertia, formatOptional(q.MinInterCluster)))
		}
	} else {
		sb.WriteString("No quality records available.\n")
	}
	sb.WriteString("\n")

	// Cross-validation
	sb.WriteString("## Cross-Validation\n\n")
	if len(r.CrossValidation) > 0 {
		sb.WriteString("| Metric | Mean | Std | Defined Folds |\n")
		sb.WriteString("|--------|------|-----|---------------|\n")
		for _, m := range r.CrossValidation {
			sb.WriteString(fmt.Sprintf("| %s | %.4f | %.4f | %d/%d |\n",
				m.Metric, m.Mean, m.Std, m.Defined, m.Folds))
		}
	} else {
		sb.WriteString("Cross-validation not run.\n")
	}
	sb.WriteString("\n")

	// Merchants
	if len(r.Merchants) > 0 {
		sb.WriteString("## Merchant Lifetime Value\n\n")
		sb.WriteString("| Merchant | Customers | Revenue | Avg Ticket | Monthly Freq | Retention | Churn | Avg Gap (days) | Top Customer |\n")
		sb.WriteString("|----------|-----------|---------|------------|--------------|-----------|-------|----------------|--------------|\n")
		for _, m := range r.Merchants {
			top := "-"
			if m.TopCustomerID != "" {
				top = fmt.Sprintf("%s (%.2f)", m.TopCustomerID, m.TopCustomerCLV)
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %.2f | %.2f | %.1f%% | %.1f%% | %.1f | %s |\n",
				m.MerchantID, m.Customers, m.Revenue, m.AvgTicket, m.MonthlyFreq,
				m.RetentionRate*100, m.ChurnRate*100, m.AvgGapDays, top))
		}
		sb.WriteString("\n")
	}

	// Run errors
	if len(r.RunErrors) > 0 {
		sb.WriteString("## Run Errors\n\n")
		for _, e := range r.RunErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	renderReproducibility(&sb, r.Reproducibility)

	if r.DecisionChecklistRef != "" {
		sb.WriteString(fmt.Sprintf("See %s for the publication checklist.\n", r.DecisionChecklistRef))
	}

	return sb.String()
}

func renderDataQuality(sb *strings.Builder, q DataQualitySection) {
	sb.WriteString("## Data Quality\n\n")
	if len(q.SufficiencyChecks) > 0 {
		sb.WriteString("### Sufficiency Checks\n\n")
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range q.SufficiencyChecks {
			status := "FAIL"
			if check.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")

		if q.AllChecksPassed {
			sb.WriteString("**All checks passed.** Proceeding with publication gate.\n\n")
		} else {
			sb.WriteString("**Some checks failed.** Decision: INSUFFICIENT_DATA\n\n")
		}
	} else if len(q.IntegrityErrors) == 0 {
		sb.WriteString("No data quality checks performed.\n\n")
	}

	// Integrity errors (always shown if present, even without sufficiency checks)
	if len(q.IntegrityErrors) > 0 {
		sb.WriteString("### Integrity Errors\n\n")
		for _, err := range q.IntegrityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", err))
		}
		sb.WriteString("\n")
	}
}

func renderReproducibility(sb *strings.Builder, m ReproducibilityMetadata) {
	sb.WriteString("## Reproducibility\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Report Timestamp | %s |\n", m.ReportTimestamp.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("| Generator Version | %s |\n", orDefault(m.GeneratorVersion, "-")))
	sb.WriteString(fmt.Sprintf("| Data Version | %s |\n", orDefault(m.DataVersion, "-")))
	sb.WriteString(fmt.Sprintf("| Model ID | %s |\n", orDefault(m.ModelID, "-")))
	sb.WriteString(fmt.Sprintf("| Seed | %d |\n", m.Seed))
	sb.WriteString(fmt.Sprintf("| Commit | %s |\n", orDefault(m.CommitHash, "unknown")))
	if m.ReplayCommand != "" {
		sb.WriteString(fmt.Sprintf("| Replay | `%s` |\n", m.ReplayCommand))
	}
	sb.WriteString("\n")
}

func qualityName(q QualityRow) string {
	if q.Partition == PartitionFold {
		return fmt.Sprintf("fold %d", q.Fold)
	}
	return q.Partition
}

func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(dateLayout)
}

func formatPeriod(start, end time.Time) string {
	if start.IsZero() {
		return "-"
	}
	return formatDate(start) + " to " + formatDate(end)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
