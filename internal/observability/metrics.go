// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	RecordsNormalized prometheus.Counter
	RecordsDropped    *prometheus.CounterVec
	RecordWarnings    *prometheus.CounterVec
	FilesIngested     *prometheus.CounterVec

	// Segmentation metrics
	FitsTotal          *prometheus.CounterVec
	FitDuration        prometheus.Histogram
	SelectedK          prometheus.Gauge
	CustomersClustered prometheus.Gauge
	SilhouetteScore    prometheus.Gauge
	FoldsEvaluated     prometheus.Counter

	// Query metrics
	PredictionsTotal *prometheus.CounterVec
	CLVQueriesTotal  *prometheus.CounterVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	ReportsGenerated  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastSuccessfulFit       prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers the metrics with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "customer_segment_lab"
	}
	f := promauto.With(reg)

	return &Metrics{
		// Ingestion metrics
		RecordsNormalized: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_normalized_total",
			Help:      "Total number of transaction records accepted by normalization",
		}),
		RecordsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_dropped_total",
			Help:      "Total number of transaction records dropped by reason",
		}, []string{"reason"}),
		RecordWarnings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "record_warnings_total",
			Help:      "Total number of kept records with invariant mismatches",
		}, []string{"warning"}),
		FilesIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "files_total",
			Help:      "Total number of corpus files processed by outcome",
		}, []string{"outcome"}),

		// Segmentation metrics
		FitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "segmentation",
			Name:      "fits_total",
			Help:      "Total number of model fits by status",
		}, []string{"status"}),
		FitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "segmentation",
			Name:      "fit_duration_seconds",
			Help:      "Model fit duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		SelectedK: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "segmentation",
			Name:      "selected_k",
			Help:      "Cluster count of the current model",
		}),
		CustomersClustered: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "segmentation",
			Name:      "customers_clustered",
			Help:      "Number of customers in the current model fit",
		}),
		SilhouetteScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "segmentation",
			Name:      "silhouette_score",
			Help:      "Silhouette score of the current model",
		}),
		FoldsEvaluated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "segmentation",
			Name:      "cv_folds_total",
			Help:      "Total number of cross-validation folds evaluated",
		}),

		// Query metrics
		PredictionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "predictions_total",
			Help:      "Total number of next-purchase predictions by outcome",
		}, []string{"outcome"}),
		CLVQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "clv_queries_total",
			Help:      "Total number of merchant CLV queries by kind",
		}, []string{"kind"}),

		// Pipeline metrics
		PipelineRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"phase", "status"}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		ReportsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulIngestion: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
		LastSuccessfulFit: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_fit_timestamp",
			Help:      "Unix timestamp of last successful model fit",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordNormalized records accepted records and drops by reason.
func RecordNormalized(accepted int, dropped map[string]int) {
	DefaultMetrics.RecordsNormalized.Add(float64(accepted))
	for reason, n := range dropped {
		DefaultMetrics.RecordsDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordWarnings records kept records with an invariant mismatch.
func RecordWarnings(warning string, n int) {
	if n > 0 {
		DefaultMetrics.RecordWarnings.WithLabelValues(warning).Add(float64(n))
	}
}

// RecordFileIngested records one corpus file by outcome ("loaded", "skipped", "failed").
func RecordFileIngested(outcome string) {
	DefaultMetrics.FilesIngested.WithLabelValues(outcome).Inc()
}

// RecordFit records a model fit.
func RecordFit(k, customers int, silhouette *float64, durationSeconds float64, err error) {
	if err != nil {
		DefaultMetrics.FitsTotal.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.FitsTotal.WithLabelValues("success").Inc()
	DefaultMetrics.FitDuration.Observe(durationSeconds)
	DefaultMetrics.SelectedK.Set(float64(k))
	DefaultMetrics.CustomersClustered.Set(float64(customers))
	if silhouette != nil {
		DefaultMetrics.SilhouetteScore.Set(*silhouette)
	}
}

// RecordFolds records evaluated cross-validation folds.
func RecordFolds(n int) {
	DefaultMetrics.FoldsEvaluated.Add(float64(n))
}

// RecordPrediction records a prediction by outcome ("ok", "not_found", "not_fitted", "error").
func RecordPrediction(outcome string) {
	DefaultMetrics.PredictionsTotal.WithLabelValues(outcome).Inc()
}

// RecordCLVQuery records a merchant query ("insights", "prospects").
func RecordCLVQuery(kind string) {
	DefaultMetrics.CLVQueriesTotal.WithLabelValues(kind).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPipelineRun records a pipeline run.
func RecordPipelineRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordReport increments the reports generated counter.
func RecordReport() {
	DefaultMetrics.ReportsGenerated.Inc()
}

// MarkIngestion sets the last successful ingestion timestamp.
func MarkIngestion(unix int64) {
	DefaultMetrics.LastSuccessfulIngestion.Set(float64(unix))
}

// MarkFit sets the last successful fit timestamp.
func MarkFit(unix int64) {
	DefaultMetrics.LastSuccessfulFit.Set(float64(unix))
}
