// Package pipeline runs a full segmentation pass and writes its report artifacts.
package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"customer-segment-lab/internal/clv"
	"customer-segment-lab/internal/decision"
	"customer-segment-lab/internal/observability"
	"customer-segment-lab/internal/orchestrator"
	"customer-segment-lab/internal/reporting"
	"customer-segment-lab/internal/storage"
)

// GeneratorVersion identifies the report layout.
const GeneratorVersion = "1.0.0"

// Output file names.
const (
	ReportFile          = "SEGMENTATION_REPORT.md"
	DecisionFile        = "DECISION_GATE_REPORT.md"
	ClusterProfilesFile = "cluster_profiles.csv"
	QualityFile         = "quality.csv"
	CVSummaryFile       = "cv_summary.csv"
	SelectionFile       = "selection_trials.csv"
	AssignmentsFile     = "assignments.csv"
	MerchantFile        = "merchant_clv.csv"
)

// Stores groups the persistence used by a pipeline run.
type Stores struct {
	Transactions storage.TransactionStore
	Models       storage.ModelStore
	Assignments  storage.AssignmentStore
	Profiles     storage.ClusterProfileStore
	Quality      storage.QualityReportStore
	Progress     storage.IngestionProgressStore // optional
}

// Outcome is the result of a pipeline run.
type Outcome struct {
	Decision decision.Decision
	Run      *orchestrator.RunResult      // nil when data was insufficient
	Report   *reporting.Report            // nil when data was insufficient
	Gate     *decision.DecisionResult     // nil when data was insufficient
	Quality  reporting.DataQualitySection
	Files    []string                     // written paths
}

// ReportPipeline orchestrates sufficiency checks, a segmentation run, the
// publication gate and report generation.
type ReportPipeline struct {
	stores             Stores
	orchestrator       *orchestrator.Orchestrator
	reportGen          *reporting.Generator
	decisionBuild      *decision.Builder
	decisionEval       *decision.Evaluator
	sufficiencyChecker *SufficiencyChecker
	clvService         *clv.Service
	merchants          []string
	outputDir          string
	clock              func() time.Time
	dataSource         string // "fixtures", "corpus" or "db" for replay command
	postgresDSN        string // for DB mode replay command
	clickhouseDSN      string // for DB mode replay command
	tuningFile         string
}

// NewReportPipeline creates a new pipeline.
func NewReportPipeline(
	stores Stores,
	orch *orchestrator.Orchestrator,
	gate decision.Thresholds,
	outputDir string,
) *ReportPipeline {
	return &ReportPipeline{
		stores:        stores,
		orchestrator:  orch,
		reportGen:     reporting.NewGenerator(stores.Transactions, stores.Models, stores.Assignments, stores.Profiles, stores.Quality),
		decisionBuild: decision.NewBuilder(),
		decisionEval:  decision.NewEvaluator(gate),
		outputDir:     outputDir,
		clock:         func() time.Time { return time.Now().UTC() },
	}
}

// WithSufficiencyChecker adds a sufficiency check that runs before fitting.
func (p *ReportPipeline) WithSufficiencyChecker(thresholds Thresholds) *ReportPipeline {
	p.sufficiencyChecker = NewSufficiencyChecker(p.stores.Transactions, p.stores.Progress, thresholds)
	return p
}

// WithMerchants adds merchant CLV summaries for the given merchants.
func (p *ReportPipeline) WithMerchants(svc *clv.Service, merchants ...string) *ReportPipeline {
	p.clvService = svc
	p.merchants = append(p.merchants, merchants...)
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *ReportPipeline) WithClock(clock func() time.Time) *ReportPipeline {
	p.clock = clock
	p.reportGen = p.reportGen.WithClock(clock)
	return p
}

// WithDataSource sets the data source for reproducibility metadata.
// Use "fixtures" or "corpus". For DB mode, use WithDBSource instead.
func (p *ReportPipeline) WithDataSource(source string) *ReportPipeline {
	p.dataSource = source
	return p
}

// WithDBSource sets the data source to DB mode with actual DSN values for replay command.
func (p *ReportPipeline) WithDBSource(postgresDSN, clickhouseDSN string) *ReportPipeline {
	p.dataSource = "db"
	p.postgresDSN = postgresDSN
	p.clickhouseDSN = clickhouseDSN
	return p
}

// WithTuningFile records the tuning file for the replay command.
func (p *ReportPipeline) WithTuningFile(path string) *ReportPipeline {
	p.tuningFile = path
	return p
}

// Run executes the full pipeline and writes output files:
// - SEGMENTATION_REPORT.md
// - DECISION_GATE_REPORT.md
// - cluster_profiles.csv, quality.csv, cv_summary.csv, selection_trials.csv, assignments.csv
// - merchant_clv.csv (when merchants are configured)
func (p *ReportPipeline) Run(ctx context.Context) (*Outcome, error) {
	start := time.Now()
	outcome, err := p.run(ctx)
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordPipelineRun("report", status, time.Since(start).Seconds())
	return outcome, err
}

func (p *ReportPipeline) run(ctx context.Context) (*Outcome, error) {
	// Ensure output directory exists
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, err
	}
	outcome := &Outcome{}

	// 1. Run sufficiency check FIRST (if configured)
	if p.sufficiencyChecker != nil {
		suffResult, err := p.sufficiencyChecker.Check(ctx)
		if err != nil {
			return nil, err
		}
		outcome.Quality = convertToDataQuality(suffResult)
		if !suffResult.AllPass {
			return p.writeInsufficientData(ctx, outcome)
		}
	}

	// 2. Fit, evaluate, cross-validate and persist
	result, err := p.orchestrator.Run(ctx)
	if err != nil {
		return nil, err
	}
	outcome.Run = result

	// 3. Generate report from persisted artifacts
	report, err := p.reportGen.Generate(ctx, result.RunID, result.Model().ModelID)
	if err != nil {
		return nil, err
	}
	report.DataQuality = outcome.Quality
	report.DataSummary.TrainCustomers = len(result.Split.Train)
	report.DataSummary.TestCustomers = len(result.Split.Test)
	report.Selection = reporting.SelectionRows(result.Fit.Trials, result.Model().K)
	reporting.TagPartitions(report.Assignments, result.Split)
	report.RunErrors = result.Errors

	if p.clvService != nil && len(p.merchants) > 0 {
		report.Merchants, err = reporting.MerchantRows(ctx, p.clvService, p.merchants)
		if err != nil {
			return nil, err
		}
	}

	reporting.PopulateExecutiveSummary(report)
	if err := p.populateReproducibility(ctx, report); err != nil {
		return nil, err
	}
	report.DecisionChecklistRef = DecisionFile
	outcome.Report = report

	// 4. Publication gate
	decisionMD, err := p.evaluateGate(report, outcome)
	if err != nil {
		return nil, err
	}

	// 5. Write artifacts
	files := map[string]string{
		ReportFile:          reporting.RenderMarkdown(report),
		DecisionFile:        decisionMD,
		ClusterProfilesFile: reporting.RenderClusterProfilesCSV(report.Clusters),
		QualityFile:         reporting.RenderQualityCSV(report.Quality),
		CVSummaryFile:       reporting.RenderCVSummaryCSV(report.CrossValidation),
		SelectionFile:       reporting.RenderSelectionCSV(report.Selection),
		AssignmentsFile:     reporting.RenderAssignmentsCSV(report.Assignments),
	}
	if len(report.Merchants) > 0 {
		files[MerchantFile] = reporting.RenderMerchantCSV(report.Merchants)
	}
	if err := p.writeFiles(outcome, files); err != nil {
		return nil, err
	}

	observability.RecordReport()
	return outcome, nil
}

// evaluateGate builds and evaluates the publication decision.
// A report the gate cannot read is held, not failed.
func (p *ReportPipeline) evaluateGate(report *reporting.Report, outcome *Outcome) (string, error) {
	input, err := p.decisionBuild.Build(report)
	if err != nil {
		if errors.Is(err, decision.ErrMissingHoldout) || errors.Is(err, decision.ErrInvalidK) {
			outcome.Decision = decision.DecisionHold
			report.ExecutiveSummary.Decision = string(decision.DecisionHold)
			report.RunErrors = append(report.RunErrors, "publication gate: "+err.Error())
			return fmt.Sprintf("# Model Publication Gate\n\n## Decision: %s\n\n%s\n", decision.DecisionHold, err), nil
		}
		return "", err
	}

	gate, err := p.decisionEval.Evaluate(*input)
	if err != nil {
		return "", err
	}
	outcome.Gate = gate
	outcome.Decision = gate.Decision
	report.ExecutiveSummary.Decision = string(gate.Decision)

	md := "Generated at: " + p.clock().Format("2006-01-02 15:04:05 UTC") + "\n\n" + decision.RenderMarkdown(gate)
	return md, nil
}

// writeInsufficientData writes the data quality report and the gate report
// without fitting.
func (p *ReportPipeline) writeInsufficientData(ctx context.Context, outcome *Outcome) (*Outcome, error) {
	outcome.Decision = decision.DecisionInsufficientData

	summary, err := p.reportGen.SummarizeData(ctx)
	if err != nil {
		return nil, err
	}
	report := &reporting.Report{
		GeneratedAt: p.clock(),
		DataSummary: *summary,
		DataQuality: outcome.Quality,
	}
	reporting.PopulateExecutiveSummary(report)
	report.ExecutiveSummary.Decision = string(decision.DecisionInsufficientData)
	if err := p.populateReproducibility(ctx, report); err != nil {
		return nil, err
	}

	checks := make([]decision.CriterionResult, len(outcome.Quality.SufficiencyChecks))
	for i, c := range outcome.Quality.SufficiencyChecks {
		checks[i] = decision.CriterionResult{Name: c.Name, Threshold: c.Threshold, Actual: c.Actual, Pass: c.Pass}
	}

	decisionMD := decision.RenderInsufficientData(
		p.clock().Format("2006-01-02 15:04:05 UTC"), checks, outcome.Quality.IntegrityErrors)

	files := map[string]string{
		ReportFile:   reporting.RenderMarkdown(report),
		DecisionFile: decisionMD,
	}
	if err := p.writeFiles(outcome, files); err != nil {
		return nil, err
	}
	return outcome, nil
}

// writeFiles writes artifacts in a stable order and records their paths.
func (p *ReportPipeline) writeFiles(outcome *Outcome, files map[string]string) error {
	for _, name := range []string{
		ReportFile, DecisionFile, ClusterProfilesFile, QualityFile,
		CVSummaryFile, SelectionFile, AssignmentsFile, MerchantFile,
	} {
		content, ok := files[name]
		if !ok {
			continue
		}
		path := filepath.Join(p.outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		outcome.Files = append(outcome.Files, path)
	}
	return nil
}

// populateReproducibility fills in reproducibility metadata.
func (p *ReportPipeline) populateReproducibility(ctx context.Context, report *reporting.Report) error {
	version, err := p.computeDataVersion(ctx)
	if err != nil {
		return err
	}
	r := &report.Reproducibility
	r.ReportTimestamp = p.clock()
	r.GeneratorVersion = GeneratorVersion
	r.DataVersion = version
	r.CommitHash = getGitCommitHash()
	r.ReplayCommand = p.buildReplayCommand()
	return nil
}

// buildReplayCommand returns the command to reproduce this report.
func (p *ReportPipeline) buildReplayCommand() string {
	var cmd string
	switch p.dataSource {
	case "db":
		// Use actual DSN flags for reproducibility
		cmd = fmt.Sprintf("go run ./cmd/pipeline --postgres-dsn %q --clickhouse-dsn %q",
			p.postgresDSN, p.clickhouseDSN)
	case "corpus":
		cmd = "go run ./cmd/pipeline --use-memory"
	default:
		cmd = "go run ./cmd/pipeline --use-fixtures"
	}
	if p.tuningFile != "" {
		cmd += fmt.Sprintf(" --tuning %q", p.tuningFile)
	}
	return cmd
}

// computeDataVersion computes a short SHA256 of the stored corpus.
// Transactions are hashed in store order (customer_id, timestamp, id).
func (p *ReportPipeline) computeDataVersion(ctx context.Context) (string, error) {
	txs, err := p.stores.Transactions.GetAll(ctx)
	if err != nil {
		return "", fmt.Errorf("load transactions: %w", err)
	}

	h := sha256.New()
	for _, t := range txs {
		fmt.Fprintf(h, "%s|%s|%s|%.2f\n", t.ID, t.CustomerID, t.Timestamp.UTC().Format(time.RFC3339), t.TotalAmount)
	}
	return hex.EncodeToString(h.Sum(nil))[:12], nil // short hash
}

// getGitCommitHash returns current git commit hash or "unknown" if not in git repo.
func getGitCommitHash() string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "unknown"
	}
	return strings.TrimSpace(out.String())
}

// convertToDataQuality converts SufficiencyResult to reporting.DataQualitySection.
func convertToDataQuality(result *SufficiencyResult) reporting.DataQualitySection {
	checks := make([]reporting.SufficiencyCheckRow, len(result.Checks))
	for i, c := range result.Checks {
		checks[i] = reporting.SufficiencyCheckRow{
			Name:      c.Name,
			Threshold: c.Threshold,
			Actual:    c.Actual,
			Pass:      c.Pass,
		}
	}
	return reporting.DataQualitySection{
		SufficiencyChecks: checks,
		IntegrityErrors:   result.Errors,
		AllChecksPassed:   result.AllPass,
	}
}
