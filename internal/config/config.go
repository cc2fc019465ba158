// Package config loads process settings from the environment and engine
// tuning from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"customer-segment-lab/internal/clv"
	"customer-segment-lab/internal/decision"
	"customer-segment-lab/internal/normalization"
	"customer-segment-lab/internal/pipeline"
	"customer-segment-lab/internal/prediction"
	"customer-segment-lab/internal/segmentation"
)

// DefaultEnvFile is loaded when present.
const DefaultEnvFile = ".env"

// Config holds process-level settings. Flags in cmd/ use these as defaults.
type Config struct {
	PostgresDSN   string        `env:"POSTGRES_DSN"`
	ClickHouseDSN string        `env:"CLICKHOUSE_DSN"`
	UseMemory     bool          `env:"USE_MEMORY" envDefault:"false"`
	CorpusDir     string        `env:"SEGMENT_CORPUS_DIR" envDefault:"data/customers"`
	OutputDir     string        `env:"SEGMENT_OUTPUT_DIR" envDefault:"output"`
	TuningFile    string        `env:"SEGMENT_TUNING_FILE"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:"text"`
	HTTPAddr      string        `env:"HTTP_ADDR" envDefault:":9090"`
	RefitInterval time.Duration `env:"REFIT_INTERVAL" envDefault:"1h"`
	IngestWorkers int           `env:"INGEST_WORKERS" envDefault:"4"`
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"5s"`
}

// Load reads env files (missing files are skipped) and parses the environment.
// Variables already set in the environment win over file values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validation controls the train/test split and cross-validation.
type Validation struct {
	TestFraction float64 `yaml:"test_fraction"`
	Folds        int     `yaml:"folds"`
	Seed         uint64  `yaml:"seed"`
}

// Tuning holds engine parameters. Every field has a default; a tuning file
// overrides only the keys it names.
type Tuning struct {
	Segmentation  segmentation.Config          `yaml:"segmentation"`
	Prediction    prediction.Config            `yaml:"prediction"`
	CLV           clv.Config                   `yaml:"clv"`
	Validation    Validation                   `yaml:"validation"`
	Sufficiency   pipeline.Thresholds          `yaml:"sufficiency"`
	Gate          decision.Thresholds          `yaml:"gate"`
	CategoryRules []normalization.CategoryRule `yaml:"category_rules"`
}

// DefaultTuning returns the built-in engine parameters.
func DefaultTuning() Tuning {
	return Tuning{
		Segmentation: segmentation.DefaultConfig(),
		Prediction:   prediction.DefaultConfig(),
		CLV:          clv.DefaultConfig(),
		Validation: Validation{
			TestFraction: 0.2,
			Folds:        5,
			Seed:         42,
		},
		Sufficiency:   pipeline.DefaultThresholds(),
		Gate:          decision.DefaultThresholds(),
		CategoryRules: normalization.DefaultRules(),
	}
}

// LoadTuning returns the defaults overlaid with the YAML file at path.
// An empty path returns the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("load tuning %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning %q: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("invalid tuning %q: %w", path, err)
	}
	return t, nil
}

// Validate checks parameter ranges.
func (t Tuning) Validate() error {
	var errs []error

	km := t.Segmentation.KMeans
	if km.NInit < 1 {
		errs = append(errs, fmt.Errorf("segmentation.kmeans.n_init must be >= 1, got %d", km.NInit))
	}
	if km.MaxIter < 1 {
		errs = append(errs, fmt.Errorf("segmentation.kmeans.max_iter must be >= 1, got %d", km.MaxIter))
	}
	if km.Tol < 0 {
		errs = append(errs, fmt.Errorf("segmentation.kmeans.tol must be >= 0, got %g", km.Tol))
	}
	if t.Segmentation.FixedK < 0 {
		errs = append(errs, fmt.Errorf("segmentation.fixed_k must be >= 0, got %d", t.Segmentation.FixedK))
	}

	sel := t.Segmentation.Selection
	w := sel.Weights
	if w.Silhouette < 0 || w.CalinskiHarabasz < 0 || w.DaviesBouldin < 0 || w.Inertia < 0 {
		errs = append(errs, errors.New("segmentation.selection.weights must be non-negative"))
	}
	if sel.SmallCap < 2 || sel.LargeCap < 2 {
		errs = append(errs, fmt.Errorf("segmentation.selection caps must be >= 2, got %d/%d", sel.SmallCap, sel.LargeCap))
	}

	v := t.Validation
	if v.TestFraction <= 0 || v.TestFraction >= 1 {
		errs = append(errs, fmt.Errorf("validation.test_fraction must be in (0, 1), got %g", v.TestFraction))
	}
	if v.Folds < 2 {
		errs = append(errs, fmt.Errorf("validation.folds must be >= 2, got %d", v.Folds))
	}

	cw := t.CLV.Weights
	if cw.Spend < 0 || cw.Count < 0 || cw.Tenure < 0 {
		errs = append(errs, errors.New("clv.weights must be non-negative"))
	}
	if t.CLV.DaysPerMonth <= 0 {
		errs = append(errs, fmt.Errorf("clv.days_per_month must be > 0, got %g", t.CLV.DaysPerMonth))
	}

	p := t.Prediction
	if p.RecentWindow < 1 {
		errs = append(errs, fmt.Errorf("prediction.recent_window must be >= 1, got %d", p.RecentWindow))
	}
	if p.TopCategories < 1 || p.TopPayments < 1 || p.TopMerchants < 1 {
		errs = append(errs, errors.New("prediction top-N limits must be >= 1"))
	}

	s := t.Sufficiency
	if s.MinCustomers < 0 || s.MinTransactions < 0 || s.MinSpanDays < 0 {
		errs = append(errs, errors.New("sufficiency minimums must be non-negative"))
	}
	if s.MaxDropRate < 0 || s.MaxDropRate > 1 {
		errs = append(errs, fmt.Errorf("sufficiency.max_drop_rate must be in [0, 1], got %g", s.MaxDropRate))
	}

	if err := t.Gate.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("gate: %w", err))
	}

	if _, err := normalization.NewCategoryRules(t.CategoryRules); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Rules compiles the category rule table.
func (t Tuning) Rules() (*normalization.CategoryRules, error) {
	return normalization.NewCategoryRules(t.CategoryRules)
}
