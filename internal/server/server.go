// Package server runs scheduled refits and serves predictions and merchant
// queries over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"customer-segment-lab/internal/clv"
	"customer-segment-lab/internal/decision"
	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/observability"
	"customer-segment-lab/internal/pipeline"
	"customer-segment-lab/internal/prediction"
)

// ErrRefitRunning is returned when a refit is requested while one is in progress.
var ErrRefitRunning = errors.New("refit already running")

// Refitter runs one full segmentation pass. *pipeline.ReportPipeline implements it.
type Refitter interface {
	Run(ctx context.Context) (*pipeline.Outcome, error)
}

// Server holds the published snapshot and the components that answer queries.
type Server struct {
	refitter      Refitter
	registry      *prediction.Registry
	predictor     *prediction.Predictor
	clv           *clv.Service
	refitInterval time.Duration
	log           *logrus.Entry
	clock         func() time.Time

	// State
	mu           sync.Mutex
	started      time.Time
	refitRunning bool
	lastRefit    time.Time
	lastDecision decision.Decision
	lastError    string
	refits       int
	published    int
}

// Options contains configuration for creating a Server.
type Options struct {
	Refitter      Refitter
	Registry      *prediction.Registry // defaults to an empty registry
	Predictor     *prediction.Predictor
	CLV           *clv.Service
	RefitInterval time.Duration // defaults to one hour
	Logger        *logrus.Entry
	Clock         func() time.Time
}

// New creates a new Server.
func New(opts Options) *Server {
	s := &Server{
		refitter:      opts.Refitter,
		registry:      opts.Registry,
		predictor:     opts.Predictor,
		clv:           opts.CLV,
		refitInterval: opts.RefitInterval,
		log:           opts.Logger,
		clock:         opts.Clock,
	}
	if s.registry == nil {
		s.registry = prediction.NewRegistry()
	}
	if s.predictor == nil {
		s.predictor = prediction.NewPredictor(prediction.DefaultConfig())
	}
	if s.refitInterval <= 0 {
		s.refitInterval = time.Hour
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.log = s.log.WithField("component", "server")
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}
	s.started = s.clock()
	return s
}

// Registry returns the snapshot registry queries read from.
func (s *Server) Registry() *prediction.Registry {
	return s.registry
}

// RunScheduler refits immediately and then on every interval until ctx is done.
func (s *Server) RunScheduler(ctx context.Context) error {
	s.log.WithField("interval", s.refitInterval.String()).Info("starting refit scheduler")

	s.refitLogged(ctx)

	ticker := time.NewTicker(s.refitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.refitLogged(ctx)
		}
	}
}

func (s *Server) refitLogged(ctx context.Context) {
	if _, err := s.Refit(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.WithError(err).Error("refit failed")
	}
}

// Refit runs the pipeline and publishes its snapshot when the gate passes.
// A held or insufficient result leaves the current snapshot in place.
func (s *Server) Refit(ctx context.Context) (*pipeline.Outcome, error) {
	s.mu.Lock()
	if s.refitRunning {
		s.mu.Unlock()
		return nil, ErrRefitRunning
	}
	s.refitRunning = true
	s.mu.Unlock()

	start := time.Now()
	outcome, err := s.refitter.Run(ctx)
	published := err == nil && outcome.Decision == decision.DecisionPublish &&
		outcome.Run != nil && outcome.Run.Snapshot != nil
	if published {
		s.registry.Publish(outcome.Run.Snapshot)
	}

	s.mu.Lock()
	s.refitRunning = false
	s.lastRefit = s.clock()
	s.refits++
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastDecision = outcome.Decision
	}
	if published {
		s.published++
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	entry := s.log.WithFields(logrus.Fields{
		"decision": outcome.Decision,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	})
	if model := outcome.Run.Model(); model != nil {
		entry = entry.WithFields(logrus.Fields{"model_id": model.ModelID, "k": model.K})
	}
	if published {
		entry.Info("snapshot published")
	} else {
		entry.Warn("snapshot not published")
	}
	return outcome, nil
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", observability.Handler())

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /customers/{id}/prediction", s.handlePrediction)
	mux.HandleFunc("GET /merchants/{id}/insights", s.handleInsights)
	mux.HandleFunc("GET /merchants/{id}/prospects", s.handleProspects)

	return mux
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status       string    `json:"status"`
	Uptime       string    `json:"uptime"`
	ModelID      string    `json:"model_id,omitempty"`
	K            int       `json:"k,omitempty"`
	Customers    int       `json:"customers"`
	LastRefit    time.Time `json:"last_refit,omitempty"`
	LastDecision string    `json:"last_decision,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	Refits       int       `json:"refits"`
	Published    int       `json:"published"`
	RefitRunning bool      `json:"refit_running"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:       "waiting_for_model",
		Uptime:       s.clock().Sub(s.started).String(),
		LastRefit:    s.lastRefit,
		LastDecision: string(s.lastDecision),
		LastError:    s.lastError,
		Refits:       s.refits,
		Published:    s.published,
		RefitRunning: s.refitRunning,
	}
	s.mu.Unlock()

	if snap := s.registry.Current(); snap != nil {
		resp.Status = "serving"
		resp.ModelID = snap.Model.ModelID
		resp.K = snap.Model.K
		resp.Customers = snap.CustomerCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	result, err := s.predictor.Predict(s.registry.Current(), r.PathValue("id"))
	switch {
	case err == nil:
		observability.RecordPrediction("ok")
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, domain.ErrModelNotFitted):
		observability.RecordPrediction("not_fitted")
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, domain.ErrNotFound):
		observability.RecordPrediction("not_found")
		writeError(w, http.StatusNotFound, err)
	default:
		observability.RecordPrediction("error")
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	observability.RecordCLVQuery("insights")
	insights, err := s.clv.Insights(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (s *Server) handleProspects(w http.ResponseWriter, r *http.Request) {
	observability.RecordCLVQuery("prospects")
	prospects, err := s.clv.Prospects(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if prospects == nil {
		prospects = []domain.ProspectRecord{}
	}
	writeJSON(w, http.StatusOK, prospects)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
