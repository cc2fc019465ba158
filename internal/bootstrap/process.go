package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"customer-segment-lab/internal/config"
	"customer-segment-lab/internal/logging"
)

// Process holds the settings and logger every binary starts from.
type Process struct {
	Config *config.Config
	Tuning config.Tuning
	Logger *logrus.Logger
}

// Load reads the environment and tuning file and builds the logger.
// tuningFile overrides the configured tuning path when non-empty.
func Load(tuningFile string) (*Process, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, err
	}
	if tuningFile == "" {
		tuningFile = cfg.TuningFile
	}
	tuning, err := config.LoadTuning(tuningFile)
	if err != nil {
		return nil, err
	}
	return &Process{Config: cfg, Tuning: tuning, Logger: log}, nil
}

// Fatal logs err and exits with status 1.
func Fatal(log logrus.FieldLogger, msg string, err error) {
	log.WithError(err).Error(msg)
	os.Exit(1)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. A second
// signal, or a shutdown that outlasts grace, exits the process. The returned
// stop function must be called once the work has finished.
func SignalContext(parent context.Context, log logrus.FieldLogger, grace time.Duration) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Info("shutting down")
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Error("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(grace):
			log.WithField("grace", grace.String()).Error("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	stop := func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
	return ctx, stop
}

// Usage prints msg to stderr and exits with status 2.
func Usage(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
