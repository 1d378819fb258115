package telemetry

import (
	"context"
	"errors"
	"io"
)

// Telemetry bundles the logger, tracer and metrics of one invocation.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// NewTelemetry creates all telemetry components from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	return NewTelemetryWithWriter(cfg, nil)
}

// NewTelemetryWithWriter is NewTelemetry with logs that would go to stderr
// written to w instead. A nil w keeps os.Stderr.
func NewTelemetryWithWriter(cfg *Config, w io.Writer) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var logger *Logger
	if w != nil && (cfg.Logging.Output == "" || cfg.Logging.Output == "stderr") {
		logger = NewLoggerWithWriter(cfg.Logging, w)
	} else {
		var err error
		if logger, err = NewLogger(cfg.Logging); err != nil {
			return nil, err
		}
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// WithContext adds the logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	return t.Logger.WithContext(ctx)
}

// Shutdown writes the metrics textfile, flushes spans and closes the log file.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Metrics.WriteTextfile(),
		t.Tracer.Shutdown(ctx),
		t.Logger.Close(),
	)
}
