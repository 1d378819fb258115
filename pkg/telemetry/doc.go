// Package telemetry provides the logging, tracing and metrics used by the
// converge command.
//
// # Logging
//
// Logging uses zerolog. The CLI sets the level to debug when --verbose is
// given and to warn otherwise, so a quiet run only reports non-fatal
// resource failures and the cause of an abort:
//
//	logger, err := telemetry.NewLogger(telemetry.LoggingConfig{
//	    Level:  "debug",
//	    Format: "console",
//	    Output: "stderr",
//	})
//	log := logger.NewComponentLogger("engine").Zerolog()
//	log.Info().Str("step", "INSTALL_RUNTIME").Msg("Step completed")
//
// # Tracing
//
// Each run produces one converge.run span with a child span per step. The
// exporter is chosen with --trace-exporter (none, stdout, otlp).
//
// # Metrics
//
// Runs are counted in a private Prometheus registry:
//
//   - converge_steps_total{step,status}
//   - converge_runs_total{state}
//   - converge_run_duration_seconds
//   - converge_errors_total{class,code}
//
// A one-shot command has nothing to scrape, so the registry is written to a
// node-exporter textfile (--metrics-textfile) when the run ends.
package telemetry
