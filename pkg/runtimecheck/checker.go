// Package runtimecheck confirms that a restarted container runtime answers
// on its API and runs with the expected logging driver.
package runtimecheck

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/system"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds how long Verify waits for the daemon to answer.
const DefaultTimeout = 30 * time.Second

// API is the subset of the Docker client used for verification.
type API interface {
	Ping(ctx context.Context) (types.Ping, error)
	Info(ctx context.Context) (system.Info, error)
	Close() error
}

// Checker verifies a running daemon.
type Checker struct {
	api      API
	timeout  time.Duration
	interval time.Duration
	logger   zerolog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout sets the readiness timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithInterval sets the delay between readiness probes.
func WithInterval(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.interval = d
		}
	}
}

// New creates a Checker over api.
func New(api API, logger zerolog.Logger, opts ...Option) *Checker {
	c := &Checker{
		api:      api,
		timeout:  DefaultTimeout,
		interval: time.Second,
		logger:   logger.With().Str("component", "runtimecheck").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromEnv connects using DOCKER_HOST and related environment variables,
// falling back to the local socket.
func NewFromEnv(logger zerolog.Logger, opts ...Option) (*Checker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return New(cli, logger, opts...), nil
}

// Close releases the API connection.
func (c *Checker) Close() error {
	return c.api.Close()
}

// WaitReady polls Ping until the daemon answers or the timeout elapses.
func (c *Checker) WaitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; ; attempt++ {
		_, err := c.api.Ping(ctx)
		if err == nil {
			c.logger.Debug().Int("attempts", attempt).Msg("Daemon reachable")
			return nil
		}
		lastErr = err
		c.logger.Debug().Err(err).Int("attempt", attempt).Msg("Waiting for daemon")

		select {
		case <-ctx.Done():
			return fmt.Errorf("daemon not reachable after %s: %w", c.timeout, lastErr)
		case <-time.After(c.interval):
		}
	}
}

// Verify waits for the daemon and compares its logging driver with
// wantLogDriver.
func (c *Checker) Verify(ctx context.Context, wantLogDriver string) (string, error) {
	if err := c.WaitReady(ctx); err != nil {
		return "", err
	}

	info, err := c.api.Info(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read daemon info: %w", err)
	}
	if wantLogDriver != "" && info.LoggingDriver != wantLogDriver {
		return "", fmt.Errorf("daemon logging driver is %q, want %q", info.LoggingDriver, wantLogDriver)
	}

	c.logger.Info().
		Str("server_version", info.ServerVersion).
		Str("logging_driver", info.LoggingDriver).
		Msg("Runtime verified")
	return fmt.Sprintf("server %s, logging driver %s", info.ServerVersion, info.LoggingDriver), nil
}
