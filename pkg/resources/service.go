package resources

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/YusefSaid/Shell-scripting/pkg/executor"
	"github.com/YusefSaid/Shell-scripting/pkg/platform"
)

// ServiceController exposes the two service actions the engine needs.
type ServiceController interface {
	// EnableAndStart makes the service start at boot and run now.
	EnableAndStart(ctx context.Context, name string) (Outcome, error)

	// Restart restarts the service unconditionally.
	Restart(ctx context.Context, name string) error
}

// NewServiceController returns the controller for the profile's init system.
func NewServiceController(init platform.InitSystem, runner executor.Runner, logger zerolog.Logger) (ServiceController, error) {
	switch init {
	case platform.InitSystemd:
		return &systemdController{runner: runner, logger: logger}, nil
	case platform.InitOpenRC:
		return &openrcController{runner: runner, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported init system: %s", init)
	}
}

type systemdController struct {
	runner executor.Runner
	logger zerolog.Logger
}

func (s *systemdController) status(ctx context.Context, name string) (active, enabled bool) {
	if res, err := s.runner.Run(ctx, "systemctl", "is-active", name); err == nil {
		active = strings.TrimSpace(res.Stdout) == "active"
	}
	if res, err := s.runner.Run(ctx, "systemctl", "is-enabled", name); err == nil {
		enabled = strings.TrimSpace(res.Stdout) == "enabled"
	}
	return active, enabled
}

func (s *systemdController) EnableAndStart(ctx context.Context, name string) (Outcome, error) {
	active, enabled := s.status(ctx, name)
	if active && enabled {
		return AlreadySatisfied, nil
	}

	s.logger.Info().Str("service", name).Bool("active", active).Bool("enabled", enabled).Msg("Enabling and starting service")
	if _, err := s.runner.Run(ctx, "systemctl", "enable", "--now", name); err != nil {
		return "", fmt.Errorf("failed to enable service: %w", err)
	}
	return Applied, nil
}

func (s *systemdController) Restart(ctx context.Context, name string) error {
	if _, err := s.runner.Run(ctx, "systemctl", "restart", name); err != nil {
		return fmt.Errorf("failed to restart service: %w", err)
	}
	return nil
}

type openrcController struct {
	runner executor.Runner
	logger zerolog.Logger
}

// enabled parses "rc-update show default", whose lines look like
// " docker | default".
func (o *openrcController) enabled(ctx context.Context, name string) bool {
	res, err := o.runner.Run(ctx, "rc-update", "show", "default")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		service, _, _ := strings.Cut(line, "|")
		if strings.TrimSpace(service) == name {
			return true
		}
	}
	return false
}

func (o *openrcController) running(ctx context.Context, name string) bool {
	_, err := o.runner.Run(ctx, "rc-service", name, "status")
	return err == nil
}

func (o *openrcController) EnableAndStart(ctx context.Context, name string) (Outcome, error) {
	enabled := o.enabled(ctx, name)
	running := o.running(ctx, name)
	if enabled && running {
		return AlreadySatisfied, nil
	}

	if !enabled {
		o.logger.Info().Str("service", name).Msg("Adding service to default runlevel")
		if _, err := o.runner.Run(ctx, "rc-update", "add", name, "default"); err != nil {
			return "", fmt.Errorf("failed to enable service: %w", err)
		}
	}
	if !running {
		o.logger.Info().Str("service", name).Msg("Starting service")
		if _, err := o.runner.Run(ctx, "rc-service", name, "start"); err != nil {
			return "", fmt.Errorf("failed to start service: %w", err)
		}
	}
	return Applied, nil
}

func (o *openrcController) Restart(ctx context.Context, name string) error {
	if _, err := o.runner.Run(ctx, "rc-service", name, "restart"); err != nil {
		return fmt.Errorf("failed to restart service: %w", err)
	}
	return nil
}
