// Package executor runs external system commands on the local host.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when the requested binary does not exist on the host.
var ErrNotFound = errors.New("command not found")

// Result is the captured outcome of one command invocation.
type Result struct {
	Command  string        `json:"command"`
	Args     []string      `json:"args,omitempty"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// CommandLine renders the invocation for diagnostics.
func (r *Result) CommandLine() string {
	return strings.TrimSpace(r.Command + " " + strings.Join(r.Args, " "))
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Result *Result
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Result.CommandLine(), e.Result.ExitCode)
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Runner executes commands. Implementations must return an error wrapping
// ErrNotFound when the binary is absent and an *ExitError when it ran and
// failed, so callers can tell the two apart.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
	LookPath(name string) (string, error)
}

// Local runs commands through os/exec.
type Local struct {
	logger zerolog.Logger
	env    []string
}

// NewLocal creates a Local runner. Extra environment entries (KEY=VALUE) are
// appended to the inherited environment of every command.
func NewLocal(logger zerolog.Logger, env ...string) *Local {
	return &Local{
		logger: logger.With().Str("component", "executor").Logger(),
		env:    env,
	}
}

// LookPath resolves name in PATH.
func (l *Local) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return path, nil
}

// Run executes name with args, capturing stdout and stderr.
func (l *Local) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	if name == "" {
		return nil, fmt.Errorf("command is required")
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if len(l.env) > 0 {
		cmd.Env = append(cmd.Environ(), l.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := &Result{
		Command:  name,
		Args:     args,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
			l.logger.Debug().
				Str("command", result.CommandLine()).
				Int("exit_code", result.ExitCode).
				Dur("duration", result.Duration).
				Msg("Command failed")
			return result, &ExitError{Result: result}
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
			l.logger.Debug().Str("command", name).Msg("Command not found")
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		default:
			return nil, fmt.Errorf("failed to execute %s: %w", name, err)
		}
	}

	l.logger.Debug().
		Str("command", result.CommandLine()).
		Dur("duration", result.Duration).
		Msg("Command completed")

	return result, nil
}

// IsNotFound reports whether err indicates a missing binary.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsExitError reports whether err is a non-zero exit.
func IsExitError(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}
