// Package fake provides an in-memory executor.Runner for tests.
package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/YusefSaid/Shell-scripting/pkg/executor"
)

// Handler simulates one binary. A non-zero exit code produces an
// *executor.ExitError; a non-nil error is returned as-is.
type Handler func(args []string) (stdout string, exitCode int, err error)

// Runner dispatches commands to registered handlers. Binaries with no
// handler are reported as missing.
type Runner struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []string
}

// NewRunner creates an empty Runner.
func NewRunner() *Runner {
	return &Runner{handlers: make(map[string]Handler)}
}

// Handle registers fn for the named binary, replacing any earlier handler.
func (r *Runner) Handle(name string, fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Succeed registers a handler that always exits zero with the given output.
func (r *Runner) Succeed(name, stdout string) {
	r.Handle(name, func([]string) (string, int, error) { return stdout, 0, nil })
}

// Fail registers a handler that always exits with code.
func (r *Runner) Fail(name string, code int) {
	r.Handle(name, func([]string) (string, int, error) { return "", code, nil })
}

// Remove unregisters name so that it is reported as missing.
func (r *Runner) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, name)
}

// Calls returns every invocation so far as "name arg1 arg2".
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// Called reports whether an invocation starting with prefix was recorded.
func (r *Runner) Called(prefix string) bool {
	for _, c := range r.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// Reset clears the recorded calls.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// LookPath implements executor.Runner.
func (r *Runner) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; !ok {
		return "", fmt.Errorf("%s: %w", name, executor.ErrNotFound)
	}
	return "/usr/bin/" + name, nil
}

// Run implements executor.Runner.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*executor.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.calls = append(r.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	fn, ok := r.handlers[name]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", name, executor.ErrNotFound)
	}

	stdout, code, err := fn(args)
	if err != nil {
		return nil, err
	}

	result := &executor.Result{Command: name, Args: args, Stdout: stdout, ExitCode: code}
	if code != 0 {
		return result, &executor.ExitError{Result: result}
	}
	return result, nil
}
