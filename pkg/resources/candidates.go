package resources

import (
	"context"
	"strings"

	"github.com/YusefSaid/Shell-scripting/pkg/executor"
)

// candidate is one concrete command that may achieve a goal.
type candidate struct {
	name string
	args []string
}

func cmd(name string, args ...string) candidate {
	return candidate{name: name, args: args}
}

func (c candidate) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// runCandidates tries each candidate in order and stops at the first
// success. It returns every failed attempt when none succeeds. Only context
// cancellation stops the sequence early.
func runCandidates(ctx context.Context, runner executor.Runner, candidates []candidate) ([]Attempt, bool, error) {
	var attempts []Attempt
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return attempts, false, err
		}
		_, err := runner.Run(ctx, c.name, c.args...)
		switch {
		case err == nil:
			return attempts, true, nil
		case executor.IsNotFound(err):
			attempts = append(attempts, Attempt{Command: c.String(), Cause: CauseUnavailable})
		case executor.IsExitError(err):
			attempts = append(attempts, Attempt{Command: c.String(), Cause: CauseFailed, Detail: exitDetail(err)})
		case ctx.Err() != nil:
			return attempts, false, ctx.Err()
		default:
			attempts = append(attempts, Attempt{Command: c.String(), Cause: CauseError, Detail: err.Error()})
		}
	}
	return attempts, false, nil
}

// exitDetail extracts a short diagnostic from an exit error.
func exitDetail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "exited with "); i >= 0 {
		return msg[i:]
	}
	return msg
}
