package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/YusefSaid/Shell-scripting/pkg/engine"
	"github.com/YusefSaid/Shell-scripting/pkg/executor"
)

// BuildInfo is stamped into the binary at build time.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// environment carries the process surroundings of one invocation.
type environment struct {
	stdout io.Writer
	stderr io.Writer
	build  BuildInfo

	// runner replaces the os/exec runner when set.
	runner executor.Runner

	// facts replaces gopsutil host facts when set.
	facts engine.FactsFunc
}

// usageError is a command-line mistake. It is reported with the usage of
// the command that rejected it.
type usageError struct {
	cmd *cobra.Command
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// errReported means the failure has already been written to stderr.
var errReported = errors.New("failure already reported")

// Execute runs the converge CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, build BuildInfo) int {
	return execute(ctx, &environment{stdout: stdout, stderr: stderr, build: build}, args)
}

func execute(ctx context.Context, env *environment, args []string) int {
	rootCmd := newRootCommand(env)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(env.stdout)
	rootCmd.SetErr(env.stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var uerr *usageError
	switch {
	case errors.As(err, &uerr):
		fmt.Fprintf(env.stderr, "Error: %v\n\n%s", uerr.err, uerr.cmd.UsageString())
	case errors.Is(err, errReported):
	default:
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
	}
	return 1
}

func newRootCommand(env *environment) *cobra.Command {
	opts := &convergeOptions{}

	rootCmd := &cobra.Command{
		Use:   "converge",
		Short: "Converge this host to a container-ready state",
		Long: `converge installs and starts the Docker engine, ensures local users and
groups exist with the requested memberships, and merges the daemon MTU and
logging settings into /etc/docker/daemon.json without touching other keys.

Every step checks the host first, so running converge again on a converged
host changes nothing and reports every step as already satisfied.`,
		Example: `  # Create two users in two groups and set the daemon MTU
  converge --users "Ed Kelly" --groups "Crew Officers" --mtu 1442

  # Read the desired state from a file and record the run
  converge --config /etc/converge.yaml --journal /var/lib/converge/journal.db

  # Print the run report as JSON
  converge --users Ed --json`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", env.build.Version, env.build.Commit, env.build.BuildDate),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{cmd: cmd, err: fmt.Errorf("unexpected argument %q", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConverge(cmd, env, opts)
		},
	}

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{cmd: cmd, err: err}
	})

	opts.register(rootCmd)

	rootCmd.AddCommand(newHistoryCommand(env))
	rootCmd.AddCommand(newPoliciesCommand(env))

	return rootCmd
}
