package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/YusefSaid/Shell-scripting/pkg/stores"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

func newHistoryCommand(env *environment) *cobra.Command {
	var (
		journalPath string
		limit       int
		state       string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recorded runs",
		Long: `List runs recorded with --journal, newest first. With a run ID, show
every step result of that run.`,
		Example: `  # Last 20 runs
  converge history --journal /var/lib/converge/journal.db

  # Aborted runs only
  converge history --state ABORTED

  # One run in detail
  converge history 0b9d6f0e-6a43-4a55-9a0c-7c2d8d0f8b1e`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return &usageError{cmd: cmd, err: fmt.Errorf("expected at most one run ID, got %d", len(args))}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := stores.Open(ctx, journalPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				run, err := store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(env.stdout, run)
				}
				return renderRun(env.stdout, run)
			}

			runs, err := store.ListRuns(ctx, stores.ListOptions{Limit: limit, State: strings.ToUpper(state)})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(env.stdout, runs)
			}
			return renderRuns(env.stdout, runs)
		},
	}

	cmd.Flags().StringVar(&journalPath, "journal", stores.DefaultPath, "SQLite journal to read")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().StringVar(&state, "state", "", "only list runs in this state (DONE or ABORTED)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func renderRuns(w io.Writer, runs []*stores.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}

	t := newTable("RUN", "STARTED", "HOST", "PROFILE", "STATE", "APPLIED", "SATISFIED", "FAILED")
	for _, r := range runs {
		t.Row(
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Hostname,
			r.Profile,
			r.State,
			strconv.Itoa(r.Applied),
			strconv.Itoa(r.AlreadySatisfied),
			strconv.Itoa(r.Failed),
		)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func renderRun(w io.Writer, run *stores.Run) error {
	fmt.Fprintf(w, "run %s on %s (%s): %s in %s\n", run.ID, run.Hostname, run.Profile, run.State, run.Duration())
	fmt.Fprintf(w, "users: %s\ngroups: %s\nmtu: %d\n", strings.Join(run.Users, " "), strings.Join(run.Groups, " "), run.MTU)
	if run.AbortReason != "" {
		fmt.Fprintf(w, "aborted: %s\n", run.AbortReason)
	}

	t := newTable("#", "STEP", "RESOURCE", "STATUS", "DETAIL")
	for _, s := range run.Steps {
		status := s.Status
		if s.ErrorCode != "" {
			status += " (" + s.ErrorCode + ")"
		}
		t.Row(strconv.Itoa(s.Seq), s.Step, s.Resource, status, s.Detail)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
