package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/YusefSaid/Shell-scripting/pkg/policy"
)

func newPoliciesCommand(env *environment) *cobra.Command {
	var (
		paths      []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "policies",
		Short: "List admission policies",
		Long: `List the built-in admission policies and any loaded with --policy.

Policies are evaluated against the desired state before convergence. A
violation with error severity refuses the run.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{cmd: cmd, err: fmt.Errorf("unexpected argument %q", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			pe, err := policy.NewEngine(zerolog.Nop())
			if err != nil {
				return err
			}
			if len(paths) > 0 {
				if err := pe.LoadPolicies(cmd.Context(), paths); err != nil {
					return err
				}
			}

			policies := pe.ListPolicies()
			if jsonOutput {
				for i := range policies {
					policies[i].Rego = ""
				}
				return writeJSON(env.stdout, policies)
			}

			t := newTable("NAME", "SEVERITY", "TAGS", "DESCRIPTION")
			for _, p := range policies {
				t.Row(p.Name, string(p.Severity), strings.Join(p.Tags, ","), p.Description)
			}
			_, err = fmt.Fprintln(env.stdout, t.String())
			return err
		},
	}

	cmd.Flags().StringSliceVar(&paths, "policy", nil, "extra .rego or .json policy file or directory (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}
