package cmd

import (
	"fmt"

	"github.com/agentic-research/impactree/internal/config"
	"github.com/agentic-research/impactree/internal/linter"
	"github.com/agentic-research/impactree/internal/runner"
	"github.com/agentic-research/impactree/internal/units"
	"github.com/spf13/cobra"
)

func newCheckCmd(opts *options) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate an experiment without evaluating it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := config.Load(opts.experimentPath)
			if err != nil {
				return err
			}
			// Building the template surfaces duplicate names and unknown aggregators.
			r := runner.FromExperiment(exp, nil, nil)
			if _, err := r.Template(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			diags := linter.Lint(exp, units.Default())
			for _, d := range diags {
				if _, err := fmt.Fprintln(out, d); err != nil {
					return err
				}
			}
			if strict && len(diags) > 0 {
				return fmt.Errorf("%d problems found", len(diags))
			}
			if len(diags) == 0 {
				_, err = fmt.Fprintln(out, "ok")
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any problem is reported")
	return cmd
}
