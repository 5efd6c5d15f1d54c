package cmd

import (
	"github.com/agentic-research/impactree/internal/selector"
	"github.com/spf13/cobra"
)

func newTableCmd(opts *options) *cobra.Command {
	var (
		scope        selector.Scope
		normalize    bool
		fullUniverse bool
		baseline     []float64
		noUnits      bool
	)

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Print the scenario × method table of root results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rs, err := opts.evaluate(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			sel, err := selector.New(rs, rs.Methods(), scope, selector.WithLogger(opts.logger))
			if err != nil {
				return err
			}

			var t *selector.Table
			switch {
			case len(baseline) > 0:
				t, err = sel.CompareToBaseline(baseline)
			case normalize:
				t, err = sel.NormalizedTable(fullUniverse)
			default:
				t, err = sel.BaseTable()
			}
			if err != nil {
				return err
			}
			// Normalized and baseline-relative values are unitless.
			withUnits := !noUnits && !normalize && len(baseline) == 0
			return renderTable(cmd.OutOrStdout(), "scenario", t, sel.Labels(withUnits))
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&scope.Scenarios, "scenario", nil, "Restrict to these scenarios (default all)")
	f.StringSliceVar(&scope.Methods, "method", nil, "Restrict to these methods (default all)")
	f.BoolVar(&normalize, "normalize", false, "Min-max normalize each method column")
	f.BoolVar(&fullUniverse, "full-universe", false, "Normalize against every scenario instead of the selected ones")
	f.Float64SliceVar(&baseline, "baseline", nil, "Divide each method column by these values, one per selected method")
	f.BoolVar(&noUnits, "no-units", false, "Omit units from column headers")
	cmd.MarkFlagsMutuallyExclusive("normalize", "baseline")
	return cmd
}
