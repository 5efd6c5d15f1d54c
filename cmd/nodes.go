package cmd

import (
	"fmt"
	"strings"

	"github.com/agentic-research/impactree/internal/selector"
	"github.com/spf13/cobra"
)

func newNodesCmd(opts *options) *cobra.Command {
	var (
		scope   selector.Scope
		level   int
		nodes   []string
		long    bool
		samples bool
	)

	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Print per-node results at a hierarchy level or for named nodes",
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
			out := cmd.OutOrStdout()

			// Resolved once so a clamped level is warned about a single time.
			names, err := sel.ValidateNodeSelection(level, nodes)
			if err != nil {
				return err
			}

			if long {
				kind := selector.Magnitude
				if samples {
					kind = selector.Samples
				}
				results, err := sel.CollectSubtreeResults(names, kind)
				if err != nil {
					return err
				}
				for _, r := range results {
					line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s", r.Scenario, r.Node, r.Method, formatFloat(r.Magnitude), r.Unit)
					if samples {
						parts := make([]string, len(r.Samples))
						for i, s := range r.Samples {
							parts[i] = formatFloat(s)
						}
						line += "\t" + strings.Join(parts, ",")
					}
					if _, err := fmt.Fprintln(out, line); err != nil {
						return err
					}
				}
				return nil
			}

			for _, scenario := range sel.Scenarios() {
				t, err := sel.NodeTable(scenario, level, names)
				if err != nil {
					return err
				}
				if err := renderTable(out, scenario, t, sel.Labels(true)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&scope.Scenarios, "scenario", nil, "Restrict to these scenarios (default all)")
	f.StringSliceVar(&scope.Methods, "method", nil, "Restrict to these methods (default all)")
	f.IntVarP(&level, "level", "l", 1, "Hierarchy level to report when no nodes are named")
	f.StringSliceVarP(&nodes, "node", "n", nil, "Report these nodes instead of a level")
	f.BoolVar(&long, "long", false, "Print one tab-separated line per scenario, node and method")
	f.BoolVar(&samples, "samples", false, "Include sample distributions (with --long)")
	return cmd
}
