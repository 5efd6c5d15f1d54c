package cmd

import (
	"fmt"

	"github.com/agentic-research/impactree/internal/export"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newExportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export <db-path>",
		Short: "Write every scenario's full tree of results to a SQLite database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			_, rs, err := opts.evaluate(cmd.Context(), cmd)
			if err != nil {
				return err
			}

			w, err := export.NewSQLiteWriter(args[0])
			if err != nil {
				return err
			}
			defer func() {
				if cerr := w.Close(); err == nil {
					err = cerr
				}
			}()

			if err := w.WriteAll(rs.All()); err != nil {
				return err
			}
			opts.logger.Info("exported results", zap.String("path", args[0]), zap.Int("scenarios", rs.Len()))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d scenarios to %s\n", rs.Len(), args[0])
			return err
		},
	}
}
