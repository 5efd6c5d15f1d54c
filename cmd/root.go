package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/agentic-research/impactree/api"
	"github.com/agentic-research/impactree/internal/adapter"
	"github.com/agentic-research/impactree/internal/config"
	"github.com/agentic-research/impactree/internal/logging"
	"github.com/agentic-research/impactree/internal/runner"
	"github.com/agentic-research/impactree/internal/units"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNoResults = errors.New("experiment has no results document")

// options holds the flags shared by every subcommand.
type options struct {
	experimentPath string
	logLevel       string
	logger         *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "impactree",
		Short:         "Hierarchical impact aggregation over scenarios and assessment methods",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.experimentPath == "" {
				return fmt.Errorf("--experiment is required")
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.experimentPath, "experiment", "e", "", "Path to experiment file (.json, .yaml, .hcl)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(newTableCmd(opts), newNodesCmd(opts), newExportCmd(opts), newCheckCmd(opts))
	return root
}

// evaluate loads the experiment, evaluates every scenario and returns the
// aggregated trees.
func (o *options) evaluate(ctx context.Context, cmd *cobra.Command) (*api.Experiment, *runner.ResultSet, error) {
	exp, err := config.Load(o.experimentPath)
	if err != nil {
		return nil, nil, err
	}

	level := exp.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	o.logger = logging.New(level, cmd.ErrOrStderr())

	if exp.Results == "" {
		return nil, nil, errNoResults
	}
	registry := units.Default()
	a, err := adapter.LoadJSONPathAdapter(exp.Results, registry)
	if err != nil {
		return nil, nil, err
	}

	r := runner.FromExperiment(exp, a, o.logger)
	r.Units = registry
	rs, err := r.Run(ctx, exp.Scenarios)
	if err != nil {
		return nil, nil, err
	}
	return exp, rs, nil
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
