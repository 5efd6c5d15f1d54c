// Package runner evaluates a hierarchy for a set of scenarios: one cloned
// tree per scenario, leaves filled by an adapter, then aggregated.
package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime"
	"slices"
	"time"

	"github.com/agentic-research/impactree/api"
	"github.com/agentic-research/impactree/internal/adapter"
	"github.com/agentic-research/impactree/internal/impact"
	"github.com/agentic-research/impactree/internal/units"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoScenarios is returned when Run is given nothing to evaluate.
	ErrNoScenarios = errors.New("no scenarios")
	// ErrDuplicateScenario is returned when two scenarios share a name.
	ErrDuplicateScenario = errors.New("duplicate scenario name")
)

// Runner holds everything shared by the scenarios of one experiment.
// Its fields are only read during Run, so one Runner can serve many runs.
type Runner struct {
	Hierarchy     api.Node
	Methods       []api.Method
	Adapter       adapter.Adapter
	IgnoreMissing bool
	Workers       int // concurrent scenarios, 0 = GOMAXPROCS
	Units         *units.Registry
	Aggregators   map[string]impact.ReduceFunc
	Logger        *zap.Logger
}

// FromExperiment returns a Runner configured from exp.
func FromExperiment(exp *api.Experiment, a adapter.Adapter, logger *zap.Logger) *Runner {
	return &Runner{
		Hierarchy:     exp.Hierarchy,
		Methods:       exp.Methods,
		Adapter:       a,
		IgnoreMissing: exp.IgnoreMissing,
		Workers:       exp.Workers,
		Logger:        logger,
	}
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Template builds the tree every scenario is cloned from.
func (r *Runner) Template() (*impact.Tree, error) {
	opts := []impact.Option{
		impact.WithMethods(r.Methods),
		impact.WithLogger(r.logger()),
	}
	if r.Units != nil {
		opts = append(opts, impact.WithUnits(r.Units))
	}
	for kind, fn := range r.Aggregators {
		opts = append(opts, impact.WithAggregator(kind, fn))
	}
	return impact.Build(r.Hierarchy, opts...)
}

// Run evaluates every scenario. Scenarios are independent and run
// concurrently; the first failure cancels the rest.
func (r *Runner) Run(ctx context.Context, scenarios []api.Scenario) (*ResultSet, error) {
	if len(scenarios) == 0 {
		return nil, ErrNoScenarios
	}
	if r.Adapter == nil {
		return nil, errors.New("runner: no adapter configured")
	}
	seen := make(map[string]bool, len(scenarios))
	for _, sc := range scenarios {
		if seen[sc.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateScenario, sc.Name)
		}
		seen[sc.Name] = true
	}

	template, err := r.Template()
	if err != nil {
		return nil, err
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := r.logger()
	start := time.Now()

	trees := make([]*impact.Tree, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sc := range scenarios {
		g.Go(func() error {
			tree := template.CloneFor(sc.Name)
			if err := adapter.Populate(gctx, tree, sc, r.Adapter); err != nil {
				return err
			}
			if err := tree.Aggregate(r.IgnoreMissing); err != nil {
				return err
			}
			trees[i] = tree
			log.Debug("scenario aggregated", zap.String("scenario", sc.Name))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("scenarios evaluated",
		zap.Int("scenarios", len(scenarios)),
		zap.Int("nodes", template.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return NewResultSet(r.Methods, trees...)
}

// ResultSet is the scenario-keyed collection of aggregated trees of one
// experiment. It preserves scenario order.
type ResultSet struct {
	names   []string
	trees   map[string]*impact.Tree
	methods []api.Method
}

// NewResultSet groups trees by their scenario name.
func NewResultSet(methods []api.Method, trees ...*impact.Tree) (*ResultSet, error) {
	rs := &ResultSet{
		trees:   make(map[string]*impact.Tree, len(trees)),
		methods: slices.Clone(methods),
	}
	for _, t := range trees {
		name := t.Scenario()
		if _, dup := rs.trees[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateScenario, name)
		}
		rs.names = append(rs.names, name)
		rs.trees[name] = t
	}
	return rs, nil
}

// Names returns the scenario names in evaluation order.
func (rs *ResultSet) Names() []string { return slices.Clone(rs.names) }

// Methods returns the experiment's indicators.
func (rs *ResultSet) Methods() []api.Method { return slices.Clone(rs.methods) }

// Tree returns the aggregated tree of one scenario.
func (rs *ResultSet) Tree(scenario string) (*impact.Tree, bool) {
	t, ok := rs.trees[scenario]
	return t, ok
}

// Len returns the number of scenarios.
func (rs *ResultSet) Len() int { return len(rs.names) }

// All yields scenario name and tree pairs in order.
func (rs *ResultSet) All() iter.Seq2[string, *impact.Tree] {
	return func(yield func(string, *impact.Tree) bool) {
		for _, n := range rs.names {
			if !yield(n, rs.trees[n]) {
				return
			}
		}
	}
}
