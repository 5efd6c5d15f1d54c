// Package adapter connects a hierarchy's leaves to whatever computes their
// raw per-indicator results.
package adapter

import (
	"context"
	"fmt"

	"github.com/agentic-research/impactree/api"
	"github.com/agentic-research/impactree/internal/impact"
)

// Request describes one leaf evaluation for one scenario.
type Request struct {
	Scenario string
	Node     string
	Config   map[string]string
	// Magnitude and Unit come from the scenario's parameters for this node.
	// HasMagnitude is false when the scenario does not parameterize the node.
	Magnitude    float64
	Unit         string
	HasMagnitude bool
}

// Adapter computes a leaf's results. Returning nil results with a nil error
// means the adapter has nothing for this leaf; the leaf then stays missing
// and the tree's ignore-missing policy decides what happens.
type Adapter interface {
	Compute(ctx context.Context, req Request) (impact.Results, error)
}

// Func adapts a function to the Adapter interface.
type Func func(ctx context.Context, req Request) (impact.Results, error)

// Compute implements Adapter.
func (f Func) Compute(ctx context.Context, req Request) (impact.Results, error) {
	return f(ctx, req)
}

// Populate asks a for every leaf of tree and writes the returned results
// verbatim. It is called once per scenario, before tree.Aggregate.
func Populate(ctx context.Context, tree *impact.Tree, scenario api.Scenario, a Adapter) error {
	for _, leaf := range tree.Leaves() {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := Request{
			Scenario: scenario.Name,
			Node:     leaf.Name(),
			Config:   leaf.Config(),
		}
		if m, ok := scenario.Params[leaf.Name()]; ok {
			req.Magnitude = m
			req.Unit = scenario.Units[leaf.Name()]
			req.HasMagnitude = true
		}

		r, err := a.Compute(ctx, req)
		if err != nil {
			return fmt.Errorf("scenario %q: compute %s: %w", scenario.Name, leaf.PathString(), err)
		}
		if r == nil {
			continue
		}
		if err := tree.SetResults(leaf.Name(), r); err != nil {
			return err
		}
	}
	return nil
}
