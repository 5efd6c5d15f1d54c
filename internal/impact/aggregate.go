package impact

import (
	"errors"
	"fmt"
	"sort"

	"github.com/agentic-research/impactree/internal/units"
)

// SetResults assigns a leaf's results for the tree's scenario.
// Each leaf accepts results exactly once, and only before Aggregate.
func (t *Tree) SetResults(name string, r Results) error {
	n, ok := t.Find(name)
	if !ok {
		return fmt.Errorf("set results for %q: %w", name, ErrNotFound)
	}
	switch {
	case t.aggregated:
		return t.structureError(n, "results are immutable after aggregation")
	case !n.IsLeaf():
		return t.structureError(n, "results can only be assigned to leaves")
	case n.results != nil:
		return t.structureError(n, "results already assigned")
	}
	if r == nil {
		r = Results{}
	}
	n.results = r.Clone()
	return nil
}

// Aggregate computes every internal node's results from its children.
//
// A leaf without results fails with *MissingValueError unless ignoreMissing
// is set, in which case it is marked Imputed and given a zero for every
// declared method. An internal node gets one value per indicator present in
// any child; children lacking that indicator contribute nothing. On failure
// the tree is left as it was before the call.
func (t *Tree) Aggregate(ignoreMissing bool) error {
	if t.aggregated {
		return t.structureError(t.Root(), "tree already aggregated")
	}

	// Children always follow their parent in the arena, so walking it
	// backwards is a post-order traversal.
	for i := len(t.nodes) - 1; i >= 0; i-- {
		n := t.nodes[i]
		if n.IsLeaf() {
			if n.results != nil {
				continue
			}
			if !ignoreMissing {
				t.rollback()
				return &MissingValueError{Scenario: t.scenario, Path: n.PathString()}
			}
			n.results = t.zeroResults()
			n.imputed = true
			continue
		}
		r, err := t.reduce(n)
		if err != nil {
			t.rollback()
			return err
		}
		n.results = r
	}
	t.aggregated = true
	return nil
}

// rollback discards everything a failed Aggregate wrote, leaving only the
// results assigned through SetResults.
func (t *Tree) rollback() {
	for _, n := range t.nodes {
		if !n.IsLeaf() || n.imputed {
			n.results = nil
			n.imputed = false
		}
	}
}

func (t *Tree) reduce(n *Node) (Results, error) {
	byIndicator := make(map[string][]Value)
	for _, c := range n.children {
		for ind, v := range t.nodes[c].results {
			byIndicator[ind] = append(byIndicator[ind], v)
		}
	}

	indicators := make([]string, 0, len(byIndicator))
	for ind := range byIndicator {
		indicators = append(indicators, ind)
	}
	sort.Strings(indicators)

	out := make(Results, len(indicators))
	for _, ind := range indicators {
		values := byIndicator[ind]
		v, err := n.reduce(values)
		if err != nil {
			if errors.Is(err, units.ErrIncompatible) || errors.Is(err, ErrSampleSize) {
				return nil, &UnitMismatchError{
					Scenario:  t.scenario,
					Path:      n.PathString(),
					Indicator: ind,
					Units:     unitSymbols(values),
					Err:       err,
				}
			}
			return nil, fmt.Errorf("aggregate %s [%s] with %s: %w", n.PathString(), ind, n.aggregator, err)
		}
		out[ind] = v
	}
	return out, nil
}

// zeroResults is the neutral contribution of an imputed leaf.
func (t *Tree) zeroResults() Results {
	r := make(Results, len(t.methods))
	for _, m := range t.methods {
		r[m.Name] = Scalar(0, t.registry.Parse(m.Unit))
	}
	return r
}

func (t *Tree) structureError(n *Node, reason string) *StructureError {
	return &StructureError{Scenario: t.scenario, Path: n.PathString(), Reason: reason}
}

func unitSymbols(values []Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.Unit.Symbol
	}
	return out
}
