package selector

import (
	"fmt"
	"slices"

	"github.com/agentic-research/impactree/internal/impact"
)

// ValueKind selects what CollectSubtreeResults extracts.
type ValueKind int

const (
	// Magnitude extracts the scalar magnitude only.
	Magnitude ValueKind = iota
	// Samples additionally extracts the sample distribution. Single-magnitude
	// values are reported as a one-sample distribution.
	Samples
)

// NodeResult is one node's value for one method in one scenario.
type NodeResult struct {
	Scenario  string
	Node      string
	Method    string
	Magnitude float64
	Unit      string
	Samples   []float64
}

// reference returns the tree used for structural questions. Every scenario
// tree is a clone of the same template, so any one will do.
func (s *Selector) reference() (*impact.Tree, error) {
	return s.tree(s.universe[0])
}

// ValidateNodeSelection resolves the nodes a report is about. Explicit names
// must all exist in the hierarchy; without names, the nodes at level are
// used, with out-of-range levels clamped by the tree.
func (s *Selector) ValidateNodeSelection(level int, nodes []string) ([]string, error) {
	ref, err := s.reference()
	if err != nil {
		return nil, err
	}
	if len(nodes) > 0 {
		for _, n := range nodes {
			if _, ok := ref.Find(n); !ok {
				return nil, &SelectionError{Kind: "node", Identifier: n, Err: ErrUnknownNode}
			}
		}
		return slices.Clone(nodes), nil
	}

	found := ref.NodesAtDepth(level)
	out := make([]string, len(found))
	for i, n := range found {
		out[i] = n.Name()
	}
	return out, nil
}

// CollectSubtreeResults extracts, for every selected scenario, node and
// selected method, the node's value in the method's reference unit. A node
// without a value for a method contributed nothing to its parent and is
// reported as zero.
//
// A node missing from one scenario's tree means the trees drifted apart,
// which construction rules out; it is reported as a *impact.StructureError.
func (s *Selector) CollectSubtreeResults(nodes []string, kind ValueKind) ([]NodeResult, error) {
	methods := s.Methods()
	var out []NodeResult
	for _, sc := range s.Scenarios() {
		tree, err := s.tree(sc)
		if err != nil {
			return nil, err
		}
		for _, name := range nodes {
			n, ok := tree.Find(name)
			if !ok {
				return nil, &impact.StructureError{
					Scenario: sc,
					Reason:   fmt.Sprintf("node %q missing, scenario trees diverged", name),
				}
			}
			for _, m := range methods {
				r := NodeResult{Scenario: sc, Node: name, Method: m.Name, Unit: m.Unit}
				if v, ok := n.Result(m.Name); ok {
					v, err := inMethodUnit(tree, n, m, v)
					if err != nil {
						return nil, err
					}
					r.Magnitude = v.Magnitude
					if kind == Samples {
						r.Samples = slices.Clone(v.Samples)
						if r.Samples == nil {
							r.Samples = []float64{v.Magnitude}
						}
					}
				} else if kind == Samples {
					r.Samples = []float64{0}
				}
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// NodeTable returns a node × method view of one scenario.
// Nodes are resolved with ValidateNodeSelection(level, nodes).
func (s *Selector) NodeTable(scenario string, level int, nodes []string) (*Table, error) {
	tree, err := s.tree(scenario)
	if err != nil {
		return nil, err
	}
	names, err := s.ValidateNodeSelection(level, nodes)
	if err != nil {
		return nil, err
	}

	methods := s.Methods()
	t := newTable(names, s.MethodNames())
	for i, name := range names {
		n, ok := tree.Find(name)
		if !ok {
			return nil, &impact.StructureError{
				Scenario: scenario,
				Reason:   fmt.Sprintf("node %q missing, scenario trees diverged", name),
			}
		}
		for j, m := range methods {
			v, ok := n.Result(m.Name)
			if !ok {
				continue
			}
			if v, err = inMethodUnit(tree, n, m, v); err != nil {
				return nil, err
			}
			t.set(i, j, v.Magnitude)
		}
	}
	return t, nil
}
