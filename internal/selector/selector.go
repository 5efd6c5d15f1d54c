// Package selector builds tabular, filtered and normalized views over the
// aggregated scenario trees of one experiment. It never modifies a tree.
package selector

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/impactree/api"
	"github.com/agentic-research/impactree/internal/impact"
	"go.uber.org/zap"
)

var (
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrUnknownMethod   = errors.New("unknown method")
	ErrUnknownNode     = errors.New("unknown node")
	ErrBaselineLength  = errors.New("baseline length does not match selected methods")
	ErrMissingResult   = errors.New("root has no result for method")
	ErrEmptyUniverse   = errors.New("empty universe")
)

// SelectionError reports user input that does not match the experiment.
type SelectionError struct {
	Kind       string // "scenario", "method", "node", "baseline"
	Identifier string
	Scenario   string // set when the problem is specific to one scenario
	Err        error
}

func (e *SelectionError) Error() string {
	if e.Scenario != "" {
		return fmt.Sprintf("select %s %q in scenario %q: %v", e.Kind, e.Identifier, e.Scenario, e.Err)
	}
	return fmt.Sprintf("select %s %q: %v", e.Kind, e.Identifier, e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }

// Trees is the scenario-keyed set of aggregated trees a Selector reads.
type Trees interface {
	Names() []string
	Tree(scenario string) (*impact.Tree, bool)
}

// Scope restricts a Selector to some scenarios and methods.
// An empty list selects the whole universe.
type Scope struct {
	Scenarios []string
	Methods   []string
}

// Option configures a Selector.
type Option func(*Selector)

// WithLogger sets the selector's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Selector) { s.logger = l }
}

// Selector is a read-only query layer over one experiment's results.
//
// Complete and base tables are computed on first use and cached for the
// selector's lifetime; the only way to invalidate them is to build a new
// Selector. Concurrent first access is serialized by the selector.
type Selector struct {
	trees     Trees
	universe  []string
	methods   []api.Method
	methodIdx map[string]int
	rowMask   *roaring.Bitmap // selected indices into universe
	colMask   *roaring.Bitmap // selected indices into methods
	logger    *zap.Logger

	completeOnce sync.Once
	complete     *Table
	completeErr  error

	baseOnce sync.Once
	base     *Table
	baseErr  error
}

// New validates scope against the universe of trees and methods.
func New(trees Trees, methods []api.Method, scope Scope, opts ...Option) (*Selector, error) {
	universe := trees.Names()
	if len(universe) == 0 {
		return nil, &SelectionError{Kind: "scenario", Err: ErrEmptyUniverse}
	}
	if len(methods) == 0 {
		return nil, &SelectionError{Kind: "method", Err: ErrEmptyUniverse}
	}

	s := &Selector{
		trees:     trees,
		universe:  universe,
		methods:   slices.Clone(methods),
		methodIdx: make(map[string]int, len(methods)),
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	for j, m := range s.methods {
		s.methodIdx[m.Name] = j
	}

	scenarioIdx := make(map[string]int, len(universe))
	for i, n := range universe {
		scenarioIdx[n] = i
	}

	var err error
	if s.rowMask, err = mask(scope.Scenarios, scenarioIdx, len(universe), "scenario", ErrUnknownScenario); err != nil {
		return nil, err
	}
	if s.colMask, err = mask(scope.Methods, s.methodIdx, len(s.methods), "method", ErrUnknownMethod); err != nil {
		return nil, err
	}
	return s, nil
}

func mask(names []string, index map[string]int, n int, kind string, sentinel error) (*roaring.Bitmap, error) {
	if len(names) == 0 {
		return allOf(n), nil
	}
	bm := roaring.New()
	for _, name := range names {
		i, ok := index[name]
		if !ok {
			return nil, &SelectionError{Kind: kind, Identifier: name, Err: sentinel}
		}
		bm.Add(uint32(i))
	}
	return bm, nil
}

// Universe returns every scenario of the experiment.
func (s *Selector) Universe() []string { return slices.Clone(s.universe) }

// Scenarios returns the selected scenarios in universe order.
func (s *Selector) Scenarios() []string {
	out := make([]string, 0, s.rowMask.GetCardinality())
	for _, i := range toInts(s.rowMask) {
		out = append(out, s.universe[i])
	}
	return out
}

// Methods returns the selected methods in declaration order.
func (s *Selector) Methods() []api.Method {
	out := make([]api.Method, 0, s.colMask.GetCardinality())
	for _, j := range toInts(s.colMask) {
		out = append(out, s.methods[j])
	}
	return out
}

// MethodNames returns the names of the selected methods.
func (s *Selector) MethodNames() []string {
	ms := s.Methods()
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}

// Unit returns the reference unit of a method.
func (s *Selector) Unit(method string) (string, error) {
	m, err := s.method(method)
	if err != nil {
		return "", err
	}
	return m.Unit, nil
}

// Label returns the display label of a method, optionally suffixed with its
// unit as "Label [unit]".
func (s *Selector) Label(method string, withUnit bool) (string, error) {
	m, err := s.method(method)
	if err != nil {
		return "", err
	}
	return label(m, withUnit), nil
}

// Labels returns the labels of the selected methods.
func (s *Selector) Labels(withUnit bool) []string {
	ms := s.Methods()
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = label(m, withUnit)
	}
	return out
}

func label(m api.Method, withUnit bool) string {
	if withUnit && m.Unit != "" {
		return fmt.Sprintf("%s [%s]", m.DisplayLabel(), m.Unit)
	}
	return m.DisplayLabel()
}

func (s *Selector) method(name string) (api.Method, error) {
	j, ok := s.methodIdx[name]
	if !ok {
		return api.Method{}, &SelectionError{Kind: "method", Identifier: name, Err: ErrUnknownMethod}
	}
	return s.methods[j], nil
}

// inMethodUnit expresses v, read at node n of one scenario tree, in the
// reference unit of m. Tables only ever hold values in that unit.
func inMethodUnit(tree *impact.Tree, n *impact.Node, m api.Method, v impact.Value) (impact.Value, error) {
	c, err := v.In(tree.Units().Parse(m.Unit))
	if err != nil {
		return impact.Value{}, &impact.UnitMismatchError{
			Scenario:  tree.Scenario(),
			Path:      n.PathString(),
			Indicator: m.Name,
			Units:     []string{v.Unit.Symbol, m.Unit},
			Err:       err,
		}
	}
	return c, nil
}

func (s *Selector) tree(scenario string) (*impact.Tree, error) {
	t, ok := s.trees.Tree(scenario)
	if !ok {
		return nil, &SelectionError{Kind: "scenario", Identifier: scenario, Err: ErrUnknownScenario}
	}
	return t, nil
}
