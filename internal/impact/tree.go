// Package impact holds the hierarchy of a studied system and aggregates the
// per-indicator results of its leaves bottom-up.
//
// A Tree is built once from a declarative api.Node, then cloned once per
// scenario. Leaves receive their results through SetResults, after which
// Aggregate fills every ancestor. The structure of a tree never changes after
// Build, and a tree's results never change after Aggregate.
package impact

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/impactree/api"
	"github.com/agentic-research/impactree/internal/units"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// PathSeparator joins node names in rendered paths.
const PathSeparator = "/"

var specValidate = validator.New()

// Node is one element of a Tree.
type Node struct {
	name       string
	aggregator string
	reduce     ReduceFunc
	config     map[string]string
	results    Results
	imputed    bool

	tree     *Tree
	index    int
	parent   int // arena index of the parent, -1 for the root; never owning
	children []int
	depth    int
}

// Name returns the node's globally unique name.
func (n *Node) Name() string { return n.name }

// Aggregator returns the aggregator tag the node was built with.
func (n *Node) Aggregator() string { return n.aggregator }

// Config returns the leaf configuration. Callers must not modify it.
func (n *Node) Config() map[string]string { return n.config }

// Depth returns the number of edges between the root and n.
func (n *Node) Depth() int { return n.depth }

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return len(n.children) == 0 }

// Imputed reports whether n is a leaf whose results were filled with zeros by
// the ignore-missing policy rather than supplied by an adapter.
func (n *Node) Imputed() bool { return n.imputed }

// HasResults reports whether results were assigned or aggregated.
func (n *Node) HasResults() bool { return n.results != nil }

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node {
	if n.parent < 0 {
		return nil
	}
	return n.tree.nodes[n.parent]
}

// Children returns the children in display order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	for i, c := range n.children {
		out[i] = n.tree.nodes[c]
	}
	return out
}

// Results returns a copy of the node's results.
func (n *Node) Results() Results {
	return n.results.Clone()
}

// Result returns the value for one indicator.
func (n *Node) Result(indicator string) (Value, bool) {
	v, ok := n.results[indicator]
	return v, ok
}

// Path returns the names from the root down to n.
func (n *Node) Path() []string {
	var path []string
	for cur := n; cur != nil; cur = cur.Parent() {
		path = append(path, cur.name)
	}
	slices.Reverse(path)
	return path
}

// PathString renders Path joined by PathSeparator.
func (n *Node) PathString() string {
	return strings.Join(n.Path(), PathSeparator)
}

// Tree is an ordered hierarchy of uniquely named nodes.
//
// Nodes live in an arena in pre-order; the root is at index 0. Parent links
// are arena indices, so a tree has a single owner for every node and can be
// copied without fixing up pointers.
type Tree struct {
	nodes      []*Node
	byName     map[string]int
	byDepth    []*roaring.Bitmap // depth -> arena indices
	depth      int
	scenario   string
	aggregated bool

	registry *units.Registry
	methods  []api.Method
	logger   *zap.Logger
}

// Option configures Build.
type Option func(*options)

type options struct {
	aggregators map[string]ReduceFunc
	registry    *units.Registry
	methods     []api.Method
	logger      *zap.Logger
}

// WithAggregator makes kind available as an aggregator tag.
func WithAggregator(kind string, fn ReduceFunc) Option {
	return func(o *options) { o.aggregators[kind] = fn }
}

// WithUnits sets the unit table used to parse and convert units.
func WithUnits(r *units.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithMethods declares the indicators, so imputed leaves get a zero in the
// method's unit for each of them.
func WithMethods(methods []api.Method) Option {
	return func(o *options) { o.methods = slices.Clone(methods) }
}

// WithLogger sets the logger used for non-fatal warnings.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Build constructs a tree from spec. Every invalid field and every
// duplicated name is reported in a single *StructureError.
func Build(spec api.Node, opts ...Option) (*Tree, error) {
	o := options{
		aggregators: maps.Clone(builtinAggregators),
		registry:    units.Default(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := specValidate.Struct(spec); err != nil {
		return nil, &StructureError{Reason: "invalid hierarchy", Problems: validationProblems(err)}
	}

	t := &Tree{
		byName:   make(map[string]int),
		registry: o.registry,
		methods:  o.methods,
		logger:   o.logger,
	}
	b := builder{tree: t, aggregators: o.aggregators}
	b.add(spec, -1, 0)

	dups := duplicateNames(t.nodes)
	if len(b.problems) > 0 || len(dups) > 0 {
		return nil, &StructureError{Problems: b.problems, Dups: dups}
	}

	for _, n := range t.nodes {
		t.byName[n.name] = n.index
		for len(t.byDepth) <= n.depth {
			t.byDepth = append(t.byDepth, roaring.New())
		}
		t.byDepth[n.depth].Add(uint32(n.index))
		t.depth = max(t.depth, n.depth)
	}
	return t, nil
}

type builder struct {
	tree        *Tree
	aggregators map[string]ReduceFunc
	problems    []string
}

func (b *builder) add(spec api.Node, parent, depth int) int {
	kind := spec.Aggregator
	if kind == "" {
		kind = api.AggregatorSum
	}
	n := &Node{
		name:       spec.Name,
		aggregator: kind,
		config:     maps.Clone(spec.Config),
		tree:       b.tree,
		index:      len(b.tree.nodes),
		parent:     parent,
		depth:      depth,
	}
	b.tree.nodes = append(b.tree.nodes, n)

	reduce, ok := b.aggregators[kind]
	if !ok {
		b.problems = append(b.problems, fmt.Sprintf("%s: unknown aggregator %q", n.PathString(), kind))
	}
	n.reduce = reduce

	for _, c := range spec.Children {
		n.children = append(n.children, b.add(c, n.index, depth+1))
	}
	return n.index
}

// duplicateNames walks the whole tree once and returns every name used more
// than once along with all of its paths.
func duplicateNames(nodes []*Node) map[string][]string {
	seen := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		seen[n.name] = append(seen[n.name], n.PathString())
	}
	dups := make(map[string][]string)
	for name, paths := range seen {
		if len(paths) > 1 {
			dups[name] = paths
		}
	}
	return dups
}

func validationProblems(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return out
}

// Clone returns a structurally identical tree with no results.
// No node is shared between t and the clone.
func (t *Tree) Clone() *Tree {
	return t.CloneFor(t.scenario)
}

// CloneFor clones t for the named scenario. The scenario name is carried into
// every error the clone reports.
func (t *Tree) CloneFor(scenario string) *Tree {
	c := &Tree{
		nodes:    make([]*Node, len(t.nodes)),
		byName:   maps.Clone(t.byName),
		byDepth:  make([]*roaring.Bitmap, len(t.byDepth)),
		depth:    t.depth,
		scenario: scenario,
		registry: t.registry,
		methods:  t.methods,
		logger:   t.logger,
	}
	for i, n := range t.nodes {
		c.nodes[i] = &Node{
			name:       n.name,
			aggregator: n.aggregator,
			reduce:     n.reduce,
			config:     n.config,
			tree:       c,
			index:      n.index,
			parent:     n.parent,
			children:   slices.Clone(n.children),
			depth:      n.depth,
		}
	}
	for i, bm := range t.byDepth {
		c.byDepth[i] = bm.Clone()
	}
	return c
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.nodes[0] }

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Scenario returns the scenario the tree was cloned for.
func (t *Tree) Scenario() string { return t.scenario }

// Aggregated reports whether Aggregate completed.
func (t *Tree) Aggregated() bool { return t.aggregated }

// Units returns the tree's unit table.
func (t *Tree) Units() *units.Registry { return t.registry }

// Methods returns the indicators the tree was built with, if any.
func (t *Tree) Methods() []api.Method { return slices.Clone(t.methods) }

// Depth returns the number of edges from the root to the deepest leaf.
// It is computed once at Build; trees are never restructured afterwards.
func (t *Tree) Depth() int { return t.depth }

// Find looks a node up by name.
func (t *Tree) Find(name string) (*Node, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.nodes[i], true
}

// All yields every node in pre-order. The sequence can be ranged over any
// number of times.
func (t *Tree) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, n := range t.nodes {
			if !yield(n) {
				return
			}
		}
	}
}

// Leaves returns the leaves in pre-order.
func (t *Tree) Leaves() []*Node {
	var out []*Node
	for n := range t.All() {
		if n.IsLeaf() {
			out = append(out, n)
		}
	}
	return out
}

// Subtree returns the named node and all of its descendants in pre-order.
func (t *Tree) Subtree(name string) ([]*Node, error) {
	n, ok := t.Find(name)
	if !ok {
		return nil, fmt.Errorf("subtree %q: %w", name, ErrNotFound)
	}
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		out = append(out, cur)
		for _, c := range cur.children {
			walk(t.nodes[c])
		}
	}
	walk(n)
	return out, nil
}

// ClampDepth maps a requested selection level onto an existing one.
// Levels at or beyond Depth are clamped to Depth-1 and negative levels to 0;
// both are logged as warnings. The second result reports whether clamping
// happened.
func (t *Tree) ClampDepth(level int) (int, bool) {
	used := level
	switch {
	case level < 0:
		used = 0
	case level >= t.depth:
		used = max(t.depth-1, 0)
	}
	if used == level {
		return level, false
	}
	t.logger.Warn("hierarchy level out of range, clamping",
		zap.Int("requested", level),
		zap.Int("depth", t.depth),
		zap.Int("used", used))
	return used, true
}

// NodesAtDepth returns, in display order, the nodes whose distance from the
// root equals level after ClampDepth.
func (t *Tree) NodesAtDepth(level int) []*Node {
	level, _ = t.ClampDepth(level)
	if level >= len(t.byDepth) {
		return nil
	}
	bm := t.byDepth[level]
	out := make([]*Node, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, t.nodes[it.Next()])
	}
	return out
}
