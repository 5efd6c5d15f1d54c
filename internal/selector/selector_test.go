package selector

import (
	"errors"
	"testing"

	"github.com/agentic-research/impactree/api"
	"github.com/agentic-research/impactree/internal/impact"
	"github.com/agentic-research/impactree/internal/runner"
	"github.com/agentic-research/impactree/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMethods = []api.Method{
	{Name: "GWP1000", Unit: "kg CO2 eq", Label: "Climate change"},
	{Name: "ADP", Unit: "kg Sb eq"},
}

func energySpec() api.Node {
	return api.Node{
		Name: "root",
		Children: []api.Node{
			{Name: "wind", Children: []api.Node{{Name: "w1"}, {Name: "w2"}}},
			{Name: "solar", Children: []api.Node{{Name: "s1"}, {Name: "s2"}}},
		},
	}
}

// leafValues holds w1, w2, s1, s2 GWP values; ADP is always 1 per leaf.
type leafValues [4]float64

func scenarioTree(t *testing.T, template *impact.Tree, name string, lv leafValues) *impact.Tree {
	t.Helper()
	r := units.Default()
	tree := template.CloneFor(name)
	for i, leaf := range []string{"w1", "w2", "s1", "s2"} {
		require.NoError(t, tree.SetResults(leaf, impact.Results{
			"GWP1000": impact.Scalar(lv[i], r.Parse("kg CO2 eq")),
			"ADP":     impact.Scalar(1, r.Parse("kg Sb eq")),
		}))
	}
	require.NoError(t, tree.Aggregate(false))
	return tree
}

func resultSet(t *testing.T, scenarios map[string]leafValues, order ...string) *runner.ResultSet {
	t.Helper()
	template, err := impact.Build(energySpec())
	require.NoError(t, err)
	var trees []*impact.Tree
	for _, name := range order {
		trees = append(trees, scenarioTree(t, template, name, scenarios[name]))
	}
	rs, err := runner.NewResultSet(testMethods, trees...)
	require.NoError(t, err)
	return rs
}

// threeScenarios has root GWP 10, 20 and 30.
func threeScenarios(t *testing.T) *runner.ResultSet {
	return resultSet(t, map[string]leafValues{
		"low":  {1, 2, 3, 4},
		"mid":  {5, 5, 5, 5},
		"high": {10, 10, 5, 5},
	}, "low", "mid", "high")
}

func column(t *testing.T, tbl *Table, col string) []float64 {
	t.Helper()
	c, ok := tbl.Column(col)
	require.True(t, ok, "column %s", col)
	return c
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_DefaultsToFullUniverse(t *testing.T) {
	s, err := New(threeScenarios(t), testMethods, Scope{})
	require.NoError(t, err)
	assert.Equal(t, []string{"low", "mid", "high"}, s.Scenarios())
	assert.Equal(t, []string{"GWP1000", "ADP"}, s.MethodNames())
	assert.Equal(t, s.Universe(), s.Scenarios())
}

func TestNew_UnknownNames(t *testing.T) {
	rs := threeScenarios(t)

	_, err := New(rs, testMethods, Scope{Scenarios: []string{"mid", "extreme"}})
	var se *SelectionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "extreme", se.Identifier)
	assert.ErrorIs(t, err, ErrUnknownScenario)
	assert.Contains(t, err.Error(), `"extreme"`)

	_, err = New(rs, testMethods, Scope{Methods: []string{"ODP"}})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "ODP", se.Identifier)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestNew_EmptyUniverse(t *testing.T) {
	rs, err := runner.NewResultSet(testMethods)
	require.NoError(t, err)
	_, err = New(rs, testMethods, Scope{})
	assert.ErrorIs(t, err, ErrEmptyUniverse)

	_, err = New(threeScenarios(t), nil, Scope{})
	assert.ErrorIs(t, err, ErrEmptyUniverse)
}

func TestNew_ScopeFollowsUniverseOrder(t *testing.T) {
	s, err := New(threeScenarios(t), testMethods, Scope{
		Scenarios: []string{"high", "low", "high"},
		Methods:   []string{"ADP"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"low", "high"}, s.Scenarios())
	assert.Equal(t, []string{"ADP"}, s.MethodNames())
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

func TestCompleteTable_IgnoresScopeAndIsCached(t *testing.T) {
	s, err := New(threeScenarios(t), testMethods, Scope{Scenarios: []string{"mid"}, Methods: []string{"ADP"}})
	require.NoError(t, err)

	tbl, err := s.CompleteTable()
	require.NoError(t, err)
	assert.Equal(t, []string{"low", "mid", "high"}, tbl.Rows())
	assert.Equal(t, []string{"GWP1000", "ADP"}, tbl.Columns())
	assert.Equal(t, []float64{10, 20, 30}, column(t, tbl, "GWP1000"))
	assert.Equal(t, []float64{4, 4, 4}, column(t, tbl, "ADP"))

	again, err := s.CompleteTable()
	require.NoError(t, err)
	assert.Same(t, tbl, again)
}

func TestBaseTable_Restricted(t *testing.T) {
	s, err := New(threeScenarios(t), testMethods, Scope{Scenarios: []string{"high", "low"}, Methods: []string{"GWP1000"}})
	require.NoError(t, err)

	tbl, err := s.BaseTable()
	require.NoError(t, err)
	rows, cols := tbl.Shape()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 1, cols)
	v, ok := tbl.Value("high", "GWP1000")
	require.True(t, ok)
	assert.Equal(t, 30.0, v)
	_, ok = tbl.Value("mid", "GWP1000")
	assert.False(t, ok)

	row, ok := tbl.Row("low")
	require.True(t, ok)
	assert.Equal(t, []float64{10}, row)
}

func TestCompleteTable_MissingRootResult(t *testing.T) {
	methods := append([]api.Method{}, testMethods...)
	methods = append(methods, api.Method{Name: "ODP", Unit: "kg CFC11 eq"})
	s, err := New(threeScenarios(t), methods, Scope{})
	require.NoError(t, err)

	_, err = s.CompleteTable()
	var se *SelectionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "low", se.Scenario)
	assert.ErrorIs(t, err, ErrMissingResult)

	_, err = s.BaseTable()
	assert.ErrorIs(t, err, ErrMissingResult)
}

// ---------------------------------------------------------------------------
// Normalization
// ---------------------------------------------------------------------------

func TestNormalizedTable_TwoScenarios(t *testing.T) {
	rs := resultSet(t, map[string]leafValues{
		"a": {4, 3, 3, 0},
		"b": {5, 5, 5, 5},
	}, "a", "b")
	s, err := New(rs, testMethods, Scope{Methods: []string{"GWP1000"}})
	require.NoError(t, err)

	tbl, err := s.NormalizedTable(true)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.0, 1.0}, column(t, tbl, "GWP1000"))
}

func TestNormalizedTable_ReferencePopulation(t *testing.T) {
	s, err := New(threeScenarios(t), testMethods, Scope{Scenarios: []string{"mid", "high"}, Methods: []string{"GWP1000"}})
	require.NoError(t, err)

	full, err := s.NormalizedTable(true)
	require.NoError(t, err)
	assert.Equal(t, []string{"mid", "high"}, full.Rows())
	assert.Equal(t, []float64{0.5, 1.0}, column(t, full, "GWP1000"))

	restricted, err := s.NormalizedTable(false)
	require.NoError(t, err)
	assert.Equal(t, []string{"mid", "high"}, restricted.Rows())
	assert.Equal(t, []float64{0.0, 1.0}, column(t, restricted, "GWP1000"))
}

func TestNormalizedTable_DegenerateColumnIsZero(t *testing.T) {
	s, err := New(threeScenarios(t), testMethods, Scope{})
	require.NoError(t, err)

	for _, full := range []bool{true, false} {
		tbl, err := s.NormalizedTable(full)
		require.NoError(t, err)
		assert.Equal(t, []float64{DegenerateValue, DegenerateValue, DegenerateValue}, column(t, tbl, "ADP"))
		assert.Equal(t, 0.0, DegenerateValue)
	}
}

func TestNormalizedTable_DoesNotTouchCache(t *testing.T) {
	s, err := New(threeScenarios(t), testMethods, Scope{})
	require.NoError(t, err)

	_, err = s.NormalizedTable(false)
	require.NoError(t, err)
	complete, err := s.CompleteTable()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, column(t, complete, "GWP1000"))
}

// ---------------------------------------------------------------------------
// Baseline comparison
// ---------------------------------------------------------------------------

func TestCompareToBaseline(t *testing.T) {
	s, err := New(threeScenarios(t), testMethods, Scope{})
	require.NoError(t, err)

	rel, err := s.CompareToBaseline([]float64{10, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, column(t, rel, "GWP1000"))
	assert.Equal(t, []float64{2, 2, 2}, column(t, rel, "ADP"))

	base, err := s.BaseTable()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, column(t, base, "GWP1000"))
}

func TestCompareToBaseline_WrongLength(t *testing.T) {
	s, err := New(threeScenarios(t), testMethods, Scope{Methods: []string{"GWP1000"}})
	require.NoError(t, err)
	before, err := s.BaseTable()
	require.NoError(t, err)

	_, err = s.CompareToBaseline([]float64{1, 2})
	var se *SelectionError
	require.ErrorAs(t, err, &se)
	assert.True(t, errors.Is(err, ErrBaselineLength))
	assert.Equal(t, "2", se.Identifier)

	after, err := s.BaseTable()
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.Equal(t, []float64{10, 20, 30}, column(t, after, "GWP1000"))
}

// ---------------------------------------------------------------------------
// Labels
// ---------------------------------------------------------------------------

func TestLabels(t *testing.T) {
	s, err := New(threeScenarios(t), testMethods, Scope{})
	require.NoError(t, err)

	l, err := s.Label("GWP1000", true)
	require.NoError(t, err)
	assert.Equal(t, "Climate change [kg CO2 eq]", l)

	l, err = s.Label("ADP", false)
	require.NoError(t, err)
	assert.Equal(t, "ADP", l)

	u, err := s.Unit("ADP")
	require.NoError(t, err)
	assert.Equal(t, "kg Sb eq", u)

	_, err = s.Unit("ODP")
	assert.ErrorIs(t, err, ErrUnknownMethod)
	_, err = s.Label("ODP", true)
	assert.ErrorIs(t, err, ErrUnknownMethod)

	assert.Equal(t, []string{"Climate change", "ADP"}, s.Labels(false))
	assert.Equal(t, []string{"Climate change [kg CO2 eq]", "ADP [kg Sb eq]"}, s.Labels(true))
}

// ---------------------------------------------------------------------------
// Reporting units
// ---------------------------------------------------------------------------

// mixedUnits has scenario "a" reporting leaves in kg CO2 eq and scenario "b"
// in g CO2 eq; b's impact is twice a's.
func mixedUnits(t *testing.T) *runner.ResultSet {
	t.Helper()
	r := units.Default()
	template, err := impact.Build(energySpec())
	require.NoError(t, err)

	fill := func(name string, v float64, unit string) *impact.Tree {
		tree := template.CloneFor(name)
		for _, leaf := range []string{"w1", "w2", "s1", "s2"} {
			require.NoError(t, tree.SetResults(leaf, impact.Results{
				"GWP1000": impact.Sampled([]float64{v, v}, r.Parse(unit)),
				"ADP":     impact.Scalar(1, r.Parse("kg Sb eq")),
			}))
		}
		require.NoError(t, tree.Aggregate(false))
		return tree
	}
	rs, err := runner.NewResultSet(testMethods, fill("a", 1, "kg CO2 eq"), fill("b", 2000, "g CO2 eq"))
	require.NoError(t, err)
	return rs
}

func TestCompleteTable_ConvertsToMethodUnit(t *testing.T) {
	s, err := New(mixedUnits(t), testMethods, Scope{})
	require.NoError(t, err)

	tbl, err := s.CompleteTable()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4, 8}, column(t, tbl, "GWP1000"), 1e-9)

	base, err := s.CompareToBaseline([]float64{4, 1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2}, column(t, base, "GWP1000"), 1e-9)
}

func TestNodeViews_ConvertToMethodUnit(t *testing.T) {
	s, err := New(mixedUnits(t), testMethods, Scope{Methods: []string{"GWP1000"}})
	require.NoError(t, err)

	tbl, err := s.NodeTable("b", 1, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4, 4}, column(t, tbl, "GWP1000"), 1e-9)

	res, err := s.CollectSubtreeResults([]string{"wind"}, Samples)
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, r := range res {
		assert.Equal(t, "kg CO2 eq", r.Unit, r.Scenario)
	}
	assert.InDelta(t, 2.0, res[0].Magnitude, 1e-9)
	assert.InDelta(t, 4.0, res[1].Magnitude, 1e-9)
	assert.InDeltaSlice(t, []float64{4, 4}, res[1].Samples, 1e-9)
}

func TestCompleteTable_IncompatibleRootUnit(t *testing.T) {
	r := units.Default()
	template, err := impact.Build(energySpec())
	require.NoError(t, err)
	tree := template.CloneFor("odd")
	for _, leaf := range []string{"w1", "w2", "s1", "s2"} {
		require.NoError(t, tree.SetResults(leaf, impact.Results{
			"GWP1000": impact.Scalar(1, r.Parse("kWh")),
			"ADP":     impact.Scalar(1, r.Parse("kg Sb eq")),
		}))
	}
	require.NoError(t, tree.Aggregate(false))
	rs, err := runner.NewResultSet(testMethods, tree)
	require.NoError(t, err)

	s, err := New(rs, testMethods, Scope{})
	require.NoError(t, err)
	_, err = s.CompleteTable()

	var um *impact.UnitMismatchError
	require.ErrorAs(t, err, &um)
	assert.Equal(t, "odd", um.Scenario)
	assert.Equal(t, "root", um.Path)
	assert.Equal(t, "GWP1000", um.Indicator)
	assert.ErrorIs(t, err, units.ErrIncompatible)
}
