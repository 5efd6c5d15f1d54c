package adapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentic-research/impactree/api"
	"github.com/agentic-research/impactree/internal/impact"
	"github.com/agentic-research/impactree/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsDoc = `{
  "w1": {"GWP1000": {"value": 4, "unit": "kg CO2 eq"}},
  "w2": {"GWP1000": {"value": 3, "unit": "kg CO2 eq"}},
  "solar": {
    "s1": {"GWP1000": {"samples": [2, 3, 4], "unit": "kg CO2 eq"}},
    "s2": {"GWP1000": 4.5}
  },
  "grid": {"GWP1000": {"value": 0.5, "unit": "kg CO2 eq"}}
}`

func energyTree(t *testing.T) *impact.Tree {
	t.Helper()
	tree, err := impact.Build(api.Node{
		Name: "root",
		Children: []api.Node{
			{Name: "wind", Children: []api.Node{{Name: "w1"}, {Name: "w2"}}},
			{Name: "solar", Children: []api.Node{
				{Name: "s1", Config: map[string]string{ConfigSelector: "$.solar.s1"}},
				{Name: "s2", Config: map[string]string{ConfigSelector: "$.solar.s2"}},
			}},
		},
	})
	require.NoError(t, err)
	return tree
}

func writeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte(resultsDoc), 0o644))
	return path
}

func TestJSONPathAdapter_Populate(t *testing.T) {
	a, err := LoadJSONPathAdapter(writeDoc(t), nil)
	require.NoError(t, err)
	tree := energyTree(t).CloneFor("base")

	require.NoError(t, Populate(context.Background(), tree, api.Scenario{Name: "base"}, a))
	require.NoError(t, tree.Aggregate(false))

	s1, _ := tree.Find("s1")
	v, ok := s1.Result("GWP1000")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 3, 4}, v.Samples)
	assert.Equal(t, 3.0, v.Magnitude)

	root, _ := tree.Root().Result("GWP1000")
	assert.InDelta(t, 4+3+3+4.5, root.Magnitude, 1e-12)
	assert.Equal(t, "kg CO2 eq", root.Unit.Symbol)
}

func TestJSONPathAdapter_NoMatchLeavesLeafMissing(t *testing.T) {
	a := NewJSONPathAdapter(map[string]any{}, units.Default())
	tree := energyTree(t)

	require.NoError(t, Populate(context.Background(), tree, api.Scenario{Name: "empty"}, a))
	var me *impact.MissingValueError
	require.ErrorAs(t, tree.Aggregate(false), &me)
}

func TestJSONPathAdapter_PerUnitScaling(t *testing.T) {
	doc := map[string]any{
		"grid": map[string]any{"GWP1000": map[string]any{"value": 0.5, "unit": "kg CO2 eq"}},
	}
	a := NewJSONPathAdapter(doc, nil)
	req := Request{
		Scenario:     "s",
		Node:         "grid",
		Config:       map[string]string{ConfigPerUnit: "true", ConfigUnit: "kWh"},
		Magnitude:    2,
		Unit:         "MWh",
		HasMagnitude: true,
	}

	r, err := a.Compute(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, r["GWP1000"].Magnitude, 1e-9)

	req.HasMagnitude = false
	_, err = a.Compute(context.Background(), req)
	assert.Error(t, err)

	req.HasMagnitude = true
	req.Unit = "kg"
	_, err = a.Compute(context.Background(), req)
	assert.ErrorIs(t, err, units.ErrIncompatible)
}

func TestJSONPathAdapter_DefaultSelectorQuotesNodeName(t *testing.T) {
	doc := map[string]any{
		`o'brien`:    map[string]any{"GWP1000": 2.0},
		`back\slash`: map[string]any{"GWP1000": 3.0},
		"a.b[0]":     map[string]any{"GWP1000": 4.0},
	}
	a := NewJSONPathAdapter(doc, units.Default())

	for name, want := range map[string]float64{`o'brien`: 2, `back\slash`: 3, "a.b[0]": 4} {
		r, err := a.Compute(context.Background(), Request{Node: name})
		require.NoError(t, err, name)
		assert.Equal(t, want, r["GWP1000"].Magnitude, name)
	}
}

func TestJSONPathAdapter_BadInputs(t *testing.T) {
	a := NewJSONPathAdapter(map[string]any{"x": "text", "y": map[string]any{"I": map[string]any{"unit": "kg"}}}, nil)

	_, err := a.Compute(context.Background(), Request{Node: "x"})
	assert.Error(t, err)

	_, err = a.Compute(context.Background(), Request{Node: "y"})
	assert.ErrorContains(t, err, "indicator I")

	_, err = a.Compute(context.Background(), Request{Node: "y", Config: map[string]string{ConfigSelector: "$[[["}})
	assert.ErrorContains(t, err, "invalid jsonpath")
}

func TestPopulate_PassesScenarioParams(t *testing.T) {
	tree := energyTree(t)
	var seen []Request
	f := Func(func(_ context.Context, req Request) (impact.Results, error) {
		seen = append(seen, req)
		return impact.Results{"X": impact.Scalar(req.Magnitude, units.Unit{})}, nil
	})
	sc := api.Scenario{Name: "hi", Params: map[string]float64{"w1": 7}, Units: map[string]string{"w1": "kWh"}}

	require.NoError(t, Populate(context.Background(), tree, sc, f))
	require.Len(t, seen, 4)
	assert.Equal(t, "w1", seen[0].Node)
	assert.True(t, seen[0].HasMagnitude)
	assert.Equal(t, "kWh", seen[0].Unit)
	assert.False(t, seen[1].HasMagnitude)
	assert.Equal(t, "$.solar.s1", seen[2].Config[ConfigSelector])
}

func TestPopulate_AdapterErrorCarriesContext(t *testing.T) {
	boom := errors.New("solver diverged")
	f := Func(func(context.Context, Request) (impact.Results, error) { return nil, boom })

	err := Populate(context.Background(), energyTree(t), api.Scenario{Name: "hi"}, f)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, `scenario "hi": compute root/wind/w1`)
}

func TestPopulate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := Func(func(context.Context, Request) (impact.Results, error) { return impact.Results{}, nil })

	err := Populate(ctx, energyTree(t), api.Scenario{}, f)
	assert.ErrorIs(t, err, context.Canceled)
}
