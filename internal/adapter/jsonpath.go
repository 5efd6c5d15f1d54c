package adapter

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/agentic-research/impactree/internal/impact"
	"github.com/agentic-research/impactree/internal/units"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Leaf config keys understood by JSONPathAdapter.
const (
	// ConfigSelector is a JSONPath selecting the leaf's entry in the document.
	// Defaults to $['<node name>'].
	ConfigSelector = "selector"
	// ConfigPerUnit marks the entry as results per one ConfigUnit of the
	// scenario magnitude; the adapter then scales by that magnitude.
	ConfigPerUnit = "per_unit"
	// ConfigUnit is the reference unit of a per-unit entry.
	ConfigUnit = "unit"
)

// JSONPathAdapter serves precomputed leaf results out of a JSON document.
//
// A leaf entry maps indicator names to either a bare number or an object
// {"value": n, "unit": "...", "samples": [...]}.
type JSONPathAdapter struct {
	doc      any
	registry *units.Registry
}

// NewJSONPathAdapter wraps an already decoded document.
func NewJSONPathAdapter(doc any, registry *units.Registry) *JSONPathAdapter {
	if registry == nil {
		registry = units.Default()
	}
	return &JSONPathAdapter{doc: doc, registry: registry}
}

// LoadJSONPathAdapter reads and parses the document at path.
func LoadJSONPathAdapter(path string, registry *units.Registry) (*JSONPathAdapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results %s: %w", path, err)
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse results %s: %w", path, err)
	}
	return NewJSONPathAdapter(doc, registry), nil
}

// Compute implements Adapter.
func (a *JSONPathAdapter) Compute(_ context.Context, req Request) (impact.Results, error) {
	x := jp.R().C(req.Node)
	if selector := req.Config[ConfigSelector]; selector != "" {
		var err error
		if x, err = jp.ParseString(selector); err != nil {
			return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
		}
	}
	selector := x.String()

	matches := x.Get(a.doc)
	if len(matches) == 0 {
		return nil, nil
	}
	entry, ok := matches[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("jsonpath '%s' selected %T, want an object", selector, matches[0])
	}

	scale, err := a.scale(req)
	if err != nil {
		return nil, err
	}

	out := make(impact.Results, len(entry))
	for indicator, raw := range entry {
		v, err := a.value(raw)
		if err != nil {
			return nil, fmt.Errorf("indicator %s: %w", indicator, err)
		}
		if scale != 1 {
			v.Magnitude *= scale
			for i := range v.Samples {
				v.Samples[i] *= scale
			}
		}
		out[indicator] = v
	}
	return out, nil
}

// scale returns the factor applied to a per-unit entry: the scenario
// magnitude expressed in the entry's reference unit.
func (a *JSONPathAdapter) scale(req Request) (float64, error) {
	perUnit, _ := strconv.ParseBool(req.Config[ConfigPerUnit])
	if !perUnit {
		return 1, nil
	}
	if !req.HasMagnitude {
		return 0, fmt.Errorf("per-unit leaf %s has no magnitude in scenario %q", req.Node, req.Scenario)
	}
	return units.Convert(req.Magnitude, a.registry.Parse(req.Unit), a.registry.Parse(req.Config[ConfigUnit]))
}

func (a *JSONPathAdapter) value(raw any) (impact.Value, error) {
	if f, ok := toFloat(raw); ok {
		return impact.Scalar(f, units.Unit{}), nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return impact.Value{}, fmt.Errorf("unsupported value %T", raw)
	}
	unit, _ := obj["unit"].(string)
	u := a.registry.Parse(unit)

	if rawSamples, ok := obj["samples"].([]any); ok {
		samples := make([]float64, len(rawSamples))
		for i, s := range rawSamples {
			f, ok := toFloat(s)
			if !ok {
				return impact.Value{}, fmt.Errorf("sample %d: unsupported value %T", i, s)
			}
			samples[i] = f
		}
		return impact.Sampled(samples, u), nil
	}

	f, ok := toFloat(obj["value"])
	if !ok {
		return impact.Value{}, fmt.Errorf("missing numeric \"value\"")
	}
	return impact.Scalar(f, u), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
