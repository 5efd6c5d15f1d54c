package impact

import (
	"slices"
	"sort"

	"github.com/agentic-research/impactree/internal/units"
)

// Value is one indicator's result for one node.
// In multi-magnitude mode Samples holds the raw distribution and Magnitude
// is its mean.
type Value struct {
	Magnitude float64
	Unit      units.Unit
	Samples   []float64
}

// Scalar returns a single-magnitude value.
func Scalar(m float64, u units.Unit) Value {
	return Value{Magnitude: m, Unit: u}
}

// Sampled returns a multi-magnitude value whose magnitude is the sample mean.
func Sampled(samples []float64, u units.Unit) Value {
	return Value{Magnitude: mean(samples), Unit: u, Samples: slices.Clone(samples)}
}

// IsMulti reports whether the value carries a sample distribution.
func (v Value) IsMulti() bool {
	return v.Samples != nil
}

// In expresses v in unit to.
func (v Value) In(to units.Unit) (Value, error) {
	m, err := units.Convert(v.Magnitude, v.Unit, to)
	if err != nil {
		return Value{}, err
	}
	out := Value{Magnitude: m, Unit: to}
	if to.IsZero() {
		out.Unit = v.Unit
	}
	if v.Samples != nil {
		out.Samples = make([]float64, len(v.Samples))
		for i, s := range v.Samples {
			// Convert cannot fail here; compatibility was checked above.
			out.Samples[i], _ = units.Convert(s, v.Unit, to)
		}
	}
	return out, nil
}

// Results maps indicator name to value.
type Results map[string]Value

// Indicators returns the indicator names in lexical order.
func (r Results) Indicators() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy.
func (r Results) Clone() Results {
	if r == nil {
		return nil
	}
	out := make(Results, len(r))
	for k, v := range r {
		v.Samples = slices.Clone(v.Samples)
		out[k] = v
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
