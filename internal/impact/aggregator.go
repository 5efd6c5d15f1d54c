package impact

import (
	"fmt"

	"github.com/agentic-research/impactree/api"
	"github.com/agentic-research/impactree/internal/units"
)

// ReduceFunc combines the children's values for one indicator into the
// parent's value. It is only called with at least one value.
type ReduceFunc func(values []Value) (Value, error)

// builtinAggregators is the closed set of reductions every tree knows.
// Trees can be given more with WithAggregator.
var builtinAggregators = map[string]ReduceFunc{
	api.AggregatorSum: Sum,
}

// Sum adds values after expressing them all in the first non-zero unit.
// Scalar values are broadcast over sample distributions.
func Sum(values []Value) (Value, error) {
	var target units.Unit
	n := -1
	for _, v := range values {
		if target.IsZero() && !v.Unit.IsZero() {
			target = v.Unit
		}
		if v.Samples == nil {
			continue
		}
		if n >= 0 && len(v.Samples) != n {
			return Value{}, fmt.Errorf("%w: %d and %d", ErrSampleSize, n, len(v.Samples))
		}
		n = len(v.Samples)
	}

	out := Value{Unit: target}
	if n >= 0 {
		out.Samples = make([]float64, n)
	}
	for _, v := range values {
		c, err := v.In(target)
		if err != nil {
			return Value{}, err
		}
		out.Magnitude += c.Magnitude
		for i := range out.Samples {
			if c.Samples != nil {
				out.Samples[i] += c.Samples[i]
			} else {
				out.Samples[i] += c.Magnitude
			}
		}
	}
	if out.Samples != nil {
		out.Magnitude = mean(out.Samples)
	}
	return out, nil
}
