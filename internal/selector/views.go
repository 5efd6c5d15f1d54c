package selector

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// DegenerateValue is what NormalizedTable assigns to every cell of a column
// whose reference population holds a single distinct value.
const DegenerateValue = 0.0

// CompleteTable returns the root magnitude of every method for every
// scenario of the universe, regardless of the selector's scope. Every value
// is expressed in its method's reference unit.
func (s *Selector) CompleteTable() (*Table, error) {
	s.completeOnce.Do(func() {
		s.complete, s.completeErr = s.buildComplete()
	})
	return s.complete, s.completeErr
}

func (s *Selector) buildComplete() (*Table, error) {
	cols := make([]string, len(s.methods))
	for j, m := range s.methods {
		cols[j] = m.Name
	}
	t := newTable(s.universe, cols)
	for i, sc := range s.universe {
		tree, err := s.tree(sc)
		if err != nil {
			return nil, err
		}
		root := tree.Root()
		for j, m := range s.methods {
			v, ok := root.Result(m.Name)
			if !ok {
				return nil, &SelectionError{Kind: "method", Identifier: m.Name, Scenario: sc, Err: ErrMissingResult}
			}
			v, err = inMethodUnit(tree, root, m, v)
			if err != nil {
				return nil, err
			}
			t.set(i, j, v.Magnitude)
		}
	}
	s.logger.Debug("complete table built",
		zap.Int("scenarios", len(s.universe)),
		zap.Int("methods", len(s.methods)))
	return t, nil
}

// BaseTable is CompleteTable restricted to the selected scenarios and methods.
func (s *Selector) BaseTable() (*Table, error) {
	s.baseOnce.Do(func() {
		complete, err := s.CompleteTable()
		if err != nil {
			s.baseErr = err
			return
		}
		s.base = complete.project(s.rowMask, s.colMask)
	})
	return s.base, s.baseErr
}

// NormalizedTable min-max scales each selected method onto [0, 1].
//
// With useFullUniverse the bounds come from every scenario of the
// experiment, so the values do not depend on the scope; the result still
// only holds the selected scenarios. Otherwise the bounds come from the
// selected scenarios alone. A column whose reference values are all equal
// maps to DegenerateValue.
func (s *Selector) NormalizedTable(useFullUniverse bool) (*Table, error) {
	complete, err := s.CompleteTable()
	if err != nil {
		return nil, err
	}

	refRows := s.rowMask
	if useFullUniverse {
		refRows = allOf(len(s.universe))
	}
	ref := complete.project(refRows, s.colMask)

	for j, col := range ref.cols {
		values := ref.columns[j]
		lo, hi := bounds(values)
		if hi == lo {
			s.logger.Debug("degenerate normalization column", zap.String("method", col), zap.Float64("value", lo))
			for i := range values {
				values[i] = DegenerateValue
			}
			continue
		}
		for i, v := range values {
			values[i] = (v - lo) / (hi - lo)
		}
	}

	if !useFullUniverse {
		return ref, nil
	}
	return ref.project(s.rowMask, allOf(len(ref.cols))), nil
}

// CompareToBaseline divides each selected method's column by the matching
// baseline value. The baseline must hold one value per selected method, in
// MethodNames order. A zero baseline yields IEEE infinities or NaN.
// The cached tables are left untouched.
func (s *Selector) CompareToBaseline(baseline []float64) (*Table, error) {
	base, err := s.BaseTable()
	if err != nil {
		return nil, err
	}
	if len(baseline) != len(base.cols) {
		return nil, &SelectionError{
			Kind:       "baseline",
			Identifier: strconv.Itoa(len(baseline)),
			Err:        fmt.Errorf("%w: want %d", ErrBaselineLength, len(base.cols)),
		}
	}

	out := base.project(allOf(len(base.rows)), allOf(len(base.cols)))
	for j := range out.cols {
		for i := range out.rows {
			out.columns[j][i] /= baseline[j]
		}
	}
	return out, nil
}

func bounds(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
