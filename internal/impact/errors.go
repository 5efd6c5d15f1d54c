package impact

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned when a node name does not resolve in a tree.
var ErrNotFound = errors.New("node not found")

// ErrSampleSize is returned when multi-magnitude values with different sample
// counts are combined.
var ErrSampleSize = errors.New("sample size mismatch")

// StructureError reports a malformed hierarchy: invalid fields,
// duplicate names, or misuse of the tree lifecycle.
type StructureError struct {
	Scenario string
	Path     string              // offending node path, empty for whole-tree reports
	Reason   string              // single-cause description
	Problems []string            // one per offending field
	Dups     map[string][]string // duplicated name -> every path carrying it
}

func (e *StructureError) Error() string {
	var b strings.Builder
	b.WriteString("hierarchy structure")
	if e.Scenario != "" {
		fmt.Fprintf(&b, " (scenario %q)", e.Scenario)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " at %s", e.Path)
	}
	var parts []string
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	parts = append(parts, e.Problems...)
	if len(e.Dups) > 0 {
		names := make([]string, 0, len(e.Dups))
		for n := range e.Dups {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			parts = append(parts, fmt.Sprintf("duplicate name %q at %s", n, strings.Join(e.Dups[n], ", ")))
		}
	}
	b.WriteString(": ")
	b.WriteString(strings.Join(parts, "; "))
	return b.String()
}

// UnitMismatchError reports children whose values for one indicator cannot be
// combined, either because their units differ in dimension or because their
// sample distributions differ in size.
type UnitMismatchError struct {
	Scenario  string
	Path      string
	Indicator string
	Units     []string
	Err       error
}

func (e *UnitMismatchError) Error() string {
	msg := fmt.Sprintf("aggregate %s [%s]", e.Path, e.Indicator)
	if e.Scenario != "" {
		msg = fmt.Sprintf("scenario %q: %s", e.Scenario, msg)
	}
	return fmt.Sprintf("%s: %v (units: %s)", msg, e.Err, strings.Join(e.Units, ", "))
}

func (e *UnitMismatchError) Unwrap() error { return e.Err }

// MissingValueError reports a leaf that was never given results while
// aggregation runs without the ignore-missing policy.
type MissingValueError struct {
	Scenario string
	Path     string
}

func (e *MissingValueError) Error() string {
	if e.Scenario != "" {
		return fmt.Sprintf("scenario %q: leaf %s has no results", e.Scenario, e.Path)
	}
	return fmt.Sprintf("leaf %s has no results", e.Path)
}
