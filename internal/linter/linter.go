// Package linter reports experiment mistakes that do not stop evaluation
// but usually mean the results are not what the author intended.
package linter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/agentic-research/impactree/api"
	"github.com/agentic-research/impactree/internal/adapter"
	"github.com/agentic-research/impactree/internal/impact"
	"github.com/agentic-research/impactree/internal/units"
)

type Diagnostic struct {
	Path    string
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Path, d.Message)
}

type nodeInfo struct {
	path    string
	leaf    bool
	perUnit bool
}

// Lint checks exp against registry. Diagnostics come out in a stable order:
// methods, then hierarchy, then scenarios.
func Lint(exp *api.Experiment, registry *units.Registry) []Diagnostic {
	var diags []Diagnostic
	add := func(path, format string, args ...any) {
		diags = append(diags, Diagnostic{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Rule 1: method units outside the registry only sum with identical spellings.
	for _, m := range exp.Methods {
		if m.Unit != "" && !registry.Known(m.Unit) {
			add("methods."+m.Name, "unit %q is not in the unit table, it will not convert", m.Unit)
		}
	}

	// Rule 2: per-unit leaves need a reference unit.
	nodes := make(map[string]nodeInfo)
	var order []string
	var walk func(n api.Node, prefix string)
	walk = func(n api.Node, prefix string) {
		path := n.Name
		if prefix != "" {
			path = prefix + impact.PathSeparator + n.Name
		}
		perUnit, _ := strconv.ParseBool(n.Config[adapter.ConfigPerUnit])
		if _, dup := nodes[n.Name]; !dup {
			order = append(order, n.Name)
		}
		nodes[n.Name] = nodeInfo{path: path, leaf: n.IsLeaf(), perUnit: perUnit}

		if !n.IsLeaf() && len(n.Config) > 0 {
			add(path, "config on a non-leaf node is never read")
		}
		if perUnit && n.Config[adapter.ConfigUnit] == "" {
			add(path, "per-unit leaf has no %q config", adapter.ConfigUnit)
		}
		for _, c := range n.Children {
			walk(c, path)
		}
	}
	walk(exp.Hierarchy, "")

	// Rule 3: scenario inputs must land on leaves.
	for _, sc := range exp.Scenarios {
		base := "scenarios." + sc.Name
		for _, name := range sortedKeys(sc.Params) {
			info, ok := nodes[name]
			switch {
			case !ok:
				add(base+".params", "unknown node %q", name)
			case !info.leaf:
				add(base+".params", "node %q is not a leaf, its magnitude is ignored", name)
			}
		}
		for _, name := range sortedKeys(sc.Units) {
			if _, ok := sc.Params[name]; !ok {
				add(base+".units", "unit for %q has no matching parameter", name)
			}
		}
		for _, name := range order {
			if info := nodes[name]; info.perUnit {
				if _, ok := sc.Params[name]; !ok {
					add(base, "no magnitude for per-unit leaf %s", info.path)
				}
			}
		}
	}
	return diags
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, strings.Compare)
	return keys
}
