package api

// AggregatorSum is the built-in aggregator tag; it is also used when a node
// leaves Aggregator empty.
const AggregatorSum = "sum"

// Experiment is the root configuration of an impact study.
// It ties one hierarchy to the indicators it is evaluated on and the
// scenarios it is evaluated for.
type Experiment struct {
	// Name of the experiment, used in logs and exports.
	Name string `json:"name" yaml:"name" hcl:"name,optional"`
	// Methods are the impact indicators every leaf reports on.
	Methods []Method `json:"methods" yaml:"methods" hcl:"method,block" validate:"required,min=1,unique=Name,dive"`
	// Hierarchy is the declarative decomposition of the studied system.
	Hierarchy Node `json:"hierarchy" yaml:"hierarchy" hcl:"hierarchy,block"`
	// Scenarios are the independent input assignments to evaluate.
	Scenarios []Scenario `json:"scenarios,omitempty" yaml:"scenarios,omitempty" hcl:"scenario,block" validate:"unique=Name,dive"`
	// Results is the path of a leaf results document read by the JSONPath adapter.
	Results string `json:"results,omitempty" yaml:"results,omitempty" hcl:"results,optional"`
	// IgnoreMissing treats leaves without results as zero instead of failing.
	IgnoreMissing bool `json:"ignore_missing,omitempty" yaml:"ignore_missing,omitempty" hcl:"ignore_missing,optional"`
	// Workers bounds how many scenarios are evaluated concurrently (0 = one per CPU).
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty" hcl:"workers,optional" validate:"gte=0"`
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty" hcl:"log_level,optional" validate:"omitempty,oneof=debug info warn error"`
}

// Node represents one element of the hierarchy.
// It either contains other nodes or is a leaf evaluated by an adapter.
type Node struct {
	// Name of the node. Must be unique across the whole hierarchy.
	Name string `json:"name" yaml:"name" hcl:"name,label" validate:"required"`
	// Aggregator names the reduction applied to the children (default "sum").
	Aggregator string `json:"aggregator,omitempty" yaml:"aggregator,omitempty" hcl:"aggregator,optional"`
	// Config is handed verbatim to the adapter for leaves.
	Config map[string]string `json:"config,omitempty" yaml:"config,omitempty" hcl:"config,optional"`
	// Children nodes, in display order.
	Children []Node `json:"children,omitempty" yaml:"children,omitempty" hcl:"node,block" validate:"dive"`
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Method is an impact indicator together with its reference unit.
type Method struct {
	Name  string `json:"name" yaml:"name" hcl:"name,label" validate:"required"`
	Unit  string `json:"unit" yaml:"unit" hcl:"unit" validate:"required"`
	Label string `json:"label,omitempty" yaml:"label,omitempty" hcl:"label,optional"`
}

// DisplayLabel returns Label, falling back to Name.
func (m Method) DisplayLabel() string {
	if m.Label != "" {
		return m.Label
	}
	return m.Name
}

// Scenario is one complete input assignment for the hierarchy's leaves.
type Scenario struct {
	Name string `json:"name" yaml:"name" hcl:"name,label" validate:"required"`
	// Params maps a node name to the magnitude used for that node.
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty" hcl:"params,optional"`
	// Units maps a node name to the unit of its Params entry.
	Units map[string]string `json:"units,omitempty" yaml:"units,omitempty" hcl:"units,optional"`
}
