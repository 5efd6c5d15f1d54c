// Package units resolves unit strings attached to impact values into a
// dimension and a scale factor, so values expressed in compatible units can
// be combined.
//
// A Registry is immutable once built and safe for concurrent use.
package units

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIncompatible is returned when converting between different dimensions.
var ErrIncompatible = errors.New("incompatible units")

// Unit is a parsed unit string.
type Unit struct {
	Symbol    string  // as written by the producer of the value
	Dimension string  // values with equal dimensions can be summed
	Factor    float64 // multiplier to the dimension's base unit
}

// String returns the symbol the unit was parsed from.
func (u Unit) String() string {
	return u.Symbol
}

// IsZero reports whether the unit is unset.
func (u Unit) IsZero() bool {
	return u.Symbol == "" && u.Dimension == ""
}

// Compatible reports whether a value in u can be expressed in o.
// The zero unit is compatible with everything; it is carried by imputed zeros.
func (u Unit) Compatible(o Unit) bool {
	if u.IsZero() || o.IsZero() {
		return true
	}
	return u.Dimension == o.Dimension
}

// Convert expresses v (given in from) in the unit to.
func Convert(v float64, from, to Unit) (float64, error) {
	if !from.Compatible(to) {
		return 0, fmt.Errorf("%w: %q and %q", ErrIncompatible, from.Symbol, to.Symbol)
	}
	if from.IsZero() || to.IsZero() || from.Factor == to.Factor {
		return v, nil
	}
	return v * from.Factor / to.Factor, nil
}

// Definition declares one unit symbol and its aliases.
type Definition struct {
	Symbol    string
	Dimension string
	Factor    float64
	Aliases   []string
}

// Registry maps normalized unit symbols to units.
type Registry struct {
	units map[string]Unit
}

// NewRegistry builds a registry from defs. Later definitions win on
// conflicting symbols.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{units: make(map[string]Unit, len(defs)*2)}
	for _, d := range defs {
		factor := d.Factor
		if factor == 0 {
			factor = 1
		}
		u := Unit{Symbol: d.Symbol, Dimension: d.Dimension, Factor: factor}
		r.units[normalize(d.Symbol)] = u
		for _, a := range d.Aliases {
			r.units[normalize(a)] = u
		}
	}
	return r
}

// Parse resolves s. Unknown symbols become their own dimension with factor 1,
// so two values are compatible exactly when they carry the same symbol.
// The empty string parses to the zero Unit.
func (r *Registry) Parse(s string) Unit {
	key := normalize(s)
	if key == "" {
		return Unit{}
	}
	if r != nil {
		if u, ok := r.units[key]; ok {
			u.Symbol = strings.TrimSpace(s)
			return u
		}
	}
	return Unit{Symbol: strings.TrimSpace(s), Dimension: key, Factor: 1}
}

// Known reports whether s is declared in the registry, directly or as an alias.
func (r *Registry) Known(s string) bool {
	if r == nil {
		return false
	}
	_, ok := r.units[normalize(s)]
	return ok
}

// Len returns the number of known symbols, aliases included.
func (r *Registry) Len() int {
	return len(r.units)
}

// normalize folds case and separators: "kg CO2-Eq" and "kg_co2_eq" share a key.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

var defaultRegistry = NewRegistry(defaultDefinitions...)

// Default returns the shared registry of common physical and LCIA units.
func Default() *Registry {
	return defaultRegistry
}

var defaultDefinitions = []Definition{
	// mass
	{Symbol: "kg", Dimension: "mass", Factor: 1, Aliases: []string{"kilogram"}},
	{Symbol: "g", Dimension: "mass", Factor: 1e-3, Aliases: []string{"gram"}},
	{Symbol: "mg", Dimension: "mass", Factor: 1e-6},
	{Symbol: "t", Dimension: "mass", Factor: 1e3, Aliases: []string{"tonne", "ton"}},
	// energy
	{Symbol: "J", Dimension: "energy", Factor: 1, Aliases: []string{"joule"}},
	{Symbol: "kJ", Dimension: "energy", Factor: 1e3},
	{Symbol: "MJ", Dimension: "energy", Factor: 1e6},
	{Symbol: "GJ", Dimension: "energy", Factor: 1e9},
	{Symbol: "Wh", Dimension: "energy", Factor: 3.6e3},
	{Symbol: "kWh", Dimension: "energy", Factor: 3.6e6},
	{Symbol: "MWh", Dimension: "energy", Factor: 3.6e9},
	// volume, area, length
	{Symbol: "m3", Dimension: "volume", Factor: 1, Aliases: []string{"m^3", "cubic meter"}},
	{Symbol: "L", Dimension: "volume", Factor: 1e-3, Aliases: []string{"liter", "litre"}},
	{Symbol: "m2", Dimension: "area", Factor: 1, Aliases: []string{"m^2", "square meter"}},
	{Symbol: "m", Dimension: "length", Factor: 1, Aliases: []string{"meter", "metre"}},
	{Symbol: "km", Dimension: "length", Factor: 1e3},
	// time
	{Symbol: "s", Dimension: "time", Factor: 1, Aliases: []string{"second"}},
	{Symbol: "h", Dimension: "time", Factor: 3600, Aliases: []string{"hour"}},
	{Symbol: "year", Dimension: "time", Factor: 31_536_000, Aliases: []string{"a", "yr"}},
	// characterized indicators
	{Symbol: "kg CO2 eq", Dimension: "co2 eq", Factor: 1, Aliases: []string{"kg CO2eq", "kg CO2e"}},
	{Symbol: "g CO2 eq", Dimension: "co2 eq", Factor: 1e-3, Aliases: []string{"g CO2eq", "g CO2e"}},
	{Symbol: "t CO2 eq", Dimension: "co2 eq", Factor: 1e3, Aliases: []string{"t CO2eq", "t CO2e"}},
	{Symbol: "kg Sb eq", Dimension: "sb eq", Factor: 1},
	{Symbol: "kg CFC11 eq", Dimension: "cfc11 eq", Factor: 1, Aliases: []string{"kg CFC-11 eq"}},
	{Symbol: "kg NMVOC eq", Dimension: "nmvoc eq", Factor: 1},
	{Symbol: "kg P eq", Dimension: "p eq", Factor: 1},
	{Symbol: "kg N eq", Dimension: "n eq", Factor: 1},
	{Symbol: "mol N eq", Dimension: "mol n eq", Factor: 1},
	{Symbol: "mol H+ eq", Dimension: "mol h+ eq", Factor: 1},
	{Symbol: "kBq U235 eq", Dimension: "u235 eq", Factor: 1, Aliases: []string{"kBq U-235 eq"}},
	{Symbol: "Bq U235 eq", Dimension: "u235 eq", Factor: 1e-3, Aliases: []string{"Bq U-235 eq"}},
	{Symbol: "m3 world eq", Dimension: "water scarcity", Factor: 1, Aliases: []string{"m3 depriv."}},
	{Symbol: "disease incidence", Dimension: "disease incidence", Factor: 1},
	{Symbol: "CTUe", Dimension: "ctue", Factor: 1},
	{Symbol: "CTUh", Dimension: "ctuh", Factor: 1},
	{Symbol: "Pt", Dimension: "points", Factor: 1, Aliases: []string{"point"}},
	{Symbol: "mPt", Dimension: "points", Factor: 1e-3},
}
