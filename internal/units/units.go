// Package units implements UnitResolver: quantity conversion across mass,
// volume and count dimensions, with density resolution for cross-type
// conversions (spec §4.1).
package units

import (
	"strings"
)

// Dimension classifies a unit.
type Dimension string

const (
	DimensionMass   Dimension = "mass"
	DimensionVolume Dimension = "volume"
	DimensionCount  Dimension = "count"
	DimensionOther  Dimension = "other"
)

// Confidence is the confidence label attached to a conversion result.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// unitDef is one entry of the fixed constants table: how many base units
// of its dimension one unit is worth (grams for mass, ml for volume).
type unitDef struct {
	dimension Dimension
	toBase    float64 // multiply to convert this unit -> base unit
}

// unitsDB is the fixed conversion table (spec §4.1: "1 cup = 236.588 ml,
// 1 tsp = 4.92892 ml, 1 kg = 1000 g").
var unitsDB = map[string]unitDef{
	// mass, base = gram
	"g":  {DimensionMass, 1},
	"kg": {DimensionMass, 1000},
	"mg": {DimensionMass, 0.001},
	"oz": {DimensionMass, 28.349523125},
	"lb": {DimensionMass, 453.59237},

	// volume, base = ml
	"ml":   {DimensionVolume, 1},
	"l":    {DimensionVolume, 1000},
	"tsp":  {DimensionVolume, 4.92892},
	"tbsp": {DimensionVolume, 14.7868},
	"cup":  {DimensionVolume, 236.588},
	"floz": {DimensionVolume, 29.5735},
	"pt":   {DimensionVolume, 473.176},
	"qt":   {DimensionVolume, 946.353},
	"gal":  {DimensionVolume, 3785.41},

	// count
	"count": {DimensionCount, 1},
	"piece": {DimensionCount, 1},
}

// synonyms maps case-insensitive aliases to a canonical unit key (spec
// §4.1: "T → tbsp, grams → g, plurals collapsed").
var synonyms = map[string]string{
	"gram": "g", "grams": "g", "gm": "g",
	"kilogram": "kg", "kilograms": "kg", "kgs": "kg",
	"milligram": "mg", "milligrams": "mg",
	"ounce": "oz", "ounces": "oz",
	"pound": "lb", "pounds": "lb", "lbs": "lb",
	"milliliter": "ml", "milliliters": "ml", "millilitre": "ml", "millilitres": "ml",
	"liter": "l", "liters": "l", "litre": "l", "litres": "l",
	"teaspoon": "tsp", "teaspoons": "tsp", "t": "tsp",
	"tablespoon": "tbsp", "tablespoons": "tbsp", "T": "tbsp",
	"cups": "cup",
	"fl oz": "floz", "fluid ounce": "floz", "fluid ounces": "floz",
	"pint": "pt", "pints": "pt",
	"quart": "qt", "quarts": "qt",
	"gallon": "gal", "gallons": "gal",
	"pieces": "piece", "pcs": "piece", "ea": "count", "each": "count",
}

// commonDensityDB is the curated common-ingredient density table (spec
// §4.1 priority 3). Values are g/ml. Chosen as an internally consistent
// working set.
var commonDensityDB = map[string]float64{
	"flour":        0.53,
	"sugar":        0.85,
	"brown sugar":  0.93,
	"powdered sugar": 0.56,
	"butter":       0.96,
	"milk":         1.03,
	"honey":        1.42,
	"oil":          0.92,
	"vegetable oil": 0.92,
	"olive oil":    0.91,
	"rice":         0.85,
	"salt":         1.22,
	"cocoa powder": 0.41,
	"oats":         0.41,
	"water":        1.0,
}

// normalizeUnit lowercases, trims, and resolves synonyms/plurals.
func normalizeUnit(u string) (string, bool) {
	trimmed := strings.TrimSpace(u)
	lower := strings.ToLower(trimmed)
	if _, ok := unitsDB[lower]; ok {
		return lower, true
	}
	if canon, ok := synonyms[trimmed]; ok {
		if _, ok2 := unitsDB[canon]; ok2 {
			return canon, true
		}
	}
	if canon, ok := synonyms[lower]; ok {
		if _, ok2 := unitsDB[canon]; ok2 {
			return canon, true
		}
	}
	// collapse a trailing "s" plural as a last resort.
	if strings.HasSuffix(lower, "s") {
		singular := strings.TrimSuffix(lower, "s")
		if _, ok := unitsDB[singular]; ok {
			return singular, true
		}
	}
	return lower, false
}

// normalizeIngredientKey lowercases, collapses whitespace, strips
// punctuation (spec §4.2).
func normalizeIngredientKey(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	prevSpace := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevSpace = false
		case r == ' ' || r == '-' || r == '_':
			if !prevSpace && b.Len() > 0 {
				b.WriteRune(' ')
				prevSpace = true
			}
		default:
			// punctuation dropped
		}
	}
	return strings.TrimSpace(b.String())
}
