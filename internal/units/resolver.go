package units

import (
	"context"
	"fmt"

	"github.com/tasteos/cook-session-engine/internal/store"
)

// ConvertResult is the outcome of a conversion (spec §4.1 contract).
type ConvertResult struct {
	Qty        float64
	Unit       string
	Confidence Confidence
	IsApprox   bool
	Note       string
}

// TargetSystem selects a destination unit automatically instead of a
// fixed to_unit (spec §4.1, "smart auto-targets").
type TargetSystem string

const (
	TargetMetric      TargetSystem = "metric"
	TargetUSCustomary TargetSystem = "us_customary"
)

// Resolver implements UnitResolver. It never errors — every failure mode
// degrades to a low/none confidence ConvertResult (spec §4.1 Failure).
type Resolver struct {
	densities store.DensityOverrideStore
}

func NewResolver(densities store.DensityOverrideStore) *Resolver {
	return &Resolver{densities: densities}
}

// ConvertOptions carries the optional inputs to Convert.
type ConvertOptions struct {
	IngredientName  string
	WorkspaceID     string
	ForceCrossType  bool
	OverrideDensity *float64
	TargetSystem    TargetSystem
}

// Convert performs the conversion described in spec §4.1.
func (r *Resolver) Convert(ctx context.Context, qty float64, fromUnit, toUnit string, opts ConvertOptions) ConvertResult {
	from, fromOK := normalizeUnit(fromUnit)
	if !fromOK {
		return ConvertResult{Qty: qty, Unit: fromUnit, Confidence: ConfidenceLow, IsApprox: true, Note: fmt.Sprintf("unrecognized unit %q", fromUnit)}
	}
	fromDef := unitsDB[from]

	var to string
	if opts.TargetSystem != "" && toUnit == "" {
		to = r.pickAutoTarget(qty, fromDef.dimension, opts.TargetSystem)
	} else {
		var toOK bool
		to, toOK = normalizeUnit(toUnit)
		if !toOK {
			return ConvertResult{Qty: qty, Unit: toUnit, Confidence: ConfidenceLow, IsApprox: true, Note: fmt.Sprintf("unrecognized unit %q", toUnit)}
		}
	}
	toDef := unitsDB[to]

	if from == to {
		return ConvertResult{Qty: qty, Unit: to, Confidence: ConfidenceHigh, IsApprox: false, Note: "identity conversion"}
	}

	if fromDef.dimension == toDef.dimension {
		baseQty := qty * fromDef.toBase
		outQty := baseQty / toDef.toBase
		return ConvertResult{Qty: outQty, Unit: to, Confidence: ConfidenceHigh, IsApprox: false, Note: "same-dimension conversion"}
	}

	// Cross-dimension: only mass<->volume is supported, and only via density.
	crossPair := (fromDef.dimension == DimensionMass && toDef.dimension == DimensionVolume) ||
		(fromDef.dimension == DimensionVolume && toDef.dimension == DimensionMass)
	if !crossPair {
		return ConvertResult{Qty: qty, Unit: to, Confidence: ConfidenceLow, IsApprox: true, Note: "incompatible dimensions"}
	}

	density, confidence, isApprox, note := r.resolveDensity(ctx, opts)
	if confidence == ConfidenceNone && !opts.ForceCrossType && opts.IngredientName == "" {
		return ConvertResult{Qty: qty, Unit: to, Confidence: ConfidenceLow, IsApprox: true, Note: "no density available for cross-type conversion"}
	}

	var outQty float64
	if fromDef.dimension == DimensionMass {
		// mass -> volume: grams -> ml via density, then ml -> target volume unit.
		grams := qty * fromDef.toBase
		ml := grams / density
		outQty = ml / toDef.toBase
	} else {
		// volume -> mass: this unit -> ml -> grams via density -> target mass unit.
		ml := qty * fromDef.toBase
		grams := ml * density
		outQty = grams / toDef.toBase
	}

	return ConvertResult{Qty: outQty, Unit: to, Confidence: confidence, IsApprox: isApprox, Note: note}
}

// resolveDensity implements the priority order of spec §4.1:
// override param -> DensityOverrideStore -> common table -> water default.
func (r *Resolver) resolveDensity(ctx context.Context, opts ConvertOptions) (density float64, confidence Confidence, isApprox bool, note string) {
	if opts.OverrideDensity != nil {
		return *opts.OverrideDensity, ConfidenceHigh, false, "explicit density override"
	}

	key := normalizeIngredientKey(opts.IngredientName)
	if key != "" && r.densities != nil && opts.WorkspaceID != "" {
		if rec, err := r.densities.GetDensityOverride(ctx, opts.WorkspaceID, key); err == nil {
			return rec.DensityGPerML, ConfidenceHigh, false, "density override"
		}
	}

	if key != "" {
		if d, ok := commonDensityDB[key]; ok {
			return d, ConfidenceMedium, true, "common cooking density defaults"
		}
	}

	if opts.ForceCrossType || key != "" {
		return 1.0, ConfidenceNone, true, "water density default (no ingredient data)"
	}

	return 1.0, ConfidenceNone, true, "no ingredient supplied"
}

// pickAutoTarget picks a readable destination unit for a dimension and
// target system (spec §4.1, "smart auto-targets").
func (r *Resolver) pickAutoTarget(qty float64, dim Dimension, system TargetSystem) string {
	switch dim {
	case DimensionVolume:
		if system == TargetUSCustomary {
			if qty < 3 {
				return "tsp"
			}
			return "cup"
		}
		if qty >= 1000 {
			return "l"
		}
		return "ml"
	case DimensionMass:
		if system == TargetUSCustomary {
			if qty >= 16 {
				return "lb"
			}
			return "oz"
		}
		if qty >= 1000 {
			return "kg"
		}
		return "g"
	default:
		return "count"
	}
}
