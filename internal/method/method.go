// Package method implements MethodSwitcher: a curated cooking-method
// table with rewrite rules for step titles/minute estimates and a
// tradeoffs profile (spec §4.9).
package method

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tasteos/cook-session-engine/pkg/models"
)

// UnknownMethodError marks a method_key not present in the curated table.
type UnknownMethodError struct {
	MethodKey string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown method %q", e.MethodKey)
}

// Tradeoffs describes the qualitative and time impact of switching to a method.
type Tradeoffs struct {
	MethodKey    string  `json:"method_key"`
	TimeDeltaMin int     `json:"time_delta_min"`
	Cleanup      string  `json:"cleanup"`
	HandsOn      string  `json:"hands_on"`
	Flavor       string  `json:"flavor"`
	TimeDeltaPct float64 `json:"-"`
}

// methodDef is one entry in the curated table.
type methodDef struct {
	timeDeltaPct float64 // relative to recipe baseline time_minutes
	cleanup      string
	handsOn      string
	flavor       string
	rewrite      func(title string) string
}

var table = map[string]methodDef{
	"air_fryer": {
		timeDeltaPct: -0.20,
		cleanup:      "easy",
		handsOn:      "low",
		flavor:       "crisper exterior, less browning depth",
		rewrite:      func(title string) string { return "Air fryer: " + title },
	},
	"instant_pot": {
		timeDeltaPct: -0.35,
		cleanup:      "easy",
		handsOn:      "low",
		flavor:       "softer texture, less reduction",
		rewrite:      func(title string) string { return "Instant Pot: " + title },
	},
	"oven": {
		timeDeltaPct: 0.10,
		cleanup:      "moderate",
		handsOn:      "low",
		flavor:       "even heat, gentle browning",
		rewrite:      func(title string) string { return "Oven: " + title },
	},
	"stovetop": {
		timeDeltaPct: 0,
		cleanup:      "moderate",
		handsOn:      "high",
		flavor:       "baseline",
		rewrite:      func(title string) string { return "Stovetop: " + title },
	},
	"slow_cooker": {
		timeDeltaPct: 2.00,
		cleanup:      "easy",
		handsOn:      "very low",
		flavor:       "deeper melding of flavors, softer texture",
		rewrite:      func(title string) string { return "Slow cooker: " + title },
	},
}

// Keys returns the curated method table's keys, sorted for stable output.
func Keys() []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Preview synthesizes a replacement step list and tradeoffs without
// mutating session state (spec §4.9 Preview).
func Preview(effectiveSteps []models.RecipeStep, recipeTimeMinutes int, methodKey string) ([]models.RecipeStep, Tradeoffs, error) {
	def, ok := table[methodKey]
	if !ok {
		return nil, Tradeoffs{}, &UnknownMethodError{MethodKey: methodKey}
	}

	preview := make([]models.RecipeStep, len(effectiveSteps))
	for i, s := range effectiveSteps {
		rewritten := s
		rewritten.Title = def.rewrite(s.Title)
		if s.MinutesEst != nil {
			adjusted := scaleMinutes(*s.MinutesEst, def.timeDeltaPct)
			rewritten.MinutesEst = &adjusted
		}
		preview[i] = rewritten
	}

	delta := scaleMinutes(recipeTimeMinutes, def.timeDeltaPct) - recipeTimeMinutes
	tradeoffs := Tradeoffs{
		MethodKey:    methodKey,
		TimeDeltaMin: delta,
		Cleanup:      def.cleanup,
		HandsOn:      def.handsOn,
		Flavor:       def.flavor,
		TimeDeltaPct: def.timeDeltaPct,
	}
	return preview, tradeoffs, nil
}

func scaleMinutes(base int, pct float64) int {
	scaled := float64(base) * (1 + pct)
	if scaled < 0 {
		scaled = 0
	}
	return int(scaled + 0.5)
}

// Apply sets method_key and steps_override, emitting a method_apply
// event is the caller's responsibility (spec §4.9 Apply).
func Apply(session *models.CookSession, methodKey string, stepsOverride []models.RecipeStep) {
	session.MethodKey = methodKey
	session.StepsOverride = append([]models.RecipeStep(nil), stepsOverride...)
}

// Reset clears method_key and steps_override, unless adjustments still
// pin an override: in that case the override collapses to the state the
// adjustments log would produce on its own, i.e. the recipe steps with
// only non-undone adjustment before/after edits re-applied in order
// (spec §4.9 Reset).
func Reset(session *models.CookSession, recipeSteps []models.RecipeStep) {
	session.MethodKey = ""
	if !hasActiveAdjustments(session) {
		session.StepsOverride = nil
		return
	}
	session.StepsOverride = replayAdjustments(session, recipeSteps)
}

func hasActiveAdjustments(session *models.CookSession) bool {
	for _, e := range session.AdjustmentsLog {
		if e.UndoneAt == nil {
			return true
		}
	}
	return false
}

// replayAdjustments rebuilds an effective step list from the recipe
// baseline plus every non-undone adjustment's recorded step-index edit,
// applied in log order.
func replayAdjustments(session *models.CookSession, recipeSteps []models.RecipeStep) []models.RecipeStep {
	out := make([]models.RecipeStep, len(recipeSteps))
	copy(out, recipeSteps)
	for _, e := range session.AdjustmentsLog {
		if e.UndoneAt != nil {
			continue
		}
		idx := e.Adjustment.StepIndex
		if idx < 0 || idx >= len(out) {
			continue
		}
		out[idx] = models.RecipeStep{
			StepIndex:  idx,
			Title:      e.Adjustment.Title,
			Bullets:    e.Adjustment.Bullets,
			MinutesEst: e.Adjustment.MinutesEst,
		}
	}
	return out
}

// Label renders a human-friendly method name, e.g. "air_fryer" -> "Air Fryer".
func Label(methodKey string) string {
	parts := strings.Split(methodKey, "_")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
