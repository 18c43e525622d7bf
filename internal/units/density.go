package units

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tasteos/cook-session-engine/internal/store"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

// ValidationError marks a client-error per spec §7 Validation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

const (
	minDensity = 0.0
	maxDensity = 5.0
)

// DensityService implements DensityOverrideStore's operations (spec
// §4.2): upsert, list, delete, with sanity-bounds validation.
type DensityService struct {
	store    store.DensityOverrideStore
	resolver *Resolver
}

func NewDensityService(s store.DensityOverrideStore, resolver *Resolver) *DensityService {
	return &DensityService{store: s, resolver: resolver}
}

// UpsertByDensity upserts an override given an explicit g/ml value.
func (d *DensityService) UpsertByDensity(ctx context.Context, workspaceID, displayName string, densityGPerML float64) (*models.IngredientDensityOverride, error) {
	if densityGPerML <= minDensity || densityGPerML > maxDensity {
		return nil, &ValidationError{Msg: fmt.Sprintf("density %.4f g/ml is outside the sane range (0, %.0f]", densityGPerML, maxDensity)}
	}
	key := normalizeIngredientKey(displayName)
	if key == "" {
		return nil, &ValidationError{Msg: "ingredient name is required"}
	}

	now := time.Now().UTC()
	override := &models.IngredientDensityOverride{
		ID:            uuid.NewString(),
		WorkspaceID:   workspaceID,
		IngredientKey: key,
		DisplayName:   displayName,
		DensityGPerML: densityGPerML,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if existing, err := d.store.GetDensityOverride(ctx, workspaceID, key); err == nil {
		override.ID = existing.ID
	}
	if err := d.store.UpsertDensityOverride(ctx, override); err != nil {
		return nil, err
	}
	return override, nil
}

// UpsertByMassVolumePair computes density_g_per_ml = mass_in_grams /
// volume_in_ml using the resolver for primitive unit conversion, then
// upserts (spec §4.2 Validation).
func (d *DensityService) UpsertByMassVolumePair(ctx context.Context, workspaceID, displayName string, massValue float64, massUnit string, volValue float64, volUnit string) (*models.IngredientDensityOverride, error) {
	massResult := d.resolver.Convert(ctx, massValue, massUnit, "g", ConvertOptions{})
	if massResult.Confidence == ConfidenceLow {
		return nil, &ValidationError{Msg: fmt.Sprintf("unrecognized mass unit %q", massUnit)}
	}
	volResult := d.resolver.Convert(ctx, volValue, volUnit, "ml", ConvertOptions{})
	if volResult.Confidence == ConfidenceLow {
		return nil, &ValidationError{Msg: fmt.Sprintf("unrecognized volume unit %q", volUnit)}
	}
	if volResult.Qty <= 0 {
		return nil, &ValidationError{Msg: "volume must be positive"}
	}
	density := massResult.Qty / volResult.Qty
	return d.UpsertByDensity(ctx, workspaceID, displayName, density)
}

func (d *DensityService) List(ctx context.Context, workspaceID, query string) ([]models.IngredientDensityOverride, error) {
	return d.store.ListDensityOverrides(ctx, workspaceID, query)
}

// Delete removes the override identified by its id (spec §3, §6 DELETE
// /units/densities/{id}).
func (d *DensityService) Delete(ctx context.Context, workspaceID, id string) error {
	return d.store.DeleteDensityOverrideByID(ctx, workspaceID, id)
}
