package units_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tasteos/cook-session-engine/internal/store"
	"github.com/tasteos/cook-session-engine/internal/units"
)

func newResolver(t *testing.T) (*units.Resolver, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return units.NewResolver(s), s
}

func TestConvertSelfConversion(t *testing.T) {
	r, _ := newResolver(t)
	res := r.Convert(context.Background(), 3.0, "cup", "cup", units.ConvertOptions{})
	require.Equal(t, units.ConfidenceHigh, res.Confidence)
	require.False(t, res.IsApprox)
	require.InDelta(t, 3.0, res.Qty, 1e-9)
}

func TestConvertMassRoundTrip(t *testing.T) {
	r, _ := newResolver(t)
	kg := r.Convert(context.Background(), 2500, "g", "kg", units.ConvertOptions{})
	require.Equal(t, units.ConfidenceHigh, kg.Confidence)
	back := r.Convert(context.Background(), kg.Qty, "kg", "g", units.ConvertOptions{})
	require.InDelta(t, 2500, back.Qty, 1e-6)
}

func TestConvertVolumeRoundTrip(t *testing.T) {
	r, _ := newResolver(t)
	l := r.Convert(context.Background(), 750, "ml", "l", units.ConvertOptions{})
	back := r.Convert(context.Background(), l.Qty, "l", "ml", units.ConvertOptions{})
	require.InDelta(t, 750, back.Qty, 1e-6)
}

func TestConvertUnknownUnitFallsBackLow(t *testing.T) {
	r, _ := newResolver(t)
	res := r.Convert(context.Background(), 1, "smidgen", "g", units.ConvertOptions{})
	require.Equal(t, units.ConfidenceLow, res.Confidence)
	require.Equal(t, 1.0, res.Qty)
}

func TestConvertCrossTypeWithOverrideDensity(t *testing.T) {
	r, _ := newResolver(t)
	d := 2.0
	res := r.Convert(context.Background(), 500, "g", "ml", units.ConvertOptions{OverrideDensity: &d})
	require.Equal(t, units.ConfidenceHigh, res.Confidence)
	require.False(t, res.IsApprox)
	require.InDelta(t, 250.0, res.Qty, 1e-6)
}

func TestConvertCrossTypeUnknownIngredientForcedFallsBackToWater(t *testing.T) {
	r, _ := newResolver(t)
	res := r.Convert(context.Background(), 1, "cup", "g", units.ConvertOptions{ForceCrossType: true})
	require.Equal(t, units.ConfidenceNone, res.Confidence)
	require.True(t, res.IsApprox)
	require.Greater(t, res.Qty, 230.0)
}

func TestConvertCrossTypeWithStoredOverrideTakesPrecedenceOverCommonTable(t *testing.T) {
	r, s := newResolver(t)
	ctx := context.Background()
	svc := units.NewDensityService(s, r)
	_, err := svc.UpsertByDensity(ctx, "ws1", "flour", 2.0)
	require.NoError(t, err)

	res := r.Convert(ctx, 1, "cup", "g", units.ConvertOptions{IngredientName: "flour", WorkspaceID: "ws1"})
	require.Equal(t, units.ConfidenceHigh, res.Confidence)
	require.False(t, res.IsApprox)
	require.InDelta(t, 473.176, res.Qty, 1e-3)
}

func TestConvertCrossTypeCommonIngredientDefault(t *testing.T) {
	r, _ := newResolver(t)
	res := r.Convert(context.Background(), 1, "cup", "g", units.ConvertOptions{IngredientName: "sugar"})
	require.Equal(t, units.ConfidenceMedium, res.Confidence)
	require.True(t, res.IsApprox)
}
