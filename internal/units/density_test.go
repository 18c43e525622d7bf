package units_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tasteos/cook-session-engine/internal/units"
)

func TestDensityUpsertRejectsOutOfRange(t *testing.T) {
	r, s := newResolver(t)
	svc := units.NewDensityService(s, r)

	_, err := svc.UpsertByDensity(context.Background(), "ws1", "heavy sand", 6.0)
	require.Error(t, err)
	var verr *units.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDensityUpsertByMassVolumePair(t *testing.T) {
	r, s := newResolver(t)
	svc := units.NewDensityService(s, r)

	override, err := svc.UpsertByMassVolumePair(context.Background(), "ws1", "Heavy Sand", 200, "g", 100, "ml")
	require.NoError(t, err)
	require.InDelta(t, 2.0, override.DensityGPerML, 1e-9)

	list, err := svc.List(context.Background(), "ws1", "sand")
	require.NoError(t, err)
	require.Len(t, list, 1)
}
