package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeImpactLinearInQuantity(t *testing.T) {
	for category, factors := range emissionFactors {
		for activityType := range factors {
			one, err := ComputeImpact(category, activityType, 1)
			require.NoError(t, err)

			ten, err := ComputeImpact(category, activityType, 10)
			require.NoError(t, err)
			require.InDelta(t, one*10, ten, 1e-9, "%s/%s not linear", category, activityType)

			again, err := ComputeImpact(category, activityType, 10)
			require.NoError(t, err)
			require.Equal(t, ten, again, "%s/%s not deterministic", category, activityType)
		}
	}
}

func TestComputeImpactUnknownType(t *testing.T) {
	_, err := ComputeImpact(CategoryTransport, "rocket", 5)
	require.ErrorIs(t, err, ErrUnknownType)

	_, err = ComputeImpact("space", TransportCar, 5)
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestReportedImpactSubstitutesStayAtOrBelowBaseline(t *testing.T) {
	const quantity = 7.5
	for category, types := range substitutes {
		baseline, err := ComputeImpact(category, baselines[category], quantity)
		require.NoError(t, err)

		for activityType := range types {
			reported, err := ReportedImpact(category, activityType, quantity)
			require.NoError(t, err)
			require.LessOrEqual(t, reported, baseline, "%s/%s above baseline", category, activityType)
			require.LessOrEqual(t, reported, 0.0, "%s/%s should not emit relative to baseline", category, activityType)
		}
	}
}

func TestReportedImpactBikeAgainstCarBaseline(t *testing.T) {
	impact, err := ReportedImpact(CategoryTransport, TransportBike, 10)
	require.NoError(t, err)
	require.InDelta(t, -1.2, impact, 1e-9)
}

func TestReportedImpactNonSubstituteIsRawEmissions(t *testing.T) {
	impact, err := ReportedImpact(CategoryDiet, DietMeat, 2)
	require.NoError(t, err)
	require.InDelta(t, 6.0, impact, 1e-9)

	impact, err = ReportedImpact(CategoryTransport, TransportBus, 100)
	require.NoError(t, err)
	require.InDelta(t, 5.0, impact, 1e-9)
}

func TestReportedImpactEnergySaved(t *testing.T) {
	impact, err := ReportedImpact(CategoryEnergy, EnergySaved, 20)
	require.NoError(t, err)
	require.InDelta(t, -10.0, impact, 1e-9)
}
