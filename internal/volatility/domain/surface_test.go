package domain

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurfaceBuilder_GridShapeAndOrder(t *testing.T) {
	builder := NewSurfaceBuilder(nil, 4)
	strikes := []float64{80, 90, 100, 110, 120}
	expiries := []float64{0.25, 0.5, 1.0}

	surface, err := builder.BuildSurface(context.Background(), testParams(), 100, 0.03, 0, strikes, expiries, 2000, 42)
	require.NoError(t, err)

	require.Len(t, surface.Points, len(expiries))
	require.Len(t, surface.SkewByExpiry, len(expiries))
	for i, row := range surface.Points {
		require.Len(t, row, len(strikes))
		for j, p := range row {
			assert.Equal(t, expiries[i], p.Expiry)
			assert.Equal(t, strikes[j], p.StrikePct)
			assert.Greater(t, p.ImpliedVol, 0.0)
		}
		assert.InDelta(t, row[0].ImpliedVol-row[len(row)-1].ImpliedVol, surface.SkewByExpiry[i], 1e-15)
	}
}

func TestSurfaceBuilder_Deterministic(t *testing.T) {
	builder := NewSurfaceBuilder(nil, 8)
	strikes := []float64{90, 100, 110}
	expiries := []float64{0.5, 1.0}

	a, err := builder.BuildSurface(context.Background(), testParams(), 100, 0.03, 0, strikes, expiries, 2000, 7)
	require.NoError(t, err)
	b, err := builder.BuildSurface(context.Background(), testParams(), 100, 0.03, 0, strikes, expiries, 2000, 7)
	require.NoError(t, err)

	// Same seed, same surface, regardless of worker scheduling.
	for i := range a.Points {
		for j := range a.Points[i] {
			assert.Equal(t, a.Points[i][j].ImpliedVol, b.Points[i][j].ImpliedVol)
		}
	}
}

func TestSurfaceBuilder_NearFlatWhenVolOfVolVanishes(t *testing.T) {
	// v0 = theta with tiny sigma_v pins variance at theta: the surface must
	// come out flat at sqrt(theta) up to Monte Carlo noise.
	params := ModelParameters{V0: 0.04, Kappa: 2.0, Theta: 0.04, SigmaV: 0.01, Rho: 0}
	builder := NewSurfaceBuilder(nil, 4)
	strikes := []float64{90, 100, 110}
	expiries := []float64{0.5, 1.0}

	surface, err := builder.BuildSurface(context.Background(), params, 100, 0.03, 0, strikes, expiries, 40000, 3)
	require.NoError(t, err)

	for _, row := range surface.Points {
		for _, p := range row {
			require.True(t, p.Converged)
			assert.InDelta(t, 0.2, p.ImpliedVol, 0.01)
		}
	}
	for _, skew := range surface.SkewByExpiry {
		assert.Less(t, math.Abs(skew), 0.02)
	}
}

func TestSurfaceBuilder_NegativeRhoProducesDownwardSkew(t *testing.T) {
	builder := NewSurfaceBuilder(nil, 4)
	strikes := []float64{80, 100, 120}
	expiries := []float64{1.0}

	surface, err := builder.BuildSurface(context.Background(), testParams(), 100, 0.03, 0, strikes, expiries, 40000, 19)
	require.NoError(t, err)

	// rho = -0.7 puts more mass in the left tail: low strikes price richer
	// in vol terms than high strikes.
	assert.Greater(t, surface.SkewByExpiry[0], 0.0)
}

func TestSurfaceBuilder_CanceledContextAborts(t *testing.T) {
	builder := NewSurfaceBuilder(nil, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := builder.BuildSurface(ctx, testParams(), 100, 0.03, 0, []float64{90, 100, 110}, []float64{0.5, 1.0}, 5000, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSurfaceBuilder_RejectsInvalidGrids(t *testing.T) {
	builder := NewSurfaceBuilder(nil, 2)
	ctx := context.Background()

	cases := []struct {
		name     string
		spot     float64
		strikes  []float64
		expiries []float64
		numPaths int
	}{
		{"empty strikes", 100, nil, []float64{1}, 1000},
		{"empty expiries", 100, []float64{100}, nil, 1000},
		{"non-positive strike pct", 100, []float64{100, -5}, []float64{1}, 1000},
		{"non-positive expiry", 100, []float64{100}, []float64{1, 0}, 1000},
		{"zero spot", 0, []float64{100}, []float64{1}, 1000},
		{"zero paths", 100, []float64{100}, []float64{1}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := builder.BuildSurface(ctx, testParams(), tc.spot, 0.03, 0, tc.strikes, tc.expiries, tc.numPaths, 1)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}

func TestCellSeed_DisjointAcrossRealisticGrids(t *testing.T) {
	seen := map[int64]bool{}
	for cell := 0; cell < 512; cell++ {
		s := cellSeed(42, cell)
		assert.False(t, seen[s])
		seen[s] = true
	}
}
