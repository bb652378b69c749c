package domain

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticHestonSeries generates a daily close series under known Heston
// dynamics so the calibrator can be checked against ground truth.
func syntheticHestonSeries(params ModelParameters, days int, seed int64) HistoricalSeries {
	rng := rand.New(rand.NewSource(seed))
	dt := 1.0 / float64(TradingDaysPerYear)
	sqrtDt := math.Sqrt(dt)

	series := make(HistoricalSeries, 0, days+1)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	price, v := 100.0, params.V0
	series = append(series, HistoricalPoint{Date: start, Close: price})

	for d := 1; d <= days; d++ {
		z1 := rng.NormFloat64()
		z2 := params.Rho*z1 + math.Sqrt(1-params.Rho*params.Rho)*rng.NormFloat64()

		vPos := math.Max(v, 0)
		price *= math.Exp(-0.5*vPos*dt + math.Sqrt(vPos)*sqrtDt*z1)
		v += params.Kappa*(params.Theta-vPos)*dt + params.SigmaV*math.Sqrt(vPos)*sqrtDt*z2
		v = math.Max(v, 0)

		series = append(series, HistoricalPoint{Date: start.AddDate(0, 0, d), Close: price})
	}
	return series
}

func constantStepSeries(days int, step float64) HistoricalSeries {
	series := make(HistoricalSeries, 0, days+1)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	series = append(series, HistoricalPoint{Date: start, Close: price})
	for d := 1; d <= days; d++ {
		if d%2 == 0 {
			price *= math.Exp(step)
		} else {
			price *= math.Exp(-step)
		}
		series = append(series, HistoricalPoint{Date: start.AddDate(0, 0, d), Close: price})
	}
	return series
}

func TestCalibrator_RejectsShortSeries(t *testing.T) {
	cal := NewCalibrator(DefaultCalibratorConfig())

	// 3x window returns needed; 62 returns is one short of 63.
	series := syntheticHestonSeries(testParams(), 62, 1)
	_, err := cal.Fit(series)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = cal.Fit(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCalibrator_RecoversSyntheticParameters(t *testing.T) {
	truth := ModelParameters{V0: 0.04, Kappa: 3.0, Theta: 0.04, SigmaV: 0.4, Rho: -0.6}

	cfg := DefaultCalibratorConfig()
	cal := NewCalibrator(cfg)

	// A single fit on ~8 years of daily data is noisy (the variance path
	// itself wanders), so recovery is asserted on the estimate averaged
	// across independent seeds; per-fit checks cover validity and bounds.
	const fits = 5
	var thetaSum, kappaSum, sigmaVSum, rhoSum float64
	for seed := int64(1); seed <= fits; seed++ {
		series := syntheticHestonSeries(truth, 2000, seed)
		res, err := cal.Fit(series)
		require.NoError(t, err)

		p := res.Parameters
		require.NoError(t, p.Validate())
		assert.GreaterOrEqual(t, p.Kappa, cfg.KappaMin)
		assert.LessOrEqual(t, p.Kappa, cfg.KappaMax)
		assert.GreaterOrEqual(t, p.SigmaV, cfg.SigmaVMin)
		assert.LessOrEqual(t, p.SigmaV, cfg.SigmaVMax)
		assert.Greater(t, p.V0, 0.0)
		assert.Equal(t, p.FellerCondition(), res.FellerConditionMet)
		assert.Equal(t, 2000, res.Observations)
		assert.Equal(t, cfg.Window, res.Window)

		thetaSum += p.Theta
		kappaSum += p.Kappa
		sigmaVSum += p.SigmaV
		rhoSum += p.Rho
	}

	assert.InDelta(t, truth.Theta, thetaSum/fits, 0.5*truth.Theta)
	assert.InDelta(t, truth.Kappa, kappaSum/fits, 1.5)
	assert.InDelta(t, truth.SigmaV, sigmaVSum/fits, 0.15)
	assert.Negative(t, rhoSum/fits)
	assert.InDelta(t, truth.Rho, rhoSum/fits, 0.35)
}

func TestCalibrator_FitIsDeterministicForSameInput(t *testing.T) {
	series := syntheticHestonSeries(testParams(), 500, 7)
	cal := NewCalibrator(DefaultCalibratorConfig())

	a, err := cal.Fit(series)
	require.NoError(t, err)
	b, err := cal.Fit(series)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCalibrator_SortsUnorderedInput(t *testing.T) {
	series := syntheticHestonSeries(testParams(), 500, 7)
	shuffled := make(HistoricalSeries, len(series))
	copy(shuffled, series)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	cal := NewCalibrator(DefaultCalibratorConfig())
	a, err := cal.Fit(series)
	require.NoError(t, err)
	b, err := cal.Fit(shuffled)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCalibrator_ClipsDegenerateVarianceSeries(t *testing.T) {
	// Alternating +/-1% returns give a perfectly constant realized-variance
	// series: no variance dynamics to fit. sigma_v collapses to its floor,
	// the clip is flagged, and rho has no correlation to measure.
	series := constantStepSeries(300, 0.01)

	cfg := DefaultCalibratorConfig()
	cal := NewCalibrator(cfg)
	res, err := cal.Fit(series)
	require.NoError(t, err)

	assert.True(t, res.Clipped)
	assert.Equal(t, cfg.SigmaVMin, res.Parameters.SigmaV)
	assert.Zero(t, res.Parameters.Rho)
	assert.InDelta(t, float64(TradingDaysPerYear)*0.01*0.01, res.Parameters.Theta, 1e-12)
	assert.InDelta(t, res.Parameters.Theta, res.Parameters.V0, 1e-12)
}

func TestCalibrator_FlagsAntiPersistentVarianceSeries(t *testing.T) {
	// Alternating +/-1% and -/+3% returns make the rolling realized
	// variance flip between two levels every day: its lag-1 autocorrelation
	// is negative, so there is no mean-reversion speed to read off. kappa
	// pins at the upper bound and the fit must carry the Clipped flag.
	series := make(HistoricalSeries, 0, 301)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	series = append(series, HistoricalPoint{Date: start, Close: price})
	for d := 1; d <= 300; d++ {
		if d%2 == 1 {
			price *= math.Exp(0.01)
		} else {
			price *= math.Exp(-0.03)
		}
		series = append(series, HistoricalPoint{Date: start.AddDate(0, 0, d), Close: price})
	}

	cfg := DefaultCalibratorConfig()
	res, err := NewCalibrator(cfg).Fit(series)
	require.NoError(t, err)

	assert.Equal(t, cfg.KappaMax, res.Parameters.Kappa)
	assert.True(t, res.Clipped)
	// The variance series still has real dispersion, so sigma_v is a
	// genuine estimate rather than the degenerate-series floor.
	assert.Greater(t, res.Parameters.SigmaV, cfg.SigmaVMin)
}

func TestCalibrator_SkipsNonPositivePrices(t *testing.T) {
	series := syntheticHestonSeries(testParams(), 300, 5)
	// A bad tick must not poison the log-return series.
	series[150].Close = 0

	cal := NewCalibrator(DefaultCalibratorConfig())
	res, err := cal.Fit(series)
	require.NoError(t, err)
	require.NoError(t, res.Parameters.Validate())
	assert.Equal(t, 298, res.Observations)
}

func TestNewCalibrator_SanitizesBadConfig(t *testing.T) {
	cal := NewCalibrator(CalibratorConfig{Window: 1, KappaMin: -1, SigmaVMax: -2})

	series := syntheticHestonSeries(testParams(), 500, 7)
	res, err := cal.Fit(series)
	require.NoError(t, err)

	def := DefaultCalibratorConfig()
	assert.Equal(t, def.Window, res.Window)
	assert.GreaterOrEqual(t, res.Parameters.Kappa, def.KappaMin)
	assert.LessOrEqual(t, res.Parameters.SigmaV, def.SigmaVMax)
}
