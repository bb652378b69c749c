package application

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/volatility/internal/volatility/domain"
)

type fakeHistoryRepo struct {
	series domain.HistoricalSeries
	err    error
}

func (f *fakeHistoryRepo) ListBySymbol(ctx context.Context, symbol string, from, to time.Time) (domain.HistoricalSeries, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.series, nil
}

func (f *fakeHistoryRepo) LatestClose(ctx context.Context, symbol string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if len(f.series) == 0 {
		return 0, errors.New("no price history")
	}
	return f.series[len(f.series)-1].Close, nil
}

type fakeCalibrationRepo struct {
	saved  map[string]*domain.CalibrationResult
	latest *domain.CalibrationResult
}

func newFakeCalibrationRepo() *fakeCalibrationRepo {
	return &fakeCalibrationRepo{saved: map[string]*domain.CalibrationResult{}}
}

func (f *fakeCalibrationRepo) Save(ctx context.Context, symbol string, result *domain.CalibrationResult) error {
	f.saved[symbol] = result
	f.latest = result
	return nil
}

func (f *fakeCalibrationRepo) GetLatest(ctx context.Context, symbol string) (*domain.CalibrationResult, error) {
	return f.latest, nil
}

type fakeCache struct {
	entries map[string]*domain.CalibrationResult
	sets    int
	gets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*domain.CalibrationResult{}}
}

func (f *fakeCache) Get(ctx context.Context, symbol string) (*domain.CalibrationResult, bool, error) {
	f.gets++
	result, ok := f.entries[symbol]
	return result, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, symbol string, result *domain.CalibrationResult) error {
	f.sets++
	f.entries[symbol] = result
	return nil
}

type fakePublisher struct {
	calibrations []*domain.CalibrationCompletedEvent
	surfaces     []*domain.SurfaceComputedEvent
	err          error
}

func (f *fakePublisher) PublishCalibrationCompleted(ctx context.Context, event *domain.CalibrationCompletedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.calibrations = append(f.calibrations, event)
	return nil
}

func (f *fakePublisher) PublishSurfaceComputed(ctx context.Context, event *domain.SurfaceComputedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.surfaces = append(f.surfaces, event)
	return nil
}

// historySeries builds a plausible daily close series with stochastic
// volatility so calibration has real dynamics to fit.
func historySeries(days int, seed int64) domain.HistoricalSeries {
	rng := rand.New(rand.NewSource(seed))
	dt := 1.0 / float64(domain.TradingDaysPerYear)

	series := make(domain.HistoricalSeries, 0, days+1)
	start := time.Now().AddDate(0, 0, -days-1)
	price, v := 100.0, 0.04
	series = append(series, domain.HistoricalPoint{Date: start, Close: price})

	for d := 1; d <= days; d++ {
		z1 := rng.NormFloat64()
		z2 := -0.6*z1 + math.Sqrt(1-0.36)*rng.NormFloat64()

		vPos := math.Max(v, 0)
		price *= math.Exp(-0.5*vPos*dt + math.Sqrt(vPos*dt)*z1)
		v += 3.0*(0.04-vPos)*dt + 0.4*math.Sqrt(vPos*dt)*z2
		v = math.Max(v, 0)

		series = append(series, domain.HistoricalPoint{Date: start.AddDate(0, 0, d), Close: price})
	}
	return series
}

func newTestService(history domain.PriceHistoryRepository, calibrations domain.CalibrationRepository, cache domain.CalibrationCache, publisher domain.EventPublisher) *VolatilityService {
	return NewVolatilityService(history, calibrations, cache, publisher, nil, domain.NewSurfaceBuilder(nil, 2), nil, 756)
}

func TestVolatilityService_PriceOption(t *testing.T) {
	svc := newTestService(&fakeHistoryRepo{}, nil, nil, nil)

	params := domain.ModelParameters{V0: 0.04, Kappa: 2.0, Theta: 0.04, SigmaV: 0.3, Rho: -0.7}
	contract := domain.ContractSpec{Spot: 100, Strike: 100, Maturity: 1, Rate: 0.03, Type: domain.OptionTypeCall}
	cfg := domain.SimulationConfig{NumPaths: 5000, NumSteps: 100, Seed: 42}

	dto, err := svc.PriceOption(context.Background(), params, contract, cfg)
	require.NoError(t, err)

	price, _ := dto.Price.Float64()
	stdErr, _ := dto.StdError.Float64()
	assert.Greater(t, price, 0.0)
	assert.Less(t, price, contract.Spot)
	assert.Greater(t, stdErr, 0.0)
	assert.Negative(t, dto.LogReturnSkew)
}

func TestVolatilityService_CalibratePersistsCachesAndPublishes(t *testing.T) {
	history := &fakeHistoryRepo{series: historySeries(500, 3)}
	repo := newFakeCalibrationRepo()
	cache := newFakeCache()
	publisher := &fakePublisher{}
	svc := newTestService(history, repo, cache, publisher)

	dto, err := svc.Calibrate(context.Background(), "SPY")
	require.NoError(t, err)

	assert.Equal(t, "SPY", dto.Symbol)
	assert.Greater(t, dto.Theta, 0.0)
	assert.Equal(t, 500, dto.Observations)

	require.Contains(t, repo.saved, "SPY")
	assert.Equal(t, 1, cache.sets)
	require.Len(t, publisher.calibrations, 1)
	assert.Equal(t, dto.Theta, publisher.calibrations[0].Theta)
}

func TestVolatilityService_CalibrateInsufficientData(t *testing.T) {
	history := &fakeHistoryRepo{series: historySeries(10, 1)}
	svc := newTestService(history, newFakeCalibrationRepo(), nil, nil)

	_, err := svc.Calibrate(context.Background(), "SPY")
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestVolatilityService_CalibrateSurvivesPublisherFailure(t *testing.T) {
	history := &fakeHistoryRepo{series: historySeries(500, 3)}
	publisher := &fakePublisher{err: errors.New("broker down")}
	svc := newTestService(history, newFakeCalibrationRepo(), nil, publisher)

	dto, err := svc.Calibrate(context.Background(), "SPY")
	require.NoError(t, err)
	assert.NotNil(t, dto)
}

func TestVolatilityService_ComputeSurface(t *testing.T) {
	publisher := &fakePublisher{}
	svc := newTestService(&fakeHistoryRepo{}, nil, nil, publisher)

	params := domain.ModelParameters{V0: 0.04, Kappa: 2.0, Theta: 0.04, SigmaV: 0.3, Rho: -0.7}
	strikes := []float64{90, 100, 110}
	expiries := []float64{0.5, 1.0}

	dto, err := svc.ComputeSurface(context.Background(), "SPY", params, 100, 0.03, 0, strikes, expiries, 2000, 11)
	require.NoError(t, err)

	require.Len(t, dto.Points, len(expiries))
	for _, row := range dto.Points {
		require.Len(t, row, len(strikes))
	}
	require.Len(t, publisher.surfaces, 1)
	assert.Equal(t, "SPY", publisher.surfaces[0].Symbol)
}

func TestVolatilityService_RefreshSymbol(t *testing.T) {
	history := &fakeHistoryRepo{series: historySeries(500, 9)}
	repo := newFakeCalibrationRepo()
	svc := newTestService(history, repo, newFakeCache(), &fakePublisher{})

	strikes := []float64{90, 100, 110}
	expiries := []float64{0.5, 1.0}
	calibration, surface, err := svc.RefreshSymbol(context.Background(), "QQQ", 0.03, 0, strikes, expiries, 2000, 77)
	require.NoError(t, err)

	require.NotNil(t, calibration)
	require.NotNil(t, surface)
	assert.Equal(t, "QQQ", surface.Symbol)
	require.Len(t, surface.Points, len(expiries))
	for _, row := range surface.Points {
		require.Len(t, row, len(strikes))
		for _, p := range row {
			assert.Greater(t, p.ImpliedVol, 0.0)
		}
	}
}

func TestVolatilityService_LatestCalibrationReadsThroughCache(t *testing.T) {
	history := &fakeHistoryRepo{series: historySeries(500, 3)}
	repo := newFakeCalibrationRepo()
	cache := newFakeCache()
	svc := newTestService(history, repo, cache, nil)

	// Nothing calibrated yet and the store is empty.
	dto, err := svc.LatestCalibration(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Nil(t, dto)

	_, err = svc.Calibrate(context.Background(), "SPY")
	require.NoError(t, err)

	dto, err = svc.LatestCalibration(context.Background(), "SPY")
	require.NoError(t, err)
	require.NotNil(t, dto)
	assert.Equal(t, "SPY", dto.Symbol)

	// Cache miss path: wipe the cache, the store backfills it.
	cache.entries = map[string]*domain.CalibrationResult{}
	setsBefore := cache.sets
	dto, err = svc.LatestCalibration(context.Background(), "SPY")
	require.NoError(t, err)
	require.NotNil(t, dto)
	assert.Equal(t, setsBefore+1, cache.sets)
}
