package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/volatility/internal/volatility/domain"
	"github.com/wyfcoding/volatility/pkg/logger"
	"github.com/wyfcoding/volatility/pkg/metrics"
)

// VolatilityService orchestrates the domain engine: Monte Carlo pricing,
// surface construction and historical calibration. Persistence, caching and
// event publishing are optional collaborators; the numerical core never
// touches them.
type VolatilityService struct {
	history      domain.PriceHistoryRepository
	calibrations domain.CalibrationRepository
	cache        domain.CalibrationCache
	publisher    domain.EventPublisher
	calibrator   *domain.Calibrator
	builder      *domain.SurfaceBuilder
	metrics      *metrics.Metrics
	lookbackDays int
}

// NewVolatilityService 构造函数；cache、publisher 与 metrics 可为 nil。
func NewVolatilityService(
	history domain.PriceHistoryRepository,
	calibrations domain.CalibrationRepository,
	cache domain.CalibrationCache,
	publisher domain.EventPublisher,
	calibrator *domain.Calibrator,
	builder *domain.SurfaceBuilder,
	m *metrics.Metrics,
	lookbackDays int,
) *VolatilityService {
	if calibrator == nil {
		calibrator = domain.NewCalibrator(domain.DefaultCalibratorConfig())
	}
	if builder == nil {
		builder = domain.NewSurfaceBuilder(nil, 0)
	}
	if lookbackDays <= 0 {
		lookbackDays = 756
	}
	return &VolatilityService{
		history:      history,
		calibrations: calibrations,
		cache:        cache,
		publisher:    publisher,
		calibrator:   calibrator,
		builder:      builder,
		metrics:      m,
		lookbackDays: lookbackDays,
	}
}

// PriceOption 用 Heston 蒙特卡洛为单个合约定价
func (s *VolatilityService) PriceOption(ctx context.Context, params domain.ModelParameters, contract domain.ContractSpec, cfg domain.SimulationConfig) (*PricePointDTO, error) {
	start := time.Now()

	sim := domain.NewPathSimulator(params, cfg.Seed)
	terminal, err := sim.SimulateTerminal(contract.Spot, contract.Rate, contract.Dividend, contract.Maturity, cfg)
	if err != nil {
		return nil, err
	}

	point, err := domain.ValueOption(terminal.Prices, contract)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PricingsTotal.Inc()
		s.metrics.PricingDuration.Observe(time.Since(start).Seconds())
	}

	return &PricePointDTO{
		Price:         decimal.NewFromFloat(point.Price),
		StdError:      decimal.NewFromFloat(point.StdError),
		LogReturnMean: point.Diagnostics.LogReturnMean,
		LogReturnStd:  point.Diagnostics.LogReturnStd,
		LogReturnSkew: point.Diagnostics.LogReturnSkew,
	}, nil
}

// ComputeSurface 构建隐含波动率曲面并发布完成事件
func (s *VolatilityService) ComputeSurface(ctx context.Context, symbol string, params domain.ModelParameters, spot, rate, dividend float64, strikesPct, expiries []float64, numPaths int, seed int64) (*SurfaceDTO, error) {
	start := time.Now()

	surface, err := s.builder.BuildSurface(ctx, params, spot, rate, dividend, strikesPct, expiries, numPaths, seed)
	if err != nil {
		return nil, err
	}

	diverged := 0
	points := make([][]SurfacePointDTO, len(surface.Points))
	for i, row := range surface.Points {
		points[i] = make([]SurfacePointDTO, len(row))
		for j, p := range row {
			if !p.Converged {
				diverged++
			}
			points[i][j] = SurfacePointDTO{
				Expiry:     p.Expiry,
				StrikePct:  p.StrikePct,
				ImpliedVol: p.ImpliedVol,
				Converged:  p.Converged,
			}
		}
	}

	if s.metrics != nil {
		s.metrics.SurfacesTotal.Inc()
		s.metrics.SurfaceDuration.Observe(time.Since(start).Seconds())
		s.metrics.SurfaceCellsTotal.Add(float64(len(expiries) * len(strikesPct)))
		s.metrics.SurfaceCellsDiverged.Add(float64(diverged))
	}

	if s.publisher != nil {
		event := &domain.SurfaceComputedEvent{
			Symbol:        symbol,
			Expiries:      surface.Expiries,
			StrikesPct:    surface.StrikesPct,
			SkewByExpiry:  surface.SkewByExpiry,
			DivergedCells: diverged,
			OccurredOn:    time.Now(),
		}
		if err := s.publisher.PublishSurfaceComputed(ctx, event); err != nil {
			// Publishing is best effort; the surface itself is the result.
			logger.Warn(ctx, "Failed to publish surface event", "symbol", symbol, "error", err)
		}
	}

	return &SurfaceDTO{
		Symbol:        symbol,
		Expiries:      surface.Expiries,
		StrikesPct:    surface.StrikesPct,
		Points:        points,
		SkewByExpiry:  surface.SkewByExpiry,
		DivergedCells: diverged,
		ComputedAt:    time.Now(),
	}, nil
}

// Calibrate loads the symbol's history, fits Heston parameters, persists the
// fit, refreshes the cache and publishes a completion event.
func (s *VolatilityService) Calibrate(ctx context.Context, symbol string) (*CalibrationDTO, error) {
	start := time.Now()

	to := time.Now()
	from := to.AddDate(0, 0, -s.lookbackDays)
	series, err := s.history.ListBySymbol(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	result, err := s.calibrator.Fit(series)
	if err != nil {
		if s.metrics != nil && errors.Is(err, domain.ErrInsufficientData) {
			s.metrics.CalibrationFailures.Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CalibrationsTotal.Inc()
		s.metrics.CalibrationDuration.Observe(time.Since(start).Seconds())
		if result.Clipped {
			s.metrics.CalibrationClipped.Inc()
		}
		if !result.FellerConditionMet {
			s.metrics.FellerViolationsSeen.Inc()
		}
	}
	if !result.FellerConditionMet {
		logger.Warn(ctx, "Fitted parameters violate the Feller condition",
			"symbol", symbol,
			"kappa", result.Parameters.Kappa,
			"theta", result.Parameters.Theta,
			"sigma_v", result.Parameters.SigmaV,
		)
	}

	if s.calibrations != nil {
		if err := s.calibrations.Save(ctx, symbol, result); err != nil {
			return nil, err
		}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, symbol, result); err != nil {
			logger.Warn(ctx, "Failed to cache calibration", "symbol", symbol, "error", err)
		}
	}

	if s.publisher != nil {
		event := &domain.CalibrationCompletedEvent{
			Symbol:             symbol,
			V0:                 result.Parameters.V0,
			Kappa:              result.Parameters.Kappa,
			Theta:              result.Parameters.Theta,
			SigmaV:             result.Parameters.SigmaV,
			Rho:                result.Parameters.Rho,
			FellerConditionMet: result.FellerConditionMet,
			Clipped:            result.Clipped,
			Observations:       result.Observations,
			OccurredOn:         time.Now(),
		}
		if err := s.publisher.PublishCalibrationCompleted(ctx, event); err != nil {
			logger.Warn(ctx, "Failed to publish calibration event", "symbol", symbol, "error", err)
		}
	}

	return toCalibrationDTO(symbol, result), nil
}

// RefreshSymbol recalibrates a symbol from its history and rebuilds its
// implied-vol surface off the fitted parameters at the latest close.
func (s *VolatilityService) RefreshSymbol(ctx context.Context, symbol string, rate, dividend float64, strikesPct, expiries []float64, numPaths int, seed int64) (*CalibrationDTO, *SurfaceDTO, error) {
	calibration, err := s.Calibrate(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}

	spot, err := s.history.LatestClose(ctx, symbol)
	if err != nil {
		return calibration, nil, err
	}

	params := domain.ModelParameters{
		V0:     calibration.V0,
		Kappa:  calibration.Kappa,
		Theta:  calibration.Theta,
		SigmaV: calibration.SigmaV,
		Rho:    calibration.Rho,
	}
	surface, err := s.ComputeSurface(ctx, symbol, params, spot, rate, dividend, strikesPct, expiries, numPaths, seed)
	if err != nil {
		return calibration, nil, err
	}
	return calibration, surface, nil
}

// LatestCalibration 读取最近一次校准，优先命中缓存。
func (s *VolatilityService) LatestCalibration(ctx context.Context, symbol string) (*CalibrationDTO, error) {
	if s.cache != nil {
		result, ok, err := s.cache.Get(ctx, symbol)
		if err != nil {
			logger.Warn(ctx, "Calibration cache read failed", "symbol", symbol, "error", err)
		} else if ok {
			return toCalibrationDTO(symbol, result), nil
		}
	}

	if s.calibrations == nil {
		return nil, nil
	}
	result, err := s.calibrations.GetLatest(ctx, symbol)
	if err != nil || result == nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, symbol, result); err != nil {
			logger.Warn(ctx, "Failed to refresh calibration cache", "symbol", symbol, "error", err)
		}
	}
	return toCalibrationDTO(symbol, result), nil
}

func toCalibrationDTO(symbol string, result *domain.CalibrationResult) *CalibrationDTO {
	return &CalibrationDTO{
		Symbol:             symbol,
		V0:                 result.Parameters.V0,
		Kappa:              result.Parameters.Kappa,
		Theta:              result.Parameters.Theta,
		SigmaV:             result.Parameters.SigmaV,
		Rho:                result.Parameters.Rho,
		FellerConditionMet: result.FellerConditionMet,
		Clipped:            result.Clipped,
		Observations:       result.Observations,
		Window:             result.Window,
		CalibratedAt:       time.Now(),
	}
}
