package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/volatility/internal/volatility/domain"
	"github.com/wyfcoding/volatility/pkg/cache"
)

// CalibrationRedisRepository caches fitted model parameters. Only
// calibrations are cached; prices and surfaces are always recomputed.
type CalibrationRedisRepository struct {
	cache  *cache.RedisCache
	prefix string
	ttl    time.Duration
}

func NewCalibrationRedisRepository(c *cache.RedisCache, ttl time.Duration) *CalibrationRedisRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CalibrationRedisRepository{
		cache:  c,
		prefix: "volatility:calibration:",
		ttl:    ttl,
	}
}

type cachedCalibration struct {
	V0                 float64 `json:"v0"`
	Kappa              float64 `json:"kappa"`
	Theta              float64 `json:"theta"`
	SigmaV             float64 `json:"sigma_v"`
	Rho                float64 `json:"rho"`
	FellerConditionMet bool    `json:"feller_condition_met"`
	Clipped            bool    `json:"clipped"`
	Observations       int     `json:"observations"`
	Window             int     `json:"window"`
}

func (r *CalibrationRedisRepository) Set(ctx context.Context, symbol string, result *domain.CalibrationResult) error {
	if result == nil {
		return nil
	}
	value := cachedCalibration{
		V0:                 result.Parameters.V0,
		Kappa:              result.Parameters.Kappa,
		Theta:              result.Parameters.Theta,
		SigmaV:             result.Parameters.SigmaV,
		Rho:                result.Parameters.Rho,
		FellerConditionMet: result.FellerConditionMet,
		Clipped:            result.Clipped,
		Observations:       result.Observations,
		Window:             result.Window,
	}
	if err := r.cache.SetJSON(ctx, r.key(symbol), value, r.ttl); err != nil {
		return fmt.Errorf("failed to cache calibration for %s: %w", symbol, err)
	}
	return nil
}

func (r *CalibrationRedisRepository) Get(ctx context.Context, symbol string) (*domain.CalibrationResult, bool, error) {
	var cached cachedCalibration
	found, err := r.cache.GetJSON(ctx, r.key(symbol), &cached)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get calibration from redis: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	return &domain.CalibrationResult{
		Parameters: domain.ModelParameters{
			V0:     cached.V0,
			Kappa:  cached.Kappa,
			Theta:  cached.Theta,
			SigmaV: cached.SigmaV,
			Rho:    cached.Rho,
		},
		FellerConditionMet: cached.FellerConditionMet,
		Clipped:            cached.Clipped,
		Observations:       cached.Observations,
		Window:             cached.Window,
	}, true, nil
}

func (r *CalibrationRedisRepository) key(symbol string) string {
	return fmt.Sprintf("%s%s", r.prefix, symbol)
}
