package domain

import (
	"context"
	"time"
)

// PriceHistoryRepository is the port onto the external market-data
// collaborator that supplies historical close prices.
type PriceHistoryRepository interface {
	ListBySymbol(ctx context.Context, symbol string, from, to time.Time) (HistoricalSeries, error)
	LatestClose(ctx context.Context, symbol string) (float64, error)
}

// CalibrationRepository 校准结果持久化端口
type CalibrationRepository interface {
	Save(ctx context.Context, symbol string, result *CalibrationResult) error
	GetLatest(ctx context.Context, symbol string) (*CalibrationResult, error)
}

// CalibrationCache is the optional read-through cache for fitted parameters.
// Prices and surfaces are recomputed on every call and never cached.
type CalibrationCache interface {
	Get(ctx context.Context, symbol string) (*CalibrationResult, bool, error)
	Set(ctx context.Context, symbol string, result *CalibrationResult) error
}
