package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/volatility/internal/volatility/domain"
	"gorm.io/gorm"
)

type priceHistoryRepository struct {
	db *gorm.DB
}

// NewPriceHistoryRepository 创建并返回一个新的 priceHistoryRepository 实例。
func NewPriceHistoryRepository(db *gorm.DB) domain.PriceHistoryRepository {
	return &priceHistoryRepository{db: db}
}

func (r *priceHistoryRepository) ListBySymbol(ctx context.Context, symbol string, from, to time.Time) (domain.HistoricalSeries, error) {
	var models []PriceHistoryModel
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND trade_date >= ? AND trade_date <= ?", symbol, from, to).
		Order("trade_date ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list price history for %s: %w", symbol, err)
	}

	series := make(domain.HistoricalSeries, 0, len(models))
	for _, m := range models {
		series = append(series, domain.HistoricalPoint{
			Date:  m.TradeDate,
			Close: m.Close,
		})
	}
	return series, nil
}

func (r *priceHistoryRepository) LatestClose(ctx context.Context, symbol string) (float64, error) {
	var model PriceHistoryModel
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("trade_date DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("no price history for symbol %s", symbol)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get latest close for %s: %w", symbol, err)
	}
	return model.Close, nil
}
