package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/volatility/internal/volatility/domain"
	"github.com/wyfcoding/volatility/pkg/db"
	"gorm.io/gorm"
)

// calibrationRetentionDays 每个标的保留的校准历史天数
const calibrationRetentionDays = 180

type calibrationRepository struct {
	db *db.DB
}

// NewCalibrationRepository 创建并返回一个新的 calibrationRepository 实例。
func NewCalibrationRepository(database *db.DB) domain.CalibrationRepository {
	return &calibrationRepository{db: database}
}

// Save inserts the fit and prunes entries past the retention horizon for the
// same symbol in one transaction, so a failed prune never strands a
// half-updated history.
func (r *calibrationRepository) Save(ctx context.Context, symbol string, result *domain.CalibrationResult) error {
	if result == nil {
		return nil
	}
	model := &CalibrationModel{
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
	}
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		cutoff := time.Now().AddDate(0, 0, -calibrationRetentionDays)
		return tx.Where("symbol = ? AND created_at < ?", symbol, cutoff).
			Delete(&CalibrationModel{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save calibration for %s: %w", symbol, err)
	}
	return nil
}

func (r *calibrationRepository) GetLatest(ctx context.Context, symbol string) (*domain.CalibrationResult, error) {
	var model CalibrationModel
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest calibration for %s: %w", symbol, err)
	}

	return &domain.CalibrationResult{
		Parameters: domain.ModelParameters{
			V0:     model.V0,
			Kappa:  model.Kappa,
			Theta:  model.Theta,
			SigmaV: model.SigmaV,
			Rho:    model.Rho,
		},
		FellerConditionMet: model.FellerConditionMet,
		Clipped:            model.Clipped,
		Observations:       model.Observations,
		Window:             model.Window,
	}, nil
}
