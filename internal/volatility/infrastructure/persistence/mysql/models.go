package mysql

import (
	"time"

	"gorm.io/gorm"
)

// PriceHistoryModel 历史收盘价表
type PriceHistoryModel struct {
	gorm.Model
	Symbol    string    `gorm:"column:symbol;type:varchar(20);index:idx_symbol_date;not null"`
	TradeDate time.Time `gorm:"column:trade_date;type:date;index:idx_symbol_date;not null"`
	Close     float64   `gorm:"column:close;type:decimal(20,8);not null"`
	Source    string    `gorm:"column:source;type:varchar(50)"`
}

func (PriceHistoryModel) TableName() string {
	return "price_history"
}

// CalibrationModel 校准结果表
type CalibrationModel struct {
	gorm.Model
	Symbol             string  `gorm:"column:symbol;type:varchar(20);index;not null"`
	V0                 float64 `gorm:"column:v0;type:decimal(12,8);not null"`
	Kappa              float64 `gorm:"column:kappa;type:decimal(10,4);not null"`
	Theta              float64 `gorm:"column:theta;type:decimal(12,8);not null"`
	SigmaV             float64 `gorm:"column:sigma_v;type:decimal(10,4);not null"`
	Rho                float64 `gorm:"column:rho;type:decimal(6,4);not null"`
	FellerConditionMet bool    `gorm:"column:feller_condition_met;not null"`
	Clipped            bool    `gorm:"column:clipped;not null"`
	Observations       int     `gorm:"column:observations;not null"`
	Window             int     `gorm:"column:window;not null"`
}

func (CalibrationModel) TableName() string {
	return "calibrations"
}
