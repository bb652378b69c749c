package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePointDTO 单次估值结果
type PricePointDTO struct {
	Price         decimal.Decimal `json:"price"`
	StdError      decimal.Decimal `json:"std_error"`
	LogReturnMean float64         `json:"log_return_mean"`
	LogReturnStd  float64         `json:"log_return_std"`
	LogReturnSkew float64         `json:"log_return_skew"`
}

// SurfacePointDTO 曲面网格单元
type SurfacePointDTO struct {
	Expiry     float64 `json:"expiry"`
	StrikePct  float64 `json:"strike_pct"`
	ImpliedVol float64 `json:"implied_vol"`
	Converged  bool    `json:"converged"`
}

// SurfaceDTO 隐含波动率曲面，按 [expiry][strike] 索引
type SurfaceDTO struct {
	Symbol        string              `json:"symbol"`
	Expiries      []float64           `json:"expiries"`
	StrikesPct    []float64           `json:"strikes_pct"`
	Points        [][]SurfacePointDTO `json:"points"`
	SkewByExpiry  []float64           `json:"skew_by_expiry"`
	DivergedCells int                 `json:"diverged_cells"`
	ComputedAt    time.Time           `json:"computed_at"`
}

// CalibrationDTO 校准结果
type CalibrationDTO struct {
	Symbol             string    `json:"symbol"`
	V0                 float64   `json:"v0"`
	Kappa              float64   `json:"kappa"`
	Theta              float64   `json:"theta"`
	SigmaV             float64   `json:"sigma_v"`
	Rho                float64   `json:"rho"`
	FellerConditionMet bool      `json:"feller_condition_met"`
	Clipped            bool      `json:"clipped"`
	Observations       int       `json:"observations"`
	Window             int       `json:"window"`
	CalibratedAt       time.Time `json:"calibrated_at"`
}
