package domain

import "time"

// CalibrationCompletedEvent 校准完成事件
type CalibrationCompletedEvent struct {
	Symbol             string
	V0                 float64
	Kappa              float64
	Theta              float64
	SigmaV             float64
	Rho                float64
	FellerConditionMet bool
	Clipped            bool
	Observations       int
	OccurredOn         time.Time
}

// SurfaceComputedEvent 曲面构建完成事件
type SurfaceComputedEvent struct {
	Symbol        string
	Expiries      []float64
	StrikesPct    []float64
	SkewByExpiry  []float64
	DivergedCells int
	OccurredOn    time.Time
}
