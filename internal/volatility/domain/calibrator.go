package domain

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// CalibratorConfig 校准裁剪边界与窗口配置
type CalibratorConfig struct {
	// Window 滚动已实现方差窗口（交易日）
	Window int
	// kappa 裁剪范围
	KappaMin float64
	KappaMax float64
	// sigma_v 裁剪范围
	SigmaVMin float64
	SigmaVMax float64
}

// DefaultCalibratorConfig 返回默认配置（21 日窗口，经验裁剪边界）
func DefaultCalibratorConfig() CalibratorConfig {
	return CalibratorConfig{
		Window:    21,
		KappaMin:  0.5,
		KappaMax:  20.0,
		SigmaVMin: 0.1,
		SigmaVMax: 3.0,
	}
}

// CalibrationResult 校准输出：拟合参数与质量标志
type CalibrationResult struct {
	Parameters ModelParameters
	// FellerConditionMet 拟合参数是否满足 2*kappa*theta >= sigma_v^2
	FellerConditionMet bool
	// Clipped 是否有参数被裁剪到边界（降级拟合，可用但需留意）
	Clipped bool
	// Observations 使用的对数收益观测数
	Observations int
	// Window 使用的滚动窗口
	Window int
}

// Calibrator fits Heston parameters from a historical price series with a
// method-of-moments / AR(1) heuristic on the rolling realized-variance
// series. This is an explicit heuristic, not a maximum-likelihood fit:
// parameters outside the configured sanity bounds are clipped and flagged
// rather than rejected, since a usable approximate model beats a hard failure
// in batch calibration.
type Calibrator struct {
	cfg CalibratorConfig
}

// NewCalibrator 创建校准器；window<2 时退回默认配置值。
func NewCalibrator(cfg CalibratorConfig) *Calibrator {
	def := DefaultCalibratorConfig()
	if cfg.Window < 2 {
		cfg.Window = def.Window
	}
	if cfg.KappaMin <= 0 || cfg.KappaMax <= cfg.KappaMin {
		cfg.KappaMin, cfg.KappaMax = def.KappaMin, def.KappaMax
	}
	if cfg.SigmaVMin <= 0 || cfg.SigmaVMax <= cfg.SigmaVMin {
		cfg.SigmaVMin, cfg.SigmaVMax = def.SigmaVMin, def.SigmaVMax
	}
	return &Calibrator{cfg: cfg}
}

// Fit 从历史序列拟合 Heston 参数。
//
// rho convention: the log return at date t is paired with the shift from the
// realized-variance window ending at t-1 to the window starting at t+1, so
// the pair isolates the date-t variance innovation; the sample covariance is
// rescaled by the innovation's model-implied magnitude to undo the rolling
// window's smoothing.
func (c *Calibrator) Fit(series HistoricalSeries) (*CalibrationResult, error) {
	returns := series.Sorted().LogReturns()

	window := c.cfg.Window
	minReturns := 3 * window
	if len(returns) < minReturns {
		return nil, fmt.Errorf("%w: calibration requires at least %d return observations (3x the %d-day window), got %d",
			ErrInsufficientData, minReturns, window, len(returns))
	}

	rv := realizedVariance(returns, window)

	theta, err := stats.Mean(stats.Float64Data(rv))
	if err != nil {
		return nil, fmt.Errorf("failed to compute mean realized variance: %w", err)
	}
	v0 := rv[len(rv)-1]

	dt := 1.0 / float64(TradingDaysPerYear)
	clipped := false

	// kappa from the AR(1) decay of the variance series. A non-positive
	// autocorrelation carries no mean-reversion information; treat it as
	// the fastest plausible reversion and flag the fit as degraded.
	kappa := c.cfg.KappaMax
	ac1, err := stats.AutoCorrelation(stats.Float64Data(rv), 1)
	if err == nil && ac1 > 0 && ac1 < 1 {
		kappa = -math.Log(ac1) / dt
	} else {
		clipped = true
	}
	kappa, clipped = clipWithFlag(kappa, c.cfg.KappaMin, c.cfg.KappaMax, clipped)

	// sigma_v from the dispersion of variance increments, normalized by the
	// mean variance level per the CIR diffusion term sigma*sqrt(v)*dW.
	// An increment dispersion at rounding-noise scale means the series has
	// no variance dynamics at all: floor sigma_v, leave rho at zero and
	// flag the fit instead of correlating rounding noise.
	increments := diff(rv)
	incStd, err := stats.StandardDeviation(stats.Float64Data(increments))
	if err != nil {
		return nil, fmt.Errorf("failed to compute variance increment dispersion: %w", err)
	}
	degenerate := theta <= 0 || incStd < 1e-9*theta

	sigmaV := c.cfg.SigmaVMin
	if degenerate {
		clipped = true
	} else {
		sigmaV = incStd / math.Sqrt(theta*dt)
	}
	sigmaV, clipped = clipWithFlag(sigmaV, c.cfg.SigmaVMin, c.cfg.SigmaVMax, clipped)

	rho := 0.0
	if !degenerate {
		rho, clipped = c.estimateRho(returns, rv, kappa, theta, sigmaV, clipped)
	}

	params := ModelParameters{
		V0:     v0,
		Kappa:  kappa,
		Theta:  theta,
		SigmaV: sigmaV,
		Rho:    rho,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &CalibrationResult{
		Parameters:         params,
		FellerConditionMet: params.FellerCondition(),
		Clipped:            clipped,
		Observations:       len(returns),
		Window:             window,
	}, nil
}

// estimateRho moment-matches the leverage correlation. The day-t return is
// paired with the change from the realized-variance window just behind t to
// the window just ahead of it; only the date-t variance innovation enters
// that change, with model-implied magnitude sigma_v*theta*dt scaled by the
// kappa-decay weight of one innovation across the forward window. Dividing
// the sample covariance by that magnitude yields rho, clamped to [-1, 1].
func (c *Calibrator) estimateRho(returns, rv []float64, kappa, theta, sigmaV float64, clipped bool) (float64, bool) {
	window := c.cfg.Window
	dt := 1.0 / float64(TradingDaysPerYear)

	rets := make([]float64, 0, len(returns)-2*window)
	shifts := make([]float64, 0, len(returns)-2*window)
	for t := window; t < len(returns)-window; t++ {
		// rv[i] covers returns[i..i+window-1]: rv[t-window] ends at t-1
		// and rv[t+1] starts at t+1, leaving day t between them.
		rets = append(rets, returns[t])
		shifts = append(shifts, rv[t+1]-rv[t-window])
	}
	if len(rets) < 2 {
		return 0, clipped
	}

	cov, err := stats.Covariance(stats.Float64Data(rets), stats.Float64Data(shifts))
	if err != nil {
		return 0, clipped
	}

	var weight float64
	for i := 1; i <= window; i++ {
		weight += math.Exp(-kappa * float64(i) * dt)
	}
	weight /= float64(window)

	scale := sigmaV * theta * dt * weight
	if scale <= 0 {
		return 0, clipped
	}
	return clipWithFlag(cov/scale, -1, 1, clipped)
}

// realizedVariance computes the rolling annualized realized variance: for each
// window ending at return index i, 252 * mean(r^2) over the window. The
// result has one observation per window end, len(returns)-window+1 in total.
func realizedVariance(returns []float64, window int) []float64 {
	var sqSum float64
	for i := 0; i < window; i++ {
		sqSum += returns[i] * returns[i]
	}

	rv := make([]float64, 0, len(returns)-window+1)
	rv = append(rv, float64(TradingDaysPerYear)*sqSum/float64(window))

	for i := window; i < len(returns); i++ {
		sqSum += returns[i]*returns[i] - returns[i-window]*returns[i-window]
		rv = append(rv, float64(TradingDaysPerYear)*sqSum/float64(window))
	}
	return rv
}

func diff(series []float64) []float64 {
	out := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		out[i-1] = series[i] - series[i-1]
	}
	return out
}

func clipWithFlag(value, lo, hi float64, already bool) (float64, bool) {
	if value < lo {
		return lo, true
	}
	if value > hi {
		return hi, true
	}
	return value, already
}
