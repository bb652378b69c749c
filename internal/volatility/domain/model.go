// Package domain 波动率服务的领域模型：Heston 模拟、期权估值、隐含波动率与参数校准
package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// OptionType 期权类型
type OptionType string

const (
	OptionTypeCall OptionType = "CALL" // 看涨期权
	OptionTypePut  OptionType = "PUT"  // 看跌期权
)

// TradingDaysPerYear is the annualization convention used throughout.
const TradingDaysPerYear = 252

// ModelParameters are the Heston stochastic-volatility parameters.
// Immutable per call; validated on entry to every operation that uses them.
type ModelParameters struct {
	V0     float64 // initial instantaneous variance
	Kappa  float64 // mean-reversion speed of variance
	Theta  float64 // long-run variance level
	SigmaV float64 // volatility of variance
	Rho    float64 // correlation between return and variance shocks
}

// Validate 校验参数域约束
func (p ModelParameters) Validate() error {
	if p.V0 < 0 {
		return fmt.Errorf("%w: v0 must be non-negative, got %v", ErrInvalidParameter, p.V0)
	}
	if p.Kappa <= 0 {
		return fmt.Errorf("%w: kappa must be positive, got %v", ErrInvalidParameter, p.Kappa)
	}
	if p.Theta <= 0 {
		return fmt.Errorf("%w: theta must be positive, got %v", ErrInvalidParameter, p.Theta)
	}
	if p.SigmaV <= 0 {
		return fmt.Errorf("%w: sigma_v must be positive, got %v", ErrInvalidParameter, p.SigmaV)
	}
	if p.Rho < -1 || p.Rho > 1 {
		return fmt.Errorf("%w: rho must lie in [-1, 1], got %v", ErrInvalidParameter, p.Rho)
	}
	return nil
}

// FellerCondition reports whether 2*kappa*theta >= sigma_v^2. Violations are
// reported, never rejected: the truncation scheme in the simulator stays valid
// either way, at the cost of more discretization bias.
func (p ModelParameters) FellerCondition() bool {
	return 2*p.Kappa*p.Theta >= p.SigmaV*p.SigmaV
}

// ContractSpec 期权合约定价请求
type ContractSpec struct {
	Spot     float64
	Strike   float64
	Maturity float64 // 到期时间（年）
	Rate     float64 // 无风险利率
	Dividend float64 // 股息收益率
	Type     OptionType
}

// Validate 校验合约参数
func (c ContractSpec) Validate() error {
	if c.Spot <= 0 {
		return fmt.Errorf("%w: spot must be positive, got %v", ErrInvalidParameter, c.Spot)
	}
	if c.Strike <= 0 {
		return fmt.Errorf("%w: strike must be positive, got %v", ErrInvalidParameter, c.Strike)
	}
	if c.Maturity <= 0 {
		return fmt.Errorf("%w: maturity must be positive, got %v", ErrInvalidParameter, c.Maturity)
	}
	if c.Type != OptionTypeCall && c.Type != OptionTypePut {
		return fmt.Errorf("%w: option type must be %s or %s, got %q", ErrInvalidParameter, OptionTypeCall, OptionTypePut, c.Type)
	}
	return nil
}

// SimulationConfig 控制单次模拟的精度与成本；按调用持有，绝不全局共享。
type SimulationConfig struct {
	NumPaths int
	NumSteps int
	Seed     int64
}

// Validate 校验模拟配置
func (c SimulationConfig) Validate() error {
	if c.NumPaths < 1 {
		return fmt.Errorf("%w: num_paths must be at least 1, got %d", ErrInvalidParameter, c.NumPaths)
	}
	if c.NumSteps < 1 {
		return fmt.Errorf("%w: num_steps must be at least 1, got %d", ErrInvalidParameter, c.NumSteps)
	}
	return nil
}

// StepsForMaturity scales the discretization with maturity so that longer
// tenors keep discretization bias bounded.
func StepsForMaturity(maturity float64) int {
	steps := int(math.Round(TradingDaysPerYear * maturity))
	if steps < 50 {
		return 50
	}
	return steps
}

// PathDiagnostics 终端对数收益的矩，用于合理性检查（负 rho 应产生负偏度）。
type PathDiagnostics struct {
	LogReturnMean float64
	LogReturnStd  float64
	LogReturnSkew float64
}

// PricePoint 一次估值的结果；每次调用重新计算，核心层不做缓存。
type PricePoint struct {
	Price       float64
	StdError    float64
	Diagnostics PathDiagnostics
}

// ImpliedVolResult carries the Newton-Raphson outcome explicitly instead of
// silently returning a possibly-wrong sigma.
type ImpliedVolResult struct {
	Vol        float64
	Converged  bool
	Iterations int
}

// SurfacePoint 曲面上的一个网格单元
type SurfacePoint struct {
	Expiry     float64
	StrikePct  float64
	ImpliedVol float64
	Converged  bool
}

// VolSurface 是按 [expiry][strike] 索引的隐含波动率曲面。
type VolSurface struct {
	Expiries     []float64
	StrikesPct   []float64
	Points       [][]SurfacePoint
	SkewByExpiry []float64 // IV(shortest strike) - IV(longest strike) per expiry
}

// HistoricalPoint 历史收盘价观测
type HistoricalPoint struct {
	Date  time.Time
	Close float64
}

// HistoricalSeries is an ordered (date, price) sequence supplied by the
// external market-data collaborators.
type HistoricalSeries []HistoricalPoint

// Sorted 返回按日期升序排列的副本
func (s HistoricalSeries) Sorted() HistoricalSeries {
	out := make(HistoricalSeries, len(s))
	copy(out, s)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// LogReturns 计算相邻观测的对数收益；非正价格的观测被跳过。
func (s HistoricalSeries) LogReturns() []float64 {
	returns := make([]float64, 0, len(s))
	for i := 1; i < len(s); i++ {
		prev, cur := s[i-1].Close, s[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	return returns
}
