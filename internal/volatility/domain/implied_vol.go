package domain

import "math"

// Default Newton-Raphson bounds and tolerances. The sigma clip range keeps the
// iteration from diverging on deep ITM/OTM prices.
const (
	defaultIVTolerance  = 1e-8
	defaultIVMaxIter    = 100
	defaultIVMinVol     = 0.01
	defaultIVMaxVol     = 5.0
	defaultIVVegaFloor  = 1e-8
	defaultIVInitialVol = 0.3
)

// ImpliedVolSolver inverts a Black-Scholes price to an implied volatility via
// Newton-Raphson. A vega below VegaFloor aborts early and reports the last
// sigma with Converged=false: one ill-conditioned point must not fail a whole
// surface.
type ImpliedVolSolver struct {
	Tolerance  float64
	MaxIter    int
	MinVol     float64
	MaxVol     float64
	VegaFloor  float64
	InitialVol float64
}

// NewImpliedVolSolver 创建带默认边界的求解器
func NewImpliedVolSolver() *ImpliedVolSolver {
	return &ImpliedVolSolver{
		Tolerance:  defaultIVTolerance,
		MaxIter:    defaultIVMaxIter,
		MinVol:     defaultIVMinVol,
		MaxVol:     defaultIVMaxVol,
		VegaFloor:  defaultIVVegaFloor,
		InitialVol: defaultIVInitialVol,
	}
}

// Solve 求解使 BS(sigma) 复现 targetPrice 的隐含波动率
func (s *ImpliedVolSolver) Solve(targetPrice float64, contract ContractSpec) ImpliedVolResult {
	sigma := s.clip(s.InitialVol)

	for iter := 1; iter <= s.MaxIter; iter++ {
		price := BlackScholesPrice(contract.Type, contract.Spot, contract.Strike, contract.Maturity, contract.Rate, contract.Dividend, sigma)
		diff := price - targetPrice

		if math.Abs(diff) < s.Tolerance {
			return ImpliedVolResult{Vol: sigma, Converged: true, Iterations: iter}
		}

		vega := BlackScholesVega(contract.Spot, contract.Strike, contract.Maturity, contract.Rate, contract.Dividend, sigma)
		if vega < s.VegaFloor {
			return ImpliedVolResult{Vol: sigma, Converged: false, Iterations: iter}
		}

		sigma = s.clip(sigma - diff/vega)
	}

	return ImpliedVolResult{Vol: sigma, Converged: false, Iterations: s.MaxIter}
}

func (s *ImpliedVolSolver) clip(sigma float64) float64 {
	if sigma < s.MinVol {
		return s.MinVol
	}
	if sigma > s.MaxVol {
		return s.MaxVol
	}
	return sigma
}
