package domain

import (
	"fmt"
	"math"
	"math/rand"
)

// TerminalDistribution 终端价格与方差向量
type TerminalDistribution struct {
	Prices    []float64
	Variances []float64
}

// PathSimulator simulates correlated price/variance paths under Heston
// dynamics with a full-truncation Euler scheme. Each simulator owns its own
// rng instance, so concurrent simulators with distinct seeds never interfere.
type PathSimulator struct {
	params ModelParameters
	rng    *rand.Rand
}

// NewPathSimulator 创建一个以给定种子初始化的路径模拟器
func NewPathSimulator(params ModelParameters, seed int64) *PathSimulator {
	return &PathSimulator{
		params: params,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// SimulateTerminal evolves NumPaths paths over [0, maturity] and returns the
// terminal price and variance vectors.
//
// The variance is floored at zero before every square root and again after
// each update (full truncation): discretized paths can go negative even when
// the Feller condition holds in continuous time.
func (s *PathSimulator) SimulateTerminal(spot, rate, dividend, maturity float64, cfg SimulationConfig) (*TerminalDistribution, error) {
	if err := s.params.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if spot <= 0 {
		return nil, fmt.Errorf("%w: spot must be positive, got %v", ErrInvalidParameter, spot)
	}
	if maturity <= 0 {
		return nil, fmt.Errorf("%w: maturity must be positive, got %v", ErrInvalidParameter, maturity)
	}

	dt := maturity / float64(cfg.NumSteps)
	sqrtDt := math.Sqrt(dt)
	drift := rate - dividend
	rho := s.params.Rho
	rhoComp := math.Sqrt(1 - rho*rho)

	prices := make([]float64, cfg.NumPaths)
	variances := make([]float64, cfg.NumPaths)

	for p := 0; p < cfg.NumPaths; p++ {
		price := spot
		variance := s.params.V0

		for i := 0; i < cfg.NumSteps; i++ {
			z1 := s.rng.NormFloat64()
			z2 := rho*z1 + rhoComp*s.rng.NormFloat64()

			vPos := math.Max(variance, 0)
			sqrtV := math.Sqrt(vPos)

			price *= math.Exp((drift-0.5*vPos)*dt + sqrtV*sqrtDt*z1)
			variance += s.params.Kappa*(s.params.Theta-vPos)*dt + s.params.SigmaV*sqrtV*sqrtDt*z2
			variance = math.Max(variance, 0)
		}

		prices[p] = price
		variances[p] = variance
	}

	return &TerminalDistribution{Prices: prices, Variances: variances}, nil
}
