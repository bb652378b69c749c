package domain

import (
	"fmt"
	"math"
)

// ValueOption discounts simulated terminal prices into an option price with a
// Monte Carlo standard error. Pure function: no caching, no side effects.
func ValueOption(terminalPrices []float64, contract ContractSpec) (*PricePoint, error) {
	if err := contract.Validate(); err != nil {
		return nil, err
	}
	n := len(terminalPrices)
	if n == 0 {
		return nil, fmt.Errorf("%w: terminal price vector is empty", ErrInvalidParameter)
	}

	discount := math.Exp(-contract.Rate * contract.Maturity)

	var payoffSum, payoffSqSum float64
	for _, st := range terminalPrices {
		var payoff float64
		if contract.Type == OptionTypeCall {
			payoff = math.Max(st-contract.Strike, 0)
		} else {
			payoff = math.Max(contract.Strike-st, 0)
		}
		payoffSum += payoff
		payoffSqSum += payoff * payoff
	}

	mean := payoffSum / float64(n)
	variance := payoffSqSum/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}

	return &PricePoint{
		Price:       discount * mean,
		StdError:    discount * math.Sqrt(variance) / math.Sqrt(float64(n)),
		Diagnostics: logReturnMoments(terminalPrices, contract.Spot),
	}, nil
}

// logReturnMoments computes mean/std/skew of log(S_T/S0) so callers can
// sanity-check the simulated distribution (negative rho must give negative
// skew).
func logReturnMoments(terminalPrices []float64, spot float64) PathDiagnostics {
	n := float64(len(terminalPrices))

	var sum float64
	logReturns := make([]float64, len(terminalPrices))
	for i, st := range terminalPrices {
		lr := math.Log(st / spot)
		logReturns[i] = lr
		sum += lr
	}
	mean := sum / n

	var m2, m3 float64
	for _, lr := range logReturns {
		d := lr - mean
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n

	std := math.Sqrt(m2)
	skew := 0.0
	if std > 0 {
		skew = m3 / (std * std * std)
	}

	return PathDiagnostics{
		LogReturnMean: mean,
		LogReturnStd:  std,
		LogReturnSkew: skew,
	}
}
