package domain

import "math"

// BlackScholesPrice 计算带连续股息率的 Black-Scholes 期权价格
func BlackScholesPrice(optionType OptionType, spot, strike, maturity, rate, dividend, sigma float64) float64 {
	if maturity <= 0 {
		// Expired option collapses to intrinsic value.
		if optionType == OptionTypeCall {
			return math.Max(spot-strike, 0)
		}
		return math.Max(strike-spot, 0)
	}

	sqrtT := math.Sqrt(maturity)
	d1 := (math.Log(spot/strike) + (rate-dividend+0.5*sigma*sigma)*maturity) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	if optionType == OptionTypeCall {
		return spot*math.Exp(-dividend*maturity)*normCdf(d1) - strike*math.Exp(-rate*maturity)*normCdf(d2)
	}
	return strike*math.Exp(-rate*maturity)*normCdf(-d2) - spot*math.Exp(-dividend*maturity)*normCdf(-d1)
}

// BlackScholesVega 计算期权价格对波动率的敏感度（每单位波动率）
func BlackScholesVega(spot, strike, maturity, rate, dividend, sigma float64) float64 {
	if maturity <= 0 {
		return 0
	}
	sqrtT := math.Sqrt(maturity)
	d1 := (math.Log(spot/strike) + (rate-dividend+0.5*sigma*sigma)*maturity) / (sigma * sqrtT)
	return spot * math.Exp(-dividend*maturity) * normPdf(d1) * sqrtT
}

// normCdf 标准正态分布累积分布函数
func normCdf(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// normPdf 标准正态分布概率密度函数
func normPdf(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
