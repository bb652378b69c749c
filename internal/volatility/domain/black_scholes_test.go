package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlackScholesPrice_ReferenceCase(t *testing.T) {
	// Classic parameters: S=100, K=100, r=0.05, sigma=0.2, T=1.
	call := BlackScholesPrice(OptionTypeCall, 100, 100, 1, 0.05, 0, 0.2)
	put := BlackScholesPrice(OptionTypePut, 100, 100, 1, 0.05, 0, 0.2)

	assert.InDelta(t, 10.450583572185565, call, 1e-9)
	assert.InDelta(t, 5.573526022256971, put, 1e-9)
}

func TestBlackScholesPrice_PutCallParity(t *testing.T) {
	S, K, T, r, q, sigma := 100.0, 110.0, 0.75, 0.03, 0.01, 0.25

	call := BlackScholesPrice(OptionTypeCall, S, K, T, r, q, sigma)
	put := BlackScholesPrice(OptionTypePut, S, K, T, r, q, sigma)

	left := call - put
	right := S*math.Exp(-q*T) - K*math.Exp(-r*T)
	assert.InDelta(t, right, left, 1e-9)
}

func TestBlackScholesPrice_ExpiredIsIntrinsic(t *testing.T) {
	assert.InDelta(t, 0.0, BlackScholesPrice(OptionTypeCall, 90, 100, 0, 0.05, 0, 0.2), 1e-12)
	assert.InDelta(t, 10.0, BlackScholesPrice(OptionTypePut, 90, 100, 0, 0.05, 0, 0.2), 1e-12)
}

func TestBlackScholesVega_PositiveAndPeaksNearATM(t *testing.T) {
	atm := BlackScholesVega(100, 100, 1, 0.03, 0, 0.2)
	otm := BlackScholesVega(100, 160, 1, 0.03, 0, 0.2)

	assert.Greater(t, atm, 0.0)
	assert.Greater(t, otm, 0.0)
	assert.Greater(t, atm, otm)
}

func TestBlackScholesVega_MatchesFiniteDifference(t *testing.T) {
	S, K, T, r, q, sigma := 100.0, 105.0, 0.5, 0.02, 0.0, 0.3
	h := 1e-5

	up := BlackScholesPrice(OptionTypeCall, S, K, T, r, q, sigma+h)
	down := BlackScholesPrice(OptionTypeCall, S, K, T, r, q, sigma-h)
	fd := (up - down) / (2 * h)

	assert.InDelta(t, fd, BlackScholesVega(S, K, T, r, q, sigma), 1e-5)
}
