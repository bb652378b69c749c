package domain

import "errors"

// ErrInvalidParameter flags out-of-domain inputs; operations fail with it
// before any computation runs.
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrInsufficientData flags a historical series too short to calibrate; the
// wrapped message states the minimum length requirement.
var ErrInsufficientData = errors.New("insufficient data")
