package crypto

import "errors"

var (
	// ErrHashToCurveExhausted is returned if hash_to_curve fails to find a
	// valid curve point within the counter's iteration budget. In practice
	// this never happens; each iteration succeeds with probability ~1/2.
	ErrHashToCurveExhausted = errors.New("crypto: hash_to_curve exhausted counter space")

	ErrInvalidSecret = errors.New("crypto: invalid secret")
	ErrInvalidPoint  = errors.New("crypto: invalid curve point")
)
