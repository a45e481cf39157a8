package optimization

import "errors"

var (
	// ErrInsufficientData means the window is too short or fewer than two
	// assets with usable variance remain.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerateMatrix means the covariance structure carries no risk
	// signal (e.g. every variance is zero).
	ErrDegenerateMatrix = errors.New("degenerate covariance matrix")
	// ErrInvalidReturns means the returns matrix violates its structural invariants.
	ErrInvalidReturns = errors.New("invalid returns matrix")
)

// IsAllocationError reports whether err is one of the allocator's input errors,
// as opposed to an infrastructure failure.
func IsAllocationError(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrDegenerateMatrix) ||
		errors.Is(err, ErrInvalidReturns)
}
