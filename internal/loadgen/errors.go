package loadgen

import "errors"

var (
	// ErrInvalidConfig is returned when a run is configured with unusable values.
	ErrInvalidConfig = errors.New("invalid loadgen config")
	// ErrUnhealthy is returned when the target service is not ready.
	ErrUnhealthy = errors.New("service not ready")
	// ErrUnexpectedStatus is returned for HTTP responses the client cannot interpret.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrMismatch is returned when the served leaderboards disagree with the local recomputation.
	ErrMismatch = errors.New("leaderboard mismatch")
)
