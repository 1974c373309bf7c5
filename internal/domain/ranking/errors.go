package ranking

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrUnknownWindow = errors.New("unknown leaderboard window")
	// ErrUnsupported is returned by a strategy that cannot serve a query shape;
	// callers move on to the next strategy without treating it as a failure.
	ErrUnsupported = errors.New("query not supported by strategy")
)

// StrategyError marks a failed strategy query. Reads every strategy shares,
// such as a player's own records, are returned unwrapped.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e *StrategyError) Error() string { return e.Strategy + ": " + e.Err.Error() }

func (e *StrategyError) Unwrap() error { return e.Err }

// IsStrategyFailure reports whether err came from a strategy query.
func IsStrategyFailure(err error) bool {
	var serr *StrategyError
	return errors.As(err, &serr)
}

func strategyErr(s Strategy, err error) error {
	return &StrategyError{Strategy: s.Name(), Err: err}
}
