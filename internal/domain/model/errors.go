package model

import "errors"

// Sentinel kinds for model validation.
var (
	ErrMissingSessionID = errors.New("missing session_id")
	ErrMissingPlayerID  = errors.New("missing player id")
	ErrNegativeScore    = errors.New("final_score must be >= 0")
	ErrNegativePhase    = errors.New("phase_reached must be >= 0")
	ErrMissingProfileID = errors.New("missing profile id")
)
