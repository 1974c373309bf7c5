package leaderboard

import (
	"time"

	"github.com/okian/driftboard/internal/domain/ranking"
	"github.com/okian/driftboard/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock sets the time source used for window cutoffs.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithPlayerReader serves per-player reads (rank, aggregate, display names)
// from r instead of the store, typically a name cache over it.
func WithPlayerReader(r ranking.PlayerReader) Option {
	return func(e *Engine) {
		if r != nil {
			e.players = r
		}
	}
}

// WithDefaultLimits sets the limits used when the caller omits one.
func WithDefaultLimits(leaderboard, winners int) Option {
	return func(e *Engine) {
		if leaderboard > 0 {
			e.defaultLimit = leaderboard
		}
		if winners > 0 {
			e.defaultWinners = winners
		}
	}
}

// WithMaxLimit caps explicit limits. Zero disables the cap.
func WithMaxLimit(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxLimit = n
		}
	}
}

// WithAccelerated toggles the store-native query path.
func WithAccelerated(enabled bool) Option {
	return func(e *Engine) { e.accelerate = enabled }
}
