// Package leaderboard is the query facade over the ranking and aggregation
// components. It validates arguments, picks the store-native query path when
// the store offers one, falls back to scanning, and reports failures as
// validation or store errors.
package leaderboard

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/okian/driftboard/internal/adapters/repository"
	"github.com/okian/driftboard/internal/domain/aggregate"
	"github.com/okian/driftboard/internal/domain/ranking"
	"github.com/okian/driftboard/internal/domain/types"
	"github.com/okian/driftboard/pkg/logger"
	"github.com/okian/driftboard/pkg/metrics"
)

const (
	defaultLeaderboardLimit = 100
	defaultWinnersLimit     = 20
	defaultMaxLimit         = 1000
)

// Operation names, used as metric and log labels.
const (
	OpGlobal     = "global"
	OpWindowed   = "windowed"
	OpTopWinners = "top_winners"
	OpRank       = "rank"
	OpAggregate  = "aggregate"
)

// path is one way of answering queries: a ranker and win counter sharing a strategy.
type path struct {
	ranker *ranking.Ranker
	wins   *ranking.WinCounter
}

func (p *path) name() string { return p.ranker.Strategy().Name() }

// Engine answers leaderboard, rank and aggregate queries.
type Engine struct {
	store   repository.Reader
	players ranking.PlayerReader
	log     logger.Logger
	now     func() time.Time

	defaultLimit   int
	defaultWinners int
	maxLimit       int
	accelerate     bool

	fast *path // nil when the store has no native queries
	scan *path
}

// New builds an Engine over store.
func New(store repository.Reader, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		players:        store,
		now:            time.Now,
		defaultLimit:   defaultLeaderboardLimit,
		defaultWinners: defaultWinnersLimit,
		maxLimit:       defaultMaxLimit,
		accelerate:     true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Named("leaderboard")
	}

	scan := ranking.NewScan(store)
	e.scan = &path{
		ranker: ranking.NewRanker(scan, e.players, e.now),
		wins:   ranking.NewWinCounter(scan),
	}
	if acc, ok := ranking.NewAccelerated(store); ok && e.accelerate {
		e.fast = &path{
			ranker: ranking.NewRanker(acc, e.players, e.now),
			wins:   ranking.NewWinCounter(acc),
		}
	}
	return e
}

// Accelerated reports whether the store-native path is in use.
func (e *Engine) Accelerated() bool { return e.fast != nil }

// DefaultLimits returns the leaderboard and top-winners defaults.
func (e *Engine) DefaultLimits() (leaderboard, winners int) {
	return e.defaultLimit, e.defaultWinners
}

// MaxLimit is the largest explicit limit accepted.
func (e *Engine) MaxLimit() int { return e.maxLimit }

// Global returns one entry per player, their personal best, highest first.
func (e *Engine) Global(ctx context.Context, limit Limit) ([]types.LeaderboardEntry, error) {
	n, err := limit.Resolve(e.defaultLimit, e.maxLimit)
	if err != nil {
		return nil, e.rejected(ctx, OpGlobal, err)
	}
	return run(ctx, e, OpGlobal, func(p *path) ([]types.LeaderboardEntry, error) {
		return p.ranker.Global(ctx, n)
	})
}

// Windowed is Global restricted to sessions played inside window
// (day, week, month or allTime).
func (e *Engine) Windowed(ctx context.Context, window string, limit Limit) ([]types.LeaderboardEntry, error) {
	w, err := ranking.ParseWindow(window)
	if err != nil {
		return nil, e.rejected(ctx, OpWindowed, invalid("window", window, "must be one of day, week, month, all, allTime"))
	}
	if w == ranking.AllTime {
		return e.Global(ctx, limit)
	}
	n, err := limit.Resolve(e.defaultLimit, e.maxLimit)
	if err != nil {
		return nil, e.rejected(ctx, OpWindowed, err)
	}
	return run(ctx, e, OpWindowed, func(p *path) ([]types.LeaderboardEntry, error) {
		return p.ranker.Windowed(ctx, w, n)
	})
}

// TopWinners ranks players by number of won sessions.
func (e *Engine) TopWinners(ctx context.Context, limit Limit) ([]types.TopWinner, error) {
	n, err := limit.Resolve(e.defaultWinners, e.maxLimit)
	if err != nil {
		return nil, e.rejected(ctx, OpTopWinners, err)
	}
	return run(ctx, e, OpTopWinners, func(p *path) ([]types.TopWinner, error) {
		return p.wins.TopWinners(ctx, n)
	})
}

// Rank returns playerID's position among all players' best scores, or the
// unranked result when the player has no sessions.
func (e *Engine) Rank(ctx context.Context, playerID string) (types.RankResult, error) {
	if strings.TrimSpace(playerID) == "" {
		return types.RankResult{}, e.rejected(ctx, OpRank, invalid("player_id", playerID, "must not be empty"))
	}
	return run(ctx, e, OpRank, func(p *path) (types.RankResult, error) {
		return p.ranker.Rank(ctx, playerID)
	})
}

// Aggregate summarizes every session of playerID.
func (e *Engine) Aggregate(ctx context.Context, playerID string) (types.AggregateStats, error) {
	if strings.TrimSpace(playerID) == "" {
		return types.AggregateStats{}, e.rejected(ctx, OpAggregate, invalid("player_id", playerID, "must not be empty"))
	}
	start := time.Now()
	records, err := e.players.FetchByPlayer(ctx, playerID)
	if err != nil {
		return types.AggregateStats{}, e.failed(ctx, OpAggregate, err)
	}
	metrics.RecordQuery(OpAggregate, ranking.PathScan)
	metrics.RecordQueryLatency(OpAggregate, metrics.Since(start))
	return aggregate.Aggregate(records), nil
}

// run answers through the accelerated path when there is one. Only a failed
// accelerated strategy query is retried through the scan path; cancellation
// and reads shared by both paths fail the query.
func run[T any](ctx context.Context, e *Engine, op string, query func(*path) (T, error)) (T, error) {
	start := time.Now()
	if e.fast != nil {
		out, err := query(e.fast)
		if err == nil {
			e.served(op, e.fast, start)
			return out, nil
		}
		if ctx.Err() != nil || !ranking.IsStrategyFailure(err) {
			var zero T
			return zero, e.failed(ctx, op, err)
		}
		if !errors.Is(err, ranking.ErrUnsupported) {
			metrics.RecordStrategyFallback(op)
			e.log.Warn(ctx, "accelerated query failed, falling back to scan",
				logger.String("op", op),
				logger.Error(err))
		}
	}

	out, err := query(e.scan)
	if err != nil {
		var zero T
		return zero, e.failed(ctx, op, err)
	}
	e.served(op, e.scan, start)
	return out, nil
}

func (e *Engine) served(op string, p *path, start time.Time) {
	metrics.RecordQuery(op, p.name())
	metrics.RecordQueryLatency(op, metrics.Since(start))
}

func (e *Engine) rejected(ctx context.Context, op string, err error) error {
	metrics.RecordQueryError(op, "validation")
	e.log.Debug(ctx, "query rejected", logger.String("op", op), logger.Error(err))
	return err
}

func (e *Engine) failed(ctx context.Context, op string, err error) error {
	metrics.RecordQueryError(op, "store_unavailable")
	e.log.Error(ctx, "record store query failed", logger.String("op", op), logger.Error(err))
	return &StoreError{Op: op, Err: err}
}
