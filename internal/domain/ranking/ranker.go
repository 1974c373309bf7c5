package ranking

import (
	"context"
	"time"

	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/internal/domain/types"
)

// PlayerReader reads one player's records and display name.
type PlayerReader interface {
	FetchByPlayer(ctx context.Context, playerID string) ([]model.SessionRecord, error)
	ResolveDisplayName(ctx context.Context, playerID string) (string, bool, error)
}

// Ranker builds global and windowed leaderboards and single-player ranks.
type Ranker struct {
	strategy Strategy
	players  PlayerReader
	now      func() time.Time
}

// NewRanker builds a Ranker. now defaults to time.Now.
func NewRanker(strategy Strategy, players PlayerReader, now func() time.Time) *Ranker {
	if now == nil {
		now = time.Now
	}
	return &Ranker{strategy: strategy, players: players, now: now}
}

// Strategy returns the strategy this ranker reads through.
func (r *Ranker) Strategy() Strategy { return r.strategy }

// Global returns one entry per player, their personal best, highest first.
func (r *Ranker) Global(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	if limit <= 0 {
		return []types.LeaderboardEntry{}, nil
	}
	best, err := r.strategy.Best(ctx, nil, limit)
	if err != nil {
		return nil, strategyErr(r.strategy, err)
	}
	return ToEntries(best), nil
}

// Windowed is Global restricted to sessions played inside w.
func (r *Ranker) Windowed(ctx context.Context, w Window, limit int) ([]types.LeaderboardEntry, error) {
	if limit <= 0 {
		return []types.LeaderboardEntry{}, nil
	}
	best, err := r.strategy.Best(ctx, w.Since(r.now()), limit)
	if err != nil {
		return nil, strategyErr(r.strategy, err)
	}
	return ToEntries(best), nil
}

// Rank places playerID among all players' best scores. Ties share the
// lower position. Players without sessions are unranked. Only the
// CountAbove failure is a StrategyError.
func (r *Ranker) Rank(ctx context.Context, playerID string) (types.RankResult, error) {
	records, err := r.players.FetchByPlayer(ctx, playerID)
	if err != nil {
		return types.RankResult{}, err
	}
	if len(records) == 0 {
		return types.Unranked(playerID), nil
	}

	best := records[0]
	for _, rec := range records[1:] {
		if rec.FinalScore > best.FinalScore {
			best = rec
		}
	}

	above, err := r.strategy.CountAbove(ctx, best.FinalScore)
	if err != nil {
		return types.RankResult{}, strategyErr(r.strategy, err)
	}

	name, _, err := r.players.ResolveDisplayName(ctx, playerID)
	if err != nil {
		return types.RankResult{}, err
	}

	return types.RankResult{
		PlayerID:    playerID,
		DisplayName: DisplayName(name),
		Position:    above + 1,
		BestScore:   best.FinalScore,
		Ranked:      true,
	}, nil
}
