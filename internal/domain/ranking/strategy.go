package ranking

import (
	"context"
	"time"

	"github.com/okian/driftboard/internal/domain/model"
)

// Strategy names, also used as metric and log labels.
const (
	PathScan        = "scan"
	PathAccelerated = "accelerated"
)

// Strategy answers the best-per-player queries behind every leaderboard view.
// Implementations must agree on results for the same store contents.
type Strategy interface {
	Name() string
	// Best returns at most limit best-per-player records played at or after
	// since (nil for no bound), ordered by Sort.
	Best(ctx context.Context, since *time.Time, limit int) ([]model.NamedRecord, error)
	// CountAbove counts distinct players whose best score exceeds score.
	CountAbove(ctx context.Context, score int64) (int, error)
	// Wins returns at most limit win counts ordered by SortWins.
	Wins(ctx context.Context, limit int) ([]model.WinCount, error)
}

// Scanner reads every record, optionally bounded by playedAt >= since.
type Scanner interface {
	FetchAll(ctx context.Context, since *time.Time) ([]model.NamedRecord, error)
}

// BestFetcher is a store-native best-per-player query ordered by Sort.
type BestFetcher interface {
	FetchBestPerPlayer(ctx context.Context, limit int) ([]model.NamedRecord, error)
}

// AboveCounter is a store-native count of players whose best exceeds score.
type AboveCounter interface {
	CountPlayersAbove(ctx context.Context, score int64) (int, error)
}

// WinFetcher is a store-native win count query ordered by SortWins.
type WinFetcher interface {
	FetchWinCounts(ctx context.Context, limit int) ([]model.WinCount, error)
}

// Scan reduces full record scans in memory. It works with any store.
type Scan struct {
	src Scanner
}

// NewScan builds the scan-and-reduce strategy.
func NewScan(src Scanner) *Scan { return &Scan{src: src} }

func (s *Scan) Name() string { return PathScan }

func (s *Scan) Best(ctx context.Context, since *time.Time, limit int) ([]model.NamedRecord, error) {
	if limit <= 0 {
		return []model.NamedRecord{}, nil
	}
	all, err := s.src.FetchAll(ctx, since)
	if err != nil {
		return nil, err
	}
	return Truncate(BestPerPlayer(Since(all, since)), limit), nil
}

func (s *Scan) CountAbove(ctx context.Context, score int64) (int, error) {
	all, err := s.src.FetchAll(ctx, nil)
	if err != nil {
		return 0, err
	}
	return CountAbove(BestPerPlayer(all), score), nil
}

func (s *Scan) Wins(ctx context.Context, limit int) ([]model.WinCount, error) {
	if limit <= 0 {
		return []model.WinCount{}, nil
	}
	all, err := s.src.FetchAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	return Truncate(CountWins(all), limit), nil
}

// Accelerated delegates to whichever store-native queries the store offers
// and returns ErrUnsupported for the rest, including windowed queries.
type Accelerated struct {
	best  BestFetcher
	above AboveCounter
	wins  WinFetcher
}

// NewAccelerated discovers the store-native capabilities of store. ok is
// false when store offers none of them.
func NewAccelerated(store any) (a *Accelerated, ok bool) {
	a = &Accelerated{}
	a.best, _ = store.(BestFetcher)
	a.above, _ = store.(AboveCounter)
	a.wins, _ = store.(WinFetcher)
	return a, a.best != nil || a.above != nil || a.wins != nil
}

func (a *Accelerated) Name() string { return PathAccelerated }

func (a *Accelerated) Best(ctx context.Context, since *time.Time, limit int) ([]model.NamedRecord, error) {
	if a.best == nil || since != nil {
		return nil, ErrUnsupported
	}
	if limit <= 0 {
		return []model.NamedRecord{}, nil
	}
	recs, err := a.best.FetchBestPerPlayer(ctx, limit)
	if err != nil {
		return nil, err
	}
	return Truncate(recs, limit), nil
}

func (a *Accelerated) CountAbove(ctx context.Context, score int64) (int, error) {
	if a.above == nil {
		return 0, ErrUnsupported
	}
	return a.above.CountPlayersAbove(ctx, score)
}

func (a *Accelerated) Wins(ctx context.Context, limit int) ([]model.WinCount, error) {
	if a.wins == nil {
		return nil, ErrUnsupported
	}
	if limit <= 0 {
		return []model.WinCount{}, nil
	}
	counts, err := a.wins.FetchWinCounts(ctx, limit)
	if err != nil {
		return nil, err
	}
	return Truncate(counts, limit), nil
}
