package ranking

import (
	"context"
	"sort"

	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/internal/domain/types"
)

// CountWins groups won records by player. Every won session counts once.
// The result is ordered by SortWins.
func CountWins(records []model.NamedRecord) []model.WinCount {
	idx := make(map[string]int)
	var out []model.WinCount
	for _, r := range records {
		if !r.Won {
			continue
		}
		i, ok := idx[r.PlayerID]
		if !ok {
			idx[r.PlayerID] = len(out)
			out = append(out, model.WinCount{PlayerID: r.PlayerID, DisplayName: r.DisplayName})
			i = len(out) - 1
		}
		out[i].Wins++
		if out[i].DisplayName == "" {
			out[i].DisplayName = r.DisplayName
		}
	}
	SortWins(out)
	return out
}

// SortWins orders by wins descending, then player id ascending.
func SortWins(counts []model.WinCount) {
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Wins != counts[j].Wins {
			return counts[i].Wins > counts[j].Wins
		}
		return counts[i].PlayerID < counts[j].PlayerID
	})
}

// WinCounter ranks players by number of won sessions.
type WinCounter struct {
	strategy Strategy
}

// NewWinCounter builds a WinCounter over strategy.
func NewWinCounter(strategy Strategy) *WinCounter {
	return &WinCounter{strategy: strategy}
}

// TopWinners returns at most limit players with at least one win.
func (w *WinCounter) TopWinners(ctx context.Context, limit int) ([]types.TopWinner, error) {
	if limit <= 0 {
		return []types.TopWinner{}, nil
	}
	counts, err := w.strategy.Wins(ctx, limit)
	if err != nil {
		return nil, strategyErr(w.strategy, err)
	}
	counts = Truncate(counts, limit)
	out := make([]types.TopWinner, 0, len(counts))
	for _, c := range counts {
		if c.Wins <= 0 {
			continue
		}
		out = append(out, types.TopWinner{PlayerID: c.PlayerID, DisplayName: DisplayName(c.DisplayName), Wins: c.Wins})
	}
	return out, nil
}
