// Package aggregate computes per-player summary statistics from session records.
package aggregate

import (
	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/internal/domain/types"
)

// Aggregate summarizes records. An empty input yields the all-zero summary.
func Aggregate(records []model.SessionRecord) types.AggregateStats {
	var out types.AggregateStats
	if len(records) == 0 {
		return out
	}

	var scoreSum, entropySum float64
	for i, r := range records {
		if r.Won {
			out.GamesWon++
		}
		scoreSum += float64(r.FinalScore)
		entropySum += r.FinalEntropy
		if i == 0 || r.FinalScore > out.HighestScore {
			out.HighestScore = r.FinalScore
		}
	}

	out.TotalGames = len(records)
	out.GamesLost = out.TotalGames - out.GamesWon
	out.AverageScore = scoreSum / float64(out.TotalGames)
	out.AverageEntropy = entropySum / float64(out.TotalGames)
	return out
}
