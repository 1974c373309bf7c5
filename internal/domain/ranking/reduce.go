package ranking

import (
	"sort"
	"time"

	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/internal/domain/types"
)

// BestPerPlayer keeps one record per player: the one model.Better prefers.
// The result is ordered by Sort.
func BestPerPlayer(records []model.NamedRecord) []model.NamedRecord {
	best := make(map[string]int, len(records))
	out := make([]model.NamedRecord, 0, len(records))
	for _, r := range records {
		i, seen := best[r.PlayerID]
		if !seen {
			best[r.PlayerID] = len(out)
			out = append(out, r)
			continue
		}
		if model.Better(r.SessionRecord, out[i].SessionRecord) {
			name := out[i].DisplayName
			out[i] = r
			if out[i].DisplayName == "" {
				out[i].DisplayName = name
			}
		}
	}
	Sort(out)
	return out
}

// Sort orders records by score descending, then player id ascending.
func Sort(records []model.NamedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].FinalScore != records[j].FinalScore {
			return records[i].FinalScore > records[j].FinalScore
		}
		return records[i].PlayerID < records[j].PlayerID
	})
}

// Since keeps records played at or after since. A nil since keeps all.
func Since(records []model.NamedRecord, since *time.Time) []model.NamedRecord {
	if since == nil {
		return records
	}
	out := records[:0:0]
	for _, r := range records {
		if !r.PlayedAt.Before(*since) {
			out = append(out, r)
		}
	}
	return out
}

// Truncate caps s at limit entries; a non-positive limit yields an empty slice.
func Truncate[T any](s []T, limit int) []T {
	if limit <= 0 {
		return []T{}
	}
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

// CountAbove counts players in best whose score strictly exceeds score.
// best must hold one record per player.
func CountAbove(best []model.NamedRecord, score int64) int {
	n := 0
	for _, r := range best {
		if r.FinalScore > score {
			n++
		}
	}
	return n
}

// DisplayName substitutes the anonymous placeholder for empty names.
func DisplayName(name string) string {
	if name == "" {
		return types.AnonymousName
	}
	return name
}

// ToEntries maps retained records to leaderboard rows.
func ToEntries(records []model.NamedRecord) []types.LeaderboardEntry {
	out := make([]types.LeaderboardEntry, len(records))
	for i, r := range records {
		out[i] = types.LeaderboardEntry{
			PlayerID:    r.PlayerID,
			DisplayName: DisplayName(r.DisplayName),
			Score:       r.FinalScore,
			Entropy:     r.FinalEntropy,
			Phase:       r.PhaseReached,
			Won:         r.Won,
			PlayedAt:    r.PlayedAt,
		}
	}
	return out
}
