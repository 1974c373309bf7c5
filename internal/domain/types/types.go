// Package types contains the derived read shapes returned by leaderboard queries.
package types

import (
	"encoding/json"
	"time"
)

// AnonymousName replaces display names that cannot be resolved.
const AnonymousName = "Anonymous"

// LeaderboardEntry is one row of a best-score leaderboard.
type LeaderboardEntry struct {
	PlayerID    string    `json:"player_id"`
	DisplayName string    `json:"username"`
	Score       int64     `json:"score"`
	Entropy     float64   `json:"entropy"`
	Phase       int       `json:"phase"`
	Won         bool      `json:"won"`
	PlayedAt    time.Time `json:"playedAt"`
}

// TopWinner is one row of the win-count ranking.
type TopWinner struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"username"`
	Wins        int    `json:"wins"`
}

// AggregateStats summarizes all sessions of one player.
type AggregateStats struct {
	TotalGames     int     `json:"totalGames"`
	GamesWon       int     `json:"gamesWon"`
	GamesLost      int     `json:"gamesLost"`
	AverageScore   float64 `json:"averageScore"`
	AverageEntropy float64 `json:"averageEntropy"`
	HighestScore   int64   `json:"highestScore"`
}

// RankResult is a player's 1-based position among all players' best scores.
// The zero value is the unranked result for players without sessions.
type RankResult struct {
	PlayerID    string
	DisplayName string
	Position    int
	BestScore   int64
	Ranked      bool
}

// Unranked builds the result for a player without sessions.
func Unranked(playerID string) RankResult {
	return RankResult{PlayerID: playerID}
}

// MarshalJSON renders the unranked result with a null rank.
func (r RankResult) MarshalJSON() ([]byte, error) {
	type wire struct {
		PlayerID    string `json:"player_id"`
		DisplayName string `json:"username,omitempty"`
		Rank        *int   `json:"rank"`
		BestScore   *int64 `json:"best_score"`
		Ranked      bool   `json:"ranked"`
	}
	w := wire{PlayerID: r.PlayerID, DisplayName: r.DisplayName, Ranked: r.Ranked}
	if r.Ranked {
		pos, best := r.Position, r.BestScore
		w.Rank, w.BestScore = &pos, &best
	}
	return json.Marshal(w)
}
