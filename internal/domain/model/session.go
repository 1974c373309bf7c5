// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// SessionRecord is one reported game session outcome. Records are immutable
// once stored; SessionID is unique across the store.
type SessionRecord struct {
	ID           string    `json:"id,omitempty"`
	SessionID    string    `json:"session_id"`
	PlayerID     string    `json:"player_id"`
	FinalScore   int64     `json:"final_score"`
	FinalEntropy float64   `json:"final_entropy"`
	Won          bool      `json:"won"`
	PhaseReached int       `json:"phase_reached"`
	Metrics      Metrics   `json:"metrics,omitempty"`
	PlayedAt     time.Time `json:"played_at"`
}

// Validate checks the identity and outcome fields of a new record.
func (r SessionRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.SessionID) == "":
		return ErrMissingSessionID
	case strings.TrimSpace(r.PlayerID) == "":
		return ErrMissingPlayerID
	case r.FinalScore < 0:
		return ErrNegativeScore
	case r.PhaseReached < 0:
		return ErrNegativePhase
	}
	return nil
}

// NamedRecord is a SessionRecord annotated with its player's display name.
// DisplayName is empty when the store could not resolve one.
type NamedRecord struct {
	SessionRecord
	DisplayName string
}

// Better reports whether a should be retained over b as a player's best
// record: higher score first, then earlier play time, then session id.
func Better(a, b SessionRecord) bool {
	if a.FinalScore != b.FinalScore {
		return a.FinalScore > b.FinalScore
	}
	if !a.PlayedAt.Equal(b.PlayedAt) {
		return a.PlayedAt.Before(b.PlayedAt)
	}
	return a.SessionID < b.SessionID
}

// WinCount is the number of won sessions of one player.
type WinCount struct {
	PlayerID    string
	DisplayName string
	Wins        int
}
