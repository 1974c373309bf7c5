// Package repository defines the record store contracts and an in-memory store.
package repository

import (
	"context"
	"time"

	"github.com/okian/driftboard/internal/domain/model"
)

// Reader is the read side consumed by the leaderboard engine.
type Reader interface {
	// FetchByPlayer returns every record of playerID in any order.
	FetchByPlayer(ctx context.Context, playerID string) ([]model.SessionRecord, error)

	// FetchAll returns every record played at or after since (all when nil),
	// annotated with the player's display name where one is known.
	FetchAll(ctx context.Context, since *time.Time) ([]model.NamedRecord, error)

	// ResolveDisplayName returns the player's display name; ok is false when
	// the player has no profile.
	ResolveDisplayName(ctx context.Context, playerID string) (name string, ok bool, err error)
}

// BestPerPlayerFetcher is the optional store-native best-per-player query.
// Results are ordered by score desc, then player id asc.
type BestPerPlayerFetcher interface {
	FetchBestPerPlayer(ctx context.Context, limit int) ([]model.NamedRecord, error)
}

// RankCounter is the optional store-native rank query.
type RankCounter interface {
	// CountPlayersAbove counts players whose best score is strictly greater than score.
	CountPlayersAbove(ctx context.Context, score int64) (int, error)
}

// WinCountFetcher is the optional store-native win count query.
// Results are ordered by wins desc, then player id asc.
type WinCountFetcher interface {
	FetchWinCounts(ctx context.Context, limit int) ([]model.WinCount, error)
}

// Writer is the session write path used by the service layer.
type Writer interface {
	// CreateSession stores rec unless its SessionID exists, in which case the
	// stored record is returned unchanged and created is false.
	CreateSession(ctx context.Context, rec model.SessionRecord) (stored model.SessionRecord, created bool, err error)

	// FindBySession returns ErrNotFound for unknown ids.
	FindBySession(ctx context.Context, sessionID string) (model.SessionRecord, error)

	// History returns up to limit records of playerID, newest first.
	History(ctx context.Context, playerID string, limit int) ([]model.SessionRecord, error)

	// TopScores returns up to limit raw records by score desc.
	TopScores(ctx context.Context, limit int) ([]model.SessionRecord, error)

	CountByPlayer(ctx context.Context, playerID string) (int, error)

	// DeleteByPlayer erases every record of playerID and returns how many.
	DeleteByPlayer(ctx context.Context, playerID string) (int, error)
}

// Profiles stores player identities that supply display names.
type Profiles interface {
	// FindProfile returns ErrNotFound for unknown ids.
	FindProfile(ctx context.Context, id string) (model.Profile, error)

	// UpsertProfile creates or replaces a profile after applying defaults.
	UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error)

	// UpdateProfile applies patch to an existing profile.
	UpdateProfile(ctx context.Context, id string, patch model.ProfilePatch) (model.Profile, error)

	// DeleteProfile returns ErrNotFound for unknown ids.
	DeleteProfile(ctx context.Context, id string) error

	ProfileExists(ctx context.Context, id string) (bool, error)
}

// Store is a complete record store.
type Store interface {
	Reader
	Writer
	Profiles

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}
