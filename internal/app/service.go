// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/okian/driftboard/internal/adapters/repository"
	"github.com/okian/driftboard/internal/domain/dedupe"
	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/internal/domain/types"
	"github.com/okian/driftboard/internal/leaderboard"
	"github.com/okian/driftboard/pkg/logger"
	"github.com/okian/driftboard/pkg/metrics"
)

const (
	defaultDedupeSize   = 50_000
	defaultHistoryLimit = 50
	defaultRecentLimit  = 10
)

// Operation names used for write-path errors.
const (
	opRecord   = "record_session"
	opHistory  = "history"
	opTop      = "top_scores"
	opCount    = "count"
	opErase    = "erase"
	opProfile  = "profile"
	opPing     = "ping"
	opStartUp  = "start"
	opShutdown = "stop"
)

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	// store is the raw record store; profiles may be a caching decorator over it.
	store    repository.Store
	profiles repository.Store
	engine   *leaderboard.Engine
	deduper  dedupe.Deduper

	dedupeSize   int
	historyLimit int
	recentLimit  int
	engineOpts   []leaderboard.Option

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDedupeSize sets the size of the recently seen session id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithHistoryLimit sets how many sessions History returns.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithRecentLimit sets how many sessions Recent returns.
func WithRecentLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProfileStore routes profile reads, writes and display name lookups
// through store, typically the name cache wrapping the record store.
func WithProfileStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.profiles = store
		}
	}
}

// WithEngineOptions passes options to the leaderboard engine.
func WithEngineOptions(opts ...leaderboard.Option) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		profiles:     store,
		dedupeSize:   defaultDedupeSize,
		historyLimit: defaultHistoryLimit,
		recentLimit:  defaultRecentLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	// The engine reads the raw store so it can discover the native query
	// paths; names and per-player reads go through the profile store.
	engineOpts := append([]leaderboard.Option{
		leaderboard.WithLogger(s.logger.Named("leaderboard")),
		leaderboard.WithPlayerReader(s.profiles),
	}, s.engineOpts...)
	s.engine = leaderboard.New(store, engineOpts...)
	return s
}

// Start checks the store is reachable.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting leaderboard service...")
	if err := s.store.Ping(ctx); err != nil {
		return wrap(opStartUp, err)
	}

	s.started = true
	s.logger.Info(ctx, "leaderboard service started",
		logger.Bool("accelerated", s.engine.Accelerated()),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("historyLimit", s.historyLimit),
		logger.Int("recentLimit", s.recentLimit),
	)
	return nil
}

// Stop closes the store. It is safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping leaderboard service...")
	if err := s.store.Close(); err != nil && !errors.Is(err, repository.ErrClosed) {
		s.logger.Warn(ctx, "record store close failed", logger.Error(wrap(opShutdown, err)))
	}
	s.started = false
	s.logger.Info(ctx, "leaderboard service stopped")
}

// Engine exposes the leaderboard engine.
func (s *Service) Engine() *leaderboard.Engine { return s.engine }

// RecordSession stores rec once per session id. created is false when the
// session had been reported before; stored is then the original record.
func (s *Service) RecordSession(ctx context.Context, rec model.SessionRecord) (model.SessionRecord, bool, error) {
	rec.SessionID = strings.TrimSpace(rec.SessionID)
	if err := rec.Validate(); err != nil {
		return model.SessionRecord{}, false, &leaderboard.ValidationError{
			Argument: "session", Value: rec.SessionID, Reason: err.Error(),
		}
	}

	if s.deduper.SeenAndRecord(ctx, rec.SessionID) {
		existing, err := s.store.FindBySession(ctx, rec.SessionID)
		switch {
		case err == nil:
			metrics.RecordSessionDuplicate()
			s.logger.Debug(ctx, "duplicate session",
				logger.String("session_id", rec.SessionID),
				logger.String("player_id", existing.PlayerID))
			return existing, false, nil
		case !errors.Is(err, repository.ErrNotFound):
			return model.SessionRecord{}, false, wrap(opRecord, err)
		}
		// Seen but not stored: the earlier insert never landed, so try again.
	}

	stored, created, err := s.store.CreateSession(ctx, rec)
	if err != nil {
		s.deduper.Unrecord(ctx, rec.SessionID)
		s.logger.Error(ctx, "session insert failed",
			logger.String("session_id", rec.SessionID),
			logger.Error(err))
		return model.SessionRecord{}, false, wrap(opRecord, err)
	}
	if created {
		metrics.RecordSessionRecorded()
	} else {
		metrics.RecordSessionDuplicate()
	}
	return stored, created, nil
}

// History returns the player's newest sessions.
func (s *Service) History(ctx context.Context, playerID string) ([]model.SessionRecord, error) {
	return s.latest(ctx, playerID, s.historyLimit)
}

// Recent is History with the shorter recent limit.
func (s *Service) Recent(ctx context.Context, playerID string) ([]model.SessionRecord, error) {
	return s.latest(ctx, playerID, s.recentLimit)
}

func (s *Service) latest(ctx context.Context, playerID string, n int) ([]model.SessionRecord, error) {
	if err := requirePlayer(playerID); err != nil {
		return nil, err
	}
	records, err := s.store.History(ctx, playerID, n)
	if err != nil {
		return nil, wrap(opHistory, err)
	}
	return records, nil
}

// Aggregate summarizes the player's sessions.
func (s *Service) Aggregate(ctx context.Context, playerID string) (types.AggregateStats, error) {
	return s.engine.Aggregate(ctx, playerID)
}

// TopScores returns the highest raw session scores, several per player allowed.
func (s *Service) TopScores(ctx context.Context, limit leaderboard.Limit) ([]model.SessionRecord, error) {
	def, _ := s.engine.DefaultLimits()
	n, err := limit.Resolve(def, s.engine.MaxLimit())
	if err != nil {
		return nil, err
	}
	records, err := s.store.TopScores(ctx, n)
	if err != nil {
		return nil, wrap(opTop, err)
	}
	return records, nil
}

// Count returns how many sessions the player has reported.
func (s *Service) Count(ctx context.Context, playerID string) (int, error) {
	if err := requirePlayer(playerID); err != nil {
		return 0, err
	}
	n, err := s.store.CountByPlayer(ctx, playerID)
	if err != nil {
		return 0, wrap(opCount, err)
	}
	return n, nil
}

// Erase deletes every session of the player and returns how many.
func (s *Service) Erase(ctx context.Context, playerID string) (int, error) {
	if err := requirePlayer(playerID); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteByPlayer(ctx, playerID)
	if err != nil {
		return 0, wrap(opErase, err)
	}
	metrics.RecordSessionsErased(n)
	s.logger.Info(ctx, "sessions erased", logger.String("player_id", playerID), logger.Int("count", n))
	return n, nil
}

// GlobalLeaderboard is Engine.Global.
func (s *Service) GlobalLeaderboard(ctx context.Context, limit leaderboard.Limit) ([]types.LeaderboardEntry, error) {
	return s.engine.Global(ctx, limit)
}

// WindowedLeaderboard is Engine.Windowed.
func (s *Service) WindowedLeaderboard(ctx context.Context, window string, limit leaderboard.Limit) ([]types.LeaderboardEntry, error) {
	return s.engine.Windowed(ctx, window, limit)
}

// TopWinners is Engine.TopWinners.
func (s *Service) TopWinners(ctx context.Context, limit leaderboard.Limit) ([]types.TopWinner, error) {
	return s.engine.TopWinners(ctx, limit)
}

// Rank is Engine.Rank.
func (s *Service) Rank(ctx context.Context, playerID string) (types.RankResult, error) {
	return s.engine.Rank(ctx, playerID)
}

// Profile returns the player's profile or repository.ErrNotFound.
func (s *Service) Profile(ctx context.Context, playerID string) (model.Profile, error) {
	if err := requirePlayer(playerID); err != nil {
		return model.Profile{}, err
	}
	p, err := s.profiles.FindProfile(ctx, playerID)
	if err != nil {
		return model.Profile{}, wrap(opProfile, err)
	}
	return p, nil
}

// SaveProfile creates or replaces the profile.
func (s *Service) SaveProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	if err := requirePlayer(p.ID); err != nil {
		return model.Profile{}, err
	}
	saved, err := s.profiles.UpsertProfile(ctx, p)
	if err != nil {
		return model.Profile{}, wrap(opProfile, err)
	}
	return saved, nil
}

// UpdateProfile applies patch to an existing profile.
func (s *Service) UpdateProfile(ctx context.Context, playerID string, patch model.ProfilePatch) (model.Profile, error) {
	if err := requirePlayer(playerID); err != nil {
		return model.Profile{}, err
	}
	p, err := s.profiles.UpdateProfile(ctx, playerID, patch)
	if err != nil {
		return model.Profile{}, wrap(opProfile, err)
	}
	return p, nil
}

// DeleteProfile removes the profile and every session of the player. The
// sessions go first so a failure leaves the profile for a retry.
func (s *Service) DeleteProfile(ctx context.Context, playerID string) (int, error) {
	n, err := s.Erase(ctx, playerID)
	if err != nil {
		return 0, err
	}
	if err := s.profiles.DeleteProfile(ctx, playerID); err != nil {
		return n, wrap(opProfile, err)
	}
	s.logger.Info(ctx, "profile deleted", logger.String("player_id", playerID))
	return n, nil
}

// Ping reports whether the record store answers.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		return wrap(opPing, err)
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leaderboardLimit, winnersLimit := s.engine.DefaultLimits()
	return map[string]interface{}{
		"started":                 s.started,
		"accelerated":             s.engine.Accelerated(),
		"dedupeSize":              s.dedupeSize,
		"dedupeEntries":           s.deduper.Size(),
		"historyLimit":            s.historyLimit,
		"recentLimit":             s.recentLimit,
		"defaultLeaderboardLimit": leaderboardLimit,
		"defaultWinnersLimit":     winnersLimit,
		"maxLeaderboardLimit":     s.engine.MaxLimit(),
	}
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

func requirePlayer(playerID string) error {
	if strings.TrimSpace(playerID) == "" {
		return &leaderboard.ValidationError{Argument: "player_id", Value: playerID, Reason: "must not be empty"}
	}
	return nil
}

// wrap keeps not-found and invalid-limit errors as they are and reports
// everything else as the store being unavailable.
func wrap(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return err
	case errors.Is(err, repository.ErrInvalidLimit):
		return &leaderboard.ValidationError{Argument: "limit", Value: "", Reason: err.Error()}
	case errors.Is(err, model.ErrMissingProfileID):
		return &leaderboard.ValidationError{Argument: "player_id", Value: "", Reason: err.Error()}
	}
	return &leaderboard.StoreError{Op: op, Err: err}
}
