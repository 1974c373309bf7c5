package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/pkg/metrics"
)

// MemStore is an in-memory Store. Besides the plain record scan it keeps a
// per-player best index and win counts, so it also serves the accelerated
// queries (BestPerPlayerFetcher, RankCounter, WinCountFetcher).
type MemStore struct {
	mu sync.RWMutex

	sessions map[string]*model.SessionRecord // by session id
	order    []string                        // session ids, insertion order
	byPlayer map[string][]string             // player id -> session ids
	best     map[string]model.SessionRecord  // player id -> retained best
	wins     map[string]int
	tree     bestTree
	profiles map[string]model.Profile
	closed   bool

	now                   func() time.Time
	newID                 func() string
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

var (
	_ Store                = (*MemStore)(nil)
	_ BestPerPlayerFetcher = (*MemStore)(nil)
	_ RankCounter          = (*MemStore)(nil)
	_ WinCountFetcher      = (*MemStore)(nil)
)

// NewMemStore constructs an empty store and starts its gauge updater,
// which stops on Close or when ctx is done.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	s := &MemStore{
		sessions:              make(map[string]*model.SessionRecord),
		byPlayer:              make(map[string][]string),
		best:                  make(map[string]model.SessionRecord),
		wins:                  make(map[string]int),
		profiles:              make(map[string]model.Profile),
		now:                   time.Now,
		newID:                 uuid.NewString,
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

func (s *MemStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.mu.RLock()
				records, players := len(s.sessions), len(s.best)
				s.mu.RUnlock()
				metrics.UpdateStoreRecords(records)
				metrics.UpdateStorePlayers(players)
			}
		}
	}()
}

// Ping fails once the store is closed.
func (s *MemStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close stops the background updater. Later calls fail with ErrClosed.
func (s *MemStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopChan)
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// readLock takes the read lock and checks ctx and the closed flag.
func (s *MemStore) readLock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	return nil
}

func (s *MemStore) writeLock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, metrics.Since(start))
}

func clone(r model.SessionRecord) model.SessionRecord {
	r.Metrics = r.Metrics.Clone()
	return r
}

// FetchByPlayer implements Reader.
func (s *MemStore) FetchByPlayer(ctx context.Context, playerID string) ([]model.SessionRecord, error) {
	defer observe("fetch_by_player", time.Now())
	if err := s.readLock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	ids := s.byPlayer[playerID]
	out := make([]model.SessionRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, clone(*s.sessions[id]))
	}
	return out, nil
}

// FetchAll implements Reader.
func (s *MemStore) FetchAll(ctx context.Context, since *time.Time) ([]model.NamedRecord, error) {
	defer observe("fetch_all", time.Now())
	if err := s.readLock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	out := make([]model.NamedRecord, 0, len(s.order))
	for _, id := range s.order {
		r := s.sessions[id]
		if since != nil && r.PlayedAt.Before(*since) {
			continue
		}
		out = append(out, model.NamedRecord{SessionRecord: clone(*r), DisplayName: s.profiles[r.PlayerID].Username})
	}
	return out, nil
}

// ResolveDisplayName implements Reader.
func (s *MemStore) ResolveDisplayName(ctx context.Context, playerID string) (string, bool, error) {
	if err := s.readLock(ctx); err != nil {
		return "", false, err
	}
	defer s.mu.RUnlock()

	p, ok := s.profiles[playerID]
	if !ok || p.Username == "" {
		return "", false, nil
	}
	return p.Username, true, nil
}

// FetchBestPerPlayer implements BestPerPlayerFetcher from the best index.
func (s *MemStore) FetchBestPerPlayer(ctx context.Context, limit int) ([]model.NamedRecord, error) {
	defer observe("fetch_best_per_player", time.Now())
	if limit < 0 {
		return nil, ErrInvalidLimit
	}
	if err := s.readLock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	players := s.tree.top(limit)
	out := make([]model.NamedRecord, len(players))
	for i, p := range players {
		out[i] = model.NamedRecord{SessionRecord: clone(s.best[p]), DisplayName: s.profiles[p].Username}
	}
	return out, nil
}

// CountPlayersAbove implements RankCounter in O(log n).
func (s *MemStore) CountPlayersAbove(ctx context.Context, score int64) (int, error) {
	if err := s.readLock(ctx); err != nil {
		return 0, err
	}
	defer s.mu.RUnlock()
	return s.tree.above(score), nil
}

// FetchWinCounts implements WinCountFetcher.
func (s *MemStore) FetchWinCounts(ctx context.Context, limit int) ([]model.WinCount, error) {
	defer observe("fetch_win_counts", time.Now())
	if limit < 0 {
		return nil, ErrInvalidLimit
	}
	if err := s.readLock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	out := make([]model.WinCount, 0, len(s.wins))
	for p, n := range s.wins {
		out = append(out, model.WinCount{PlayerID: p, DisplayName: s.profiles[p].Username, Wins: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateSession implements Writer. A zero PlayedAt is stamped with the store clock.
func (s *MemStore) CreateSession(ctx context.Context, rec model.SessionRecord) (model.SessionRecord, bool, error) {
	defer observe("create_session", time.Now())
	if err := rec.Validate(); err != nil {
		return model.SessionRecord{}, false, err
	}
	if err := s.writeLock(ctx); err != nil {
		return model.SessionRecord{}, false, err
	}
	defer s.mu.Unlock()

	if existing, ok := s.sessions[rec.SessionID]; ok {
		return clone(*existing), false, nil
	}

	rec = clone(rec)
	rec.ID = s.newID()
	if rec.PlayedAt.IsZero() {
		rec.PlayedAt = s.now()
	}
	rec.PlayedAt = rec.PlayedAt.UTC()

	s.sessions[rec.SessionID] = &rec
	s.order = append(s.order, rec.SessionID)
	s.byPlayer[rec.PlayerID] = append(s.byPlayer[rec.PlayerID], rec.SessionID)
	if rec.Won {
		s.wins[rec.PlayerID]++
	}
	old, had := s.best[rec.PlayerID]
	if !had || model.Better(rec, old) {
		s.best[rec.PlayerID] = rec
		if !had || old.FinalScore != rec.FinalScore {
			s.tree.upsert(rec.PlayerID, old.FinalScore, had, rec.FinalScore)
		}
	}
	return clone(rec), true, nil
}

// FindBySession implements Writer.
func (s *MemStore) FindBySession(ctx context.Context, sessionID string) (model.SessionRecord, error) {
	if err := s.readLock(ctx); err != nil {
		return model.SessionRecord{}, err
	}
	defer s.mu.RUnlock()

	r, ok := s.sessions[sessionID]
	if !ok {
		return model.SessionRecord{}, ErrNotFound
	}
	return clone(*r), nil
}

// History implements Writer.
func (s *MemStore) History(ctx context.Context, playerID string, limit int) ([]model.SessionRecord, error) {
	if limit < 0 {
		return nil, ErrInvalidLimit
	}
	recs, err := s.FetchByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].PlayedAt.After(recs[j].PlayedAt) })
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// TopScores implements Writer.
func (s *MemStore) TopScores(ctx context.Context, limit int) ([]model.SessionRecord, error) {
	if limit < 0 {
		return nil, ErrInvalidLimit
	}
	if err := s.readLock(ctx); err != nil {
		return nil, err
	}
	out := make([]model.SessionRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, clone(*s.sessions[id]))
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].FinalScore > out[j].FinalScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByPlayer implements Writer.
func (s *MemStore) CountByPlayer(ctx context.Context, playerID string) (int, error) {
	if err := s.readLock(ctx); err != nil {
		return 0, err
	}
	defer s.mu.RUnlock()
	return len(s.byPlayer[playerID]), nil
}

// DeleteByPlayer implements Writer.
func (s *MemStore) DeleteByPlayer(ctx context.Context, playerID string) (int, error) {
	defer observe("delete_by_player", time.Now())
	if err := s.writeLock(ctx); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	ids := s.byPlayer[playerID]
	if len(ids) == 0 {
		return 0, nil
	}
	for _, id := range ids {
		delete(s.sessions, id)
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.sessions[id]; ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
	s.tree.delete(playerID, s.best[playerID].FinalScore)
	delete(s.best, playerID)
	delete(s.wins, playerID)
	delete(s.byPlayer, playerID)
	return len(ids), nil
}

// FindProfile implements Profiles.
func (s *MemStore) FindProfile(ctx context.Context, id string) (model.Profile, error) {
	if err := s.readLock(ctx); err != nil {
		return model.Profile{}, err
	}
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	return cloneProfile(p), nil
}

// UpsertProfile implements Profiles. CreatedAt survives replacement.
func (s *MemStore) UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	p, err := p.WithDefaults()
	if err != nil {
		return model.Profile{}, err
	}
	if err := s.writeLock(ctx); err != nil {
		return model.Profile{}, err
	}
	defer s.mu.Unlock()

	now := s.now().UTC()
	p.CreatedAt = now
	if old, ok := s.profiles[p.ID]; ok {
		p.CreatedAt = old.CreatedAt
	}
	p.UpdatedAt = now
	p = cloneProfile(p)
	s.profiles[p.ID] = p
	return cloneProfile(p), nil
}

// UpdateProfile implements Profiles.
func (s *MemStore) UpdateProfile(ctx context.Context, id string, patch model.ProfilePatch) (model.Profile, error) {
	if err := s.writeLock(ctx); err != nil {
		return model.Profile{}, err
	}
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	p = cloneProfile(p)
	patch.Apply(&p)
	p.UpdatedAt = s.now().UTC()
	s.profiles[id] = p
	return cloneProfile(p), nil
}

// DeleteProfile implements Profiles.
func (s *MemStore) DeleteProfile(ctx context.Context, id string) error {
	if err := s.writeLock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return ErrNotFound
	}
	delete(s.profiles, id)
	return nil
}

// ProfileExists implements Profiles.
func (s *MemStore) ProfileExists(ctx context.Context, id string) (bool, error) {
	if err := s.readLock(ctx); err != nil {
		return false, err
	}
	defer s.mu.RUnlock()
	_, ok := s.profiles[id]
	return ok, nil
}

func cloneProfile(p model.Profile) model.Profile {
	if p.Traits != nil {
		traits := make(map[string]float64, len(p.Traits))
		for k, v := range p.Traits {
			traits[k] = v
		}
		p.Traits = traits
	}
	return p
}
