package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/okian/driftboard/internal/adapters/repository"
	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/pkg/metrics"
)

var (
	_ repository.Store                = (*Store)(nil)
	_ repository.BestPerPlayerFetcher = (*Store)(nil)
	_ repository.RankCounter          = (*Store)(nil)
	_ repository.WinCountFetcher      = (*Store)(nil)
)

// Player ids and session ids order bytewise so ties break the same way as
// the in-memory reduction.
const (
	sessionColumns = `s.id::text, s.session_id, s.player_id, s.final_score, s.final_entropy,
		s.won, s.phase_reached, s.metrics, s.played_at`

	profileColumns = `id, email, username, avatar_url, bio, play_style,
		psychological_archetype, traits, created_at, updated_at`

	queryFetchByPlayer = `SELECT ` + sessionColumns + ` FROM game_sessions s WHERE s.player_id = $1`

	queryFetchAll = `SELECT ` + sessionColumns + `, COALESCE(p.username, '')
		FROM game_sessions s LEFT JOIN profiles p ON p.id = s.player_id
		WHERE $1::timestamptz IS NULL OR s.played_at >= $1`

	queryBestPerPlayer = `SELECT ` + sessionColumns + `, COALESCE(p.username, '')
		FROM (
			SELECT DISTINCT ON (player_id) *
			FROM game_sessions
			ORDER BY player_id, final_score DESC, played_at ASC, session_id COLLATE "C" ASC
		) s LEFT JOIN profiles p ON p.id = s.player_id
		ORDER BY s.final_score DESC, s.player_id COLLATE "C" ASC
		LIMIT $1`

	queryCountAbove = `SELECT COUNT(*) FROM (
			SELECT player_id FROM game_sessions
			GROUP BY player_id HAVING MAX(final_score) > $1
		) t`

	queryWinCounts = `SELECT w.player_id, COALESCE(p.username, ''), w.wins
		FROM (
			SELECT player_id, COUNT(*) AS wins FROM game_sessions
			WHERE won GROUP BY player_id
		) w LEFT JOIN profiles p ON p.id = w.player_id
		ORDER BY w.wins DESC, w.player_id COLLATE "C" ASC
		LIMIT $1`

	queryInsertSession = `INSERT INTO game_sessions AS s
		(id, session_id, player_id, final_score, final_entropy, won, phase_reached, metrics, played_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING ` + sessionColumns

	queryFindBySession = `SELECT ` + sessionColumns + ` FROM game_sessions s WHERE s.session_id = $1`

	queryHistory = `SELECT ` + sessionColumns + ` FROM game_sessions s
		WHERE s.player_id = $1 ORDER BY s.played_at DESC LIMIT $2`

	queryTopScores = `SELECT ` + sessionColumns + ` FROM game_sessions s
		ORDER BY s.final_score DESC, s.played_at ASC LIMIT $1`

	queryUpsertProfile = `INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $9)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			username = EXCLUDED.username,
			avatar_url = EXCLUDED.avatar_url,
			bio = EXCLUDED.bio,
			play_style = EXCLUDED.play_style,
			psychological_archetype = EXCLUDED.psychological_archetype,
			traits = EXCLUDED.traits,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + profileColumns

	queryUpdateProfile = `UPDATE profiles SET
			username = $2, avatar_url = $3, bio = $4, play_style = $5,
			psychological_archetype = $6, traits = $7::jsonb, updated_at = $8
		WHERE id = $1
		RETURNING ` + profileColumns
)

// Store is a repository.Store backed by PostgreSQL. It also serves the
// store-native best-per-player, rank and win count queries.
type Store struct {
	conn         *Connection
	queryTimeout time.Duration
	now          func() time.Time
	newID        func() string

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	stopOnce              sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithQueryTimeout bounds each statement. Zero leaves the caller's context as is.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.queryTimeout = d
		}
	}
}

// WithClock sets the time source used to stamp new sessions and profiles.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetricsUpdateInterval enables the background record and player gauges.
func WithMetricsUpdateInterval(d time.Duration) Option {
	return func(s *Store) { s.metricsUpdateInterval = d }
}

// NewStore returns a Store over conn. The store owns conn and closes it.
func NewStore(ctx context.Context, conn *Connection, opts ...Option) *Store {
	s := &Store{
		conn:         conn,
		queryTimeout: 5 * time.Second,
		now:          time.Now,
		newID:        uuid.NewString,
		stopChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metricsUpdateInterval > 0 {
		s.startMetricsUpdater(ctx)
	}
	return s
}

func (s *Store) startMetricsUpdater(ctx context.Context) {
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
				var records, players int
				qctx, cancel := s.bound(ctx)
				err := s.conn.queryRow(qctx,
					`SELECT COUNT(*), COUNT(DISTINCT player_id) FROM game_sessions`).Scan(&records, &players)
				cancel()
				if err == nil {
					metrics.UpdateStoreRecords(records)
					metrics.UpdateStorePlayers(players)
				}
				if st := s.conn.Stat(); st != nil {
					metrics.UpdateStorePool(st.AcquiredConns(), st.IdleConns(), st.TotalConns())
				}
			}
		}
	}()
}

// Ping implements repository.Store.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.conn.Ping(ctx)
}

// Close stops the gauge updater and closes the pool.
func (s *Store) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		s.conn.Close()
	})
	return nil
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// done records latency and failures of one store call and wraps err with op.
func done(op string, start time.Time, err error) error {
	metrics.RecordStoreLatency(op, metrics.Since(start))
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		metrics.RecordStoreError(op)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}

func scanSession(row pgx.Row, extra ...any) (model.SessionRecord, error) {
	var (
		r   model.SessionRecord
		raw []byte
	)
	dest := append([]any{
		&r.ID, &r.SessionID, &r.PlayerID, &r.FinalScore, &r.FinalEntropy,
		&r.Won, &r.PhaseReached, &raw, &r.PlayedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.SessionRecord{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &r.Metrics); err != nil {
			return model.SessionRecord{}, fmt.Errorf("decode metrics: %w", err)
		}
	}
	r.PlayedAt = r.PlayedAt.UTC()
	return r, nil
}

func collectSessions(rows pgx.Rows) ([]model.SessionRecord, error) {
	defer rows.Close()
	out := make([]model.SessionRecord, 0)
	for rows.Next() {
		r, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func collectNamed(rows pgx.Rows) ([]model.NamedRecord, error) {
	defer rows.Close()
	out := make([]model.NamedRecord, 0)
	for rows.Next() {
		var name string
		r, err := scanSession(rows, &name)
		if err != nil {
			return nil, err
		}
		out = append(out, model.NamedRecord{SessionRecord: r, DisplayName: name})
	}
	return out, rows.Err()
}

// FetchByPlayer implements repository.Reader.
func (s *Store) FetchByPlayer(ctx context.Context, playerID string) (_ []model.SessionRecord, err error) {
	defer func(start time.Time) { err = done("fetch_by_player", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.conn.query(ctx, queryFetchByPlayer, playerID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// FetchAll implements repository.Reader.
func (s *Store) FetchAll(ctx context.Context, since *time.Time) (_ []model.NamedRecord, err error) {
	defer func(start time.Time) { err = done("fetch_all", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.conn.query(ctx, queryFetchAll, since)
	if err != nil {
		return nil, err
	}
	return collectNamed(rows)
}

// ResolveDisplayName implements repository.Reader.
func (s *Store) ResolveDisplayName(ctx context.Context, playerID string) (_ string, _ bool, err error) {
	defer func(start time.Time) { err = done("resolve_display_name", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var name string
	err = s.conn.queryRow(ctx, `SELECT username FROM profiles WHERE id = $1`, playerID).Scan(&name)
	if IsNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

// FetchBestPerPlayer implements repository.BestPerPlayerFetcher.
func (s *Store) FetchBestPerPlayer(ctx context.Context, limit int) (_ []model.NamedRecord, err error) {
	if limit < 0 {
		return nil, repository.ErrInvalidLimit
	}
	defer func(start time.Time) { err = done("fetch_best_per_player", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.conn.query(ctx, queryBestPerPlayer, limit)
	if err != nil {
		return nil, err
	}
	return collectNamed(rows)
}

// CountPlayersAbove implements repository.RankCounter.
func (s *Store) CountPlayersAbove(ctx context.Context, score int64) (_ int, err error) {
	defer func(start time.Time) { err = done("count_players_above", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var n int
	if err := s.conn.queryRow(ctx, queryCountAbove, score).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// FetchWinCounts implements repository.WinCountFetcher.
func (s *Store) FetchWinCounts(ctx context.Context, limit int) (_ []model.WinCount, err error) {
	if limit < 0 {
		return nil, repository.ErrInvalidLimit
	}
	defer func(start time.Time) { err = done("fetch_win_counts", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.conn.query(ctx, queryWinCounts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.WinCount, 0)
	for rows.Next() {
		var w model.WinCount
		if err := rows.Scan(&w.PlayerID, &w.DisplayName, &w.Wins); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateSession implements repository.Writer. A zero PlayedAt is stamped
// with the store clock.
func (s *Store) CreateSession(ctx context.Context, rec model.SessionRecord) (_ model.SessionRecord, _ bool, err error) {
	if err := rec.Validate(); err != nil {
		return model.SessionRecord{}, false, err
	}
	defer func(start time.Time) { err = done("create_session", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if rec.PlayedAt.IsZero() {
		rec.PlayedAt = s.now()
	}
	var raw []byte
	if rec.Metrics.Len() > 0 {
		if raw, err = json.Marshal(rec.Metrics); err != nil {
			return model.SessionRecord{}, false, fmt.Errorf("encode metrics: %w", err)
		}
	}

	stored, err := scanSession(s.conn.queryRow(ctx, queryInsertSession,
		s.newID(), rec.SessionID, rec.PlayerID, rec.FinalScore, rec.FinalEntropy,
		rec.Won, rec.PhaseReached, raw, rec.PlayedAt.UTC()))
	if err == nil {
		return stored, true, nil
	}
	if !IsNoRows(err) {
		return model.SessionRecord{}, false, err
	}

	existing, err := scanSession(s.conn.queryRow(ctx, queryFindBySession, rec.SessionID))
	if err != nil {
		return model.SessionRecord{}, false, err
	}
	return existing, false, nil
}

// FindBySession implements repository.Writer.
func (s *Store) FindBySession(ctx context.Context, sessionID string) (model.SessionRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	r, err := scanSession(s.conn.queryRow(ctx, queryFindBySession, sessionID))
	if IsNoRows(err) {
		return model.SessionRecord{}, repository.ErrNotFound
	}
	if err != nil {
		return model.SessionRecord{}, done("find_by_session", time.Now(), err)
	}
	return r, nil
}

// History implements repository.Writer.
func (s *Store) History(ctx context.Context, playerID string, limit int) (_ []model.SessionRecord, err error) {
	if limit < 0 {
		return nil, repository.ErrInvalidLimit
	}
	defer func(start time.Time) { err = done("history", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.conn.query(ctx, queryHistory, playerID, limit)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// TopScores implements repository.Writer.
func (s *Store) TopScores(ctx context.Context, limit int) (_ []model.SessionRecord, err error) {
	if limit < 0 {
		return nil, repository.ErrInvalidLimit
	}
	defer func(start time.Time) { err = done("top_scores", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.conn.query(ctx, queryTopScores, limit)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// CountByPlayer implements repository.Writer.
func (s *Store) CountByPlayer(ctx context.Context, playerID string) (_ int, err error) {
	defer func(start time.Time) { err = done("count_by_player", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var n int
	if err := s.conn.queryRow(ctx, `SELECT COUNT(*) FROM game_sessions WHERE player_id = $1`, playerID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteByPlayer implements repository.Writer.
func (s *Store) DeleteByPlayer(ctx context.Context, playerID string) (_ int, err error) {
	defer func(start time.Time) { err = done("delete_by_player", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tag, err := s.conn.exec(ctx, `DELETE FROM game_sessions WHERE player_id = $1`, playerID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanProfile(row pgx.Row) (model.Profile, error) {
	var (
		p   model.Profile
		raw []byte
	)
	if err := row.Scan(&p.ID, &p.Email, &p.Username, &p.AvatarURL, &p.Bio, &p.PlayStyle,
		&p.Archetype, &raw, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Profile{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p.Traits); err != nil {
			return model.Profile{}, fmt.Errorf("decode traits: %w", err)
		}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func encodeTraits(t map[string]float64) ([]byte, error) {
	if len(t) == 0 {
		return nil, nil
	}
	return json.Marshal(t)
}

// FindProfile implements repository.Profiles.
func (s *Store) FindProfile(ctx context.Context, id string) (model.Profile, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	p, err := scanProfile(s.conn.queryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if IsNoRows(err) {
		return model.Profile{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Profile{}, done("find_profile", time.Now(), err)
	}
	return p, nil
}

// UpsertProfile implements repository.Profiles. CreatedAt survives replacement.
func (s *Store) UpsertProfile(ctx context.Context, p model.Profile) (_ model.Profile, err error) {
	p, err = p.WithDefaults()
	if err != nil {
		return model.Profile{}, err
	}
	defer func(start time.Time) { err = done("upsert_profile", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	traits, err := encodeTraits(p.Traits)
	if err != nil {
		return model.Profile{}, err
	}
	return scanProfile(s.conn.queryRow(ctx, queryUpsertProfile,
		p.ID, p.Email, p.Username, p.AvatarURL, p.Bio, p.PlayStyle, p.Archetype, traits, s.now().UTC()))
}

// UpdateProfile implements repository.Profiles. The row is locked while the
// patch is merged so concurrent trait updates do not drop keys.
func (s *Store) UpdateProfile(ctx context.Context, id string, patch model.ProfilePatch) (model.Profile, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var out model.Profile
	err := s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		p, err := scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		patch.Apply(&p)
		traits, err := encodeTraits(p.Traits)
		if err != nil {
			return err
		}
		out, err = scanProfile(tx.QueryRow(ctx, queryUpdateProfile,
			id, p.Username, p.AvatarURL, p.Bio, p.PlayStyle, p.Archetype, traits, s.now().UTC()))
		return err
	})
	if IsNoRows(err) {
		return model.Profile{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Profile{}, done("update_profile", time.Now(), err)
	}
	return out, nil
}

// DeleteProfile implements repository.Profiles.
func (s *Store) DeleteProfile(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { err = done("delete_profile", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tag, err := s.conn.exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ProfileExists implements repository.Profiles.
func (s *Store) ProfileExists(ctx context.Context, id string) (_ bool, err error) {
	defer func(start time.Time) { err = done("profile_exists", start, err) }(time.Now())
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var ok bool
	if err := s.conn.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
