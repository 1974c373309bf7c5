// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/internal/domain/types"
	"github.com/okian/driftboard/internal/leaderboard"
	"github.com/okian/driftboard/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeaderboardDependencies
	SessionDependencies
	ProfileDependencies
	ReadinessChecker
}

// LeaderboardDependencies are the public leaderboard reads.
type LeaderboardDependencies interface {
	GlobalLeaderboard(ctx context.Context, limit leaderboard.Limit) ([]types.LeaderboardEntry, error)
	WindowedLeaderboard(ctx context.Context, window string, limit leaderboard.Limit) ([]types.LeaderboardEntry, error)
	TopWinners(ctx context.Context, limit leaderboard.Limit) ([]types.TopWinner, error)
	Rank(ctx context.Context, playerID string) (types.RankResult, error)
}

// SessionDependencies are the caller-scoped session operations.
type SessionDependencies interface {
	RecordSession(ctx context.Context, rec model.SessionRecord) (model.SessionRecord, bool, error)
	History(ctx context.Context, playerID string) ([]model.SessionRecord, error)
	Recent(ctx context.Context, playerID string) ([]model.SessionRecord, error)
	Aggregate(ctx context.Context, playerID string) (types.AggregateStats, error)
	TopScores(ctx context.Context, limit leaderboard.Limit) ([]model.SessionRecord, error)
	Count(ctx context.Context, playerID string) (int, error)
	Erase(ctx context.Context, playerID string) (int, error)
}

// ProfileDependencies are the caller-scoped profile operations.
type ProfileDependencies interface {
	Profile(ctx context.Context, playerID string) (model.Profile, error)
	SaveProfile(ctx context.Context, p model.Profile) (model.Profile, error)
	UpdateProfile(ctx context.Context, playerID string, patch model.ProfilePatch) (model.Profile, error)
	DeleteProfile(ctx context.Context, playerID string) (int, error)
}

// ReadinessChecker reports whether the backing store answers.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	sessionHandler     *SessionHandler
	profileHandler     *ProfileHandler

	log     logger.Logger
	apiKey  string
	ident   identityHeaders
	limiter *limiterSet
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		ident: identityHeaders{player: defaultPlayerHeader, email: defaultEmailHeader},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("api")
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(statsProvider)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.log)
	s.sessionHandler = NewSessionHandler(deps, s.log)
	s.profileHandler = NewProfileHandler(deps, s.log)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.HandleFunc("GET /status", MetricsMiddleware(s.statsHandler.HandleStats, "status"))

	// Leaderboards are public apart from the shared API key.
	lb := s.leaderboardHandler
	s.public(mux, "GET /api/leaderboard/global", "leaderboard_global", lb.HandleGlobal)
	s.public(mux, "GET /api/leaderboard/top-winners", "leaderboard_top_winners", lb.HandleTopWinners)
	s.public(mux, "GET /api/leaderboard/period/{period}", "leaderboard_period", lb.HandlePeriod)
	s.public(mux, "GET /api/leaderboard/rank/{playerId}", "leaderboard_rank", lb.HandleRank)

	st := s.sessionHandler
	s.private(mux, "POST /api/stats", "stats_record", st.HandleRecord)
	s.private(mux, "DELETE /api/stats", "stats_erase", st.HandleErase)
	s.private(mux, "GET /api/stats/history", "stats_history", st.HandleHistory)
	s.private(mux, "GET /api/stats/recent", "stats_recent", st.HandleRecent)
	s.private(mux, "GET /api/stats/aggregate", "stats_aggregate", st.HandleAggregate)
	s.private(mux, "GET /api/stats/count", "stats_count", st.HandleCount)
	s.private(mux, "GET /api/stats/top", "stats_top", st.HandleTop)
	s.private(mux, "GET /api/stats/{playerId}", "stats_player", st.HandlePlayer)

	pr := s.profileHandler
	s.private(mux, "GET /api/profile", "profile_get", pr.HandleGet)
	s.private(mux, "GET /api/profile/{playerId}", "profile_get_by_id", pr.HandleGetByID)
	s.private(mux, "POST /api/profile", "profile_upsert", pr.HandleUpsert)
	s.private(mux, "PUT /api/profile", "profile_update", pr.HandleUpdate)
	s.private(mux, "DELETE /api/profile", "profile_delete", pr.HandleDelete)
}

func (s *Server) public(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc) {
	mux.Handle(pattern, s.chain(endpoint, h))
}

func (s *Server) private(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc) {
	mux.Handle(pattern, s.chain(endpoint, s.requireCaller(h)))
}

// chain applies, outermost first: request id, panic recovery, metrics,
// rate limiting and the API key check.
func (s *Server) chain(endpoint string, h http.HandlerFunc) http.Handler {
	h = s.requireAPIKey(h)
	if s.limiter != nil {
		h = s.rateLimit(endpoint, h)
	}
	h = MetricsMiddleware(h, endpoint)
	h = s.recoverer(h)
	return RequestID(h)
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes the error body. Server-side
// failures are logged and reported without their cause.
func writeError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", RequestIDFrom(r.Context())),
			logger.Error(err))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, RequestID: RequestIDFrom(r.Context())})
}

// limitParam reads the optional limit query parameter.
func limitParam(r *http.Request) (leaderboard.Limit, error) {
	return leaderboard.ParseLimit(r.URL.Query().Get("limit"))
}
