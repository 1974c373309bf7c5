package api

import (
	"net/http"

	"github.com/okian/driftboard/pkg/logger"
)

// LeaderboardHandler serves the public leaderboard reads.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
	log  logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, log logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, log: log}
}

// HandleGlobal handles GET /api/leaderboard/global?limit=N.
func (h *LeaderboardHandler) HandleGlobal(w http.ResponseWriter, r *http.Request) {
	const op = "api.leaderboard_global"
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	entries, err := h.deps.GlobalLeaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandlePeriod handles GET /api/leaderboard/period/{period}?limit=N.
func (h *LeaderboardHandler) HandlePeriod(w http.ResponseWriter, r *http.Request) {
	const op = "api.leaderboard_period"
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	entries, err := h.deps.WindowedLeaderboard(r.Context(), r.PathValue("period"), limit)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleTopWinners handles GET /api/leaderboard/top-winners?limit=N.
func (h *LeaderboardHandler) HandleTopWinners(w http.ResponseWriter, r *http.Request) {
	const op = "api.leaderboard_top_winners"
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	winners, err := h.deps.TopWinners(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, winners)
}
