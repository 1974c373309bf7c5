package api

import "net/http"

// HandleRank handles GET /api/leaderboard/rank/{playerId}. A player without
// sessions is not an error; the body reports ranked=false.
func (h *LeaderboardHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.leaderboard_rank"
	result, err := h.deps.Rank(r.Context(), r.PathValue("playerId"))
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}
