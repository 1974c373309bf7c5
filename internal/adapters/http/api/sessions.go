package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Outcome fields read into the record; every other body field is kept as
// opaque metrics. Server-owned fields are dropped.
var (
	serverOwnedFields = map[string]struct{}{
		"id": {}, "player_id": {}, "user_id": {}, "played_at": {}, "created_at": {},
	}
	outcomeFields = map[string]struct{}{
		"session_id": {}, "final_score": {}, "final_entropy": {}, "won": {}, "phase_reached": {},
	}
)

// SessionHandler serves the caller's session reports and reads.
type SessionHandler struct {
	deps SessionDependencies
	log  logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies, log logger.Logger) *SessionHandler {
	return &SessionHandler{deps: deps, log: log}
}

// HandleRecord handles POST /api/stats. It answers 201 with the new record,
// or 200 with the original when the session was reported before.
func (h *SessionHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats_record"
	caller, _ := CallerFrom(r.Context())

	rec, err := decodeSession(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, h.log, WrapKind(op, ErrBadRequest, err))
		return
	}
	rec.PlayerID = caller.PlayerID

	stored, created, err := h.deps.RecordSession(r.Context(), rec)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, stored)
}

// decodeSession splits a report body into the outcome fields and the
// opaque metrics payload.
func decodeSession(body io.Reader) (model.SessionRecord, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return model.SessionRecord{}, fmt.Errorf("invalid JSON body: %w", err)
	}

	var rec model.SessionRecord
	fields := []struct {
		name string
		dst  any
	}{
		{"session_id", &rec.SessionID},
		{"final_score", &rec.FinalScore},
		{"final_entropy", &rec.FinalEntropy},
		{"won", &rec.Won},
		{"phase_reached", &rec.PhaseReached},
	}
	for _, f := range fields {
		v, ok := raw[f.name]
		if !ok || string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return model.SessionRecord{}, fmt.Errorf("invalid %s: %w", f.name, err)
		}
	}

	for k, v := range raw {
		if _, ok := outcomeFields[k]; ok {
			continue
		}
		if _, ok := serverOwnedFields[k]; ok {
			continue
		}
		if rec.Metrics == nil {
			rec.Metrics = make(model.Metrics)
		}
		rec.Metrics[k] = v
	}
	return rec, nil
}

// HandleHistory handles GET /api/stats/history.
func (h *SessionHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats_history"
	caller, _ := CallerFrom(r.Context())
	records, err := h.deps.History(r.Context(), caller.PlayerID)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleRecent handles GET /api/stats/recent.
func (h *SessionHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats_recent"
	caller, _ := CallerFrom(r.Context())
	records, err := h.deps.Recent(r.Context(), caller.PlayerID)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandlePlayer handles GET /api/stats/{playerId}; callers may only read
// their own sessions.
func (h *SessionHandler) HandlePlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats_player"
	caller, _ := CallerFrom(r.Context())
	if r.PathValue("playerId") != caller.PlayerID {
		writeError(w, r, h.log, WrapKind(op, ErrForbidden, errors.New("cannot read sessions of another player")))
		return
	}
	records, err := h.deps.History(r.Context(), caller.PlayerID)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleAggregate handles GET /api/stats/aggregate.
func (h *SessionHandler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats_aggregate"
	caller, _ := CallerFrom(r.Context())
	stats, err := h.deps.Aggregate(r.Context(), caller.PlayerID)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleCount handles GET /api/stats/count.
func (h *SessionHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats_count"
	caller, _ := CallerFrom(r.Context())
	n, err := h.deps.Count(r.Context(), caller.PlayerID)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// HandleTop handles GET /api/stats/top?limit=N.
func (h *SessionHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats_top"
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	records, err := h.deps.TopScores(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleErase handles DELETE /api/stats.
func (h *SessionHandler) HandleErase(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats_erase"
	caller, _ := CallerFrom(r.Context())
	n, err := h.deps.Erase(r.Context(), caller.PlayerID)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{Deleted: n})
}

type countResponse struct {
	Count int `json:"count"`
}

type deletedResponse struct {
	Deleted int `json:"deleted"`
}
