package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/pkg/logger"
)

// ProfileHandler serves the caller's profile.
type ProfileHandler struct {
	deps ProfileDependencies
	log  logger.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(deps ProfileDependencies, log logger.Logger) *ProfileHandler {
	return &ProfileHandler{deps: deps, log: log}
}

// profileRequest is the body of POST and PUT /api/profile. Trait scores may
// be sent flat or inside traits; flat fields win.
type profileRequest struct {
	Username  *string            `json:"username"`
	AvatarURL *string            `json:"avatar_url"`
	Bio       *string            `json:"bio"`
	PlayStyle *string            `json:"play_style"`
	Archetype *string            `json:"psychological_archetype"`
	Traits    map[string]float64 `json:"traits"`

	RiskTolerance     *float64 `json:"risk_tolerance"`
	AdaptabilityScore *float64 `json:"adaptability_score"`
	PatienceScore     *float64 `json:"patience_score"`
	ChaosAffinity     *float64 `json:"chaos_affinity"`
	OrderAffinity     *float64 `json:"order_affinity"`
	LearningRate      *float64 `json:"learning_rate"`
	StressResponse    *float64 `json:"stress_response"`
}

func (p profileRequest) traits() map[string]float64 {
	flat := []struct {
		name string
		v    *float64
	}{
		{"risk_tolerance", p.RiskTolerance},
		{"adaptability_score", p.AdaptabilityScore},
		{"patience_score", p.PatienceScore},
		{"chaos_affinity", p.ChaosAffinity},
		{"order_affinity", p.OrderAffinity},
		{"learning_rate", p.LearningRate},
		{"stress_response", p.StressResponse},
	}
	var out map[string]float64
	set := func(k string, v float64) {
		if out == nil {
			out = make(map[string]float64)
		}
		out[k] = v
	}
	for k, v := range p.Traits {
		set(k, v)
	}
	for _, f := range flat {
		if f.v != nil {
			set(f.name, *f.v)
		}
	}
	return out
}

func (p profileRequest) patch() model.ProfilePatch {
	return model.ProfilePatch{
		Username:  p.Username,
		AvatarURL: p.AvatarURL,
		Bio:       p.Bio,
		PlayStyle: p.PlayStyle,
		Archetype: p.Archetype,
		Traits:    p.traits(),
	}
}

func decodeProfile(w http.ResponseWriter, r *http.Request) (profileRequest, error) {
	var req profileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return profileRequest{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	return req, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// HandleGet handles GET /api/profile.
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.profile_get"
	caller, _ := CallerFrom(r.Context())
	p, err := h.deps.Profile(r.Context(), caller.PlayerID)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleGetByID handles GET /api/profile/{playerId}; only the owner may read it.
func (h *ProfileHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	const op = "api.profile_get_by_id"
	caller, _ := CallerFrom(r.Context())
	if r.PathValue("playerId") != caller.PlayerID {
		writeError(w, r, h.log, WrapKind(op, ErrForbidden, errors.New("cannot read another player's profile")))
		return
	}
	p, err := h.deps.Profile(r.Context(), caller.PlayerID)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpsert handles POST /api/profile. The id and email come from the caller.
func (h *ProfileHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	const op = "api.profile_upsert"
	caller, _ := CallerFrom(r.Context())
	req, err := decodeProfile(w, r)
	if err != nil {
		writeError(w, r, h.log, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.deps.SaveProfile(r.Context(), model.Profile{
		ID:        caller.PlayerID,
		Email:     caller.Email,
		Username:  deref(req.Username),
		AvatarURL: deref(req.AvatarURL),
		Bio:       deref(req.Bio),
		PlayStyle: deref(req.PlayStyle),
		Archetype: deref(req.Archetype),
		Traits:    req.traits(),
	})
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdate handles PUT /api/profile; absent fields are left unchanged.
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.profile_update"
	caller, _ := CallerFrom(r.Context())
	req, err := decodeProfile(w, r)
	if err != nil {
		writeError(w, r, h.log, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.deps.UpdateProfile(r.Context(), caller.PlayerID, req.patch())
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete handles DELETE /api/profile. The caller's sessions are erased too.
func (h *ProfileHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.profile_delete"
	caller, _ := CallerFrom(r.Context())
	n, err := h.deps.DeleteProfile(r.Context(), caller.PlayerID)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{Deleted: n})
}
