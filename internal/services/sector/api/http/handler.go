// Package http exposes the sector core's JSON API: garrison transactions
// and combat encounter state.
package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	apperrors "github.com/starfall-games/driftspace/internal/platform/errors"
	"github.com/starfall-games/driftspace/internal/services/sector/app"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/combat"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/garrison"
)

// Handler serves the sector JSON API.
type Handler struct {
	garrisons *app.GarrisonService
	combats   *app.CombatService
	mux       *http.ServeMux
}

// NewHandler builds the API routes over the garrison and combat services.
func NewHandler(garrisons *app.GarrisonService, combats *app.CombatService) *Handler {
	h := &Handler{
		garrisons: garrisons,
		combats:   combats,
		mux:       http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /v1/sectors/{sector_id}/garrison/leave", h.leaveFighters)
	h.mux.HandleFunc("POST /v1/sectors/{sector_id}/garrison/collect", h.collectFighters)
	h.mux.HandleFunc("GET /v1/sectors/{sector_id}/combat", h.combatForSector)
	h.mux.HandleFunc("DELETE /v1/sectors/{sector_id}/combat", h.clearCombat)
	h.mux.HandleFunc("POST /v1/sectors/{sector_id}/combat/actions", h.submitAction)
	h.mux.HandleFunc("GET /v1/combats/{combat_id}", h.combatByID)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type leaveFightersRequest struct {
	CharacterID string `json:"character_id"`
	ShipID      string `json:"ship_id"`
	Quantity    int    `json:"quantity"`
	Mode        string `json:"mode"`
	TollAmount  int64  `json:"toll_amount"`
}

type garrisonResponse struct {
	SectorID    int64  `json:"sector_id"`
	OwnerID     string `json:"owner_id"`
	Fighters    int    `json:"fighters"`
	Mode        string `json:"mode"`
	TollAmount  int64  `json:"toll_amount"`
	TollBalance int64  `json:"toll_balance"`
}

type leaveFightersResponse struct {
	CurrentFighters int              `json:"current_fighters"`
	Garrison        garrisonResponse `json:"garrison"`
}

func (h *Handler) leaveFighters(w http.ResponseWriter, r *http.Request) {
	sectorID, ok := sectorIDFromPath(w, r)
	if !ok {
		return
	}
	var req leaveFightersRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.garrisons.LeaveFighters(r.Context(), app.LeaveFightersParams{
		SectorID:    sectorID,
		CharacterID: req.CharacterID,
		ShipID:      req.ShipID,
		Quantity:    req.Quantity,
		Mode:        garrison.Mode(req.Mode),
		TollAmount:  req.TollAmount,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leaveFightersResponse{
		CurrentFighters: result.CurrentFighters,
		Garrison:        toGarrisonResponse(result.Garrison),
	})
}

type collectFightersRequest struct {
	CharacterID string `json:"character_id"`
	ShipID      string `json:"ship_id"`
	Quantity    int    `json:"quantity"`
}

type collectFightersResponse struct {
	CurrentFighters int               `json:"current_fighters"`
	Credits         int64             `json:"credits"`
	Removed         bool              `json:"removed"`
	Garrison        *garrisonResponse `json:"garrison,omitempty"`
}

func (h *Handler) collectFighters(w http.ResponseWriter, r *http.Request) {
	sectorID, ok := sectorIDFromPath(w, r)
	if !ok {
		return
	}
	var req collectFightersRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.garrisons.CollectFighters(r.Context(), app.CollectFightersParams{
		SectorID:    sectorID,
		CharacterID: req.CharacterID,
		ShipID:      req.ShipID,
		Quantity:    req.Quantity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := collectFightersResponse{
		CurrentFighters: result.CurrentFighters,
		Credits:         result.Credits,
		Removed:         result.Removed,
	}
	if !result.Removed {
		g := toGarrisonResponse(result.Garrison)
		resp.Garrison = &g
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) combatForSector(w http.ResponseWriter, r *http.Request) {
	sectorID, ok := sectorIDFromPath(w, r)
	if !ok {
		return
	}
	enc, err := h.combats.CombatForSector(r.Context(), sectorID)
	if err != nil {
		writeError(w, err)
		return
	}
	if enc == nil {
		writeError(w, apperrors.New(apperrors.CodeCombatNotFound, "sector has no encounter"))
		return
	}
	writeJSON(w, http.StatusOK, enc)
}

func (h *Handler) combatByID(w http.ResponseWriter, r *http.Request) {
	combatID := r.PathValue("combat_id")
	enc, err := h.combats.CombatByID(r.Context(), combatID)
	if err != nil {
		writeError(w, err)
		return
	}
	if enc == nil {
		writeError(w, apperrors.New(apperrors.CodeCombatNotFound, "combat not found"))
		return
	}
	writeJSON(w, http.StatusOK, enc)
}

func (h *Handler) clearCombat(w http.ResponseWriter, r *http.Request) {
	sectorID, ok := sectorIDFromPath(w, r)
	if !ok {
		return
	}
	if err := h.combats.ClearCombat(r.Context(), sectorID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitActionRequest struct {
	CombatantKey string `json:"combatant_key"`
	Action       string `json:"action"`
	TargetKey    string `json:"target_key"`
}

func (h *Handler) submitAction(w http.ResponseWriter, r *http.Request) {
	sectorID, ok := sectorIDFromPath(w, r)
	if !ok {
		return
	}
	var req submitActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	enc, err := h.combats.SubmitAction(r.Context(), sectorID, req.CombatantKey, combat.RoundAction{
		Action:    req.Action,
		TargetKey: req.TargetKey,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enc)
}

func toGarrisonResponse(g garrison.Garrison) garrisonResponse {
	return garrisonResponse{
		SectorID:    g.SectorID,
		OwnerID:     g.OwnerID,
		Fighters:    g.Fighters,
		Mode:        string(g.Mode),
		TollAmount:  g.TollAmount,
		TollBalance: g.TollBalance,
	}
}

func sectorIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	sectorID, err := strconv.ParseInt(r.PathValue("sector_id"), 10, 64)
	if err != nil || sectorID <= 0 {
		writeError(w, apperrors.New(apperrors.CodeInvalidRequest, "sector id must be a positive integer"))
		return 0, false
	}
	return sectorID, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidRequest, "invalid request body", err))
		return false
	}
	return true
}

type errorResponse struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		domainErr = apperrors.Wrap(apperrors.CodeUnknown, "internal error", err)
	}
	status := domainErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("request failed code=%s err=%v", domainErr.Code, err)
	}
	writeJSON(w, status, errorResponse{
		Code:     string(domainErr.Code),
		Message:  domainErr.Message,
		Metadata: domainErr.Metadata,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}
