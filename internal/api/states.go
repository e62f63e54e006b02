package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-automation/internal/core"
	"github.com/nerrad567/gray-logic-automation/internal/state"
)

// setStateRequest is the body of PUT /states/{entity_id}.
type setStateRequest struct {
	State string `json:"state"`
}

// handleListStates returns every known entity state.
func (s *Server) handleListStates(w http.ResponseWriter, _ *http.Request) {
	records := s.states.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"states": records,
		"count":  len(records),
	})
}

// handleGetState returns one entity's state.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")
	rec, ok := s.states.Get(entityID)
	if !ok {
		writeNotFound(w, "entity has no state")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleSetState writes an entity's state directly, attributing the change
// to the caller. Watchers attached for the entity fire as for bridge updates.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")

	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	origin := core.NewContext(callerID(r.Context()), "")
	if err := s.states.Set(r.Context(), entityID, req.State, origin); err != nil {
		if errors.Is(err, state.ErrInvalidEntityID) || errors.Is(err, state.ErrInvalidState) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		s.logger.Error("failed to set state", "entity_id", entityID, "error", err)
		writeInternalError(w, "failed to set state")
		return
	}

	rec, _ := s.states.Get(entityID)
	writeJSON(w, http.StatusOK, rec)
}
