package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-automation/internal/audit"
	"github.com/nerrad567/gray-logic-automation/internal/entity"
)

// handleListEntities returns registered entities, optionally filtered by
// the device_id query parameter.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	var entries []entity.Entry
	if deviceID := r.URL.Query().Get("device_id"); deviceID != "" {
		entries = s.entities.EntriesForDevice(deviceID)
	} else {
		entries = s.entities.List()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entities": entries,
		"count":    len(entries),
	})
}

// handleCreateEntity registers a new entity.
func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var e entity.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.entities.Register(r.Context(), &e); err != nil {
		switch {
		case errors.Is(err, entity.ErrInvalidEntry):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, entity.ErrEntryExists):
			writeError(w, http.StatusConflict, ErrCodeConflict, "entity already registered")
		default:
			s.logger.Error("failed to register entity", "entity_id", e.EntityID, "error", err)
			writeInternalError(w, "failed to register entity")
		}
		return
	}

	s.auditLog(audit.ActionEntityCreated, audit.EntityTypeEntity, e.EntityID, callerID(r.Context()), map[string]any{
		"domain":    e.Domain,
		"device_id": e.DeviceID,
	})

	writeJSON(w, http.StatusCreated, e)
}

// handleDeleteEntity removes an entity from the registry.
func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")

	if err := s.entities.Remove(r.Context(), entityID); err != nil {
		if errors.Is(err, entity.ErrEntryNotFound) {
			writeNotFound(w, "entity not found")
			return
		}
		s.logger.Error("failed to remove entity", "entity_id", entityID, "error", err)
		writeInternalError(w, "failed to remove entity")
		return
	}

	s.auditLog(audit.ActionEntityDeleted, audit.EntityTypeEntity, entityID, callerID(r.Context()), nil)

	w.WriteHeader(http.StatusNoContent)
}
