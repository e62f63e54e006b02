package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-automation/internal/automation"
	"github.com/nerrad567/gray-logic-automation/internal/core"
)

// automationRequest is the body of the condition check and action execute
// endpoints.
type automationRequest struct {
	Config    map[string]any       `json:"config"`
	Variables automation.Variables `json:"variables,omitempty"`
}

func decodeAutomationRequest(w http.ResponseWriter, r *http.Request) (automationRequest, bool) {
	var req automationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return req, false
	}
	if len(req.Config) == 0 {
		writeBadRequest(w, "config is required")
		return req, false
	}
	return req, true
}

// handleListTriggers returns the device's triggers across all integrations.
func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	triggers, err := s.automation.ListTriggers(r.Context(), deviceID)
	if err != nil {
		s.writeAutomationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"triggers":  triggers,
		"count":     len(triggers),
	})
}

// handleListConditions returns the device's conditions across all integrations.
func (s *Server) handleListConditions(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	conditions, err := s.automation.ListConditions(r.Context(), deviceID)
	if err != nil {
		s.writeAutomationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":  deviceID,
		"conditions": conditions,
		"count":      len(conditions),
	})
}

// handleListActions returns the device's actions across all integrations.
func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	actions, err := s.automation.ListActions(r.Context(), deviceID)
	if err != nil {
		s.writeAutomationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"actions":   actions,
		"count":     len(actions),
	})
}

// handleCheckCondition validates a condition descriptor and evaluates it
// against current state.
func (s *Server) handleCheckCondition(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAutomationRequest(w, r)
	if !ok {
		return
	}

	checker, err := s.automation.BuildConditionChecker(req.Config, true)
	if err != nil {
		s.writeAutomationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result": checker(r.Context(), req.Variables),
	})
}

// handleExecuteAction runs an action descriptor on behalf of the caller.
// The response carries the context ID the resulting state change will be
// attributed to.
func (s *Server) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAutomationRequest(w, r)
	if !ok {
		return
	}

	origin := core.NewContext(callerID(r.Context()), "")
	if err := s.automation.ExecuteAction(r.Context(), req.Config, req.Variables, origin); err != nil {
		s.writeAutomationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"context_id": origin.ID,
	})
}
