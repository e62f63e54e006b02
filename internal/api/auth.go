package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/auth"
)

// MeResponse describes the caller's token.
type MeResponse struct {
	Subject     string            `json:"subject"`
	Role        auth.Role         `json:"role"`
	Permissions []auth.Permission `json:"permissions"`
	ExpiresAt   string            `json:"expires_at,omitempty"`
}

// handleMe returns the identity and permissions carried by the caller's token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "missing bearer token")
		return
	}

	resp := MeResponse{
		Subject:     claims.Subject,
		Role:        claims.Role,
		Permissions: auth.PermissionsForRole(claims.Role),
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
