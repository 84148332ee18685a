package api

import (
	"net/http"
	"strings"
)

// handleListSessions handles GET /sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}
	WriteJSON(w, map[string]interface{}{"sessions": s.engine.Sessions()}, http.StatusOK)
}

// handleSessionRoutes handles /sessions/:id routes
func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	// Extract session ID from path: /sessions/{id} or /sessions/{id}/history
	parts := strings.SplitN(GetPathParam(r, "/sessions/"), "/", 2)
	id := parts[0]
	if id == "" {
		BadRequest(w, "Missing session ID")
		return
	}

	if len(parts) > 1 {
		if parts[1] != "history" {
			NotFound(w, "Not found")
			return
		}
		turns, err := s.engine.History(id)
		if err != nil {
			s.fail(w, r, "Failed to get history", err)
			return
		}
		WriteJSON(w, map[string]interface{}{"session_id": id, "history": turns}, http.StatusOK)
		return
	}

	summary, err := s.engine.Session(id)
	if err != nil {
		s.fail(w, r, "Failed to get session", err)
		return
	}
	WriteJSON(w, summary, http.StatusOK)
}
