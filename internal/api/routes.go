package api

import "net/http"

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	// Ingestion and conversation
	s.router.HandleFunc("/clone", s.handleClone) // POST {repo_url, async?}
	s.router.HandleFunc("/query", s.handleQuery) // POST {session_id, question}

	// Sessions
	s.router.HandleFunc("/sessions", s.handleListSessions)   // GET
	s.router.HandleFunc("/sessions/", s.handleSessionRoutes) // GET /:id, GET /:id/history

	// Background ingestion jobs
	s.router.HandleFunc("/jobs", s.handleListJobs)   // GET
	s.router.HandleFunc("/jobs/", s.handleJobRoutes) // GET /:id, POST /:id/cancel

	// Liveness and diagnostics
	s.router.HandleFunc("/status", s.handleStatus)
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/metrics", s.handleMetrics)

	s.router.HandleFunc("/", s.handleRoot)
}

// handleRoot handles requests to the root path
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	// Only handle exact root path
	if r.URL.Path != "/" {
		NotFound(w, "Not found")
		return
	}
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Welcome to home page"))
}

// handleStatus handles GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}
	WriteJSON(w, map[string]string{"message": "Welcome to status page"}, http.StatusOK)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}
	WriteJSON(w, s.engine.Health(), http.StatusOK)
}
