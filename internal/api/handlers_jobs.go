package api

import (
	"net/http"
	"strings"

	"repochat/internal/jobs"
)

// handleListJobs handles GET /jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	opts := jobs.ListJobsOptions{
		Limit:  QueryParamInt(r, "limit", 20),
		Offset: QueryParamInt(r, "offset", 0),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		for _, st := range strings.Split(status, ",") {
			opts.Status = append(opts.Status, jobs.JobStatus(strings.TrimSpace(st)))
		}
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	resp, err := s.engine.Jobs(opts)
	if err != nil {
		s.fail(w, r, "Failed to list jobs", err)
		return
	}
	WriteJSON(w, resp, http.StatusOK)
}

// handleJobRoutes handles /jobs/:id routes
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	// Extract job ID from path: /jobs/{id} or /jobs/{id}/cancel
	parts := strings.SplitN(GetPathParam(r, "/jobs/"), "/", 2)
	jobID := parts[0]
	if jobID == "" {
		BadRequest(w, "Missing job ID")
		return
	}

	if len(parts) > 1 {
		if parts[1] != "cancel" {
			NotFound(w, "Not found")
			return
		}
		s.handleCancelJob(w, r, jobID)
		return
	}
	s.handleGetJob(w, r, jobID)
}

// handleGetJob handles GET /jobs/:id
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}
	view, err := s.engine.Job(jobID)
	if err != nil {
		s.fail(w, r, "Failed to get job", err)
		return
	}
	WriteJSON(w, view, http.StatusOK)
}

// handleCancelJob handles POST /jobs/:id/cancel
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w)
		return
	}
	if err := s.engine.CancelJob(jobID); err != nil {
		s.fail(w, r, "Failed to cancel job", err)
		return
	}
	WriteJSON(w, map[string]string{"job_id": jobID, "status": "cancelled"}, http.StatusOK)
}
