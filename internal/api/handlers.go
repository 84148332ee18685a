package api

import (
	"net/http"
	"strings"
	"time"

	"repochat/internal/errors"
)

// CloneRequest is the body of POST /clone.
type CloneRequest struct {
	RepoURL string `json:"repo_url"`
	Async   bool   `json:"async,omitempty"`
}

// CloneResponse is returned by a synchronous clone.
type CloneResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// SubmitResponse is returned by an asynchronous clone.
type SubmitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	SessionID flexString `json:"session_id"`
	Question  string     `json:"question"`
}

// QueryResponse carries the model's answer.
type QueryResponse struct {
	Answer string `json:"answer"`
}

// handleClone handles POST /clone
func (s *Server) handleClone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w)
		return
	}

	var req CloneRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.RepoURL) == "" {
		BadRequest(w, "Invalid input")
		return
	}

	if req.Async {
		jobID, err := s.engine.SubmitClone(req.RepoURL)
		if err != nil {
			s.fail(w, r, "Failed to submit clone", err)
			return
		}
		WriteJSON(w, SubmitResponse{JobID: jobID, Status: "pending"}, http.StatusAccepted)
		return
	}

	start := time.Now()
	summary, err := s.engine.Clone(r.Context(), req.RepoURL)
	s.metrics.RecordClone(outcome(err), time.Since(start))
	if err != nil {
		s.fail(w, r, "Clone failed", err)
		return
	}
	s.metrics.SetSessions(len(s.engine.Sessions()))
	WriteJSON(w, CloneResponse{Message: "Repo Added", SessionID: summary.ID}, http.StatusOK)
}

// handleQuery handles POST /query
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w)
		return
	}

	var req QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, "Invalid input")
		return
	}

	start := time.Now()
	answer, err := s.engine.Query(r.Context(), string(req.SessionID), req.Question)
	s.metrics.RecordQuery(outcome(err), time.Since(start))
	if err != nil {
		s.fail(w, r, "Query failed", err)
		return
	}
	WriteJSON(w, QueryResponse{Answer: answer}, http.StatusOK)
}

// fail logs the full error and writes its coarse form.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := StatusFor(err)
	attrs := []any{"error", err, "code", errors.CodeOf(err), "status", status, "requestID", GetRequestID(r.Context())}
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, attrs...)
	} else {
		s.logger.Warn(msg, attrs...)
	}
	s.metrics.RecordError(string(errors.CodeOf(err)))
	WriteError(w, err)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
