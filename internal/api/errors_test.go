package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"repochat/internal/errors"
)

func fetchFailed(kind errors.FetchKind) error {
	return errors.New(errors.IngestionFetchFailed, "fetch failed").WithDetails("kind", kind)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", errors.New(errors.InvalidInput, "Invalid input"), http.StatusBadRequest},
		{"session not found", errors.New(errors.SessionNotFound, "Session not found"), http.StatusNotFound},
		{"job not found", errors.New(errors.JobNotFound, "job not found"), http.StatusNotFound},
		{"duplicate session", errors.New(errors.DuplicateSession, "dup"), http.StatusConflict},
		{"fetch bad source", fetchFailed(errors.FetchBadSource), http.StatusUnprocessableEntity},
		{"fetch auth", fetchFailed(errors.FetchAuth), http.StatusUnprocessableEntity},
		{"fetch network", fetchFailed(errors.FetchNetwork), http.StatusBadGateway},
		{"fetch timeout", fetchFailed(errors.FetchTimeout), http.StatusGatewayTimeout},
		{"empty ingestion", errors.New(errors.IngestionEmpty, "empty"), http.StatusUnprocessableEntity},
		{"external service", errors.New(errors.ExternalServiceError, "down"), http.StatusBadGateway},
		{"query failed", errors.New(errors.QueryFailed, "Query failed"), http.StatusBadGateway},
		{"rate limited", errors.New(errors.RateLimited, "slow down"), http.StatusTooManyRequests},
		{"timeout", errors.New(errors.Timeout, "late"), http.StatusGatewayTimeout},
		{"cleanup failed", errors.New(errors.CleanupFailed, "stuck"), http.StatusInternalServerError},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("outer: %w", errors.New(errors.SessionNotFound, "x")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("coded error exposes its message only", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := errors.Wrap(errors.QueryFailed, "Query failed", fmt.Errorf("secret upstream detail"))

		WriteError(w, err)

		if w.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", w.Code)
		}
		var resp ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Error != "Query failed" {
			t.Errorf("error = %q, want %q", resp.Error, "Query failed")
		}
		if resp.Code != string(errors.QueryFailed) {
			t.Errorf("code = %q", resp.Code)
		}
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		w := httptest.NewRecorder()

		WriteError(w, fmt.Errorf("database on fire"))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", w.Code)
		}
		var resp ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Error != "Internal server error" {
			t.Errorf("error = %q", resp.Error)
		}
	})

	t.Run("content type", func(t *testing.T) {
		w := httptest.NewRecorder()
		BadRequest(w, "Invalid input")
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
	})
}
