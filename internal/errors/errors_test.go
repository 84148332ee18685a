package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		wantParts []string
	}{
		{
			name:      "with cause",
			err:       Wrap(ExternalServiceError, "embedding failed", stderrors.New("connection refused")),
			wantParts: []string{"EXTERNAL_SERVICE_ERROR", "embedding failed", "connection refused"},
		},
		{
			name:      "without cause",
			err:       New(SessionNotFound, "Session not found"),
			wantParts: []string{"SESSION_NOT_FOUND", "Session not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, should contain %q", got, part)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(QueryFailed, "query failed", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if New(QueryFailed, "x").Unwrap() != nil {
		t.Error("Unwrap() without cause should be nil")
	}
}

func TestError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(SessionNotFound, "Session not found"))

	if !stderrors.Is(err, New(SessionNotFound, "")) {
		t.Error("errors.Is should match by code")
	}
	if stderrors.Is(err, New(QueryFailed, "")) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"plain", stderrors.New("x"), InternalError},
		{"typed", New(InvalidInput, "x"), InvalidInput},
		{"wrapped", fmt.Errorf("ctx: %w", New(Timeout, "x")), Timeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	inner := New(ExternalServiceError, "embed failed")
	outer := Wrap(QueryFailed, "query failed", inner)

	if !HasCode(outer, QueryFailed) {
		t.Error("HasCode(outer, QueryFailed) = false")
	}
	if !HasCode(outer, ExternalServiceError) {
		t.Error("HasCode(outer, ExternalServiceError) = false")
	}
	if HasCode(outer, SessionNotFound) {
		t.Error("HasCode(outer, SessionNotFound) = true")
	}
}

func TestWithDetailsAndFetchKind(t *testing.T) {
	err := New(IngestionFetchFailed, "clone failed").
		WithDetails("kind", FetchNetwork).
		WithDetails("url", "https://example.com/x.git")

	if len(err.Details) != 2 {
		t.Fatalf("len(Details) = %d, want 2", len(err.Details))
	}
	if got := FetchKindOf(fmt.Errorf("wrapped: %w", err)); got != FetchNetwork {
		t.Errorf("FetchKindOf() = %q, want %q", got, FetchNetwork)
	}
	if got := FetchKindOf(stderrors.New("plain")); got != "" {
		t.Errorf("FetchKindOf(plain) = %q, want empty", got)
	}
}

func TestGetSuggestedFixes(t *testing.T) {
	if fixes := GetSuggestedFixes(IngestionFetchFailed); len(fixes) == 0 {
		t.Error("expected fixes for IngestionFetchFailed")
	}
	if fixes := GetSuggestedFixes(SessionNotFound); fixes != nil {
		t.Errorf("expected no fixes for SessionNotFound, got %v", fixes)
	}
}
