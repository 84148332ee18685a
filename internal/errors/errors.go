package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode is a stable identifier for a failure kind.
type ErrorCode string

const (
	// InvalidInput indicates missing or empty request fields
	InvalidInput ErrorCode = "INVALID_INPUT"
	// SessionNotFound indicates the session id has no entry
	SessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	// DuplicateSession indicates an id was registered twice
	DuplicateSession ErrorCode = "DUPLICATE_SESSION"
	// IngestionFetchFailed indicates the repository could not be materialized
	IngestionFetchFailed ErrorCode = "INGESTION_FETCH_FAILED"
	// IngestionEmpty indicates ingestion produced no fragments
	IngestionEmpty ErrorCode = "INGESTION_EMPTY"
	// ExternalServiceError indicates an embedding or generation backend failed after retries
	ExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"
	// QueryFailed indicates a query against an existing session failed
	QueryFailed ErrorCode = "QUERY_FAILED"
	// CleanupFailed indicates transient storage could not be removed
	CleanupFailed ErrorCode = "CLEANUP_FAILED"
	// JobNotFound indicates an unknown job id
	JobNotFound ErrorCode = "JOB_NOT_FOUND"
	// Timeout indicates an operation exceeded its deadline
	Timeout ErrorCode = "TIMEOUT"
	// RateLimited indicates a backend asked us to slow down
	RateLimited ErrorCode = "RATE_LIMITED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FetchKind distinguishes fetch failures that are worth re-submitting from those that are not.
type FetchKind string

const (
	FetchBadSource FetchKind = "bad_source"
	FetchAuth      FetchKind = "auth"
	FetchNetwork   FetchKind = "network"
	FetchTimeout   FetchKind = "timeout"
)

// FixAction is a suggested remedy shown to operators.
type FixAction struct {
	Command     string `json:"command,omitempty"`
	Description string `json:"description"`
}

// Error is the error type returned across package boundaries.
type Error struct {
	Code           ErrorCode              `json:"code"`
	Message        string                 `json:"message"`
	Details        map[string]interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction            `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates an Error without a cause.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, SuggestedFixes: GetSuggestedFixes(code)}
}

// Newf creates an Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an Error around cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	e := New(code, message)
	e.cause = cause
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails adds a detail entry and returns the error for chaining.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Is matches another *Error by code, so errors.Is(err, New(SessionNotFound, "")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or InternalError.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// HasCode reports whether err carries code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.cause
	}
	return false
}

// FetchKindOf returns the fetch kind recorded on an IngestionFetchFailed error.
func FetchKindOf(err error) FetchKind {
	var e *Error
	if !stderrors.As(err, &e) || e.Details == nil {
		return ""
	}
	k, _ := e.Details["kind"].(FetchKind)
	return k
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	IngestionFetchFailed: {
		{Description: "Check that the repository URL is correct and publicly reachable"},
	},
	IngestionEmpty: {
		{Description: "The repository contained no readable text files"},
	},
	ExternalServiceError: {
		{Command: "repochat config show", Description: "Check the embedding and llm provider settings"},
	},
	RateLimited: {
		{Description: "Retry after a brief delay"},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
