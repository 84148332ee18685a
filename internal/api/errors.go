package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"repochat/internal/errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error          string             `json:"error"`
	Code           string             `json:"code,omitempty"`
	SuggestedFixes []errors.FixAction `json:"suggestedFixes,omitempty"`
}

// WriteError writes err with the status its code maps to. Only the coarse
// message of an *errors.Error reaches the client; anything else is reported
// as an internal error.
func WriteError(w http.ResponseWriter, err error) {
	resp, status := errorResponse(err)
	WriteJSON(w, resp, status)
}

func errorResponse(err error) (ErrorResponse, int) {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return ErrorResponse{Error: "Internal server error", Code: string(errors.InternalError)}, http.StatusInternalServerError
	}
	return ErrorResponse{
		Error:          e.Message,
		Code:           string(e.Code),
		SuggestedFixes: e.SuggestedFixes,
	}, StatusFor(err)
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	code := errors.CodeOf(err)
	switch code {
	case errors.InvalidInput:
		return http.StatusBadRequest // 400
	case errors.SessionNotFound, errors.JobNotFound:
		return http.StatusNotFound // 404
	case errors.DuplicateSession:
		return http.StatusConflict // 409
	case errors.IngestionFetchFailed:
		switch errors.FetchKindOf(err) {
		case errors.FetchNetwork:
			return http.StatusBadGateway // 502
		case errors.FetchTimeout:
			return http.StatusGatewayTimeout // 504
		default:
			return http.StatusUnprocessableEntity // 422
		}
	case errors.IngestionEmpty:
		return http.StatusUnprocessableEntity // 422
	case errors.ExternalServiceError, errors.QueryFailed:
		return http.StatusBadGateway // 502
	case errors.RateLimited:
		return http.StatusTooManyRequests // 429
	case errors.Timeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// BadRequest writes a 400 with message.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, errors.New(errors.InvalidInput, message))
}

// NotFound writes a 404 with message.
func NotFound(w http.ResponseWriter, message string) {
	WriteJSON(w, ErrorResponse{Error: message}, http.StatusNotFound)
}

// MethodNotAllowed writes a 405.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSON(w, ErrorResponse{Error: "Method not allowed"}, http.StatusMethodNotAllowed)
}

// InternalError writes a 500 Internal Server Error
func InternalError(w http.ResponseWriter, message string) {
	WriteJSON(w, ErrorResponse{Error: message, Code: string(errors.InternalError)}, http.StatusInternalServerError)
}
