package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/regassist/internal/domain"
)

// Messages returned in place of internal error details.
const (
	MessageIndexUnavailable = "the regulations index is not available"
	MessageUpstreamFailure  = "could not answer the question right now, please try again later"
	MessageInternal         = "internal server error"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeEmptyQuery, domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrCodeBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case domain.ErrCodeIndexUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrCodeRetrievalFailure, domain.ErrCodeGenerationFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes an error response. Client errors carry the domain
// message; server errors carry a fixed message so upstream details stay in
// the logs.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)
	code := domain.CodeOf(err)

	var message string
	switch {
	case status == http.StatusServiceUnavailable:
		message = MessageIndexUnavailable
	case status == http.StatusBadGateway:
		message = MessageUpstreamFailure
	case status >= http.StatusInternalServerError:
		message = MessageInternal
	default:
		var domainErr *domain.DomainError
		errors.As(err, &domainErr)
		message = domainErr.Message
	}

	JSON(w, status, ErrorResponse{Error: message, Code: code})
}
