package api

import (
	"encoding/json"
	"net/http"

	"bookverse-notifications/internal/common/errors"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: status >= 200 && status < 300, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Error: &ErrorInfo{Code: code, Message: message, Details: details}})
}

func badRequest(w http.ResponseWriter, details string) {
	writeError(w, http.StatusBadRequest, string(errors.ErrCodeInvalidInput), "Invalid request", details)
}

func unauthorized(w http.ResponseWriter, details string) {
	writeError(w, http.StatusUnauthorized, string(errors.ErrCodeNoAuthenticatedUser), errors.NoAuthenticatedUserMessage, details)
}

// writeFailure maps err onto a status by its code. Errors without a code
// are internal.
func writeFailure(w http.ResponseWriter, err error) {
	stdErr, ok := errors.AsStandard(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error", "")
		return
	}
	writeError(w, statusFor(stdErr.Code), string(stdErr.Code), stdErr.Message, stdErr.Details)
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeValidationFailed, errors.ErrCodeInvalidInput, errors.ErrCodeUnknownCategory:
		return http.StatusBadRequest
	case errors.ErrCodeNoAuthenticatedUser, "AUTHENTICATION_ERROR":
		return http.StatusUnauthorized
	case errors.ErrCodeInvalidUnsubscribeToken:
		return http.StatusForbidden
	case errors.ErrCodePreferencesNotFound, errors.ErrCodeMessageNotFound,
		errors.ErrCodeRecipientNotFound, "RESOURCE_NOT_FOUND":
		return http.StatusNotFound
	case errors.ErrCodeDatabaseConnectionFailed, errors.ErrCodeCacheOperationFailed,
		"EXTERNAL_SERVICE_ERROR", "TIMEOUT_ERROR":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeOf(err error) errors.ErrorCode {
	if stdErr, ok := errors.AsStandard(err); ok {
		return stdErr.Code
	}
	return ""
}
