// Package errors provides the standardized error taxonomy used by the
// notification engine and its workflow workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Preference / identity errors
const (
	ErrCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrCodeNoAuthenticatedUser     ErrorCode = "NO_AUTHENTICATED_USER"
	ErrCodePreferencesNotFound     ErrorCode = "PREFERENCES_NOT_FOUND"
	ErrCodeInvalidUnsubscribeToken ErrorCode = "INVALID_UNSUBSCRIBE_TOKEN"
	ErrCodeUnknownCategory         ErrorCode = "UNKNOWN_CATEGORY"
)

// Delivery errors
const (
	ErrCodeChannelDeliveryFailed ErrorCode = "CHANNEL_DELIVERY_FAILED"
	ErrCodeEmailRetryExhausted   ErrorCode = "EMAIL_RETRY_EXHAUSTED"
	ErrCodeDigestSendFailed      ErrorCode = "DIGEST_SEND_FAILED"
	ErrCodeTemplateNotFound      ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeRecipientNotFound     ErrorCode = "RECIPIENT_NOT_FOUND"
	ErrCodeMessageNotFound       ErrorCode = "MESSAGE_NOT_FOUND"
)

// Infrastructure errors
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeCacheOperationFailed     ErrorCode = "CACHE_OPERATION_FAILED"
	ErrCodeSearchIndexFailed        ErrorCode = "SEARCH_INDEX_FAILED"
	ErrCodeInvalidInput             ErrorCode = "INVALID_INPUT"
)

// Message used whenever an identity-bound operation runs without a user.
const NoAuthenticatedUserMessage = "No authenticated user"

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches on the error code so errors.Is(err, &StandardError{Code: X}) works.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError rejects a preference update or an ingress payload.
func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Invalid preference update", details, false)
}

// NewNoAuthenticatedUserError is returned by every identity-bound operation
// invoked without a current user.
func NewNoAuthenticatedUserError() *StandardError {
	return newError(ErrCodeNoAuthenticatedUser, NoAuthenticatedUserMessage, "", false)
}

func NewPreferencesNotFoundError(userID string) *StandardError {
	return newError(ErrCodePreferencesNotFound, "No preferences found for user",
		fmt.Sprintf("userId: %s", userID), false)
}

func NewInvalidUnsubscribeTokenError(userID string) *StandardError {
	return newError(ErrCodeInvalidUnsubscribeToken, "Invalid unsubscribe token",
		fmt.Sprintf("userId: %s", userID), false)
}

func NewUnknownCategoryError(category string) *StandardError {
	return newError(ErrCodeUnknownCategory, "Unknown notification category",
		fmt.Sprintf("category: %s", category), false)
}

// NewChannelDeliveryError wraps a transport rejection. It is logged, never
// propagated past the engine.
func NewChannelDeliveryError(channel string, err error) *StandardError {
	return newError(ErrCodeChannelDeliveryFailed, fmt.Sprintf("Delivery on channel '%s' failed", channel),
		err.Error(), true)
}

func NewEmailRetryExhaustedError(messageID string, retries int) *StandardError {
	return newError(ErrCodeEmailRetryExhausted, "Email retries exhausted",
		fmt.Sprintf("messageId: %s, retries: %d", messageID, retries), false)
}

func NewDigestSendFailedError(userID string, err error) *StandardError {
	return newError(ErrCodeDigestSendFailed, "Digest email send failed",
		fmt.Sprintf("userId: %s, error: %s", userID, err.Error()), true)
}

func NewTemplateNotFoundError(templateID string) *StandardError {
	return newError(ErrCodeTemplateNotFound, "Template not found in registry",
		fmt.Sprintf("templateId: %s", templateID), false)
}

func NewRecipientNotFoundError(userID string) *StandardError {
	return newError(ErrCodeRecipientNotFound, "Recipient address not found",
		fmt.Sprintf("userId: %s", userID), false)
}

func NewMessageNotFoundError(messageID string) *StandardError {
	return newError(ErrCodeMessageNotFound, "Email message not found",
		fmt.Sprintf("messageId: %s", messageID), false)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewCacheOperationFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeCacheOperationFailed, "Cache operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewSearchIndexFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchIndexFailed, "Search index write failed",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHENTICATION_ERROR",
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the job retry budget for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDigestSendFailed,
		ErrCodeChannelDeliveryFailed:
		return 3

	case ErrCodeCacheOperationFailed,
		ErrCodeSearchIndexFailed,
		"EXTERNAL_SERVICE_ERROR",
		"TIMEOUT_ERROR":
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// AsStandard unwraps err to a *StandardError when one is in the chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "AUTHENTICAT") || strings.Contains(codeStr, "UNSUBSCRIBE"):
		return "IDENTITY"
	case strings.Contains(codeStr, "PREFERENCE") || strings.Contains(codeStr, "CATEGORY"):
		return "PREFERENCES"
	case strings.Contains(codeStr, "EMAIL") || strings.Contains(codeStr, "DIGEST") ||
		strings.Contains(codeStr, "TEMPLATE") || strings.Contains(codeStr, "MESSAGE"):
		return "EMAIL"
	case strings.Contains(codeStr, "CHANNEL") || strings.Contains(codeStr, "RECIPIENT"):
		return "DELIVERY"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
