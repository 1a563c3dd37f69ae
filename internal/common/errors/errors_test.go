package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Constructors
// ==========================

func TestConstructors_CodesAndRetryability(t *testing.T) {
	tests := []struct {
		name      string
		err       *StandardError
		code      ErrorCode
		retryable bool
	}{
		{"validation", NewValidationError("bad time"), ErrCodeValidationFailed, false},
		{"no user", NewNoAuthenticatedUserError(), ErrCodeNoAuthenticatedUser, false},
		{"unsubscribe", NewInvalidUnsubscribeTokenError("u1"), ErrCodeInvalidUnsubscribeToken, false},
		{"channel", NewChannelDeliveryError("push", fmt.Errorf("boom")), ErrCodeChannelDeliveryFailed, true},
		{"digest", NewDigestSendFailedError("u1", fmt.Errorf("ses down")), ErrCodeDigestSendFailed, true},
		{"db", NewDatabaseConnectionFailedError(fmt.Errorf("refused")), ErrCodeDatabaseConnectionFailed, true},
		{"template", NewTemplateNotFoundError("nope"), ErrCodeTemplateNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestNoAuthenticatedUserMessage(t *testing.T) {
	assert.Equal(t, "No authenticated user", NewNoAuthenticatedUserError().Message)
}

// ==========================
// Matching
// ==========================

func TestHasCode_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("saving: %w", NewQueryExecutionFailedError("upsert", fmt.Errorf("deadlock")))

	assert.True(t, HasCode(wrapped, ErrCodeQueryExecutionFailed))
	assert.False(t, HasCode(wrapped, ErrCodeValidationFailed))
	assert.True(t, stderrors.Is(wrapped, &StandardError{Code: ErrCodeQueryExecutionFailed}))

	_, ok := AsStandard(fmt.Errorf("plain"))
	assert.False(t, ok)
}

// ==========================
// BPMN conversion
// ==========================

func TestConvertToBPMNError(t *testing.T) {
	bpmn := ConvertToBPMNError(NewChannelDeliveryError("email", fmt.Errorf("throttled")))
	assert.Equal(t, string(ErrCodeChannelDeliveryFailed), bpmn.Code)
	assert.Equal(t, 3, bpmn.Retries)

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, string(ErrCodeChannelDeliveryFailed), vars["errorCode"])
	assert.Equal(t, true, vars["retryable"])

	nonRetryable := ConvertToBPMNError(NewValidationError("x"))
	assert.Equal(t, 0, nonRetryable.Retries)
}

func TestRetriesLeft(t *testing.T) {
	job := func(retries int32) entities.Job {
		return entities.Job{ActivatedJob: &pb.ActivatedJob{Retries: retries}}
	}

	assert.Equal(t, int32(2), retriesLeft(job(3), 5))
	assert.Equal(t, int32(3), retriesLeft(job(10), 3), "budget caps the broker count")
	assert.Equal(t, int32(0), retriesLeft(job(0), 3))
}

func TestGetErrorCategory(t *testing.T) {
	cases := map[ErrorCode]string{
		ErrCodeNoAuthenticatedUser:      "IDENTITY",
		ErrCodeInvalidUnsubscribeToken:  "IDENTITY",
		ErrCodePreferencesNotFound:      "PREFERENCES",
		ErrCodeEmailRetryExhausted:      "EMAIL",
		ErrCodeDigestSendFailed:         "EMAIL",
		ErrCodeChannelDeliveryFailed:    "DELIVERY",
		ErrCodeDatabaseConnectionFailed: "DATABASE",
		ErrCodeCacheOperationFailed:     "CACHE",
		ErrCodeSearchIndexFailed:        "SEARCH",
		ErrCodeValidationFailed:         "VALIDATION",
	}
	for code, want := range cases {
		require.Equal(t, want, GetErrorCategory(code), string(code))
	}
}
