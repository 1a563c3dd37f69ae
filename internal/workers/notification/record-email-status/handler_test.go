// internal/workers/notification/record-email-status/handler_test.go
package recordemailstatus

import (
	"context"
	"testing"
	"time"

	"bookverse-notifications/internal/common/config"
	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockStatusRecorder struct {
	UpdateStatusFunc      func(ctx context.Context, id string, status models.EmailStatus, errMsg string) (*models.EmailMessage, error)
	PermanentlyFailedFunc func(msg *models.EmailMessage) bool
}

func (m *MockStatusRecorder) UpdateStatus(ctx context.Context, id string, status models.EmailStatus, errMsg string) (*models.EmailMessage, error) {
	return m.UpdateStatusFunc(ctx, id, status, errMsg)
}

func (m *MockStatusRecorder) PermanentlyFailed(msg *models.EmailMessage) bool {
	if m.PermanentlyFailedFunc == nil {
		return false
	}
	return m.PermanentlyFailedFunc(msg)
}

func newTestHandler(t *testing.T, r *MockStatusRecorder) *Handler {
	return NewHandler(LoadConfig(config.WorkerConfig{}), r, nil, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Opened(t *testing.T) {
	h := newTestHandler(t, &MockStatusRecorder{
		UpdateStatusFunc: func(_ context.Context, id string, status models.EmailStatus, errMsg string) (*models.EmailMessage, error) {
			assert.Equal(t, "m-1", id)
			assert.Equal(t, models.EmailOpened, status)
			assert.Empty(t, errMsg)
			return &models.EmailMessage{ID: id, Status: status}, nil
		},
	})

	out, err := h.Execute(context.Background(), &Input{MessageID: "m-1", Status: "opened"})

	require.NoError(t, err)
	assert.Equal(t, &Output{MessageID: "m-1", Status: "opened"}, out)
}

func TestHandler_Execute_FailureReportsExhaustion(t *testing.T) {
	h := newTestHandler(t, &MockStatusRecorder{
		UpdateStatusFunc: func(_ context.Context, id string, status models.EmailStatus, errMsg string) (*models.EmailMessage, error) {
			assert.Equal(t, "mailbox full", errMsg)
			return &models.EmailMessage{ID: id, Status: status, Retries: 4, Error: errMsg}, nil
		},
		PermanentlyFailedFunc: func(msg *models.EmailMessage) bool { return models.RetriesExhausted(msg.Retries, 3) },
	})

	out, err := h.Execute(context.Background(), &Input{MessageID: "m-1", Status: "failed", Error: "mailbox full"})

	require.NoError(t, err)
	assert.Equal(t, 4, out.Retries)
	assert.True(t, out.PermanentlyFailed)
}

func TestHandler_Execute_StaleCallbackKeepsStatus(t *testing.T) {
	h := newTestHandler(t, &MockStatusRecorder{
		UpdateStatusFunc: func(_ context.Context, id string, _ models.EmailStatus, _ string) (*models.EmailMessage, error) {
			return &models.EmailMessage{ID: id, Status: models.EmailClicked}, nil
		},
	})

	out, err := h.Execute(context.Background(), &Input{MessageID: "m-1", Status: "delivered"})

	require.NoError(t, err)
	assert.Equal(t, "clicked", out.Status)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input Input
	}{
		{"missing message id", Input{Status: "sent"}},
		{"blank message id", Input{MessageID: "  ", Status: "sent"}},
		{"unknown status", Input{MessageID: "m-1", Status: "teleported"}},
		{"missing status", Input{MessageID: "m-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &MockStatusRecorder{
				UpdateStatusFunc: func(context.Context, string, models.EmailStatus, string) (*models.EmailMessage, error) {
					t.Fatal("invalid input must not reach the log")
					return nil, nil
				},
			})

			_, err := h.Execute(context.Background(), &tt.input)
			assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
		})
	}
}

func TestHandler_Execute_UnknownMessage(t *testing.T) {
	h := newTestHandler(t, &MockStatusRecorder{
		UpdateStatusFunc: func(_ context.Context, id string, _ models.EmailStatus, _ string) (*models.EmailMessage, error) {
			return nil, errors.NewMessageNotFoundError(id)
		},
	})

	_, err := h.Execute(context.Background(), &Input{MessageID: "ghost", Status: "bounced"})

	assert.True(t, errors.HasCode(err, errors.ErrCodeMessageNotFound))
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 10*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 2*time.Second, LoadConfig(config.WorkerConfig{Timeout: 2000}).Timeout)
}
