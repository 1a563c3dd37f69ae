// internal/workers/notification/dispatch-notification/handler_test.go
package dispatchnotification

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"bookverse-notifications/internal/common/config"
	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/engine"
	"bookverse-notifications/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockDecider struct {
	DecideFunc func(ctx context.Context, ev models.Event) (engine.Outcome, error)
}

func (m *MockDecider) Decide(ctx context.Context, ev models.Event) (engine.Outcome, error) {
	return m.DecideFunc(ctx, ev)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestInput() *Input {
	return &Input{
		RecipientID: "reader-1",
		Category:    "activityLike",
		Title:       "Ines liked your activity",
		Body:        "Ines liked your progress on Middlemarch",
		Data:        map[string]interface{}{"activityId": "a-42"},
		ActionURL:   "/activity/a-42",
		Priority:    "normal",
		GroupID:     "activity-a-42",
	}
}

func newTestHandler(t *testing.T, decide func(ctx context.Context, ev models.Event) (engine.Outcome, error)) *Handler {
	return NewHandler(LoadConfig(config.WorkerConfig{}), &MockDecider{DecideFunc: decide}, nil, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Delivered(t *testing.T) {
	var got models.Event
	h := newTestHandler(t, func(_ context.Context, ev models.Event) (engine.Outcome, error) {
		got = ev
		n := &models.Notification{ID: "n-1", UserID: ev.UserID, Category: ev.Category, GroupID: ev.GroupID}
		return engine.Outcome{
			Status:       engine.StatusDelivered,
			Channels:     []string{"inApp"},
			Notification: n,
			Group:        &models.NotificationGroup{ID: ev.GroupID, Summary: "2 people liked your activity"},
			Failures:     map[string]error{"push": stderrors.New("no device tokens registered")},
		}, nil
	})

	out, err := h.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.Equal(t, "reader-1", got.UserID)
	assert.Equal(t, models.CategoryActivityLike, got.Category)
	assert.Equal(t, "a-42", got.Data["activityId"])

	assert.Equal(t, "n-1", out.NotificationID)
	assert.Equal(t, "delivered", out.Status)
	assert.Equal(t, []string{"inApp"}, out.Channels)
	assert.Equal(t, "activity-a-42", out.GroupID)
	assert.Equal(t, "2 people liked your activity", out.GroupSummary)
	assert.Equal(t, "no device tokens registered", out.Failures["push"])
}

func TestHandler_Execute_Suppressed(t *testing.T) {
	h := newTestHandler(t, func(context.Context, models.Event) (engine.Outcome, error) {
		return engine.Outcome{Status: engine.StatusSuppressed, Reason: engine.ReasonGlobalDisabled}, nil
	})

	out, err := h.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.Equal(t, "suppressed", out.Status)
	assert.Equal(t, "globalDisabled", out.Reason)
	assert.Empty(t, out.NotificationID)
	assert.NotNil(t, out.Channels)
}

func TestHandler_Execute_QueuedForDigest(t *testing.T) {
	h := newTestHandler(t, func(_ context.Context, ev models.Event) (engine.Outcome, error) {
		return engine.Outcome{
			Status:       engine.StatusQueuedForDigest,
			Channels:     []string{"emailDigest"},
			Notification: &models.Notification{ID: "n-2"},
		}, nil
	})

	out, err := h.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.Equal(t, "queuedForDigest", out.Status)
	assert.Nil(t, out.Failures)
}

// ==========================
// Validation Tests
// ==========================

func TestHandler_Execute_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *Input)
		wantMsg string
	}{
		{"missing recipient", func(in *Input) { in.RecipientID = " " }, "recipientId"},
		{"missing category", func(in *Input) { in.Category = "" }, "category"},
		{"missing title", func(in *Input) { in.Title = "" }, "title"},
		{"bad priority", func(in *Input) { in.Priority = "urgent" }, "urgent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, func(context.Context, models.Event) (engine.Outcome, error) {
				t.Fatal("decider must not be called on invalid input")
				return engine.Outcome{}, nil
			})
			in := createTestInput()
			tt.mutate(in)

			_, err := h.Execute(context.Background(), in)

			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
			stdErr, _ := errors.AsStandard(err)
			assert.Contains(t, stdErr.Details, tt.wantMsg)
		})
	}
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_EngineError(t *testing.T) {
	h := newTestHandler(t, func(_ context.Context, ev models.Event) (engine.Outcome, error) {
		return engine.Outcome{}, errors.NewUnknownCategoryError(string(ev.Category))
	})
	in := createTestInput()
	in.Category = "pirateMessage"

	_, err := h.Execute(context.Background(), in)

	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownCategory))
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 30*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 5*time.Second, LoadConfig(config.WorkerConfig{Timeout: 5000}).Timeout)
}
