package camunda

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"bookverse-notifications/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func testClient() *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RetryConfig:       &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}}
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(fmt.Errorf("rpc error: code = Unavailable")))
	assert.True(t, isRetryableZeebeError(fmt.Errorf("context deadline exceeded")))
	assert.False(t, isRetryableZeebeError(fmt.Errorf("job not found")))
}

func TestZeebeCode_GRPCStatus(t *testing.T) {
	assert.Equal(t, codes.ResourceExhausted, zeebeCode(status.Error(codes.ResourceExhausted, "backpressure")))
	assert.True(t, isRetryableZeebeError(status.Error(codes.ResourceExhausted, "backpressure")))
	assert.False(t, isRetryableZeebeError(status.Error(codes.InvalidArgument, "bad variables")))
	assert.Equal(t, codes.DeadlineExceeded, zeebeCode(context.DeadlineExceeded))

	err := testClient().mapZeebeError(status.Error(codes.NotFound, "job 42"), "complete-job", 0)
	assert.True(t, errors.HasCode(err, "RESOURCE_NOT_FOUND"))
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	c := testClient()
	attempts := 0

	out, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		attempts++
		if attempts < 3 {
			return nil, fmt.Errorf("connection refused")
		}
		return "ok", nil
	}, "complete-job")

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, attempts)
}

func TestExecuteWithRetry_MapsPermanentErrors(t *testing.T) {
	c := testClient()
	attempts := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		attempts++
		return nil, fmt.Errorf("permission denied")
	}, "complete-job")

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, errors.HasCode(err, "AUTHENTICATION_ERROR"))
}

func TestExecuteWithRetry_ExhaustedTimeout(t *testing.T) {
	c := testClient()

	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		return nil, fmt.Errorf("deadline exceeded")
	}, "topology")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "TIMEOUT_ERROR"))
}

func TestBPMNCode(t *testing.T) {
	code, msg := BPMNCode(errors.NewMessageNotFoundError("m-1"))
	assert.Equal(t, string(errors.ErrCodeMessageNotFound), code)
	assert.Contains(t, msg, "m-1")

	code, msg = BPMNCode(fmt.Errorf("wrapped: %w", stderrors.New("boom")))
	assert.Equal(t, ErrCodeInternal, code)
	assert.Equal(t, "wrapped: boom", msg)
}
