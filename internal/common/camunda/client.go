// internal/common/camunda/client.go
package camunda

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"bookverse-notifications/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client wraps the Zeebe gRPC client with enhanced error handling and retry logic.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig defines retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig applies when a ClientConfig leaves retries unset.
var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClient connects to a plaintext gateway with default timeouts.
func NewClient(address string, requestTimeout time.Duration) (*Client, error) {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return NewClientWithConfig(&ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         requestTimeout,
		RetryConfig:            DefaultRetryConfig,
	})
}

// NewClientWithConfig dials the gateway and verifies it with a topology
// request, retrying transient failures.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{
		client: zeebeClient,
		config: config,
	}

	budget := time.Duration(config.RetryConfig.MaxRetries+1)*config.ConnectionTimeout +
		time.Duration(config.RetryConfig.MaxRetries)*config.RetryConfig.MaxDelay
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	if err := c.HealthCheck(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}
	return c, nil
}

// GetClient returns the raw Zeebe client for opening job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// ExecuteWithRetry runs a Zeebe command with exponential backoff. Only
// transient errors (timeouts, connection issues) are retried.
func (c *Client) ExecuteWithRetry(
	ctx context.Context,
	commandFunc func(context.Context) (interface{}, error),
	operationName string,
) (interface{}, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryConfig.MaxRetries; attempt++ {
		result, err := commandFunc(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err

		// Stop retrying if not a transient error or max retries reached
		if !isRetryableZeebeError(err) || attempt == c.config.RetryConfig.MaxRetries {
			return nil, c.mapZeebeError(err, operationName, attempt)
		}

		delay := c.config.RetryConfig.BaseDelay * time.Duration(1<<attempt)
		if delay > c.config.RetryConfig.MaxDelay {
			delay = c.config.RetryConfig.MaxDelay
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("operation %s cancelled after %d attempts: %w", operationName, attempt, ctx.Err())
		}
	}

	return nil, fmt.Errorf("operation %s failed after %d retries: %w", operationName, c.config.RetryConfig.MaxRetries, lastErr)
}

// dialFailures are transport errors that surface before a gRPC status
// exists.
var dialFailures = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"unreachable",
}

// zeebeCode extracts the gRPC status code. Plain errors are classified by
// message: dial failures count as Unavailable, deadline text as
// DeadlineExceeded.
func zeebeCode(err error) codes.Code {
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return st.Code()
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "code = unavailable"):
		return codes.Unavailable
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return codes.DeadlineExceeded
	case strings.Contains(msg, "not found"):
		return codes.NotFound
	case strings.Contains(msg, "already exists"):
		return codes.AlreadyExists
	case strings.Contains(msg, "permission denied") || strings.Contains(msg, "unauthorized"):
		return codes.PermissionDenied
	}
	for _, phrase := range dialFailures {
		if strings.Contains(msg, phrase) {
			return codes.Unavailable
		}
	}
	return codes.Unknown
}

// isRetryableZeebeError reports whether the broker may accept the same
// command later.
func isRetryableZeebeError(err error) bool {
	switch zeebeCode(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	}
	return false
}

// mapZeebeError converts Zeebe errors into StandardErrors.
func (c *Client) mapZeebeError(err error, operation string, attempt int) error {
	desc := fmt.Sprintf("zeebe %s", operation)
	if attempt > 0 {
		desc += fmt.Sprintf(" (%d attempts)", attempt+1)
	}
	wrapped := fmt.Errorf("%s: %w", desc, err)

	switch zeebeCode(err) {
	case codes.DeadlineExceeded:
		return errors.NewTimeoutError("zeebe", wrapped)
	case codes.NotFound:
		return errors.NewResourceNotFoundError("zeebe", wrapped.Error())
	case codes.AlreadyExists:
		return errors.NewBusinessRuleError(wrapped.Error(), "Resource already exists")
	case codes.PermissionDenied, codes.Unauthenticated:
		return errors.NewAuthenticationError(wrapped.Error())
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}

// HealthCheck sends a topology request; /ready reports its result.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
		defer cancel()
		return c.client.NewTopologyCommand().Send(ctx)
	}, "topology")
	if err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
