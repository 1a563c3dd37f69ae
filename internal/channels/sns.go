package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"bookverse-notifications/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	CreatePlatformEndpoint(ctx context.Context, params *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
}

// SNSTransport delivers push through an SNS mobile platform application.
// Device tokens are registered as platform endpoints on first use.
type SNSTransport struct {
	tokenEvents
	client         SNSService
	platformAppARN string
	logger         logger.Logger

	mu        sync.Mutex
	endpoints map[string]string
}

func NewSNSTransport(client SNSService, platformAppARN string, log logger.Logger) *SNSTransport {
	return &SNSTransport{
		tokenEvents:    newTokenEvents(),
		client:         client,
		platformAppARN: platformAppARN,
		logger:         logger.Component(log, "sns-push"),
		endpoints:      make(map[string]string),
	}
}

func (t *SNSTransport) RequestPermission(context.Context) (bool, error) {
	return t.client != nil && t.platformAppARN != "", nil
}

func (t *SNSTransport) Deliver(ctx context.Context, token string, p PushPayload) error {
	if token == "" {
		return ErrNoDeviceTokens
	}

	arn, err := t.endpoint(ctx, token)
	if err != nil {
		return fmt.Errorf("create platform endpoint: %w", err)
	}

	message, err := snsMessage(p)
	if err != nil {
		return err
	}

	_, err = t.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(arn),
		Message:          aws.String(message),
		MessageStructure: aws.String("json"),
	})
	if err == nil {
		return nil
	}

	var disabled *types.EndpointDisabledException
	if errors.As(err, &disabled) {
		t.mu.Lock()
		delete(t.endpoints, token)
		t.mu.Unlock()
		t.emit(TokenEvent{UserID: p.UserID, Token: token, Revoked: true})
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	t.logger.Error("SNS publish failed", map[string]interface{}{
		"notificationId": p.NotificationID,
		"error":          err,
	})
	return err
}

func (t *SNSTransport) endpoint(ctx context.Context, token string) (string, error) {
	t.mu.Lock()
	arn, ok := t.endpoints[token]
	t.mu.Unlock()
	if ok {
		return arn, nil
	}

	out, err := t.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(t.platformAppARN),
		Token:                  aws.String(token),
	})
	if err != nil {
		return "", err
	}
	arn = aws.ToString(out.EndpointArn)

	t.mu.Lock()
	t.endpoints[token] = arn
	t.mu.Unlock()
	return arn, nil
}

// snsMessage builds the per-platform JSON envelope SNS expects when
// MessageStructure is "json".
func snsMessage(p PushPayload) (string, error) {
	gcm := map[string]interface{}{
		"notification": map[string]interface{}{
			"title":      p.Title,
			"body":       p.Body,
			"sound":      p.Sound,
			"icon":       p.Icon,
			"tag":        p.GroupID,
			"channel_id": p.ChannelID,
		},
		"data": p.wireData(),
	}
	aps := map[string]interface{}{
		"alert": map[string]string{"title": p.Title, "body": p.Body},
	}
	if p.Sound != "" {
		aps["sound"] = p.Sound
	}
	if p.Badge != nil {
		aps["badge"] = *p.Badge
	}
	if p.GroupID != "" {
		aps["thread-id"] = p.GroupID
	}
	apns := map[string]interface{}{"aps": aps, "data": p.wireData()}

	gcmJSON, err := json.Marshal(gcm)
	if err != nil {
		return "", err
	}
	apnsJSON, err := json.Marshal(apns)
	if err != nil {
		return "", err
	}
	envelope, err := json.Marshal(map[string]string{
		"default":      p.Body,
		"GCM":          string(gcmJSON),
		"APNS":         string(apnsJSON),
		"APNS_SANDBOX": string(apnsJSON),
	})
	if err != nil {
		return "", err
	}
	return string(envelope), nil
}
