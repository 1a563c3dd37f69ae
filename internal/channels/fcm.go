package channels

import (
	"context"
	"fmt"

	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/models"

	"firebase.google.com/go/v4/messaging"
)

// FCMSender is satisfied by *messaging.Client.
type FCMSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMTransport delivers push notifications through Firebase Cloud Messaging.
type FCMTransport struct {
	tokenEvents
	client FCMSender
	logger logger.Logger
}

func NewFCMTransport(client FCMSender, log logger.Logger) *FCMTransport {
	return &FCMTransport{
		tokenEvents: newTokenEvents(),
		client:      client,
		logger:      logger.Component(log, "fcm"),
	}
}

// RequestPermission is granted whenever a messaging client is configured;
// device-level consent is expressed by registering a token.
func (t *FCMTransport) RequestPermission(context.Context) (bool, error) {
	return t.client != nil, nil
}

func (t *FCMTransport) Deliver(ctx context.Context, token string, p PushPayload) error {
	if token == "" {
		return ErrNoDeviceTokens
	}

	_, err := t.client.Send(ctx, buildFCMMessage(token, p))
	if err == nil {
		return nil
	}

	if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) {
		t.emit(TokenEvent{UserID: p.UserID, Token: token, Revoked: true})
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	t.logger.Error("failed to send FCM message", map[string]interface{}{
		"notificationId": p.NotificationID,
		"error":          err,
	})
	return err
}

func buildFCMMessage(token string, p PushPayload) *messaging.Message {
	androidPriority := "normal"
	if p.Priority == models.PriorityHigh || p.Importance == "high" {
		androidPriority = "high"
	}

	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Data: p.wireData(),
		Android: &messaging.AndroidConfig{
			Priority: androidPriority,
			Notification: &messaging.AndroidNotification{
				ChannelID:             p.ChannelID,
				Icon:                  p.Icon,
				Sound:                 p.Sound,
				Tag:                   p.GroupID,
				DefaultVibrateTimings: p.Vibrate,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound:    p.Sound,
					Badge:    p.Badge,
					ThreadID: p.GroupID,
				},
			},
		},
	}
}
