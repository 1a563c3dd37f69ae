// Package channels holds the delivery surfaces the engine dispatches to:
// remote push, the local notification surface, email and navigation.
// Every adapter follows one contract: attempt the delivery and report the
// outcome as an error, never panic and never retry synchronously.
package channels

import (
	"context"
	"errors"
	"strconv"
	"time"

	"bookverse-notifications/internal/models"
)

// Channel names used in outcomes and metrics.
const (
	InApp  = "inApp"
	Push   = "push"
	Local  = "local"
	Email  = "email"
	Digest = "emailDigest"
)

var (
	ErrPermissionDenied = errors.New("push permission not granted")
	ErrNoDeviceTokens   = errors.New("no device tokens registered")
	ErrInvalidToken     = errors.New("device token rejected by transport")
	ErrEmailDisabled    = errors.New("no email transport configured")
)

// ==========================
// Push
// ==========================

// PushPayload is what a push transport renders into its wire message.
type PushPayload struct {
	UserID         string            `json:"userId"`
	NotificationID string            `json:"notificationId"`
	Category       models.Category   `json:"category"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Data           map[string]string `json:"data,omitempty"`
	ChannelID      string            `json:"channelId"`
	Importance     string            `json:"importance"`
	Priority       models.Priority   `json:"priority"`
	Icon           string            `json:"icon,omitempty"`
	Sound          string            `json:"sound,omitempty"`
	Vibrate        bool              `json:"vibrate"`
	Badge          *int              `json:"badge,omitempty"`
	ActionURL      string            `json:"actionUrl,omitempty"`
	GroupID        string            `json:"groupId,omitempty"`
	GroupSummary   string            `json:"groupSummary,omitempty"`
}

// wireData flattens the payload into the string map push data fields need.
func (p PushPayload) wireData() map[string]string {
	out := make(map[string]string, len(p.Data)+5)
	for k, v := range p.Data {
		out[k] = v
	}
	out["notificationId"] = p.NotificationID
	out["category"] = string(p.Category)
	out["priority"] = string(p.Priority)
	if p.ActionURL != "" {
		out["actionUrl"] = p.ActionURL
	}
	if p.GroupID != "" {
		out["groupId"] = p.GroupID
		out["groupSummary"] = p.GroupSummary
	}
	if p.Badge != nil {
		out["badge"] = strconv.Itoa(*p.Badge)
	}
	return out
}

// TokenEvent reports a device token change seen by a transport. Revoked
// tokens should be dropped from the user's preferences.
type TokenEvent struct {
	UserID  string
	Token   string
	Revoked bool
}

type PushTransport interface {
	RequestPermission(ctx context.Context) (bool, error)
	Deliver(ctx context.Context, token string, payload PushPayload) error
	TokenRefreshes() <-chan TokenEvent
}

type tokenEvents struct {
	ch chan TokenEvent
}

func newTokenEvents() tokenEvents {
	return tokenEvents{ch: make(chan TokenEvent, 64)}
}

func (t tokenEvents) TokenRefreshes() <-chan TokenEvent {
	return t.ch
}

// emit never blocks delivery; with nobody listening the event is dropped.
func (t tokenEvents) emit(ev TokenEvent) {
	select {
	case t.ch <- ev:
	default:
	}
}

// ==========================
// Local surface
// ==========================

type Action struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

const (
	ActionView    = "view"
	ActionDismiss = "dismiss"
)

// DefaultActions are attached to every local notification.
var DefaultActions = []Action{
	{ID: ActionView, Title: "View"},
	{ID: ActionDismiss, Title: "Dismiss"},
}

// LocalNotification is a system-level notification scheduled on the user's
// device.
type LocalNotification struct {
	ID           string            `json:"id"`
	UserID       string            `json:"userId"`
	Category     models.Category   `json:"category"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	ChannelID    string            `json:"channelId"`
	Importance   string            `json:"importance"`
	Icon         string            `json:"icon,omitempty"`
	Sound        string            `json:"sound,omitempty"`
	Vibrate      bool              `json:"vibrate"`
	Badge        *int              `json:"badge,omitempty"`
	ActionURL    string            `json:"actionUrl,omitempty"`
	GroupID      string            `json:"groupId,omitempty"`
	GroupSummary string            `json:"groupSummary,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	At           time.Time         `json:"at"`
	Actions      []Action          `json:"actions"`
}

// Interaction is a user tapping an action on a local notification.
type Interaction struct {
	UserID         string `json:"userId"`
	NotificationID string `json:"notificationId"`
	ActionID       string `json:"actionId"`
}

type LocalSurface interface {
	Schedule(ctx context.Context, n LocalNotification) error
	Cancel(ctx context.Context, userID, notificationID string) error
	CancelAll(ctx context.Context, userID string) error
	Interactions() <-chan Interaction
}

// ==========================
// Email and navigation
// ==========================

type EmailTransport interface {
	Send(ctx context.Context, msg *models.EmailMessage) error
}

// DisabledEmail rejects every message. Emails are still logged as failed
// so they can be retried once a transport is configured.
type DisabledEmail struct{}

func (DisabledEmail) Send(context.Context, *models.EmailMessage) error { return ErrEmailDisabled }

type Navigator interface {
	Navigate(ctx context.Context, userID, destination string, params map[string]string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, userID, destination string, params map[string]string) error

func (f NavigatorFunc) Navigate(ctx context.Context, userID, destination string, params map[string]string) error {
	return f(ctx, userID, destination, params)
}
