package engine

import (
	"context"
	stderrors "errors"
	"fmt"

	"bookverse-notifications/internal/channels"
	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/models"
	"bookverse-notifications/pkg/registry"

	"github.com/google/uuid"
)

type channelPlan struct {
	inApp, push, email, digest bool
}

func (p channelPlan) empty() bool {
	return !p.inApp && !p.push && !p.email && !p.digest
}

// selectChannels resolves the category's delivery flags. With a digest
// schedule and emailDigest set, the digest replaces immediate email, so an
// event is never emailed twice.
func selectChannels(d models.DeliveryPreference, email models.EmailSettings) channelPlan {
	p := channelPlan{inApp: d.InApp, push: d.Push}
	if email.DigestFrequency != models.DigestNever && d.EmailDigest {
		p.digest = true
	} else {
		p.email = d.Email
	}
	return p
}

func (e *Engine) info(c models.Category) registry.CategoryInfo {
	return e.deps.Registry.Lookup(string(c))
}

func (e *Engine) presentLocal(ctx context.Context, n *models.Notification, g *models.NotificationGroup) error {
	if e.deps.Surface == nil {
		return fmt.Errorf("no local notification surface")
	}
	info := e.info(n.Category)
	local := channels.LocalNotification{
		ID:         n.ID,
		UserID:     n.UserID,
		Category:   n.Category,
		Title:      n.Title,
		Body:       n.Body,
		ChannelID:  info.Channel,
		Importance: info.Importance,
		Icon:       n.Hints.Icon,
		Sound:      n.Hints.Sound,
		Vibrate:    n.Hints.Vibration != nil && *n.Hints.Vibration,
		Badge:      n.Hints.Badge,
		ActionURL:  n.ActionURL,
		GroupID:    n.GroupID,
		Data:       stringData(n.Data),
		At:         n.Timestamp,
		Actions:    channels.DefaultActions,
	}
	if g != nil {
		local.GroupSummary = g.Summary
	}
	return e.deps.Surface.Schedule(ctx, local)
}

// push delivers to every registered device. It succeeds when at least one
// device accepted.
func (e *Engine) push(ctx context.Context, prefs *models.NotificationPreferences, n *models.Notification, g *models.NotificationGroup) error {
	if e.deps.Push == nil {
		return channels.ErrPermissionDenied
	}
	granted, err := e.deps.Push.RequestPermission(ctx)
	if err != nil {
		return err
	}
	if !granted {
		return channels.ErrPermissionDenied
	}
	if len(prefs.DeviceTokens) == 0 {
		return channels.ErrNoDeviceTokens
	}

	info := e.info(n.Category)
	payload := channels.PushPayload{
		UserID:         n.UserID,
		NotificationID: n.ID,
		Category:       n.Category,
		Title:          n.Title,
		Body:           n.Body,
		Data:           stringData(n.Data),
		ChannelID:      info.Channel,
		Importance:     info.Importance,
		Priority:       n.Priority,
		Icon:           n.Hints.Icon,
		Sound:          n.Hints.Sound,
		Vibrate:        n.Hints.Vibration != nil && *n.Hints.Vibration,
		Badge:          n.Hints.Badge,
		ActionURL:      n.ActionURL,
		GroupID:        n.GroupID,
	}
	if g != nil {
		payload.GroupSummary = g.Summary
	}

	var errs []error
	accepted := 0
	for _, token := range prefs.DeviceTokens {
		if err := e.deps.Push.Deliver(ctx, token, payload); err != nil {
			errs = append(errs, err)
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return errors.NewChannelDeliveryError(channels.Push, stderrors.Join(errs...))
	}
	return nil
}

// email renders and sends an immediate email. The template is the event's,
// else the category's registered one, else the generic layout.
func (e *Engine) email(ctx context.Context, ev models.Event, n *models.Notification) (*models.EmailMessage, error) {
	if e.deps.Emails == nil || e.deps.Directory == nil {
		return nil, fmt.Errorf("no email transport")
	}
	recipient, err := e.deps.Directory.EmailAddress(ctx, n.UserID)
	if err != nil {
		return nil, err
	}

	templateID := ev.TemplateID
	if templateID == "" {
		templateID = e.info(n.Category).TemplateID
	}
	if templateID == "" {
		templateID = channels.TemplateGeneric
	}

	vars := map[string]string{
		"title":     n.Title,
		"body":      n.Body,
		"actionUrl": n.ActionURL,
	}
	for k, v := range ev.Variables {
		vars[k] = v
	}
	subject, body, err := e.deps.Templates.Render(templateID, vars, nil)
	if err != nil {
		return nil, err
	}

	msg := &models.EmailMessage{
		ID:         uuid.New().String(),
		UserID:     n.UserID,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		Category:   n.Category,
		Variables:  vars,
		Timestamp:  n.Timestamp,
	}
	return msg, e.deps.Emails.Send(ctx, msg)
}

func (e *Engine) enqueueDigest(ctx context.Context, n models.Notification) error {
	if e.deps.Digest == nil {
		return fmt.Errorf("no digest scheduler")
	}
	return e.deps.Digest.Enqueue(ctx, n)
}

func stringData(data map[string]interface{}) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = fmt.Sprint(v)
	}
	return out
}
