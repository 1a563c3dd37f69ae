// Package engine turns incoming events into delivery decisions: it gates
// on preferences, shapes channel hints, picks channels and dispatches.
package engine

import (
	"context"
	"time"

	"bookverse-notifications/internal/audit"
	"bookverse-notifications/internal/channels"
	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/common/metrics"
	"bookverse-notifications/internal/common/observability"
	"bookverse-notifications/internal/digest"
	"bookverse-notifications/internal/emaillog"
	"bookverse-notifications/internal/identity"
	"bookverse-notifications/internal/inbox"
	"bookverse-notifications/internal/models"
	"bookverse-notifications/internal/preferences"
	"bookverse-notifications/pkg/registry"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSuppressed      Status = "suppressed"
	StatusDelivered       Status = "delivered"
	StatusQueuedForDigest Status = "queuedForDigest"
)

// Reasons attached to an Outcome. All but ReasonAllChannelsFailed come with
// StatusSuppressed.
const (
	ReasonNoIdentity       = "noIdentity"
	ReasonGlobalDisabled   = "globalDisabled"
	ReasonCategoryDisabled = "categoryDisabled"
	ReasonNoChannels       = "noChannels"

	// The notification was recorded in the inbox, but every selected channel
	// failed to deliver it.
	ReasonAllChannelsFailed = "allChannelsFailed"
)

const defaultSound = "default"

// Outcome is the result of one decision. Failures never abort siblings;
// they are reported per channel.
type Outcome struct {
	Status       Status
	Reason       string
	Channels     []string
	Notification *models.Notification
	Group        *models.NotificationGroup
	Email        *models.EmailMessage
	Failures     map[string]error
}

// Preferences is satisfied by *preferences.Service.
type Preferences interface {
	Preferences(ctx context.Context, userID string) (*models.NotificationPreferences, error)
	RegisterDeviceTokenFor(ctx context.Context, userID, token string) preferences.Result
	RemoveDeviceTokenFor(ctx context.Context, userID, token string) preferences.Result
}

// Deps are the engine's collaborators. Surface, Push, Emails, Digest, Audit
// and Metrics may be nil; the matching channel then reports a failure or
// the concern is skipped.
type Deps struct {
	Preferences Preferences
	Identity    identity.Provider
	Inbox       *inbox.Service
	Surface     channels.LocalSurface
	Push        channels.PushTransport
	Emails      *emaillog.Log
	Digest      *digest.Scheduler
	Directory   identity.Directory
	Templates   *channels.Templates
	Registry    *registry.CategoryRegistry
	Audit       *audit.Indexer
	Metrics     *observability.Observability
	Location    *time.Location
}

type Engine struct {
	deps   Deps
	logger logger.Logger
	now    func() time.Time
}

func New(deps Deps, log logger.Logger) *Engine {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Templates == nil {
		deps.Templates = channels.DefaultTemplates()
	}
	return &Engine{
		deps:   deps,
		logger: logger.Component(log, "engine"),
		now:    time.Now,
	}
}

// Decide runs one event through the decision pipeline. The error return is
// reserved for events that cannot be evaluated at all (unknown category,
// unreadable preferences); channel failures land in Outcome.Failures.
func (e *Engine) Decide(ctx context.Context, ev models.Event) (Outcome, error) {
	start := e.now()

	if !ev.Category.Valid() {
		return Outcome{}, errors.NewUnknownCategoryError(string(ev.Category))
	}

	userID := ev.UserID
	if userID == "" && e.deps.Identity != nil {
		userID, _ = e.deps.Identity.CurrentIdentity(ctx)
	}
	if userID == "" {
		return e.finish(ctx, start, ev, "", e.suppressed(ReasonNoIdentity)), nil
	}

	prefs, err := e.deps.Preferences.Preferences(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}

	// 1. gates
	if !prefs.GlobalEnabled {
		return e.finish(ctx, start, ev, userID, e.suppressed(ReasonGlobalDisabled)), nil
	}
	cp, ok := prefs.Categories[ev.Category]
	if !ok || !cp.Enabled {
		return e.finish(ctx, start, ev, userID, e.suppressed(ReasonCategoryDisabled)), nil
	}

	// 2-3. channel selection
	plan := selectChannels(cp.Delivery, prefs.EmailSettings)
	if plan.empty() {
		return e.finish(ctx, start, ev, userID, e.suppressed(ReasonNoChannels)), nil
	}

	// 4. notification with hints and grouping applied
	now := e.now().In(e.deps.Location)
	n := e.buildNotification(ev, userID, cp, now)
	n.Hints = shapeHints(ev, cp, prefs.QuietHours, now)

	out := Outcome{Notification: &n, Failures: map[string]error{}}
	e.record(ctx, &out)

	// 5. dispatch, sequentially; one channel's failure never stops the next
	if plan.inApp {
		e.dispatch(ctx, &out, channels.InApp, func() error { return e.presentLocal(ctx, &n, out.Group) })
	}
	if plan.push {
		e.dispatch(ctx, &out, channels.Push, func() error { return e.push(ctx, prefs, &n, out.Group) })
	}
	if plan.email {
		e.dispatch(ctx, &out, channels.Email, func() error {
			msg, err := e.email(ctx, ev, &n)
			out.Email = msg
			return err
		})
	}
	if plan.digest {
		e.dispatch(ctx, &out, channels.Digest, func() error { return e.enqueueDigest(ctx, n) })
	}

	switch {
	case len(out.Channels) == 1 && out.Channels[0] == channels.Digest:
		out.Status = StatusQueuedForDigest
	case len(out.Channels) == 0:
		out.Status = StatusDelivered
		out.Reason = ReasonAllChannelsFailed
	default:
		out.Status = StatusDelivered
	}
	return e.finish(ctx, start, ev, userID, out), nil
}

func (e *Engine) suppressed(reason string) Outcome {
	return Outcome{Status: StatusSuppressed, Reason: reason, Failures: map[string]error{}}
}

func (e *Engine) buildNotification(ev models.Event, userID string, cp models.CategoryPreference, now time.Time) models.Notification {
	priority := ev.Priority
	if !priority.Valid() {
		priority = cp.Priority
	}
	n := models.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Category:  ev.Category,
		Title:     ev.Title,
		Body:      ev.Body,
		Data:      ev.Data,
		Timestamp: now,
		ActionURL: ev.ActionURL,
		Priority:  priority,
	}
	if cp.Grouping && ev.GroupID != "" {
		n.GroupID = ev.GroupID
	}
	return n
}

// shapeHints applies the audible-cue policy. Quiet hours and any active
// category window strip sound and vibration; the most restrictive wins.
func shapeHints(ev models.Event, cp models.CategoryPreference, quiet models.TimeWindow, now time.Time) models.ChannelHints {
	h := models.ChannelHints{Icon: ev.Icon, Sound: ev.Sound, Badge: ev.Badge}
	if h.Sound == "" {
		h.Sound = defaultSound
	}
	if cp.Vibration {
		on := true
		h.Vibration = &on
	}

	muted := preferences.WindowActive(quiet, now)
	for _, w := range cp.TimeWindows {
		if muted {
			break
		}
		muted = preferences.WindowActive(w, now)
	}
	if muted {
		h.Sound = ""
		h.Vibration = nil
	}
	return h
}

// record stores the notification in the inbox and resolves its group.
func (e *Engine) record(ctx context.Context, out *Outcome) {
	n := out.Notification
	if e.deps.Inbox == nil {
		return
	}
	if err := e.deps.Inbox.Record(ctx, *n); err != nil {
		out.Failures["inbox"] = err
		e.logger.Error("failed to record notification", map[string]interface{}{
			"notificationId": n.ID,
			"userId":         n.UserID,
			"error":          err,
		})
		return
	}
	if n.GroupID == "" {
		return
	}
	g, err := e.deps.Inbox.Group(ctx, n.UserID, n.Category, n.GroupID)
	if err != nil {
		e.logger.Warn("failed to resolve notification group", map[string]interface{}{
			"groupId": n.GroupID,
			"error":   err,
		})
		return
	}
	out.Group = g
}

func (e *Engine) dispatch(ctx context.Context, out *Outcome, channel string, deliver func() error) {
	if err := deliver(); err != nil {
		out.Failures[channel] = err
		metrics.ChannelDeliveries.WithLabelValues(channel, "failed").Inc()
		e.logger.Warn("channel delivery failed", map[string]interface{}{
			"channel":        channel,
			"notificationId": out.Notification.ID,
			"userId":         out.Notification.UserID,
			"error":          err,
		})
		return
	}
	out.Channels = append(out.Channels, channel)
	metrics.ChannelDeliveries.WithLabelValues(channel, "delivered").Inc()
}

// finish counts, times and audits the outcome.
func (e *Engine) finish(ctx context.Context, start time.Time, ev models.Event, userID string, out Outcome) Outcome {
	elapsed := e.now().Sub(start)
	metrics.NotificationsDecided.WithLabelValues(string(out.Status), string(ev.Category)).Inc()
	e.deps.Metrics.RecordDecision(ctx, elapsed, string(out.Status), string(ev.Category))

	rec := audit.DecisionRecord{
		ID:         uuid.New().String(),
		UserID:     userID,
		Category:   string(ev.Category),
		Outcome:    string(out.Status),
		Channels:   out.Channels,
		Reason:     out.Reason,
		Timestamp:  start,
		DurationMs: elapsed.Milliseconds(),
	}
	if out.Notification != nil {
		rec.ID = out.Notification.ID
		rec.GroupID = out.Notification.GroupID
	}
	if len(out.Failures) > 0 {
		rec.Failures = make(map[string]string, len(out.Failures))
		for ch, err := range out.Failures {
			rec.Failures[ch] = err.Error()
		}
	}
	e.deps.Audit.Decision(ctx, rec)

	e.logger.Debug("notification decided", map[string]interface{}{
		"userId":   userID,
		"category": string(ev.Category),
		"status":   string(out.Status),
		"reason":   out.Reason,
		"channels": out.Channels,
	})
	return out
}
