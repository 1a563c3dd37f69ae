// Package digest batches email-digest entries per user and sends them as
// one email on the user's daily or weekly schedule.
package digest

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"bookverse-notifications/internal/channels"
	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/common/metrics"
	"bookverse-notifications/internal/emaillog"
	"bookverse-notifications/internal/identity"
	"bookverse-notifications/internal/models"
	"bookverse-notifications/pkg/registry"

	"github.com/google/uuid"
)

const DefaultRetryCap = 3

// PreferenceSource is satisfied by *preferences.Service.
type PreferenceSource interface {
	Preferences(ctx context.Context, userID string) (*models.NotificationPreferences, error)
}

type Options struct {
	Location     *time.Location
	RetryCap     int
	DashboardURL string
	PublicURL    string
}

type Scheduler struct {
	queue     Queue
	prefs     PreferenceSource
	directory identity.Directory
	templates *channels.Templates
	registry  *registry.CategoryRegistry
	transport channels.EmailTransport
	emails    *emaillog.Log
	opts      Options
	logger    logger.Logger
	now       func() time.Time

	// ticker and worker flushes must not send the same batch twice
	flushing sync.Mutex
}

func NewScheduler(
	queue Queue,
	prefs PreferenceSource,
	directory identity.Directory,
	templates *channels.Templates,
	reg *registry.CategoryRegistry,
	transport channels.EmailTransport,
	emails *emaillog.Log,
	opts Options,
	log logger.Logger,
) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RetryCap <= 0 {
		opts.RetryCap = DefaultRetryCap
	}
	return &Scheduler{
		queue:     queue,
		prefs:     prefs,
		directory: directory,
		templates: templates,
		registry:  reg,
		transport: transport,
		emails:    emails,
		opts:      opts,
		logger:    logger.Component(log, "digest"),
		now:       time.Now,
	}
}

// Enqueue adds n to its recipient's digest.
func (s *Scheduler) Enqueue(ctx context.Context, n models.Notification) error {
	entry := models.DigestEntry{
		ID:        n.ID,
		Category:  n.Category,
		Title:     n.Title,
		Body:      n.Body,
		ActionURL: n.ActionURL,
		Timestamp: n.Timestamp,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if err := s.queue.Enqueue(ctx, n.UserID, entry); err != nil {
		return err
	}
	metrics.DigestQueueDepth.WithLabelValues(string(n.Category)).Inc()
	return nil
}

// Pending returns the user's queued entries, oldest first.
func (s *Scheduler) Pending(ctx context.Context, userID string) ([]models.DigestEntry, error) {
	return s.queue.Entries(ctx, userID)
}

// Due reports whether a digest holding entries is due at now: the first
// scheduled instant after the oldest entry has passed. Users who switched
// their digest off get their leftovers right away.
func (s *Scheduler) Due(settings models.EmailSettings, entries []models.DigestEntry, now time.Time) bool {
	if len(entries) == 0 {
		return false
	}
	if settings.DigestFrequency == models.DigestNever {
		return true
	}
	next, err := NextRun(settings, entries[0].Timestamp, s.opts.Location)
	if err != nil {
		s.logger.Warn("cannot schedule digest", map[string]interface{}{"error": err})
		return false
	}
	return !now.Before(next)
}

type FlushResult struct {
	Sent    bool
	Dropped bool
	Entries int
	Retries int
	Message *models.EmailMessage
}

// FlushUser sends the user's digest if it is due, or unconditionally with
// force. The queue is cleared only when the transport accepts the email; a
// batch that keeps failing past the retry cap is logged as Failed and
// dropped.
func (s *Scheduler) FlushUser(ctx context.Context, userID string, force bool) (FlushResult, error) {
	s.flushing.Lock()
	defer s.flushing.Unlock()

	entries, err := s.queue.Entries(ctx, userID)
	if err != nil || len(entries) == 0 {
		return FlushResult{}, err
	}

	prefs, err := s.prefs.Preferences(ctx, userID)
	if err != nil {
		return FlushResult{}, err
	}
	if !force && !s.Due(prefs.EmailSettings, entries, s.now()) {
		return FlushResult{}, nil
	}

	msg, err := s.compose(ctx, userID, prefs, entries)
	if err == nil {
		err = s.transport.Send(ctx, msg)
	}
	res := FlushResult{Entries: len(entries), Message: msg}

	if err == nil {
		msg.Status = models.EmailSent
		s.record(ctx, msg)
		s.clear(ctx, userID, entries)
		metrics.DigestFlushes.WithLabelValues("sent").Inc()
		s.logger.Info("digest sent", map[string]interface{}{
			"userId":    userID,
			"entries":   len(entries),
			"messageId": msg.ID,
		})
		res.Sent = true
		return res, nil
	}

	retries, incErr := s.queue.IncrRetries(ctx, userID)
	if incErr != nil {
		s.logger.Error("failed to count digest retry", map[string]interface{}{
			"userId": userID,
			"error":  incErr,
		})
	}
	res.Retries = retries
	sendErr := errors.NewDigestSendFailedError(userID, err)

	if models.RetriesExhausted(retries, s.opts.RetryCap) {
		msg.Status = models.EmailFailed
		msg.Error = err.Error()
		msg.Retries = retries
		s.record(ctx, msg)
		s.clear(ctx, userID, entries)
		metrics.DigestFlushes.WithLabelValues("dropped").Inc()
		s.logger.Error("digest dropped after retries", map[string]interface{}{
			"userId":  userID,
			"entries": len(entries),
			"retries": retries,
			"error":   err,
		})
		res.Dropped = true
		return res, sendErr
	}

	metrics.DigestFlushes.WithLabelValues("failed").Inc()
	s.logger.Warn("digest send failed, batch kept", map[string]interface{}{
		"userId":  userID,
		"retries": retries,
		"error":   err,
	})
	return res, sendErr
}

// FlushDue flushes every user whose digest is due.
func (s *Scheduler) FlushDue(ctx context.Context) (flushed, failed int, err error) {
	users, err := s.queue.Users(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, userID := range users {
		if ctx.Err() != nil {
			return flushed, failed, ctx.Err()
		}
		res, err := s.FlushUser(ctx, userID, false)
		if err != nil {
			failed++
			continue
		}
		if res.Sent {
			flushed++
		}
	}
	return flushed, failed, nil
}

// Run flushes due digests every tick until ctx ends.
func (s *Scheduler) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flushed, failed, err := s.FlushDue(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.Error("digest tick failed", map[string]interface{}{"error": err})
				continue
			}
			if flushed+failed > 0 {
				s.logger.Info("digest tick", map[string]interface{}{
					"flushed": flushed,
					"failed":  failed,
				})
			}
		}
	}
}

func (s *Scheduler) record(ctx context.Context, msg *models.EmailMessage) {
	if s.emails == nil {
		return
	}
	if err := s.emails.Record(ctx, msg); err != nil {
		s.logger.Error("failed to log digest email", map[string]interface{}{
			"messageId": msg.ID,
			"error":     err,
		})
	}
}

func (s *Scheduler) clear(ctx context.Context, userID string, entries []models.DigestEntry) {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		metrics.DigestQueueDepth.WithLabelValues(string(e.Category)).Dec()
	}
	if err := s.queue.Remove(ctx, userID, ids); err != nil {
		s.logger.Error("failed to clear digest queue", map[string]interface{}{
			"userId": userID,
			"error":  err,
		})
	}
	if err := s.queue.ResetRetries(ctx, userID); err != nil {
		s.logger.Warn("failed to reset digest retries", map[string]interface{}{
			"userId": userID,
			"error":  err,
		})
	}
}

// compose renders one email with a section per category, in category
// declaration order.
func (s *Scheduler) compose(ctx context.Context, userID string, prefs *models.NotificationPreferences, entries []models.DigestEntry) (*models.EmailMessage, error) {
	period := string(prefs.EmailSettings.DigestFrequency)
	if prefs.EmailSettings.DigestFrequency == models.DigestNever {
		period = "latest"
	}
	vars := map[string]string{
		"userName":       "there",
		"period":         period,
		"dashboardUrl":   s.opts.DashboardURL,
		"unsubscribeUrl": s.unsubscribeURL(userID, prefs.EmailSettings.UnsubscribeToken),
	}

	msg := &models.EmailMessage{
		ID:         uuid.New().String(),
		UserID:     userID,
		TemplateID: channels.TemplateDigest,
		Category:   models.CategorySystemAnnouncement,
		Variables: map[string]string{
			"period":  period,
			"entries": strconv.Itoa(len(entries)),
		},
		Timestamp: s.now(),
	}

	recipient, err := s.directory.EmailAddress(ctx, userID)
	if err != nil {
		return msg, err
	}
	msg.Recipient = recipient

	subject, body, err := s.templates.Render(channels.TemplateDigest, vars, map[string]string{
		"sections": s.sections(entries),
	})
	if err != nil {
		return msg, err
	}
	msg.Subject = subject
	msg.Body = body
	return msg, nil
}

func (s *Scheduler) sections(entries []models.DigestEntry) string {
	byCategory := make(map[models.Category][]models.DigestEntry)
	for _, e := range entries {
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	var b strings.Builder
	for _, c := range models.AllCategories {
		items := byCategory[c]
		if len(items) == 0 {
			continue
		}
		info := s.registry.Lookup(string(c))
		fmt.Fprintf(&b, "<h2>%s (%d)</h2>\n<ul>\n", html.EscapeString(info.DisplayName), len(items))
		for _, e := range items {
			b.WriteString("<li><strong>" + html.EscapeString(e.Title) + "</strong> " + html.EscapeString(e.Body))
			if e.ActionURL != "" {
				b.WriteString(` <a href="` + html.EscapeString(e.ActionURL) + `">View</a>`)
			}
			b.WriteString("</li>\n")
		}
		b.WriteString("</ul>\n")
	}
	return b.String()
}

func (s *Scheduler) unsubscribeURL(userID, token string) string {
	q := url.Values{}
	q.Set("user", userID)
	q.Set("token", token)
	return strings.TrimRight(s.opts.PublicURL, "/") + "/v1/email/unsubscribe?" + q.Encode()
}
