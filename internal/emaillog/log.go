// Package emaillog tracks every email the engine sends, its delivery status
// as reported by the transport, and per-user engagement stats.
package emaillog

import (
	"context"
	"sync"
	"time"

	"bookverse-notifications/internal/audit"
	"bookverse-notifications/internal/channels"
	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/common/metrics"
	"bookverse-notifications/internal/models"

	"github.com/google/uuid"
)

const DefaultRetryCap = 3

// funnel orders the engagement statuses. A callback for an earlier stage
// arriving after a later one is stale and ignored.
var funnel = map[models.EmailStatus]int{
	models.EmailSent:      1,
	models.EmailDelivered: 2,
	models.EmailOpened:    3,
	models.EmailClicked:   4,
}

type Log struct {
	store     Store
	transport channels.EmailTransport
	audit     *audit.Indexer
	retryCap  int
	logger    logger.Logger
	now       func() time.Time

	mu sync.Mutex
}

func NewLog(store Store, transport channels.EmailTransport, retryCap int, auditor *audit.Indexer, log logger.Logger) *Log {
	if retryCap <= 0 {
		retryCap = DefaultRetryCap
	}
	return &Log{
		store:     store,
		transport: transport,
		audit:     auditor,
		retryCap:  retryCap,
		logger:    logger.Component(log, "email-log"),
		now:       time.Now,
	}
}

func (l *Log) RetryCap() int { return l.retryCap }

// PermanentlyFailed reports whether msg has used up its retries.
func (l *Log) PermanentlyFailed(msg *models.EmailMessage) bool {
	return msg.Status == models.EmailFailed && models.RetriesExhausted(msg.Retries, l.retryCap)
}

// Record stores msg, filling in id, timestamp and Pending status when unset.
func (l *Log) Record(ctx context.Context, msg *models.EmailMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = l.now()
	}
	if msg.Status == "" {
		msg.Status = models.EmailPending
	}
	if err := l.store.Insert(ctx, msg); err != nil {
		return err
	}
	metrics.EmailStatusTransitions.WithLabelValues(string(msg.Status)).Inc()
	l.emitEvent(ctx, msg)
	return nil
}

// Send records msg as Pending, hands it to the transport and records the
// outcome. The transport error, if any, is returned.
func (l *Log) Send(ctx context.Context, msg *models.EmailMessage) error {
	if err := l.Record(ctx, msg); err != nil {
		return err
	}
	return l.deliver(ctx, msg)
}

func (l *Log) deliver(ctx context.Context, msg *models.EmailMessage) error {
	sendErr := l.transport.Send(ctx, msg)

	status, errMsg := models.EmailSent, ""
	if sendErr != nil {
		status, errMsg = models.EmailFailed, sendErr.Error()
	}
	updated, err := l.UpdateStatus(ctx, msg.ID, status, errMsg)
	if err != nil {
		l.logger.Error("failed to record email status", map[string]interface{}{
			"messageId": msg.ID,
			"status":    string(status),
			"error":     err,
		})
	} else {
		*msg = *updated
	}
	return sendErr
}

// UpdateStatus applies a transport status callback. Failed increments the
// retry counter.
func (l *Log) UpdateStatus(ctx context.Context, id string, status models.EmailStatus, errMsg string) (*models.EmailMessage, error) {
	if !status.Valid() {
		return nil, errors.NewInvalidInputError("unknown email status " + string(status))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if rank, ok := funnel[status]; ok && funnel[msg.Status] > rank {
		l.logger.Debug("ignoring stale email status", map[string]interface{}{
			"messageId": id,
			"current":   string(msg.Status),
			"status":    string(status),
		})
		return msg, nil
	}

	msg.Status = status
	msg.Error = errMsg
	if status == models.EmailFailed {
		msg.Retries++
	}
	if err := l.store.UpdateStatus(ctx, msg); err != nil {
		return nil, err
	}

	metrics.EmailStatusTransitions.WithLabelValues(string(status)).Inc()
	if l.PermanentlyFailed(msg) {
		l.logger.Warn("email permanently failed", map[string]interface{}{
			"messageId": id,
			"retries":   msg.Retries,
			"error":     errMsg,
		})
	}
	l.emitEvent(ctx, msg)
	return msg, nil
}

// RetryFailed resends every Failed message still under the retry cap.
func (l *Log) RetryFailed(ctx context.Context) (resent, failed int, err error) {
	msgs, err := l.store.ListByStatus(ctx, models.EmailFailed)
	if err != nil {
		return 0, 0, err
	}
	for i := range msgs {
		msg := &msgs[i]
		if l.PermanentlyFailed(msg) {
			continue
		}
		if ctx.Err() != nil {
			return resent, failed, ctx.Err()
		}
		if err := l.deliver(ctx, msg); err != nil {
			failed++
			continue
		}
		resent++
	}
	return resent, failed, nil
}

// RunRetries resends failed emails every tick until ctx ends.
func (l *Log) RunRetries(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resent, failed, err := l.RetryFailed(ctx)
			if err != nil && ctx.Err() == nil {
				l.logger.Error("email retry tick failed", map[string]interface{}{"error": err})
				continue
			}
			if resent+failed > 0 {
				l.logger.Info("email retry tick", map[string]interface{}{
					"resent": resent,
					"failed": failed,
				})
			}
		}
	}
}

// Stats summarizes a user's emails. Engagement counts are cumulative: an
// opened message also counts as delivered and sent.
func (l *Log) Stats(ctx context.Context, userID string) (models.EmailStats, error) {
	msgs, err := l.store.ListByUser(ctx, userID)
	if err != nil {
		return models.EmailStats{}, err
	}

	stats := models.EmailStats{ByCategory: map[models.Category]models.CategoryEmailStats{}}
	for _, m := range msgs {
		cat := stats.ByCategory[m.Category]
		rank := funnel[m.Status]

		switch m.Status {
		case models.EmailBounced:
			stats.Bounced++
		case models.EmailUnsubscribed:
			stats.Unsubscribed++
		case models.EmailSpamReported:
			stats.SpamReported++
		}
		// bounces, unsubscribes and complaints all follow a send
		if rank >= 1 || m.Status == models.EmailBounced || m.Status == models.EmailUnsubscribed || m.Status == models.EmailSpamReported {
			stats.TotalSent++
			cat.Sent++
		}
		if rank >= 2 {
			stats.Delivered++
		}
		if rank >= 3 {
			stats.Opened++
			cat.Opened++
		}
		if rank >= 4 {
			stats.Clicked++
			cat.Clicked++
		}
		if cat != (models.CategoryEmailStats{}) {
			stats.ByCategory[m.Category] = cat
		}
	}
	return stats, nil
}

func (l *Log) emitEvent(ctx context.Context, msg *models.EmailMessage) {
	l.audit.EmailEvent(ctx, audit.EmailEventRecord{
		MessageID: msg.ID,
		UserID:    msg.UserID,
		Category:  string(msg.Category),
		Status:    string(msg.Status),
		Error:     msg.Error,
		Retries:   msg.Retries,
		Timestamp: l.now(),
	})
}
