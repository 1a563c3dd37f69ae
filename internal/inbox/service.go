package inbox

import (
	"context"
	"fmt"

	"bookverse-notifications/internal/channels"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/common/stream"
	"bookverse-notifications/internal/grouping"
	"bookverse-notifications/internal/models"
)

// Service owns the per-user notification inbox and its read state. Every
// mutation republishes the user's counts.
type Service struct {
	store     Store
	surface   channels.LocalSurface
	navigator channels.Navigator
	logger    logger.Logger
	counts    *stream.Hub[string, models.InboxCounts]
}

// NewService wires the inbox. surface and navigator may be nil.
func NewService(store Store, surface channels.LocalSurface, navigator channels.Navigator, log logger.Logger) *Service {
	return &Service{
		store:     store,
		surface:   surface,
		navigator: navigator,
		logger:    logger.Component(log, "inbox"),
		counts:    stream.NewHub[string, models.InboxCounts](),
	}
}

func (s *Service) Record(ctx context.Context, n models.Notification) error {
	if err := s.store.Insert(ctx, n); err != nil {
		return err
	}
	s.publishCounts(ctx, n.UserID)
	return nil
}

func (s *Service) GetNotifications(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, error) {
	return s.store.List(ctx, userID, filter)
}

func (s *Service) MarkAsRead(ctx context.Context, userID, id string) error {
	if err := s.store.MarkRead(ctx, userID, id); err != nil {
		return err
	}
	s.publishCounts(ctx, userID)
	return nil
}

func (s *Service) MarkAllAsRead(ctx context.Context, userID string) error {
	if err := s.store.MarkAllRead(ctx, userID); err != nil {
		return err
	}
	s.publishCounts(ctx, userID)
	return nil
}

// DeleteNotification removes one notification and its scheduled local
// presentation. Unknown ids succeed.
func (s *Service) DeleteNotification(ctx context.Context, userID, id string) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	if s.surface != nil {
		if err := s.surface.Cancel(ctx, userID, id); err != nil {
			s.logger.Warn("failed to cancel local notification", map[string]interface{}{
				"userId":         userID,
				"notificationId": id,
				"error":          err,
			})
		}
	}
	s.publishCounts(ctx, userID)
	return nil
}

func (s *Service) ClearAll(ctx context.Context, userID string) error {
	if err := s.store.DeleteAll(ctx, userID); err != nil {
		return err
	}
	if s.surface != nil {
		if err := s.surface.CancelAll(ctx, userID); err != nil {
			s.logger.Warn("failed to cancel local notifications", map[string]interface{}{
				"userId": userID,
				"error":  err,
			})
		}
	}
	s.publishCounts(ctx, userID)
	return nil
}

// Counts summarizes the inbox. ByCategory holds unread counts.
func (s *Service) Counts(ctx context.Context, userID string) (models.InboxCounts, error) {
	all, err := s.store.List(ctx, userID, models.NotificationFilter{})
	if err != nil {
		return models.InboxCounts{}, err
	}
	c := models.InboxCounts{Total: len(all), ByCategory: map[models.Category]int{}}
	for _, n := range all {
		if !n.IsRead {
			c.Unread++
			c.ByCategory[n.Category]++
		}
	}
	return c, nil
}

// WatchCounts streams the user's counts, starting with the current value.
func (s *Service) WatchCounts(ctx context.Context, userID string) (<-chan models.InboxCounts, func(), error) {
	b := s.counts.For(userID)
	if _, ok := b.Last(); !ok {
		c, err := s.Counts(ctx, userID)
		if err != nil {
			return nil, nil, err
		}
		b.Publish(c)
	}
	ch, cancel := b.Subscribe()
	return ch, cancel, nil
}

func (s *Service) publishCounts(ctx context.Context, userID string) {
	c, err := s.Counts(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to recompute inbox counts", map[string]interface{}{
			"userId": userID,
			"error":  err,
		})
		return
	}
	s.counts.Publish(userID, c)
}

// Groups lists the user's notification groups, newest first.
func (s *Service) Groups(ctx context.Context, userID string) ([]models.NotificationGroup, error) {
	all, err := s.store.List(ctx, userID, models.NotificationFilter{})
	if err != nil {
		return nil, err
	}
	return grouping.Build(all), nil
}

// Group returns the group keyed by (category, groupID), or nil.
func (s *Service) Group(ctx context.Context, userID string, category models.Category, groupID string) (*models.NotificationGroup, error) {
	all, err := s.store.List(ctx, userID, models.NotificationFilter{Categories: []models.Category{category}})
	if err != nil {
		return nil, err
	}
	return grouping.Find(all, category, groupID), nil
}

// HandleInteraction applies a tapped notification action.
func (s *Service) HandleInteraction(ctx context.Context, in channels.Interaction) error {
	switch in.ActionID {
	case channels.ActionDismiss:
		return s.DeleteNotification(ctx, in.UserID, in.NotificationID)

	case channels.ActionView, "":
		n, err := s.store.Get(ctx, in.UserID, in.NotificationID)
		if err != nil {
			return err
		}
		if n == nil {
			return nil
		}
		if err := s.MarkAsRead(ctx, in.UserID, n.ID); err != nil {
			return err
		}
		if s.navigator == nil || n.ActionURL == "" {
			return nil
		}
		return s.navigator.Navigate(ctx, in.UserID, n.ActionURL, navigationParams(n))

	default:
		s.logger.Debug("ignoring unknown notification action", map[string]interface{}{
			"actionId":       in.ActionID,
			"notificationId": in.NotificationID,
		})
		return nil
	}
}

func navigationParams(n *models.Notification) map[string]string {
	params := make(map[string]string, len(n.Data)+1)
	for k, v := range n.Data {
		params[k] = fmt.Sprint(v)
	}
	params["notificationId"] = n.ID
	return params
}

// Run consumes the local surface's interactions until ctx ends.
func (s *Service) Run(ctx context.Context) {
	if s.surface == nil {
		return
	}
	interactions := s.surface.Interactions()
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-interactions:
			if !ok {
				return
			}
			if err := s.HandleInteraction(ctx, in); err != nil {
				s.logger.Error("failed to handle notification interaction", map[string]interface{}{
					"userId":         in.UserID,
					"notificationId": in.NotificationID,
					"actionId":       in.ActionID,
					"error":          err,
				})
			}
		}
	}
}

func (s *Service) Close() {
	s.counts.Close()
}
