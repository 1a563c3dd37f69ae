package engine

import (
	"context"

	"bookverse-notifications/internal/channels"
	"bookverse-notifications/internal/preferences"
)

// SyncTokens applies token events from the push transport to the owners'
// preferences until ctx ends or the transport closes its stream.
func (e *Engine) SyncTokens(ctx context.Context) {
	if e.deps.Push == nil {
		return
	}
	events := e.deps.Push.TokenRefreshes()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.applyTokenEvent(ctx, ev)
		}
	}
}

func (e *Engine) applyTokenEvent(ctx context.Context, ev channels.TokenEvent) {
	if ev.UserID == "" || ev.Token == "" {
		return
	}
	var res preferences.Result
	action := "registered"
	if ev.Revoked {
		res = e.deps.Preferences.RemoveDeviceTokenFor(ctx, ev.UserID, ev.Token)
		action = "removed"
	} else {
		res = e.deps.Preferences.RegisterDeviceTokenFor(ctx, ev.UserID, ev.Token)
	}
	if !res.Success {
		e.logger.Warn("device token sync failed", map[string]interface{}{
			"userId": ev.UserID,
			"action": action,
			"error":  res.ErrorMessage(),
		})
		return
	}
	e.logger.Info("device token "+action, map[string]interface{}{"userId": ev.UserID})
}
