package api

import (
	"context"
	"net/http"

	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/inbox"
	"bookverse-notifications/internal/preferences"
	"bookverse-notifications/internal/realtime"
)

type streamHandler struct {
	hub    *realtime.Hub
	prefs  *preferences.Service
	inbox  *inbox.Service
	logger logger.Logger
}

// Serve upgrades to a websocket and follows the user's preferences and
// inbox counts until the client goes away.
func (h *streamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID, ok := user(w, r)
	if !ok {
		return
	}

	// the request context ends when this handler returns
	ctx, cancel := context.WithCancel(context.Background())

	prefs, stopPrefs, err := h.prefs.WatchUser(ctx, userID)
	if err != nil {
		cancel()
		writeFailure(w, err)
		return
	}
	counts, stopCounts, err := h.inbox.WatchCounts(ctx, userID)
	if err != nil {
		stopPrefs()
		cancel()
		writeFailure(w, err)
		return
	}

	client, err := h.hub.Serve(w, r, userID)
	if err != nil {
		stopPrefs()
		stopCounts()
		cancel()
		h.logger.Warn("websocket upgrade failed", map[string]interface{}{"userId": userID, "error": err})
		return
	}

	go realtime.Forward(h.hub, client, realtime.EventPreferences, prefs)
	go realtime.Forward(h.hub, client, realtime.EventCounts, counts)
	go func() {
		<-client.Done()
		stopPrefs()
		stopCounts()
		cancel()
	}()
}
