package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bookverse-notifications/internal/channels"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/identity"
	"bookverse-notifications/internal/inbox"
	"bookverse-notifications/internal/models"

	"github.com/go-chi/chi/v5"
)

type notificationsHandler struct {
	inbox  *inbox.Service
	logger logger.Logger
}

// user is set by Authenticate; the fallback guards routes mounted without it.
func user(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := identity.UserFromContext(r.Context())
	if !ok {
		unauthorized(w, "")
	}
	return userID, ok
}

func (h *notificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := user(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	list, err := h.inbox.GetNotifications(r.Context(), userID, filter)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *notificationsHandler) Counts(w http.ResponseWriter, r *http.Request) {
	userID, ok := user(w, r)
	if !ok {
		return
	}
	counts, err := h.inbox.Counts(r.Context(), userID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *notificationsHandler) Groups(w http.ResponseWriter, r *http.Request) {
	userID, ok := user(w, r)
	if !ok {
		return
	}
	groups, err := h.inbox.Groups(r.Context(), userID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *notificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(userID string) error {
		return h.inbox.MarkAsRead(r.Context(), userID, chi.URLParam(r, "id"))
	})
}

func (h *notificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(userID string) error {
		return h.inbox.MarkAllAsRead(r.Context(), userID)
	})
}

func (h *notificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(userID string) error {
		return h.inbox.DeleteNotification(r.Context(), userID, chi.URLParam(r, "id"))
	})
}

func (h *notificationsHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(userID string) error {
		return h.inbox.ClearAll(r.Context(), userID)
	})
}

func (h *notificationsHandler) Action(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(userID string) error {
		return h.inbox.HandleInteraction(r.Context(), channels.Interaction{
			UserID:         userID,
			NotificationID: chi.URLParam(r, "id"),
			ActionID:       chi.URLParam(r, "action"),
		})
	})
}

// mutate runs fn and replies with the counts it left behind.
func (h *notificationsHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(userID string) error) {
	userID, ok := user(w, r)
	if !ok {
		return
	}
	if err := fn(userID); err != nil {
		writeFailure(w, err)
		return
	}
	counts, err := h.inbox.Counts(r.Context(), userID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// parseFilter reads category (repeated or comma separated), isRead,
// priority and an RFC 3339 from/to range.
func parseFilter(q url.Values) (models.NotificationFilter, error) {
	var f models.NotificationFilter

	for _, raw := range q["category"] {
		for _, c := range strings.Split(raw, ",") {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if !models.Category(c).Valid() {
				return f, fmt.Errorf("unknown category %q", c)
			}
			f.Categories = append(f.Categories, models.Category(c))
		}
	}

	if v := q.Get("isRead"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("isRead must be a boolean")
		}
		f.IsRead = &b
	}

	if v := q.Get("priority"); v != "" {
		p := models.Priority(v)
		if !p.Valid() {
			return f, fmt.Errorf("unknown priority %q", v)
		}
		f.Priority = p
	}

	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%s must be RFC 3339", key)
		}
		*dst = &ts
	}
	return f, nil
}
