package api

import (
	"html/template"
	"net/http"

	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/emaillog"
	"bookverse-notifications/internal/preferences"
)

var unsubscribedPage = template.Must(template.New("unsubscribed").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>BookVerse</title></head>
<body style="font-family: Arial, sans-serif; text-align: center; padding: 40px;">
<h1>{{.Title}}</h1><p>{{.Message}}</p>
</body></html>`))

type emailHandler struct {
	emails *emaillog.Log
	prefs  *preferences.Service
	logger logger.Logger
}

func (h *emailHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := user(w, r)
	if !ok {
		return
	}
	stats, err := h.emails.Stats(r.Context(), userID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Unsubscribe answers the footer link with a page, not JSON.
func (h *emailHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	token := r.URL.Query().Get("token")

	page := struct{ Title, Message string }{
		Title:   "You have been unsubscribed",
		Message: "You will no longer receive BookVerse emails. You can turn them back on in the app.",
	}
	status := http.StatusOK

	if userID == "" || token == "" {
		status = http.StatusBadRequest
		page.Title, page.Message = "Invalid link", "This unsubscribe link is incomplete."
	} else if res := h.prefs.Unsubscribe(r.Context(), userID, token); !res.Success {
		h.logger.Warn("unsubscribe rejected", map[string]interface{}{"userId": userID, "error": res.ErrorMessage()})
		status = statusFor(codeOf(res.Error))
		page.Title, page.Message = "Invalid link", "This unsubscribe link is not valid anymore."
	} else {
		h.logger.Info("user unsubscribed from email", map[string]interface{}{"userId": userID})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	unsubscribedPage.Execute(w, page)
}
