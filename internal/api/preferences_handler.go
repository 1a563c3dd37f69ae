package api

import (
	"encoding/json"
	"io"
	"net/http"

	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/models"
	"bookverse-notifications/internal/preferences"

	"github.com/go-chi/chi/v5"
)

const maxBodySize = 1 << 20

type preferencesHandler struct {
	prefs  *preferences.Service
	logger logger.Logger
}

func (h *preferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.reply(w, h.prefs.GetCurrentPreferences(r.Context()))
}

func (h *preferencesHandler) Patch(w http.ResponseWriter, r *http.Request) {
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	h.reply(w, h.prefs.ApplyJSONPatch(r.Context(), raw))
}

func (h *preferencesHandler) Replace(w http.ResponseWriter, r *http.Request) {
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	h.reply(w, h.prefs.ReplacePreferences(r.Context(), raw))
}

func (h *preferencesHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var patch preferences.CategoryPatch
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&patch); err != nil {
		badRequest(w, "invalid category patch: "+err.Error())
		return
	}
	category := models.Category(chi.URLParam(r, "category"))
	h.reply(w, h.prefs.UpdateCategoryPreference(r.Context(), category, patch))
}

type deviceTokenRequest struct {
	Token string `json:"token"`
}

func (h *preferencesHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	var req deviceTokenRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		badRequest(w, "invalid device token request")
		return
	}
	h.reply(w, h.prefs.RegisterDeviceToken(r.Context(), req.Token))
}

func (h *preferencesHandler) UnregisterToken(w http.ResponseWriter, r *http.Request) {
	h.reply(w, h.prefs.UnregisterDeviceToken(r.Context(), chi.URLParam(r, "token")))
}

func (h *preferencesHandler) reply(w http.ResponseWriter, res preferences.Result) {
	if !res.Success {
		writeFailure(w, res.Error)
		return
	}
	writeJSON(w, http.StatusOK, res.Preferences)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil || len(raw) == 0 {
		badRequest(w, "request body required")
		return nil, false
	}
	return raw, true
}
