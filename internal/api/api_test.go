package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"bookverse-notifications/internal/channels"
	"bookverse-notifications/internal/common/auth"
	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/emaillog"
	"bookverse-notifications/internal/identity"
	"bookverse-notifications/internal/inbox"
	"bookverse-notifications/internal/models"
	"bookverse-notifications/internal/preferences"
	"bookverse-notifications/internal/realtime"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type mockValidator struct {
	ValidateTokenFunc func(ctx context.Context, token string) (*auth.TokenInfo, error)
}

func (m *mockValidator) ValidateToken(ctx context.Context, token string) (*auth.TokenInfo, error) {
	return m.ValidateTokenFunc(ctx, token)
}

// tokens maps bearer tokens to user ids.
func tokens(valid map[string]string) *mockValidator {
	return &mockValidator{ValidateTokenFunc: func(_ context.Context, token string) (*auth.TokenInfo, error) {
		if sub, ok := valid[token]; ok {
			return &auth.TokenInfo{Active: true, Sub: sub}, nil
		}
		return nil, errors.NewAuthenticationError("inactive token")
	}}
}

type fixture struct {
	server *httptest.Server
	prefs  *preferences.Service
	inbox  *inbox.Service
	emails *emaillog.MemoryStore
	hub    *realtime.Hub
}

func newFixture(t *testing.T, checks map[string]HealthCheck) *fixture {
	log := logger.NewTestLogger(t)
	ctx, cancel := context.WithCancel(context.Background())

	prefs, err := preferences.NewService(preferences.NewMemoryRepository(), identity.RequestScoped{}, log)
	require.NoError(t, err)

	hub := realtime.NewHub(nil, log)
	go hub.Run(ctx)

	store := emaillog.NewMemoryStore()
	f := &fixture{
		prefs:  prefs,
		inbox:  inbox.NewService(inbox.NewMemoryStore(), hub, hub, log),
		emails: store,
		hub:    hub,
	}
	emails := emaillog.NewLog(store, nil, 3, nil, log)

	router := NewRouter(Options{
		Preferences: prefs,
		Inbox:       f.inbox,
		Emails:      emails,
		Hub:         hub,
		Tokens:      tokens(map[string]string{"good": "reader-1", "other": "reader-2"}),
		Checks:      checks,
	}, log)
	f.server = httptest.NewServer(router.Setup())

	t.Cleanup(func() {
		f.server.Close()
		cancel()
		f.inbox.Close()
		prefs.Close()
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, token, body string) (*http.Response, Response) {
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out Response
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func decode(t *testing.T, data interface{}, dst interface{}) {
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

func (f *fixture) seed(t *testing.T, userID string, ns ...models.Notification) {
	for _, n := range ns {
		n.UserID = userID
		require.NoError(t, f.inbox.Record(context.Background(), n))
	}
}

// ==========================
// Auth and health
// ==========================

func TestAuth_RequiresBearer(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodGet, "/v1/preferences", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, string(errors.ErrCodeNoAuthenticatedUser), body.Error.Code)

	resp, _ = f.do(t, http.MethodGet, "/v1/preferences", "expired", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return stderrors.New("connection refused") },
	})

	resp, _ := f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var health healthResponse
	decode(t, body.Data, &health)
	assert.Equal(t, "ok", health.Checks["postgres"])
	assert.Equal(t, "connection refused", health.Checks["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// ==========================
// Preferences
// ==========================

func TestPreferences_GetCreatesDefaults(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodGet, "/v1/preferences", "good", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc models.NotificationPreferences
	decode(t, body.Data, &doc)
	assert.True(t, doc.GlobalEnabled)
	assert.Len(t, doc.Categories, len(models.AllCategories))
}

func TestPreferences_PatchAndCategory(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodPatch, "/v1/preferences", "good", `{"quietHours":{"enabled":true}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)

	resp, body = f.do(t, http.MethodPut, "/v1/preferences/categories/clubInvite", "good", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc models.NotificationPreferences
	decode(t, body.Data, &doc)
	assert.True(t, doc.QuietHours.Enabled)
	assert.False(t, doc.Categories[models.CategoryClubInvite].Enabled)
	assert.True(t, doc.Categories[models.CategoryNewFollower].Enabled)
}

func TestPreferences_ValidationFailureIs400(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodPatch, "/v1/preferences", "good", `{"quietHours":{"startTime":"25:00"}}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(errors.ErrCodeValidationFailed), body.Error.Code)
}

func TestPreferences_UnknownCategoryIs400(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodPut, "/v1/preferences/categories/pirateMessage", "good", `{"enabled":false}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(errors.ErrCodeUnknownCategory), body.Error.Code)
}

func TestPreferences_DeviceTokensAreIdempotent(t *testing.T) {
	f := newFixture(t, nil)

	f.do(t, http.MethodPost, "/v1/preferences/device-tokens", "good", `{"token":"tok-1"}`)
	_, body := f.do(t, http.MethodPost, "/v1/preferences/device-tokens", "good", `{"token":"tok-1"}`)

	var doc models.NotificationPreferences
	decode(t, body.Data, &doc)
	assert.Equal(t, []string{"tok-1"}, doc.DeviceTokens)

	resp, body := f.do(t, http.MethodDelete, "/v1/preferences/device-tokens/tok-1", "good", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, body.Data, &doc)
	assert.Empty(t, doc.DeviceTokens)
}

// ==========================
// Notifications
// ==========================

func TestNotifications_ListFiltersAndScopesByUser(t *testing.T) {
	f := newFixture(t, nil)
	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	f.seed(t, "reader-1",
		models.Notification{ID: "n-1", Category: models.CategoryNewFollower, Priority: models.PriorityNormal, Timestamp: base},
		models.Notification{ID: "n-2", Category: models.CategoryClubInvite, Priority: models.PriorityHigh, Timestamp: base.Add(time.Minute)},
		models.Notification{ID: "n-3", Category: models.CategoryNewFollower, Priority: models.PriorityHigh, Timestamp: base.Add(2 * time.Minute), IsRead: true},
	)
	f.seed(t, "reader-2", models.Notification{ID: "x-1", Category: models.CategoryNewFollower, Timestamp: base})

	_, body := f.do(t, http.MethodGet, "/v1/notifications", "good", "")
	var list []models.Notification
	decode(t, body.Data, &list)
	require.Len(t, list, 3)
	assert.Equal(t, "n-3", list[0].ID, "newest first")

	_, body = f.do(t, http.MethodGet, "/v1/notifications?category=newFollower&isRead=false", "good", "")
	decode(t, body.Data, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "n-1", list[0].ID)

	from := url.QueryEscape(base.Add(30 * time.Second).Format(time.RFC3339))
	_, body = f.do(t, http.MethodGet, "/v1/notifications?priority=high&from="+from, "good", "")
	decode(t, body.Data, &list)
	assert.Len(t, list, 2)
}

func TestNotifications_BadFilter(t *testing.T) {
	f := newFixture(t, nil)

	for _, q := range []string{"category=pirate", "isRead=maybe", "priority=urgent", "from=yesterday"} {
		resp, _ := f.do(t, http.MethodGet, "/v1/notifications?"+q, "good", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestNotifications_ReadDeleteAndClear(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "reader-1",
		models.Notification{ID: "n-1", Category: models.CategoryNewFollower, Timestamp: time.Now()},
		models.Notification{ID: "n-2", Category: models.CategoryClubInvite, Timestamp: time.Now()},
	)

	_, body := f.do(t, http.MethodPost, "/v1/notifications/n-1/read", "good", "")
	var counts models.InboxCounts
	decode(t, body.Data, &counts)
	assert.Equal(t, 2, counts.Total)
	assert.Equal(t, 1, counts.Unread)

	resp, body := f.do(t, http.MethodDelete, "/v1/notifications/missing", "good", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, "deleting an unknown id is a no-op")
	decode(t, body.Data, &counts)
	assert.Equal(t, 2, counts.Total)

	_, body = f.do(t, http.MethodPost, "/v1/notifications/read-all", "good", "")
	decode(t, body.Data, &counts)
	assert.Zero(t, counts.Unread)

	_, body = f.do(t, http.MethodDelete, "/v1/notifications", "good", "")
	decode(t, body.Data, &counts)
	assert.Zero(t, counts.Total)
}

func TestNotifications_DismissAction(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "reader-1", models.Notification{ID: "n-1", Category: models.CategoryNewFollower, Timestamp: time.Now()})

	resp, body := f.do(t, http.MethodPost, "/v1/notifications/n-1/actions/"+channels.ActionDismiss, "good", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var counts models.InboxCounts
	decode(t, body.Data, &counts)
	assert.Zero(t, counts.Total)
}

// ==========================
// Email
// ==========================

func TestEmail_Stats(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.emails.Insert(context.Background(), &models.EmailMessage{
		ID: "m-1", UserID: "reader-1", Category: models.CategoryNewFollower, Status: models.EmailOpened, Timestamp: time.Now(),
	}))

	_, body := f.do(t, http.MethodGet, "/v1/email/stats", "good", "")

	var stats models.EmailStats
	decode(t, body.Data, &stats)
	assert.Equal(t, 1, stats.TotalSent)
	assert.Equal(t, 1, stats.Opened)
}

func TestEmail_UnsubscribeNeedsValidToken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, err := f.prefs.Preferences(ctx, "reader-1")
	require.NoError(t, err)
	token := doc.EmailSettings.UnsubscribeToken

	resp, _ := f.do(t, http.MethodGet, "/v1/email/unsubscribe?user=reader-1&token=forged", "", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/v1/email/unsubscribe?user=reader-1", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/v1/email/unsubscribe?user=reader-1&token="+url.QueryEscape(token), "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	doc, err = f.prefs.Preferences(ctx, "reader-1")
	require.NoError(t, err)
	assert.Equal(t, models.DigestNever, doc.EmailSettings.DigestFrequency)
	assert.False(t, doc.Categories[models.CategoryNewFollower].Delivery.Email)
}

// ==========================
// Stream
// ==========================

func TestStream_PushesPreferencesAndCounts(t *testing.T) {
	f := newFixture(t, nil)
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/stream?access_token=good"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	seen := map[string]bool{}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(seen) < 2 {
		var ev struct {
			Type string `json:"type"`
		}
		require.NoError(t, conn.ReadJSON(&ev))
		seen[ev.Type] = true
	}
	assert.True(t, seen[realtime.EventPreferences])
	assert.True(t, seen[realtime.EventCounts])
}

func TestStream_RejectsWithoutToken(t *testing.T) {
	f := newFixture(t, nil)
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/stream"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
