package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bookverse-notifications/internal/common/config"
	"bookverse-notifications/internal/common/database"
	"bookverse-notifications/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type indexed struct {
	path string
	body map[string]interface{}
}

func newElasticsearch(t *testing.T, status int) (*database.ElasticsearchClient, *[]indexed) {
	var mu sync.Mutex
	var got []indexed
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		got = append(got, indexed{path: r.URL.Path, body: body})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)
	return es, &got
}

func TestIndexer_Decision(t *testing.T) {
	es, got := newElasticsearch(t, http.StatusCreated)
	idx := NewIndexer(es, "notification-decisions", logger.NewTestLogger(t))

	idx.Decision(context.Background(), DecisionRecord{
		ID:        "n-1",
		UserID:    "reader-1",
		Category:  "newFollower",
		Outcome:   "delivered",
		Channels:  []string{"inApp", "push"},
		Timestamp: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	})

	require.Len(t, *got, 1)
	assert.Equal(t, "/notification-decisions/_doc/n-1", (*got)[0].path)
	assert.Equal(t, "delivered", (*got)[0].body["outcome"])
	assert.Equal(t, []interface{}{"inApp", "push"}, (*got)[0].body["channels"])
}

func TestIndexer_EmailEventKeyedByStatus(t *testing.T) {
	es, got := newElasticsearch(t, http.StatusCreated)
	idx := NewIndexer(es, "notification-decisions", logger.NewTestLogger(t))

	idx.EmailEvent(context.Background(), EmailEventRecord{MessageID: "m-1", Status: "opened"})

	require.Len(t, *got, 1)
	assert.Equal(t, "/notification-decisions-email/_doc/m-1:opened", (*got)[0].path)
}

func TestIndexer_FailuresAreSwallowed(t *testing.T) {
	es, got := newElasticsearch(t, http.StatusInternalServerError)
	idx := NewIndexer(es, "notification-decisions", logger.NewTestLogger(t))

	assert.NotPanics(t, func() {
		idx.Decision(context.Background(), DecisionRecord{ID: "n-1"})
	})
	assert.NotEmpty(t, *got)
}

func TestIndexer_NilIsNoop(t *testing.T) {
	var idx *Indexer
	assert.NotPanics(t, func() {
		idx.Decision(context.Background(), DecisionRecord{ID: "n-1"})
		idx.EmailEvent(context.Background(), EmailEventRecord{MessageID: "m-1"})
	})
}
