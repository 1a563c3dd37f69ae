// Package audit writes delivery decisions and email events to Elasticsearch.
// Indexing is best effort: failures are logged and never reach callers.
package audit

import (
	"context"
	"time"

	"bookverse-notifications/internal/common/logger"
)

const emailIndexSuffix = "-email"

// DocumentIndexer is satisfied by *database.ElasticsearchClient.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

type DecisionRecord struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId"`
	Category   string            `json:"category"`
	Outcome    string            `json:"outcome"`
	Channels   []string          `json:"channels"`
	Failures   map[string]string `json:"failures,omitempty"`
	GroupID    string            `json:"groupId,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	DurationMs int64             `json:"durationMs"`
}

type EmailEventRecord struct {
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Retries   int       `json:"retries"`
	Timestamp time.Time `json:"timestamp"`
}

// Indexer is nil-safe; a nil *Indexer discards everything.
type Indexer struct {
	es     DocumentIndexer
	index  string
	logger logger.Logger
}

func NewIndexer(es DocumentIndexer, index string, log logger.Logger) *Indexer {
	return &Indexer{es: es, index: index, logger: logger.Component(log, "audit")}
}

// Mappings used by EnsureIndex at startup.
const (
	DecisionMapping = `{"mappings":{"properties":{
"userId":{"type":"keyword"},"category":{"type":"keyword"},"outcome":{"type":"keyword"},
"channels":{"type":"keyword"},"groupId":{"type":"keyword"},"reason":{"type":"keyword"},
"timestamp":{"type":"date"},"durationMs":{"type":"long"}}}}`
	EmailEventMapping = `{"mappings":{"properties":{
"messageId":{"type":"keyword"},"userId":{"type":"keyword"},"category":{"type":"keyword"},
"status":{"type":"keyword"},"retries":{"type":"integer"},"timestamp":{"type":"date"}}}}`
)

func (i *Indexer) DecisionIndex() string { return i.index }

func (i *Indexer) EmailIndex() string { return i.index + emailIndexSuffix }

func (i *Indexer) Decision(ctx context.Context, rec DecisionRecord) {
	if i == nil || i.es == nil {
		return
	}
	i.write(ctx, i.DecisionIndex(), rec.ID, rec)
}

// EmailEvent documents are keyed by message and status so replays of the
// same callback overwrite instead of duplicating.
func (i *Indexer) EmailEvent(ctx context.Context, rec EmailEventRecord) {
	if i == nil || i.es == nil {
		return
	}
	i.write(ctx, i.EmailIndex(), rec.MessageID+":"+rec.Status, rec)
}

func (i *Indexer) write(ctx context.Context, index, id string, doc interface{}) {
	if err := i.es.IndexDocument(ctx, index, id, doc); err != nil {
		i.logger.Warn("audit write failed", map[string]interface{}{
			"index": index,
			"id":    id,
			"error": err,
		})
	}
}
