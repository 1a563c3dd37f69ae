package emaillog

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"sort"
	"sync"

	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/models"
)

// Store persists EmailMessages. Get returns a MESSAGE_NOT_FOUND error for
// unknown ids.
type Store interface {
	Insert(ctx context.Context, msg *models.EmailMessage) error
	Get(ctx context.Context, id string) (*models.EmailMessage, error)
	UpdateStatus(ctx context.Context, msg *models.EmailMessage) error
	ListByStatus(ctx context.Context, status models.EmailStatus) ([]models.EmailMessage, error)
	ListByUser(ctx context.Context, userID string) ([]models.EmailMessage, error)
}

type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]models.EmailMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]models.EmailMessage)}
}

func (s *MemoryStore) Insert(_ context.Context, msg *models.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[msg.ID] = *msg
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.EmailMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.byID[id]
	if !ok {
		return nil, errors.NewMessageNotFoundError(id)
	}
	return &msg, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, msg *models.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[msg.ID]
	if !ok {
		return errors.NewMessageNotFoundError(msg.ID)
	}
	cur.Status = msg.Status
	cur.Error = msg.Error
	cur.Retries = msg.Retries
	s.byID[msg.ID] = cur
	return nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, status models.EmailStatus) ([]models.EmailMessage, error) {
	return s.list(func(m models.EmailMessage) bool { return m.Status == status }), nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]models.EmailMessage, error) {
	return s.list(func(m models.EmailMessage) bool { return m.UserID == userID }), nil
}

func (s *MemoryStore) list(keep func(models.EmailMessage) bool) []models.EmailMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.EmailMessage{}
	for _, m := range s.byID {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

const (
	emailColumns = `id, user_id, recipient, subject, body, template_id, category, variables, created_at, status, error, retries`

	insertEmailQuery = `INSERT INTO email_messages (` + emailColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	selectEmailQuery       = `SELECT ` + emailColumns + ` FROM email_messages WHERE id = $1`
	updateEmailStatusQuery = `UPDATE email_messages SET status = $2, error = $3, retries = $4 WHERE id = $1`
	listEmailByStatusQuery = `SELECT ` + emailColumns + ` FROM email_messages WHERE status = $1 ORDER BY created_at`
	listEmailByUserQuery   = `SELECT ` + emailColumns + ` FROM email_messages WHERE user_id = $1 ORDER BY created_at`
)

// PostgresStore keeps the log in the email_messages table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, msg *models.EmailMessage) error {
	vars, err := json.Marshal(msg.Variables)
	if err != nil {
		return errors.NewQueryExecutionFailedError("encode email variables", err)
	}
	_, err = s.db.ExecContext(ctx, insertEmailQuery,
		msg.ID, msg.UserID, msg.Recipient, msg.Subject, msg.Body, msg.TemplateID,
		string(msg.Category), vars, msg.Timestamp, string(msg.Status), msg.Error, msg.Retries,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("insert email message", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.EmailMessage, error) {
	msg, err := scanEmail(s.db.QueryRowContext(ctx, selectEmailQuery, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewMessageNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("select email message", err)
	}
	return msg, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, msg *models.EmailMessage) error {
	res, err := s.db.ExecContext(ctx, updateEmailStatusQuery, msg.ID, string(msg.Status), msg.Error, msg.Retries)
	if err != nil {
		return errors.NewQueryExecutionFailedError("update email status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewMessageNotFoundError(msg.ID)
	}
	return nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.EmailStatus) ([]models.EmailMessage, error) {
	return s.query(ctx, listEmailByStatusQuery, string(status))
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]models.EmailMessage, error) {
	return s.query(ctx, listEmailByUserQuery, userID)
}

func (s *PostgresStore) query(ctx context.Context, query string, arg interface{}) ([]models.EmailMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list email messages", err)
	}
	defer rows.Close()

	out := []models.EmailMessage{}
	for rows.Next() {
		msg, err := scanEmail(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan email message", err)
		}
		out = append(out, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list email messages", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEmail(row scanner) (*models.EmailMessage, error) {
	var (
		msg               models.EmailMessage
		category, status  string
		templateID, fault sql.NullString
		vars              []byte
	)
	err := row.Scan(&msg.ID, &msg.UserID, &msg.Recipient, &msg.Subject, &msg.Body, &templateID,
		&category, &vars, &msg.Timestamp, &status, &fault, &msg.Retries)
	if err != nil {
		return nil, err
	}
	msg.TemplateID = templateID.String
	msg.Category = models.Category(category)
	msg.Status = models.EmailStatus(status)
	msg.Error = fault.String
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &msg.Variables); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}
