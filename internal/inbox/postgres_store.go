package inbox

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/models"

	"github.com/lib/pq"
)

const (
	notificationColumns = `id, user_id, category, title, body, data, created_at, is_read, action_url, priority, group_id, hints`

	insertNotificationQuery = `INSERT INTO notifications (` + notificationColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO NOTHING`
	selectNotificationQuery = `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1 AND id = $2`
	markReadQuery           = `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND id = $2`
	markAllReadQuery        = `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`
	deleteNotificationQuery = `DELETE FROM notifications WHERE user_id = $1 AND id = $2`
	deleteAllQuery          = `DELETE FROM notifications WHERE user_id = $1`
)

// PostgresStore keeps the inbox in the notifications table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, n models.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return errors.NewQueryExecutionFailedError("encode notification data", err)
	}
	hints, err := json.Marshal(n.Hints)
	if err != nil {
		return errors.NewQueryExecutionFailedError("encode notification hints", err)
	}

	_, err = s.db.ExecContext(ctx, insertNotificationQuery,
		n.ID, n.UserID, string(n.Category), n.Title, n.Body, data,
		n.Timestamp, n.IsRead, n.ActionURL, string(n.Priority), n.GroupID, hints,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("insert notification", err)
	}
	return nil
}

// listQuery builds the filtered select. Placeholders are numbered in the
// order args are appended.
func listQuery(userID string, f models.NotificationFilter) (string, []interface{}) {
	var b strings.Builder
	args := []interface{}{userID}
	b.WriteString(`SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`)

	if len(f.Categories) > 0 {
		cats := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			cats[i] = string(c)
		}
		args = append(args, pq.Array(cats))
		fmt.Fprintf(&b, " AND category = ANY($%d)", len(args))
	}
	if f.IsRead != nil {
		args = append(args, *f.IsRead)
		fmt.Fprintf(&b, " AND is_read = $%d", len(args))
	}
	if f.Priority != "" {
		args = append(args, string(f.Priority))
		fmt.Fprintf(&b, " AND priority = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		fmt.Fprintf(&b, " AND created_at >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		fmt.Fprintf(&b, " AND created_at <= $%d", len(args))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	return b.String(), args
}

func (s *PostgresStore) List(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, error) {
	query, args := listQuery(userID, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list notifications", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan notification", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list notifications", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := scanNotification(s.db.QueryRowContext(ctx, selectNotificationQuery, userID, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("select notification", err)
	}
	return n, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, userID, id string) error {
	return s.exec(ctx, "mark notification read", markReadQuery, userID, id)
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, userID string) error {
	return s.exec(ctx, "mark all notifications read", markAllReadQuery, userID)
}

func (s *PostgresStore) Delete(ctx context.Context, userID, id string) error {
	return s.exec(ctx, "delete notification", deleteNotificationQuery, userID, id)
}

func (s *PostgresStore) DeleteAll(ctx context.Context, userID string) error {
	return s.exec(ctx, "delete notifications", deleteAllQuery, userID)
}

func (s *PostgresStore) exec(ctx context.Context, op, query string, args ...interface{}) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.NewQueryExecutionFailedError(op, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row scanner) (*models.Notification, error) {
	var (
		n                  models.Notification
		category, priority string
		data, hints        []byte
		actionURL, groupID sql.NullString
	)
	err := row.Scan(&n.ID, &n.UserID, &category, &n.Title, &n.Body, &data,
		&n.Timestamp, &n.IsRead, &actionURL, &priority, &groupID, &hints)
	if err != nil {
		return nil, err
	}
	n.Category = models.Category(category)
	n.Priority = models.Priority(priority)
	n.ActionURL = actionURL.String
	n.GroupID = groupID.String
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, err
		}
	}
	if len(hints) > 0 {
		if err := json.Unmarshal(hints, &n.Hints); err != nil {
			return nil, err
		}
	}
	return &n, nil
}
