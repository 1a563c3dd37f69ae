package preferences

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/models"
)

const (
	selectPreferencesQuery = `SELECT document FROM notification_preferences WHERE user_id = $1`
	upsertPreferencesQuery = `INSERT INTO notification_preferences (user_id, document, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()`
)

// PostgresRepository stores each document as one JSONB row.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, selectPreferencesQuery, userID).Scan(&raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewPreferencesNotFoundError(userID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("select preferences", err)
	}

	var doc models.NotificationPreferences
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.NewQueryExecutionFailedError("decode preferences", err)
	}
	return &doc, nil
}

func (r *PostgresRepository) Save(ctx context.Context, userID string, prefs *models.NotificationPreferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return errors.NewQueryExecutionFailedError("encode preferences", err)
	}
	if _, err := r.db.ExecContext(ctx, upsertPreferencesQuery, userID, raw); err != nil {
		return errors.NewQueryExecutionFailedError("upsert preferences", err)
	}
	return nil
}
