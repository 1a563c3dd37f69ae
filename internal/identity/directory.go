package identity

import (
	"context"
	"database/sql"
	stderrors "errors"

	"bookverse-notifications/internal/common/auth"
	"bookverse-notifications/internal/common/errors"
)

// Directory maps a user id to the address email notifications go to.
type Directory interface {
	EmailAddress(ctx context.Context, userID string) (string, error)
}

// UserLookup is satisfied by *auth.KeycloakClient.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*auth.User, error)
}

// KeycloakDirectory reads the email attribute of the Keycloak user.
type KeycloakDirectory struct {
	users UserLookup
}

func NewKeycloakDirectory(users UserLookup) *KeycloakDirectory {
	return &KeycloakDirectory{users: users}
}

func (d *KeycloakDirectory) EmailAddress(ctx context.Context, userID string) (string, error) {
	user, err := d.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Email == "" || !user.Enabled {
		return "", errors.NewRecipientNotFoundError(userID)
	}
	return user.Email, nil
}

// PostgresDirectory reads the users table of the application database.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) EmailAddress(ctx context.Context, userID string) (string, error) {
	var email sql.NullString
	err := d.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if stderrors.Is(err, sql.ErrNoRows) || (err == nil && email.String == "") {
		return "", errors.NewRecipientNotFoundError(userID)
	}
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("lookup recipient email", err)
	}
	return email.String, nil
}

// StaticDirectory is a fixed map, used when no user store is configured.
type StaticDirectory map[string]string

func (d StaticDirectory) EmailAddress(_ context.Context, userID string) (string, error) {
	if email, ok := d[userID]; ok && email != "" {
		return email, nil
	}
	return "", errors.NewRecipientNotFoundError(userID)
}
