package identity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"bookverse-notifications/internal/common/auth"
	"bookverse-notifications/internal/common/errors"

	"github.com/DATA-DOG/go-sqlmock"
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

type mockUsers struct {
	GetUserFunc func(ctx context.Context, userID string) (*auth.User, error)
}

func (m *mockUsers) GetUser(ctx context.Context, userID string) (*auth.User, error) {
	return m.GetUserFunc(ctx, userID)
}

func next(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("no identity change")
		return ""
	}
}

// ==========================
// Providers
// ==========================

func TestSession_LoginLogout(t *testing.T) {
	s := NewSession()
	ctx := context.Background()

	_, ok := s.CurrentIdentity(ctx)
	assert.False(t, ok)

	changes, cancel := s.Subscribe()
	defer cancel()

	s.Login("reader-1")
	assert.Equal(t, "reader-1", next(t, changes))
	id, ok := s.CurrentIdentity(ctx)
	assert.True(t, ok)
	assert.Equal(t, "reader-1", id)

	s.Login("reader-1") // no duplicate emission
	s.Logout()
	assert.Equal(t, "", next(t, changes))
	_, ok = s.CurrentIdentity(ctx)
	assert.False(t, ok)
}

func TestSession_ConcurrentLoginsAgreeWithStream(t *testing.T) {
	for i := 0; i < 200; i++ {
		s := NewSession()
		var wg sync.WaitGroup
		for _, user := range []string{"reader-a", "reader-b", "reader-c"} {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				s.Login(user)
			}(user)
		}
		wg.Wait()

		current, ok := s.CurrentIdentity(context.Background())
		require.True(t, ok)
		last, ok := s.changes.Last()
		require.True(t, ok)
		require.Equal(t, current, last, "iteration %d", i)
	}
}

func TestSession_LoginWithToken(t *testing.T) {
	s := NewSession()
	v := &mockValidator{ValidateTokenFunc: func(_ context.Context, token string) (*auth.TokenInfo, error) {
		if token == "good" {
			return &auth.TokenInfo{Active: true, Sub: "reader-9"}, nil
		}
		return nil, errors.NewAuthenticationError("inactive")
	}}

	id, err := s.LoginWithToken(context.Background(), v, "good")
	require.NoError(t, err)
	assert.Equal(t, "reader-9", id)

	_, err = s.LoginWithToken(context.Background(), v, "bad")
	require.Error(t, err)
	current, _ := s.CurrentIdentity(context.Background())
	assert.Equal(t, "reader-9", current)
}

func TestRequestScoped(t *testing.T) {
	var p Provider = RequestScoped{}

	_, ok := p.CurrentIdentity(context.Background())
	assert.False(t, ok)

	id, ok := p.CurrentIdentity(WithUser(context.Background(), "u-42"))
	assert.True(t, ok)
	assert.Equal(t, "u-42", id)

	_, ok = p.CurrentIdentity(WithUser(context.Background(), ""))
	assert.False(t, ok)

	ch, cancel := p.Subscribe()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

// ==========================
// Directories
// ==========================

func TestKeycloakDirectory(t *testing.T) {
	d := NewKeycloakDirectory(&mockUsers{GetUserFunc: func(_ context.Context, id string) (*auth.User, error) {
		switch id {
		case "u1":
			return &auth.User{ID: id, Email: "u1@bookverse.app", Enabled: true}, nil
		case "disabled":
			return &auth.User{ID: id, Email: "x@bookverse.app", Enabled: false}, nil
		}
		return nil, fmt.Errorf("keycloak down")
	}})

	email, err := d.EmailAddress(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@bookverse.app", email)

	_, err = d.EmailAddress(context.Background(), "disabled")
	assert.True(t, errors.HasCode(err, errors.ErrCodeRecipientNotFound))

	_, err = d.EmailAddress(context.Background(), "other")
	assert.Error(t, err)
}

func TestPostgresDirectory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT email FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("u1@bookverse.app"))
	mock.ExpectQuery(`SELECT email FROM users WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"email"}))

	d := NewPostgresDirectory(db)

	email, err := d.EmailAddress(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@bookverse.app", email)

	_, err = d.EmailAddress(context.Background(), "ghost")
	assert.True(t, errors.HasCode(err, errors.ErrCodeRecipientNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaticDirectory(t *testing.T) {
	d := StaticDirectory{"u1": "u1@bookverse.app"}
	email, err := d.EmailAddress(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@bookverse.app", email)

	_, err = d.EmailAddress(context.Background(), "u2")
	assert.Error(t, err)
}
