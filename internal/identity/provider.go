// Package identity resolves the user a preference or inbox operation acts
// for, and the address an email for that user goes to.
package identity

import (
	"context"
	"sync"

	"bookverse-notifications/internal/common/auth"
	"bookverse-notifications/internal/common/stream"
)

// Provider yields the current user. Subscribe emits the new user id on every
// identity change; "" means logged out.
type Provider interface {
	CurrentIdentity(ctx context.Context) (string, bool)
	Subscribe() (<-chan string, func())
}

// TokenValidator is satisfied by *auth.KeycloakClient.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.TokenInfo, error)
}

// ==========================
// Session
// ==========================

// Session is a process-wide identity: one user at a time, as on a device.
type Session struct {
	mu      sync.RWMutex
	current string
	changes *stream.Broadcaster[string]
}

func NewSession() *Session {
	return &Session{changes: stream.NewBroadcaster[string]()}
}

func (s *Session) CurrentIdentity(context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != ""
}

func (s *Session) Subscribe() (<-chan string, func()) {
	return s.changes.Subscribe()
}

// Login switches the session to userID. Logging in as the current user is a
// no-op. The change is published under the lock so the stream's last value
// always matches CurrentIdentity.
func (s *Session) Login(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == userID {
		return
	}
	s.current = userID
	s.changes.Publish(userID)
}

func (s *Session) Logout() {
	s.Login("")
}

// LoginWithToken validates a bearer token and logs in as its subject.
func (s *Session) LoginWithToken(ctx context.Context, v TokenValidator, token string) (string, error) {
	info, err := v.ValidateToken(ctx, token)
	if err != nil {
		return "", err
	}
	s.Login(info.Sub)
	return info.Sub, nil
}

// ==========================
// Request scoped
// ==========================

type ctxKey struct{}

// WithUser returns a context carrying userID for RequestScoped.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserFromContext returns the user set by WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// RequestScoped reads the identity from the context. Workers and the HTTP
// API set it per job or request, so it never emits changes.
type RequestScoped struct{}

func (RequestScoped) CurrentIdentity(ctx context.Context) (string, bool) {
	return UserFromContext(ctx)
}

func (RequestScoped) Subscribe() (<-chan string, func()) {
	ch := make(chan string)
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }
}
