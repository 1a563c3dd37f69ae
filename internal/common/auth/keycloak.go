// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"bookverse-notifications/internal/common/errors"
	commonhttp "bookverse-notifications/internal/common/http"
)

// KeycloakClient resolves bearer tokens and user records against a realm.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *commonhttp.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// User represents a user in Keycloak.
type User struct {
	ID            string `json:"id,omitempty"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Username      string `json:"username"`
	Enabled       bool   `json:"enabled"`
	EmailVerified bool   `json:"emailVerified"`
}

// TokenResponse holds the response from Keycloak's token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// TokenInfo holds the fields we read from the introspection endpoint.
type TokenInfo struct {
	Active   bool   `json:"active"`
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Exp      int64  `json:"exp,omitempty"`
	Sub      string `json:"sub,omitempty"` // user ID
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   commonhttp.NewClient(30 * time.Second),
	}
}

// serviceToken returns a client-credentials token, cached until expiry.
func (k *KeycloakClient) serviceToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && k.tokenExpiry.After(time.Now()) {
		return k.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequest(http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("keycloak token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	k.accessToken = tokenResp.AccessToken
	// refresh a little early so an in-flight request never carries a stale token
	k.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - 5*time.Second)
	return k.accessToken, nil
}

// GetUser retrieves a user by their unique ID.
func (k *KeycloakClient) GetUser(ctx context.Context, userID string) (*User, error) {
	token, err := k.serviceToken(ctx)
	if err != nil {
		return nil, errors.NewExternalServiceError("keycloak", err)
	}

	userURL := fmt.Sprintf("%s/admin/realms/%s/users/%s", k.baseURL, k.realm, url.PathEscape(userID))
	req, err := http.NewRequest(http.MethodGet, userURL, nil)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := k.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return nil, errors.NewExternalServiceError("keycloak", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NewRecipientNotFoundError(userID)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, &errors.StandardError{
			Code:      "KEYCLOAK_API_ERROR",
			Message:   "Keycloak API error during user retrieval",
			Details:   string(body),
			Retryable: isTransientHTTPError(resp.StatusCode),
			Timestamp: time.Now().UTC(),
		}
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, &errors.StandardError{
			Code:      "DESERIALIZATION_ERROR",
			Message:   "Failed to decode user details",
			Details:   err.Error(),
			Timestamp: time.Now().UTC(),
		}
	}
	return &user, nil
}

// ValidateToken checks that an access token is active and returns its claims.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	introspectURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequest(http.MethodPost, introspectURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return nil, errors.NewExternalServiceError("keycloak", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewExternalServiceError("keycloak",
			fmt.Errorf("introspection returned status %d", resp.StatusCode))
	}

	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, &errors.StandardError{
			Code:      "DESERIALIZATION_ERROR",
			Message:   "Failed to decode token introspection response",
			Details:   err.Error(),
			Timestamp: time.Now().UTC(),
		}
	}

	if !info.Active || info.Sub == "" {
		return nil, errors.NewAuthenticationError("token is expired, revoked or malformed")
	}
	return &info, nil
}

func isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
