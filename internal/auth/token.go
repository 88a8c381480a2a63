// Package auth manages the Schwab OAuth token lifecycle: the initial
// authorization-code exchange, automatic access-token refresh, and
// persistence of the token pair, optionally encrypted at rest.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "spx-orb-trader/internal/errors"
)

const (
	DefaultTokenURL     = "https://api.schwabapi.com/v1/oauth/token"
	DefaultAuthorizeURL = "https://api.schwabapi.com/v1/oauth/authorize"

	// Access tokens last 30 minutes; refresh a little early so a
	// request never goes out with a token about to lapse.
	refreshSkew = 5 * time.Minute

	// Refresh tokens are valid for 7 days from issuance, after which
	// the user has to run the login flow again.
	refreshTokenLifetime = 7 * 24 * time.Hour
)

// Token is the OAuth token pair plus the local timestamps needed to
// reason about expiry.
type Token struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	TokenType       string    `json:"token_type"`
	Scope           string    `json:"scope,omitempty"`
	ExpiresIn       int       `json:"expires_in"`
	ObtainedAt      time.Time `json:"obtained_at"`
	RefreshIssuedAt time.Time `json:"refresh_issued_at"`
}

// ExpiresAt returns when the access token lapses.
func (t *Token) ExpiresAt() time.Time {
	return t.ObtainedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Stale reports whether the access token needs a refresh before use.
func (t *Token) Stale(now time.Time) bool {
	return now.After(t.ExpiresAt().Add(-refreshSkew))
}

// RefreshExpired reports whether the refresh token itself has aged out
// and a full re-authorization is required.
func (t *Token) RefreshExpired(now time.Time) bool {
	return now.After(t.RefreshIssuedAt.Add(refreshTokenLifetime))
}

// Config holds the OAuth client settings.
type Config struct {
	AppKey      string
	AppSecret   string
	RedirectURI string
	TokenPath   string
	TokenURL    string
	Passphrase  string
	HTTPClient  *http.Client
}

// Manager owns the token pair. All methods are safe for concurrent
// use; refreshes are serialized so two callers never race the token
// endpoint.
type Manager struct {
	cfg    Config
	client *http.Client

	mu    sync.Mutex
	token *Token
}

// NewManager creates a token manager and loads any persisted token.
func NewManager(cfg Config) *Manager {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	m := &Manager{cfg: cfg, client: client}
	_ = m.load()
	return m
}

// AuthorizeURL returns the URL the user must visit to grant access.
func (m *Manager) AuthorizeURL() string {
	q := url.Values{}
	q.Set("client_id", m.cfg.AppKey)
	q.Set("redirect_uri", m.cfg.RedirectURI)
	q.Set("response_type", "code")
	return DefaultAuthorizeURL + "?" + q.Encode()
}

// ExchangeCode trades the authorization code from the OAuth redirect
// for a fresh token pair and persists it.
func (m *Manager) ExchangeCode(ctx context.Context, code string) error {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", m.cfg.RedirectURI)

	token, err := m.requestToken(ctx, form)
	if err != nil {
		return err
	}
	token.RefreshIssuedAt = token.ObtainedAt

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return m.save()
}

// Refresh obtains a new access token using the stored refresh token.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) error {
	if m.token == nil || m.token.RefreshToken == "" {
		return apperrors.ErrNotAuthenticated
	}
	if m.token.RefreshExpired(time.Now()) {
		return apperrors.Wrap(apperrors.ErrTokenExpired, "refresh token aged out, run 'auth login' again")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", m.token.RefreshToken)

	token, err := m.requestToken(ctx, form)
	if err != nil {
		return err
	}

	// Schwab usually echoes the same refresh token; a new one resets
	// the 7-day window.
	token.RefreshIssuedAt = m.token.RefreshIssuedAt
	switch token.RefreshToken {
	case "":
		token.RefreshToken = m.token.RefreshToken
	case m.token.RefreshToken:
	default:
		token.RefreshIssuedAt = token.ObtainedAt
	}

	m.token = token
	return m.save()
}

// AccessToken returns a valid bearer token, refreshing first when the
// cached one is stale.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == nil {
		return "", apperrors.ErrNotAuthenticated
	}
	if m.token.Stale(time.Now()) {
		if err := m.refreshLocked(ctx); err != nil {
			return "", err
		}
	}
	return m.token.AccessToken, nil
}

// IsAuthenticated reports whether a usable refresh token is on hand.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != nil && m.token.RefreshToken != "" && !m.token.RefreshExpired(time.Now())
}

// Current returns a copy of the stored token for status display.
func (m *Manager) Current() (Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return Token{}, false
	}
	return *m.token, true
}

// Logout drops the in-memory token and removes the persisted file.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = nil
	if err := os.Remove(m.cfg.TokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

func (m *Manager) requestToken(ctx context.Context, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(m.cfg.AppKey, m.cfg.AppSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrConnectionFailed, "token endpoint: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, apperrors.Wrap(apperrors.ErrInvalidCredentials, "token endpoint rejected client")
	case http.StatusBadRequest:
		return nil, apperrors.Wrapf(apperrors.ErrTokenExpired, "token endpoint: %s", strings.TrimSpace(string(body)))
	default:
		return nil, apperrors.NewBrokerError(fmt.Sprintf("HTTP_%d", resp.StatusCode), "token request failed", nil)
	}

	token := &Token{}
	if err := json.Unmarshal(body, token); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	token.ObtainedAt = time.Now()
	return token, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.cfg.TokenPath)
	if err != nil {
		return err
	}

	if m.cfg.Passphrase != "" && isSealed(data) {
		data, err = openTokenFile(data, m.cfg.Passphrase)
		if err != nil {
			return err
		}
	}

	token := &Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return err
	}
	m.token = token
	return nil
}

func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.token, "", "  ")
	if err != nil {
		return err
	}

	if m.cfg.Passphrase != "" {
		data, err = sealTokenFile(data, m.cfg.Passphrase)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(m.cfg.TokenPath), 0700); err != nil {
		return err
	}
	return os.WriteFile(m.cfg.TokenPath, data, 0600)
}
