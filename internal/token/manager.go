// Package token exchanges a long-lived credential for a short-lived session
// token and keeps the latest one cached until it expires.
package token

import (
	"context"
	"net/http"
	"time"

	"secondpilot/internal/core"
	"secondpilot/internal/llmclient"
)

const (
	// DefaultURL is the token exchange endpoint.
	DefaultURL = "https://api.github.com/copilot_internal/v2/token"
	// DefaultUserAgent is sent with every token request.
	DefaultUserAgent = "GithubCopilot/3.99.99"
	// DefaultAuthScheme prefixes the credential in the Authorization header.
	DefaultAuthScheme = "Bearer"
)

// endpoint names the token exchange in errors and hooks.
const endpoint = "token"

// Config configures a Manager. Empty fields take the defaults above.
type Config struct {
	URL        string
	UserAgent  string
	AuthScheme string
	HTTPClient *http.Client
	Hooks      llmclient.Hooks
	// Now returns the current time; defaults to time.Now
	Now func() time.Time
}

// Manager produces valid session tokens, fetching a new one only when the
// cached one has expired.
type Manager struct {
	client     *llmclient.Client
	credential string
	userAgent  string
	authScheme string
	state      *State
	now        func() time.Time
}

// NewManager creates a Manager for credential that caches into state.
// A nil state gets a fresh, manager-owned State.
func NewManager(credential string, state *State, cfg Config) *Manager {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = DefaultAuthScheme
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if state == nil {
		state = NewState()
	}

	m := &Manager{
		credential: credential,
		userAgent:  cfg.UserAgent,
		authScheme: cfg.AuthScheme,
		state:      state,
		now:        cfg.Now,
	}
	m.client = llmclient.NewWithHTTPClient(cfg.HTTPClient, llmclient.Config{
		Endpoint:  endpoint,
		URL:       cfg.URL,
		ErrorType: core.ErrorTypeAuth,
		Hooks:     cfg.Hooks,
	}, m.setHeaders)
	return m
}

func (m *Manager) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Authorization", m.authScheme+" "+m.credential)
	req.Header.Set("Accept", "application/json")
}

// Fetch performs one token exchange. It does not touch the cache.
// Any failure, including a body without token or expires_at, is an auth error.
func (m *Manager) Fetch(ctx context.Context) (*core.TokenResponse, error) {
	var raw struct {
		core.TokenResponse
		// pointers tell a missing field apart from a zero value
		Token     *string `json:"token"`
		ExpiresAt *int64  `json:"expires_at"`
	}
	if err := m.client.Do(ctx, llmclient.Request{Method: http.MethodGet}, &raw); err != nil {
		return nil, err
	}
	if raw.Token == nil || raw.ExpiresAt == nil {
		err := core.NewAuthError("token response is missing token or expires_at", nil)
		err.Endpoint = endpoint
		return nil, err
	}

	resp := raw.TokenResponse
	resp.Token = *raw.Token
	resp.ExpiresAt = *raw.ExpiresAt
	return &resp, nil
}

// ValidToken returns the cached session token, fetching and caching a new one
// first if the cached one has expired or none was ever fetched.
//
// A token is expired when expires_at < now (seconds). A token whose expiry
// equals the current second is still returned as valid.
func (m *Manager) ValidToken(ctx context.Context) (string, error) {
	if cached, ok := m.state.Load(); ok && !m.expired(cached) {
		return cached.Token, nil
	}

	resp, err := m.Fetch(ctx)
	if err != nil {
		return "", err
	}

	fresh := resp.SessionToken()
	m.state.Store(fresh)
	m.client.Hooks().OnTokenRefresh(fresh.ExpiresAt)
	return fresh.Token, nil
}

func (m *Manager) expired(tok core.SessionToken) bool {
	return tok.ExpiresAt < m.now().Unix()
}
