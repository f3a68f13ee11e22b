package token

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondpilot/internal/core"
	"secondpilot/internal/llmclient"
)

// tokenServer hands out tokens from a queue and counts requests.
type tokenServer struct {
	*httptest.Server
	calls   atomic.Int32
	mu      sync.Mutex
	replies []string
	status  int
	headers http.Header
}

func newTokenServer(t *testing.T, replies ...string) *tokenServer {
	t.Helper()
	ts := &tokenServer{replies: replies, status: http.StatusOK}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(ts.calls.Add(1))
		ts.mu.Lock()
		ts.headers = r.Header.Clone()
		status := ts.status
		reply := ts.replies[min(n, len(ts.replies))-1]
		ts.mu.Unlock()

		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, reply)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) setStatus(status int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.status = status
}

func (ts *tokenServer) header(key string) string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.headers.Get(key)
}

type fakeClock struct{ now atomic.Int64 }

func (c *fakeClock) Now() time.Time { return time.Unix(c.now.Load(), 0) }

func (c *fakeClock) Set(unix int64) { c.now.Store(unix) }

func newClock(unix int64) *fakeClock {
	c := &fakeClock{}
	c.Set(unix)
	return c
}

type refreshHooks struct {
	llmclient.NopHooks
	refreshes []int64
}

func (h *refreshHooks) OnTokenRefresh(expiresAt int64) { h.refreshes = append(h.refreshes, expiresAt) }

func TestValidToken_CachesUntilExpiry(t *testing.T) {
	srv := newTokenServer(t, `{"token":"T1","expires_at":2000}`)
	clock := newClock(1000)
	m := NewManager("ghu_secret", nil, Config{URL: srv.URL, Now: clock.Now})

	tok, err := m.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", tok)

	tok, err = m.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", tok)
	assert.EqualValues(t, 1, srv.calls.Load(), "second call must be served from cache")
}

func TestValidToken_RefreshesExpiredToken(t *testing.T) {
	srv := newTokenServer(t,
		`{"token":"T1","expires_at":500}`,
		`{"token":"T2","expires_at":5000}`,
	)
	clock := newClock(1000)
	state := NewState()
	hooks := &refreshHooks{}
	m := NewManager("ghu_secret", state, Config{URL: srv.URL, Now: clock.Now, Hooks: hooks})

	tok, err := m.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", tok)

	// T1 already expired at 500 < 1000, so exactly one more fetch happens
	tok, err = m.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T2", tok)
	assert.EqualValues(t, 2, srv.calls.Load())

	cached, ok := state.Load()
	require.True(t, ok)
	assert.Equal(t, core.SessionToken{Token: "T2", ExpiresAt: 5000}, cached)
	assert.Equal(t, []int64{500, 5000}, hooks.refreshes)

	_, err = m.ValidToken(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, srv.calls.Load())
}

func TestValidToken_ExpiryBoundary(t *testing.T) {
	tests := []struct {
		name      string
		now       int64
		wantCalls int32
	}{
		{name: "expires exactly now is still valid", now: 2000, wantCalls: 1},
		{name: "one second before expiry", now: 1999, wantCalls: 1},
		{name: "one second past expiry", now: 2001, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTokenServer(t, `{"token":"T","expires_at":2000}`)
			clock := newClock(1000)
			m := NewManager("cred", nil, Config{URL: srv.URL, Now: clock.Now})

			_, err := m.ValidToken(context.Background())
			require.NoError(t, err)

			clock.Set(tt.now)
			_, err = m.ValidToken(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, srv.calls.Load())
		})
	}
}

func TestValidToken_UsesExternallyOwnedState(t *testing.T) {
	srv := newTokenServer(t, `{"token":"fresh","expires_at":9999}`)
	state := NewState()
	state.Store(core.SessionToken{Token: "preloaded", ExpiresAt: 5000})
	m := NewManager("cred", state, Config{URL: srv.URL, Now: newClock(1000).Now})

	tok, err := m.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "preloaded", tok)
	assert.Zero(t, srv.calls.Load())
}

func TestValidToken_ZeroExpiryIsExpired(t *testing.T) {
	srv := newTokenServer(t, `{"token":"fresh","expires_at":9999}`)
	state := NewState()
	state.Store(core.SessionToken{Token: "initial"})
	m := NewManager("cred", state, Config{URL: srv.URL, Now: newClock(1000).Now})

	tok, err := m.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.EqualValues(t, 1, srv.calls.Load())
}

func TestFetch_SendsHeaders(t *testing.T) {
	srv := newTokenServer(t, `{"token":"T","expires_at":1,"sku":"monthly","tracking_id":"abc","chat_enabled":true}`)
	m := NewManager("ghu_secret", nil, Config{URL: srv.URL})

	resp, err := m.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer ghu_secret", srv.header("Authorization"))
	assert.Equal(t, DefaultUserAgent, srv.header("User-Agent"))
	assert.Equal(t, "monthly", resp.SKU)
	assert.Equal(t, "abc", resp.TrackingID)
	assert.True(t, resp.ChatEnabled)
}

func TestFetch_CustomAuthScheme(t *testing.T) {
	srv := newTokenServer(t, `{"token":"T","expires_at":1}`)
	m := NewManager("ghu_secret", nil, Config{URL: srv.URL, AuthScheme: "token", UserAgent: "test-agent"})

	_, err := m.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token ghu_secret", srv.header("Authorization"))
	assert.Equal(t, "test-agent", srv.header("User-Agent"))
}

func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"Bad credentials"}`},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "not json", status: http.StatusOK, body: `<html>`},
		{name: "missing token", status: http.StatusOK, body: `{"expires_at":100}`},
		{name: "missing expiry", status: http.StatusOK, body: `{"token":"T"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTokenServer(t, tt.body)
			srv.setStatus(tt.status)
			state := NewState()
			m := NewManager("cred", state, Config{URL: srv.URL})

			tok, err := m.ValidToken(context.Background())
			require.Error(t, err)
			assert.True(t, core.IsAuthError(err), "expected auth error, got %v", err)
			assert.Empty(t, tok)
			assert.EqualValues(t, 1, srv.calls.Load(), "no retries")

			_, ok := state.Load()
			assert.False(t, ok, "failed fetch must not touch the cache")
		})
	}
}

func TestFetch_MissingFieldErrorNamesEndpoint(t *testing.T) {
	srv := newTokenServer(t, `{"token":"T"}`)
	m := NewManager("cred", nil, Config{URL: srv.URL})

	_, err := m.Fetch(context.Background())
	require.Error(t, err)

	var clientErr *core.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, core.ErrorTypeAuth, clientErr.Type)
	assert.Equal(t, "token", clientErr.Endpoint)
	assert.Contains(t, clientErr.Message, "expires_at")
	assert.Equal(t, "[token] auth_error: token response is missing token or expires_at", err.Error())
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := NewManager("cred", nil, Config{URL: url})
	_, err := m.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsAuthError(err))
}

func TestValidToken_ConcurrentCallersSeeConsistentPairs(t *testing.T) {
	srv := newTokenServer(t, `{"token":"T","expires_at":9999}`)
	state := NewState()
	m := NewManager("cred", state, Config{URL: srv.URL, Now: newClock(1000).Now})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.ValidToken(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "T", tok)
		}()
	}
	wg.Wait()

	cached, ok := state.Load()
	require.True(t, ok)
	assert.Equal(t, core.SessionToken{Token: "T", ExpiresAt: 9999}, cached)
	// duplicate refreshes under a race are allowed, but never more than one per caller
	assert.LessOrEqual(t, srv.calls.Load(), int32(16))
}
