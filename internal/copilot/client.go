// Package copilot is the caller-facing client: it joins the token manager and
// the completion streamer. Neither of them knows about the other.
package copilot

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"secondpilot/internal/core"
	"secondpilot/internal/httpclient"
	"secondpilot/internal/llmclient"
	"secondpilot/internal/stream"
	"secondpilot/internal/token"
)

// Options configures a Client. The zero value talks to the production
// endpoints with the default request parameters.
type Options struct {
	TokenURL        string
	TokenUserAgent  string
	TokenAuthScheme string

	CompletionURL       string
	CompletionUserAgent string

	// Defaults is applied to requests built by QuerySimple
	Defaults core.RequestOptions

	HTTPClient *http.Client
	Hooks      llmclient.Hooks

	// State is the token cache; nil gives the client its own
	State *token.State
}

// Client streams chat completions with a transparently refreshed session token.
// The client exclusively owns its token cache.
type Client struct {
	tokens   *token.Manager
	streamer *stream.Streamer
	defaults core.RequestOptions
}

// New creates a Client for credential.
func New(credential string, opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpclient.NewDefaultHTTPClient()
	}
	return &Client{
		tokens: token.NewManager(credential, opts.State, token.Config{
			URL:        opts.TokenURL,
			UserAgent:  opts.TokenUserAgent,
			AuthScheme: opts.TokenAuthScheme,
			HTTPClient: opts.HTTPClient,
			Hooks:      opts.Hooks,
		}),
		streamer: stream.NewStreamer(stream.Config{
			URL:        opts.CompletionURL,
			UserAgent:  opts.CompletionUserAgent,
			HTTPClient: opts.HTTPClient,
			Hooks:      opts.Hooks,
			SessionID:  uuid.NewString(),
		}),
		defaults: opts.Defaults,
	}
}

// FetchToken performs one token exchange and returns the full descriptor.
// It does not update the cached token.
func (c *Client) FetchToken(ctx context.Context) (*core.TokenResponse, error) {
	return c.tokens.Fetch(ctx)
}

// ValidToken returns a currently valid session token.
func (c *Client) ValidToken(ctx context.Context) (string, error) {
	return c.tokens.ValidToken(ctx)
}

// QuerySimple sends text as a single user message with the default parameters.
func (c *Client) QuerySimple(ctx context.Context, text string) (string, error) {
	req := core.NewCompletionRequest([]core.ChatMessage{core.UserMessage(text)}, c.defaults)
	return c.Query(ctx, req)
}

// Query sends req and returns the assembled answer.
func (c *Client) Query(ctx context.Context, req *core.CompletionRequest) (string, error) {
	tok, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return "", err
	}
	return c.streamer.Stream(ctx, tok, req)
}
