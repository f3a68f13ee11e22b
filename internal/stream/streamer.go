package stream

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"secondpilot/internal/core"
	"secondpilot/internal/llmclient"
)

const (
	// DefaultURL is the chat completion endpoint.
	DefaultURL = "https://copilot-proxy.githubusercontent.com/v1/chat/completions"
	// DefaultUserAgent is sent with every completion request.
	DefaultUserAgent = "GithubCopilot/1.86.92"
)

// Config configures a Streamer. Empty fields take the defaults above.
type Config struct {
	URL        string
	UserAgent  string
	HTTPClient *http.Client
	Hooks      llmclient.Hooks
	// SessionID is sent as Vscode-Sessionid when set
	SessionID string
}

// Streamer executes completion requests and reduces their event streams.
// It keeps no state between calls.
type Streamer struct {
	client    *llmclient.Client
	userAgent string
	sessionID string
}

// NewStreamer creates a Streamer.
func NewStreamer(cfg Config) *Streamer {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	s := &Streamer{
		userAgent: cfg.UserAgent,
		sessionID: cfg.SessionID,
	}
	s.client = llmclient.NewWithHTTPClient(cfg.HTTPClient, llmclient.Config{
		Endpoint:  "completion",
		URL:       cfg.URL,
		ErrorType: core.ErrorTypeTransport,
		Hooks:     cfg.Hooks,
	}, s.setHeaders)
	return s
}

func (s *Streamer) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/event-stream")
	if s.sessionID != "" {
		req.Header.Set("Vscode-Sessionid", s.sessionID)
	}
}

// Stream sends req authorized with the session token and returns the
// concatenated delta content of the response stream.
//
// Errors: transport errors when the request fails, the status is not 2xx or
// the stream breaks off; encoding errors when the body is not UTF-8.
// Cancelling ctx aborts the connection and discards what was received.
// The X-Request-Id header is taken from ctx (core.WithRequestID) or generated.
func (s *Streamer) Stream(ctx context.Context, token string, req *core.CompletionRequest) (string, error) {
	requestID := core.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	body, err := s.client.DoStream(ctx, llmclient.Request{
		Method: http.MethodPost,
		Body:   req,
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"X-Request-Id":  requestID,
		},
	})
	if err != nil {
		return "", err
	}
	defer func() {
		_ = body.Close()
	}()

	return Reduce(body, s.client.Hooks().OnStreamChunk)
}
