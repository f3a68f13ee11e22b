// Package llmclient provides the base HTTP client used by the token manager
// and the completion streamer:
// - Request marshaling/unmarshaling
// - Standardized error parsing into typed client errors
// - Streaming responses handed back as an io.ReadCloser
// - Observability hooks
//
// Every request is attempted exactly once.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"secondpilot/internal/core"
	"secondpilot/internal/httpclient"
)

// Config holds configuration for the client
type Config struct {
	// Endpoint names the remote endpoint in errors and hooks (e.g. "token")
	Endpoint string

	// URL is the absolute URL every request is sent to
	URL string

	// ErrorType is the kind of error reported for any failure of this client
	ErrorType core.ErrorType

	// Hooks receives request outcomes. Nil means no hooks.
	Hooks Hooks
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is a base HTTP client for one remote endpoint
type Client struct {
	httpClient   *http.Client
	config       Config
	headerSetter HeaderSetter
}

// NewWithHTTPClient creates a client for one endpoint.
// If httpClient is nil, a default client is created.
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	if httpClient == nil {
		httpClient = httpclient.NewDefaultHTTPClient()
	}
	if config.Hooks == nil {
		config.Hooks = NopHooks{}
	}
	if config.ErrorType == "" {
		config.ErrorType = core.ErrorTypeTransport
	}
	return &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}
}

// Hooks returns the hooks this client reports to. Never nil.
func (c *Client) Hooks() Hooks {
	return c.config.Hooks
}

// Request represents an HTTP request to be made
type Request struct {
	Method  string
	Body    interface{} // Will be JSON marshaled if not nil
	Headers map[string]string
}

// Do executes a request once, then unmarshals a 2xx response into result
func (c *Client) Do(ctx context.Context, req Request, result interface{}) error {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.config.Hooks.OnRequest(c.config.Endpoint, 0, time.Since(start))
		return c.newError("failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	c.config.Hooks.OnRequest(c.config.Endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return c.newError("failed to read response: "+err.Error(), err)
	}

	if !isSuccess(resp.StatusCode) {
		return core.ParseUpstreamError(c.config.ErrorType, c.config.Endpoint, resp.StatusCode, body)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return c.newError("failed to unmarshal response: "+err.Error(), err)
		}
	}

	return nil
}

// DoStream executes a streaming request, returning the body of a 2xx response.
// On a non-success status the body is drained into the error and closed, so
// the caller never sees bytes from a failed response.
func (c *Client) DoStream(ctx context.Context, req Request) (io.ReadCloser, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.config.Hooks.OnRequest(c.config.Endpoint, 0, time.Since(start))
		return nil, c.newError("failed to send request: "+err.Error(), err)
	}
	c.config.Hooks.OnRequest(c.config.Endpoint, resp.StatusCode, time.Since(start))

	if !isSuccess(resp.StatusCode) {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			respBody = []byte("failed to read error response")
		}
		_ = resp.Body.Close()
		return nil, core.ParseUpstreamError(c.config.ErrorType, c.config.Endpoint, resp.StatusCode, respBody)
	}

	return resp.Body, nil
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, c.newError("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.config.URL, bodyReader)
	if err != nil {
		return nil, c.newError("failed to create request", err)
	}

	// Set default content type for requests with body
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	// Apply endpoint-specific headers
	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	// Apply request-specific headers
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

func (c *Client) newError(message string, err error) *core.ClientError {
	return &core.ClientError{
		Type:     c.config.ErrorType,
		Message:  message,
		Endpoint: c.config.Endpoint,
		Err:      err,
	}
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
