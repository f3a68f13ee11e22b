package httpclient

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressGzip(data []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, _ = w.Write(data)
	_ = w.Close()
	return buf.Bytes()
}

func compressBrotli(data []byte) []byte {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, _ = w.Write(data)
	_ = w.Close()
	return buf.Bytes()
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_HTTP_DURATION", "15")
	assert.Equal(t, 15*time.Second, getEnvDuration("TEST_HTTP_DURATION", time.Second))

	t.Setenv("TEST_HTTP_DURATION", "2m")
	assert.Equal(t, 2*time.Minute, getEnvDuration("TEST_HTTP_DURATION", time.Second))

	t.Setenv("TEST_HTTP_DURATION", "garbage")
	assert.Equal(t, time.Second, getEnvDuration("TEST_HTTP_DURATION", time.Second))

	assert.Equal(t, 3*time.Second, getEnvDuration("TEST_HTTP_DURATION_UNSET", 3*time.Second))
}

func TestDefaultConfig_NoOverallTimeout(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "")
	cfg := DefaultConfig()
	assert.Zero(t, cfg.Timeout)
	assert.Equal(t, 600*time.Second, cfg.ResponseHeaderTimeout)
}

func TestDecodingTransport(t *testing.T) {
	payload := []byte("data: {\"choices\":[]}\n\n")

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{name: "identity", encoding: "", body: payload},
		{name: "gzip", encoding: "gzip", body: compressGzip(payload)},
		{name: "brotli", encoding: "br", body: compressBrotli(payload)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAccept string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAccept = r.Header.Get("Accept-Encoding")
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				_, _ = w.Write(tt.body)
			}))
			defer server.Close()

			client := NewHTTPClient(nil)
			resp, err := client.Get(server.URL)
			require.NoError(t, err)
			defer resp.Body.Close()

			got, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
			assert.Equal(t, acceptEncoding, gotAccept)
			assert.Empty(t, resp.Header.Get("Content-Encoding"))
		})
	}
}

func TestDecodingTransport_RespectsExplicitAcceptEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "identity", r.Header.Get("Accept-Encoding"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := NewHTTPClient(nil).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}
