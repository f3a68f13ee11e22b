package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// acceptEncoding is advertised on requests that do not set their own.
const acceptEncoding = "gzip, br"

// DecodingTransport asks for compressed responses and decodes gzip and br
// bodies as streams, so SSE bodies stay incremental.
type DecodingTransport struct {
	next http.RoundTripper
}

// NewDecodingTransport wraps next. A nil next uses http.DefaultTransport.
func NewDecodingTransport(next http.RoundTripper) *DecodingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &DecodingTransport{next: next}
}

// RoundTrip implements http.RoundTripper.
func (t *DecodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") != "" {
		return t.next.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	req.Header.Set("Accept-Encoding", acceptEncoding)

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		resp.Body = &gzipBody{src: resp.Body}
	case "br":
		resp.Body = &decodedBody{Reader: brotli.NewReader(resp.Body), src: resp.Body}
	default:
		return resp, nil
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

// decodedBody reads through a decoder and closes the underlying body.
type decodedBody struct {
	io.Reader
	src io.ReadCloser
}

func (b *decodedBody) Close() error {
	return b.src.Close()
}

// gzipBody defers creating the gzip reader until the first Read, because
// gzip.NewReader blocks on the header and a stream may not have sent it yet.
type gzipBody struct {
	src io.ReadCloser
	zr  *gzip.Reader
	err error
}

func (b *gzipBody) Read(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.zr == nil {
		zr, err := gzip.NewReader(b.src)
		if err != nil {
			b.err = err
			return 0, err
		}
		b.zr = zr
	}
	return b.zr.Read(p)
}

func (b *gzipBody) Close() error {
	return b.src.Close()
}
