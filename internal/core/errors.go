// Package core provides core types and errors shared by the token manager,
// the completion streamer and the client facade.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the kind of failure that occurred
type ErrorType string

const (
	// ErrorTypeAuth indicates the credential could not be exchanged for a session token
	ErrorTypeAuth ErrorType = "auth_error"
	// ErrorTypeTransport indicates the completion request failed to send, got a
	// non-success status, or the stream ended abnormally
	ErrorTypeTransport ErrorType = "transport_error"
	// ErrorTypeEncoding indicates the stream carried bytes that are not valid UTF-8
	ErrorTypeEncoding ErrorType = "encoding_error"
)

// ClientError is the error type returned by every operation of the client.
type ClientError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
	Endpoint   string    `json:"endpoint,omitempty"`
	// Original error for debugging
	Err error `json:"-"`
}

// Error implements the error interface
func (e *ClientError) Error() string {
	var b strings.Builder
	if e.Endpoint != "" {
		fmt.Fprintf(&b, "[%s] ", e.Endpoint)
	}
	b.WriteString(string(e.Type))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	return b.String()
}

// Unwrap implements the error unwrapping interface
func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewAuthError creates an error for a failed token exchange.
func NewAuthError(message string, err error) *ClientError {
	return &ClientError{
		Type:    ErrorTypeAuth,
		Message: message,
		Err:     err,
	}
}

// NewTransportError creates an error for a failed completion request or stream.
func NewTransportError(message string, err error) *ClientError {
	return &ClientError{
		Type:    ErrorTypeTransport,
		Message: message,
		Err:     err,
	}
}

// NewEncodingError creates an error for stream bytes that are not valid text.
func NewEncodingError(message string, err error) *ClientError {
	return &ClientError{
		Type:    ErrorTypeEncoding,
		Message: message,
		Err:     err,
	}
}

// ParseUpstreamError builds a ClientError of the given type from a non-success
// response. The message is taken from a GitHub style {"message": ...} body or an
// OpenAI style {"error": {"message": ...}} body, falling back to the raw body.
func ParseUpstreamError(errType ErrorType, endpoint string, statusCode int, body []byte) *ClientError {
	var errorResponse struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}

	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errorResponse); err == nil {
		switch {
		case errorResponse.Error.Message != "":
			message = errorResponse.Error.Message
		case errorResponse.Message != "":
			message = errorResponse.Message
		}
	}
	if message == "" {
		message = "upstream returned a non-success status"
	}

	return &ClientError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCode,
		Endpoint:   endpoint,
	}
}

// ErrorTypeOf returns the type of the first ClientError in err's chain, or "".
func ErrorTypeOf(err error) ErrorType {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type
	}
	return ""
}

// IsAuthError reports whether err is (or wraps) an auth error.
func IsAuthError(err error) bool { return ErrorTypeOf(err) == ErrorTypeAuth }

// IsTransportError reports whether err is (or wraps) a transport error.
func IsTransportError(err error) bool { return ErrorTypeOf(err) == ErrorTypeTransport }

// IsEncodingError reports whether err is (or wraps) an encoding error.
func IsEncodingError(err error) bool { return ErrorTypeOf(err) == ErrorTypeEncoding }
