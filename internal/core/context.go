package core

import "context"

type contextKey string

const requestIDKey contextKey = "request-id"

// WithRequestID attaches the id a completion request is sent with.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the id attached with WithRequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
