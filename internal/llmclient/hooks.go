package llmclient

import "time"

// Hooks receives events from the client, the token manager and the streamer.
// Implementations must be safe for concurrent use and must not block.
type Hooks interface {
	// OnRequest is called once per HTTP exchange. statusCode is 0 when the
	// request could not be sent.
	OnRequest(endpoint string, statusCode int, duration time.Duration)

	// OnTokenRefresh is called after a new session token replaced the cached one.
	OnTokenRefresh(expiresAt int64)

	// OnStreamChunk is called for every chunk read from a completion stream.
	OnStreamChunk(bytes int)
}

// NopHooks ignores every event.
type NopHooks struct{}

func (NopHooks) OnRequest(string, int, time.Duration) {}
func (NopHooks) OnTokenRefresh(int64)                 {}
func (NopHooks) OnStreamChunk(int)                    {}
