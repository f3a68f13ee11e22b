package core

// Message roles understood by the completion endpoint.
const (
	RoleUser      = "user"
	RoleSystem    = "system"
	RoleAssistant = "assistant"
)

// Default request parameters used when RequestOptions leaves a field unset.
const (
	DefaultModel       = "idk"
	DefaultTemperature = float32(0.1)
	DefaultTopP        = 1
	DefaultN           = 1
)

// ChatMessage represents a single message in the conversation
type ChatMessage struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// UserMessage returns a message with the user role.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// SystemMessage returns a message with the system role.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// CompletionRequest is the JSON body sent to the completion endpoint.
// It is built once and never mutated by the client.
type CompletionRequest struct {
	Stream      bool          `json:"stream"`
	Intent      bool          `json:"intent"`
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature float32       `json:"temperature"`
	TopP        int           `json:"top_p"`
	N           int           `json:"n"`
}

// RequestOptions holds the optional parameters of a completion request.
// Nil fields take the defaults: stream=false, intent=false, model="idk",
// temperature=0.1, top_p=1, n=1.
type RequestOptions struct {
	Stream      *bool
	Intent      *bool
	Model       *string
	Temperature *float32
	TopP        *int
	N           *int
}

// NewCompletionRequest builds a request from messages and options.
// The messages slice is copied.
func NewCompletionRequest(messages []ChatMessage, opts RequestOptions) *CompletionRequest {
	req := &CompletionRequest{
		Messages:    append([]ChatMessage(nil), messages...),
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
		N:           DefaultN,
	}
	if req.Messages == nil {
		req.Messages = []ChatMessage{}
	}
	if opts.Stream != nil {
		req.Stream = *opts.Stream
	}
	if opts.Intent != nil {
		req.Intent = *opts.Intent
	}
	if opts.Model != nil {
		req.Model = *opts.Model
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.TopP != nil {
		req.TopP = *opts.TopP
	}
	if opts.N != nil {
		req.N = *opts.N
	}
	return req
}

// SessionToken is a short-lived token together with its expiry.
// Values are immutable; a refresh replaces the whole pair.
type SessionToken struct {
	Token string
	// ExpiresAt is in seconds since the Unix epoch
	ExpiresAt int64
}

// TokenResponse is the body returned by the token exchange endpoint.
// Only Token and ExpiresAt are required; the rest is passed through and
// always encoded, zero values included.
type TokenResponse struct {
	Token                string `json:"token"`
	ExpiresAt            int64  `json:"expires_at"`
	RefreshIn            int64  `json:"refresh_in"`
	ChatEnabled          bool   `json:"chat_enabled"`
	CodeQuoteEnabled     bool   `json:"code_quote_enabled"`
	CopilotIgnoreEnabled bool   `json:"copilotignore_enabled"`
	PublicSuggestions    string `json:"public_suggestions"`
	SKU                  string `json:"sku"`
	Telemetry            string `json:"telemetry"`
	TrackingID           string `json:"tracking_id"`
}

// SessionToken returns the token/expiry pair carried by the response.
func (r *TokenResponse) SessionToken() SessionToken {
	return SessionToken{Token: r.Token, ExpiresAt: r.ExpiresAt}
}

// Ptr returns a pointer to v. Handy for filling RequestOptions.
func Ptr[T any](v T) *T {
	return &v
}
