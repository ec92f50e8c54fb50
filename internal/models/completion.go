package models

// ChatRole is the role of a message sent to a model provider
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one prior turn passed to a provider.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// CompletionRequest is a single call to a generative model: a system
// instruction, prior turns, the new user text and sampling limits.
type CompletionRequest struct {
	System      string
	History     []ChatMessage
	Prompt      string
	Temperature float32
	MaxTokens   int
	// NoFailover keeps the call on the current provider. A failure still
	// counts toward switching, but the next provider only serves later calls.
	NoFailover bool
}
