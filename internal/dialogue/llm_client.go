package dialogue

import "context"

// Roles understood by every provider adapter. A ChatRoleSystem message inside Messages is
// folded into the provider's system slot.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMRequest is one completion call. System is the clinic prompt; an empty Model lets
// the adapter use the model it was built with. A negative Temperature keeps the provider
// default.
type LLMRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
}

type LLMResponse struct {
	Text         string
	InputTokens  int32
	OutputTokens int32
	StopReason   string
}

// LLMClient is a single chat-completion backend.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
