package conversation

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is the provider-neutral turn shape sent to an LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient is the only surface the hint classifier needs from a provider.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// toChat converts transcript entries into LLM turns, dropping anything that
// is not a user or assistant message.
func toChat(history []Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Role != ChatRoleUser && m.Role != ChatRoleAssistant {
			continue
		}
		out = append(out, ChatMessage{Role: m.Role, Content: m.Text})
	}
	return out
}
