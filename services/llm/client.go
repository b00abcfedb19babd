package llm

import "context"

// Message is one turn of a chat exchange in provider-neutral form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams carries per-call sampling settings. Pointer fields
// distinguish "unset" from an explicit zero.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any decision backend.
type LLMClient interface {
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)

	// Model returns the backend model identifier this client targets.
	Model() string
}
