package llm

import (
	"context"
	"encoding/json"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-neutral message representation shared by the
// outbound and inbound bots.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// ToolSpec describes a single function the model may call. Parameters is a
// JSON Schema object serialized as raw JSON so providers can pass it through
// without re-encoding.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is a structured function invocation returned by the model.
type ToolCall struct {
	Name      string
	Arguments string
}

type Request struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32

	// Tools, when non-empty, enables function calling. ForceTool names a
	// tool the model must call; empty means the model chooses.
	Tools     []ToolSpec
	ForceTool string
}

type Response struct {
	Text       string
	ToolCalls  []ToolCall
	Usage      TokenUsage
	StopReason string
}

// Client is the completion port every classifier, extractor, and response
// builder depends on. Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
