package conversation

import (
	"context"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
)

// Turn is one prior exchange in the caller-supplied history.
type Turn struct {
	Role    string `json:"role"` // "user" or "bot"
	Content string `json:"content"`
}

// ProcessRequest is one inbound prospect message plus the conversation
// context the caller persisted after the previous turn.
type ProcessRequest struct {
	ConversationID string
	Message        string
	History        []Turn
	// State is the serialized ConversationState mapping from the caller's
	// store; nil starts a fresh conversation.
	State map[string]any
	// CountryHint is an optional ISO region for phone parsing.
	CountryHint string
}

// ProcessResult is the engine's answer for one turn. State carries the
// mutated mapping the caller must persist before the next turn.
type ProcessResult struct {
	Response  string
	ShouldEnd bool
	Qualified bool
	State     map[string]any
}

// Service is the per-turn interface the transport layer consumes.
type Service interface {
	ProcessMessage(ctx context.Context, req ProcessRequest) (ProcessResult, error)
}

// historyToMessages converts caller turns into LLM chat messages.
func historyToMessages(history []Turn) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(history))
	for _, t := range history {
		role := llm.RoleUser
		if t.Role == "bot" || t.Role == llm.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.ChatMessage{Role: role, Content: t.Content})
	}
	return out
}

// StubService returns a canned reply; used in tests and local bring-up.
type StubService struct{}

func (StubService) ProcessMessage(ctx context.Context, req ProcessRequest) (ProcessResult, error) {
	state := req.State
	if state == nil {
		state = NewState().ToMap()
	}
	return ProcessResult{
		Response: "Thanks for reaching out! One of our team will be right with you.",
		State:    state,
	}, nil
}
