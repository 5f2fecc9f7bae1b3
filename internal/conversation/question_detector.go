package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
)

// QuestionIntentDetector decides whether a message is a question for the
// bot rather than an answer. Rule-based fast path first; the model is only
// consulted when the heuristics cannot tell.
type QuestionIntentDetector interface {
	IsQuestion(ctx context.Context, message string) (bool, error)
}

// Word-count bounds for the heuristic's own confidence. Very short
// marker-free messages are answers; very long ones are almost always
// answers too. Between the two, ask the model.
const (
	shortAnswerMaxWords = 4
	longAnswerMinWords  = 25
)

var questionOpeners = []string{
	"what", "how", "where", "when", "why", "who", "which",
	"do you", "does", "can you", "could you", "would you",
	"is it", "is there", "are there", "are you",
	"tell me about", "whats", "what's", "hows", "how's",
}

const questionIntentPrompt = `A prospect is chatting with a coffee supplier's assistant. Is the prospect's message a question directed at the assistant, or an answer/statement?

Message: %s

Respond with JSON only: {"is_question": true|false}`

// RuleBasedQuestionDetector layers keyword/punctuation heuristics over an
// optional LLM escalation path. With a nil client, ambiguous messages are
// treated as answers.
type RuleBasedQuestionDetector struct {
	client llm.Client
	model  string
}

func NewRuleBasedQuestionDetector(client llm.Client, model string) *RuleBasedQuestionDetector {
	return &RuleBasedQuestionDetector{client: client, model: model}
}

func (d *RuleBasedQuestionDetector) IsQuestion(ctx context.Context, message string) (bool, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return false, nil
	}
	lower := strings.ToLower(trimmed)

	if strings.Contains(trimmed, "?") {
		return true, nil
	}
	for _, opener := range questionOpeners {
		if lower == opener || strings.HasPrefix(lower, opener+" ") {
			return true, nil
		}
	}

	words := len(strings.Fields(lower))
	if words <= shortAnswerMaxWords || words >= longAnswerMinWords {
		return false, nil
	}

	if d.client == nil {
		return false, nil
	}
	resp, err := d.client.Complete(ctx, llm.Request{
		Model:     d.model,
		Messages:  []llm.ChatMessage{{Role: llm.RoleUser, Content: fmt.Sprintf(questionIntentPrompt, trimmed)}},
		MaxTokens: 20,
	})
	if err != nil {
		return false, err
	}
	var result struct {
		IsQuestion bool `json:"is_question"`
	}
	if !decodeJSONObject(resp.Text, &result) {
		return false, nil
	}
	return result.IsQuestion, nil
}
