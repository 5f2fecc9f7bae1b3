package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
)

// Confidence grades a classifier verdict. Only high confidence confirms a
// stage transition immediately; medium parks the conversation in
// interest_detected until a commitment signal shows up.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// TypeDetection is a structured customer-type verdict.
type TypeDetection struct {
	Type       CustomerType
	Confidence Confidence
	Reasoning  string
}

// TypeDetector classifies whether the prospect is opening a new café or
// runs one already. An interface so flow-control tests use a deterministic
// stub instead of a live model.
type TypeDetector interface {
	DetectType(ctx context.Context, message string, history []llm.ChatMessage) (TypeDetection, error)
}

const typeDetectorPrompt = `You classify messages from prospects talking to a specialty coffee supplier.

Decide whether the prospect is:
- new_cafe: planning or opening a new cafe (mentions opening, launching, starting, building out a shop)
- existing_cafe: already operating one or more cafes (mentions their current shop, current supplier, switching roasters)
- unclear: not enough signal either way

Rate your confidence high, medium, or low. Browsing or curiosity without a concrete plan is never high confidence.

Recent conversation:
%s

Latest message: %s

Respond with JSON only: {"customer_type": "new_cafe|existing_cafe|unclear", "confidence": "high|medium|low", "reasoning": "<one sentence>"}`

// LLMTypeDetector implements TypeDetector with a single classification call.
type LLMTypeDetector struct {
	client llm.Client
	model  string
}

func NewLLMTypeDetector(client llm.Client, model string) *LLMTypeDetector {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &LLMTypeDetector{client: client, model: model}
}

func (d *LLMTypeDetector) DetectType(ctx context.Context, message string, history []llm.ChatMessage) (TypeDetection, error) {
	prompt := fmt.Sprintf(typeDetectorPrompt, renderRecentHistory(history, 6), message)

	resp, err := d.client.Complete(ctx, llm.Request{
		Model:     d.model,
		Messages:  []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: 120,
	})
	if err != nil {
		return TypeDetection{Type: CustomerTypeUnknown, Confidence: ConfidenceLow}, err
	}

	var result struct {
		CustomerType string `json:"customer_type"`
		Confidence   string `json:"confidence"`
		Reasoning    string `json:"reasoning"`
	}
	if !decodeJSONObject(resp.Text, &result) {
		return TypeDetection{Type: CustomerTypeUnknown, Confidence: ConfidenceLow}, nil
	}

	detection := TypeDetection{
		Type:       CustomerTypeUnknown,
		Confidence: ConfidenceLow,
		Reasoning:  result.Reasoning,
	}
	switch result.CustomerType {
	case string(CustomerTypeNewCafe):
		detection.Type = CustomerTypeNewCafe
	case string(CustomerTypeExistingCafe):
		detection.Type = CustomerTypeExistingCafe
	}
	switch Confidence(result.Confidence) {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		detection.Confidence = Confidence(result.Confidence)
	}
	return detection, nil
}

// decodeJSONObject extracts the first {...} block from model output and
// unmarshals it. Models wrap JSON in prose often enough that plain
// unmarshalling is not reliable. Returns false on any parse failure.
func decodeJSONObject(content string, out any) bool {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(content[start:end+1]), out) == nil
}

// renderRecentHistory flattens the last n turns for classifier prompts.
func renderRecentHistory(history []llm.ChatMessage, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	if len(history) == 0 {
		return "(start of conversation)"
	}
	var sb strings.Builder
	for _, msg := range history {
		label := "Prospect"
		if msg.Role == llm.RoleAssistant {
			label = "Bot"
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, msg.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}
