package conversation

import (
	"context"
	"fmt"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
)

// FlowDetection is a structured flow-state verdict.
type FlowDetection struct {
	State     FlowState
	Reasoning string
}

// FlowDetector classifies how the latest message relates to the
// conversation: continuing, wanting out, refusing contact info, or asking a
// question. The prompt carries the bot's previous question so a bare "no"
// is read against what was actually asked.
type FlowDetector interface {
	DetectFlow(ctx context.Context, message, lastBotQuestion string, history []llm.ChatMessage) (FlowDetection, error)
}

const flowDetectorPrompt = `You classify a prospect's reply in a conversation with a coffee supplier's assistant.

The assistant's previous message was:
%s

The prospect replied: %s

Classify the reply as exactly one of:
- continuing: answering, engaging, or moving the conversation along (including a "no" that answers the question asked)
- wants_to_exit: asking to stop, slow down, or not be sold to right now
- refuses_contact_info: declining to share a phone number or email (only when the assistant was asking for one)
- asking_question: asking the assistant a question instead of answering

A "no" only means refuses_contact_info when the assistant was asking for contact details. A "no" to any other question is continuing.

Recent conversation:
%s

Respond with JSON only: {"flow_state": "continuing|wants_to_exit|refuses_contact_info|asking_question", "reasoning": "<one sentence>"}`

// LLMFlowDetector implements FlowDetector with one classification call.
type LLMFlowDetector struct {
	client llm.Client
	model  string
}

func NewLLMFlowDetector(client llm.Client, model string) *LLMFlowDetector {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &LLMFlowDetector{client: client, model: model}
}

func (d *LLMFlowDetector) DetectFlow(ctx context.Context, message, lastBotQuestion string, history []llm.ChatMessage) (FlowDetection, error) {
	if lastBotQuestion == "" {
		lastBotQuestion = "(no previous question)"
	}
	prompt := fmt.Sprintf(flowDetectorPrompt, lastBotQuestion, message, renderRecentHistory(history, 6))

	resp, err := d.client.Complete(ctx, llm.Request{
		Model:     d.model,
		Messages:  []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: 100,
	})
	if err != nil {
		return FlowDetection{State: FlowContinuing}, err
	}

	var result struct {
		FlowState string `json:"flow_state"`
		Reasoning string `json:"reasoning"`
	}
	if !decodeJSONObject(resp.Text, &result) {
		return FlowDetection{State: FlowContinuing}, nil
	}

	switch FlowState(result.FlowState) {
	case FlowContinuing, FlowWantsToExit, FlowRefusesContact, FlowAskingQuestion:
		return FlowDetection{State: FlowState(result.FlowState), Reasoning: result.Reasoning}, nil
	default:
		return FlowDetection{State: FlowContinuing, Reasoning: result.Reasoning}, nil
	}
}
