package conversation

import (
	"context"
	"fmt"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var responseTracer = otel.Tracer("cafeai.internal.conversation.response")

// ResponseBuilder issues the single outward-facing completion per turn.
// This is the one call whose failure propagates to the caller; every other
// LLM call in the engine degrades to a default, but there is no fallback
// source for the reply text itself.
type ResponseBuilder struct {
	client   llm.Client
	composer *PromptComposer
	model    string
	logger   *logging.Logger
}

func NewResponseBuilder(client llm.Client, model string, logger *logging.Logger) *ResponseBuilder {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ResponseBuilder{
		client:   client,
		composer: NewPromptComposer(),
		model:    model,
		logger:   logger,
	}
}

// Respond generates the reply for a turn. extraContext carries optional
// RAG excerpts or redirect instructions into the system prompt.
func (b *ResponseBuilder) Respond(ctx context.Context, s *State, userMessage string, history []llm.ChatMessage, extraContext string) (string, error) {
	ctx, span := responseTracer.Start(ctx, "conversation.respond")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.stage", string(s.IntentStage)),
		attribute.String("conversation.customer_type", string(s.CustomerType)),
	)

	system, messages := b.composer.Compose(s, history, userMessage, extraContext)
	resp, err := b.client.Complete(ctx, llm.Request{
		Model:       b.model,
		System:      system,
		Messages:    messages,
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("conversation: response generation failed: %w", err)
	}
	b.logger.Debug("response generated",
		"stage", string(s.IntentStage),
		"tokens", resp.Usage.TotalTokens,
	)
	return resp.Text, nil
}
