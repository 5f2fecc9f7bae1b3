package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/observability/metrics"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/rag"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

var botTracer = otel.Tracer("cafeai.internal.inbound.bot")

// supportPersona is the fixed voice of the inbound support bot.
const supportPersona = "You are the support assistant for Abbotsford Road Coffee, a specialty wholesale roaster. You help cafe owners and staff with product, brewing, shipping, and account questions. Be warm, direct, and concrete. Answer only from the provided excerpts and general coffee knowledge; if you don't know, say so and offer to loop in the team. Never invent order details, pricing, or dates."

const greetingReply = "Hey! Thanks for reaching out to Abbotsford Road. What can I help you with today?"

const orderStatusReply = "I can't see live order tracking from here, but I've flagged this for the team and they'll follow up with your order status shortly. If you have your order number handy, reply with it and I'll pass it along."

const humanHandoffReply = "Of course. I've let the team know, and a real person will pick this up shortly. Anything you'd like me to pass along in the meantime?"

const complaintReply = "I'm really sorry about that, that's not the experience we want you to have. I've escalated this to the team as a priority and someone will be in touch soon to make it right."

const defaultTopK = 3

// Request is one inbound support message.
type Request struct {
	ConversationID string
	Message        string
	History        []llm.ChatMessage
	CustomerEmail  string
}

// Reply is the bot's answer plus routing metadata for the caller.
type Reply struct {
	Response  string
	Intent    Intent
	Escalated bool
}

// Bot is the transport-facing contract for the support assistant.
type Bot interface {
	Answer(ctx context.Context, req Request) (Reply, error)
}

// EscalationAlerter pushes a fresh escalation in front of a person, on
// top of the database record. Alert failures never reach the customer.
type EscalationAlerter interface {
	EscalationAlert(ctx context.Context, e *Escalation) error
}

// SupportBot answers product and logistics questions from the knowledge
// base and routes everything that needs a person to the escalation queue.
type SupportBot struct {
	client      llm.Client
	classifier  IntentClassifier
	retriever   rag.Retriever
	escalations EscalationStore
	alerts      EscalationAlerter
	metrics     *metrics.ConversationMetrics
	logger      *logging.Logger
	model       string
	topK        int
}

// SupportBotConfig collects the collaborators for NewSupportBot.
type SupportBotConfig struct {
	Client      llm.Client
	Classifier  IntentClassifier
	Retriever   rag.Retriever
	Escalations EscalationStore
	Alerts      EscalationAlerter
	Metrics     *metrics.ConversationMetrics
	Logger      *logging.Logger
	Model       string
}

func NewSupportBot(cfg SupportBotConfig) *SupportBot {
	if cfg.Client == nil {
		panic("inbound: llm client cannot be nil")
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewRuleBasedIntentClassifier(nil, "")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &SupportBot{
		client:      cfg.Client,
		classifier:  cfg.Classifier,
		retriever:   cfg.Retriever,
		escalations: cfg.Escalations,
		alerts:      cfg.Alerts,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		model:       cfg.Model,
		topK:        defaultTopK,
	}
}

// Answer handles one support turn. Escalation storage failures degrade to a
// logged warning; the customer still gets the hand-off reply.
func (b *SupportBot) Answer(ctx context.Context, req Request) (Reply, error) {
	ctx, span := botTracer.Start(ctx, "inbound.answer")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", req.ConversationID))

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Reply{Response: greetingReply, Intent: IntentGreeting}, nil
	}

	intent, err := b.classifier.Classify(ctx, message)
	if err != nil {
		b.metrics.ObserveClassifierError("inbound_intent")
		b.logger.Warn("intent classification degraded", "error", err.Error())
		intent = IntentQuestion
	}
	span.SetAttributes(attribute.String("inbound.intent", string(intent)))

	switch intent {
	case IntentGreeting:
		return Reply{Response: greetingReply, Intent: intent}, nil
	case IntentComplaint:
		return b.escalate(ctx, req, intent, complaintReply), nil
	case IntentOrderStatus:
		return b.escalate(ctx, req, intent, orderStatusReply), nil
	case IntentHuman:
		return b.escalate(ctx, req, intent, humanHandoffReply), nil
	}

	return b.answerQuestion(ctx, req, message)
}

// escalate records the hand-off and words the reply; the record failing to
// persist never blocks the customer-facing answer.
func (b *SupportBot) escalate(ctx context.Context, req Request, intent Intent, reply string) Reply {
	e := newEscalation(intent, req.ConversationID, req.CustomerEmail, req.Message)
	if b.escalations != nil {
		if err := b.escalations.Create(ctx, e); err != nil {
			b.logger.Error("escalation not persisted",
				"conversation_id", req.ConversationID,
				"error", err.Error(),
			)
		}
	}
	if b.alerts != nil {
		if err := b.alerts.EscalationAlert(ctx, e); err != nil {
			b.logger.Error("escalation alert failed",
				"conversation_id", req.ConversationID,
				"error", err.Error(),
			)
		}
	}
	return Reply{Response: reply, Intent: intent, Escalated: true}
}

// answerQuestion runs the knowledge-base path.
func (b *SupportBot) answerQuestion(ctx context.Context, req Request, message string) (Reply, error) {
	system := []string{supportPersona}
	if b.retriever != nil {
		results, err := b.retriever.Retrieve(ctx, message, b.topK)
		if err != nil {
			b.metrics.ObserveClassifierError("inbound_retriever")
			b.logger.Warn("retrieval degraded", "error", err.Error())
		} else if block := rag.FormatContext(results); block != "" {
			system = append(system, block)
		}
	}

	history := req.History
	if len(history) > 8 {
		history = history[len(history)-8:]
	}
	messages := make([]llm.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: message})

	resp, err := b.client.Complete(ctx, llm.Request{
		Model:       b.model,
		System:      system,
		Messages:    messages,
		MaxTokens:   300,
		Temperature: 0.4,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("inbound: answer generation failed: %w", err)
	}
	return Reply{Response: resp.Text, Intent: IntentQuestion}, nil
}

// decodeJSONObject extracts the first {...} block from model output and
// unmarshals it; returns false on any parse failure.
func decodeJSONObject(content string, out any) bool {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(content[start:end+1]), out) == nil
}
