package conversation

import (
	"context"

	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var engineTracer = otel.Tracer("cafeai.internal.conversation.engine")

// QualifiedListener is notified when a conversation completes
// qualification. Implementations must tolerate duplicate calls; failures
// are logged, never surfaced to the prospect.
type QualifiedListener interface {
	QualifiedLead(ctx context.Context, conversationID string, s *State) error
}

// Engine wires the flow controller into the Service contract. It is
// stateless across turns: each call deserializes the caller's state map,
// runs one turn on a clone, and serializes the result back.
type Engine struct {
	controller *Controller
	listener   QualifiedListener
	logger     *logging.Logger
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithQualifiedListener registers a hook for completed qualifications.
func WithQualifiedListener(l QualifiedListener) EngineOption {
	return func(e *Engine) { e.listener = l }
}

func NewEngine(controller *Controller, logger *logging.Logger, opts ...EngineOption) *Engine {
	if controller == nil {
		panic("conversation: controller cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{controller: controller, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessMessage runs one turn. The returned State map is the mutated
// snapshot the caller must persist; on error the original map is returned
// untouched so a failed turn leaves no half-applied writes.
func (e *Engine) ProcessMessage(ctx context.Context, req ProcessRequest) (ProcessResult, error) {
	ctx, span := engineTracer.Start(ctx, "conversation.process_message")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", req.ConversationID))

	state := StateFromMap(req.State).Clone()
	result, err := e.controller.ProcessTurn(ctx, state, TurnInput{
		Message:     req.Message,
		History:     historyToMessages(req.History),
		CountryHint: req.CountryHint,
	})
	if err != nil {
		span.RecordError(err)
		return ProcessResult{State: req.State}, err
	}

	if result.QualifiedNow && e.listener != nil {
		if err := e.listener.QualifiedLead(ctx, req.ConversationID, state); err != nil {
			e.logger.Error("qualified lead hook failed",
				"conversation_id", req.ConversationID,
				"error", err.Error(),
			)
		}
	}

	return ProcessResult{
		Response:  result.Response,
		ShouldEnd: result.ShouldEnd,
		Qualified: state.Qualified,
		State:     state.ToMap(),
	}, nil
}
