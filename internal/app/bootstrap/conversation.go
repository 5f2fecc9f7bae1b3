package bootstrap

import (
	appconfig "github.com/abbotsfordroad/cafe-ai-platform/internal/config"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/conversation"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/observability/metrics"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/rag"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// EngineDeps are the cross-cutting collaborators for the qualification
// engine. Nil fields degrade gracefully rather than failing startup.
type EngineDeps struct {
	Client    llm.Client
	Model     string
	Retriever rag.Retriever
	Metrics   *metrics.ConversationMetrics
	Listener  conversation.QualifiedListener
	Logger    *logging.Logger
}

// BuildConversationEngine wires the outbound qualification engine. With no
// model client configured it returns the stub service so the rest of the
// platform still comes up.
func BuildConversationEngine(cfg *appconfig.Config, deps EngineDeps) conversation.Service {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	if deps.Client == nil {
		logger.Warn("no model provider configured; using stub conversation service")
		return conversation.StubService{}
	}

	controller := conversation.NewController(conversation.ControllerDeps{
		Types:     conversation.NewLLMTypeDetector(deps.Client, deps.Model),
		Flows:     conversation.NewLLMFlowDetector(deps.Client, deps.Model),
		Questions: conversation.NewRuleBasedQuestionDetector(deps.Client, deps.Model),
		Extractor: conversation.NewLLMExtractor(deps.Client, deps.Model),
		Responder: conversation.NewResponseBuilder(deps.Client, deps.Model, logger),
		Retriever: deps.Retriever,
		Emails:    conversation.NewEmailValidator(conversation.NewMXChecker()),
		Metrics:   deps.Metrics,
		Logger:    logger,
	}, conversation.WithDetectionStagger(cfg.DetectionStagger))

	var opts []conversation.EngineOption
	if deps.Listener != nil {
		opts = append(opts, conversation.WithQualifiedListener(deps.Listener))
	}

	logger.Info("conversation engine ready", "model", deps.Model)
	return conversation.NewEngine(controller, logger, opts...)
}
