package bootstrap

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/abbotsfordroad/cafe-ai-platform/internal/config"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// BuildLLMClient wires the configured model provider. Returns a nil client
// without error when no provider credentials are set, so callers can fall
// back to the stub conversation service. The second return value is the
// model ID requests should carry.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (llm.Client, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	switch cfg.LLMProvider {
	case "", "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("no OpenAI key configured; model calls disabled")
			return nil, "", nil
		}
		primary, err := llm.NewOpenAIClientFromKey(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: openai client: %w", err)
		}
		var fallback llm.Client
		if cfg.GeminiAPIKey != "" {
			gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				logger.Warn("gemini fallback unavailable", "error", err)
			} else {
				fallback = gemini
				logger.Info("gemini fallback enabled", "model", cfg.GeminiModel)
			}
		}
		logger.Info("using OpenAI provider", "model", cfg.OpenAIModel)
		return llm.NewFallbackClient(primary, fallback, logger), cfg.OpenAIModel, nil

	case "gemini":
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		logger.Info("using Gemini provider", "model", cfg.GeminiModel)
		return client, cfg.GeminiModel, nil

	case "bedrock":
		if cfg.BedrockModelID == "" {
			logger.Warn("bedrock provider selected but no model id configured; model calls disabled")
			return nil, "", nil
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		client := llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
		logger.Info("using Bedrock provider", "model", cfg.BedrockModelID)
		return client, cfg.BedrockModelID, nil
	}

	return nil, "", fmt.Errorf("bootstrap: unknown llm provider %q", cfg.LLMProvider)
}
