package bootstrap

import (
	"os"

	openai "github.com/sashabaranov/go-openai"

	appconfig "github.com/abbotsfordroad/cafe-ai-platform/internal/config"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/rag"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// BuildKnowledgeStore wires the in-memory knowledge base and hydrates it
// from the snapshot on disk. Returns nil when embeddings are not
// configured; the bots then answer without retrieved context.
func BuildKnowledgeStore(cfg *appconfig.Config, logger *logging.Logger) *rag.MemoryStore {
	if cfg == nil || cfg.OpenAIAPIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	embedder := rag.NewOpenAIEmbedder(openai.NewClient(cfg.OpenAIAPIKey), cfg.OpenAIEmbedModel)
	store := rag.NewMemoryStore(embedder, logger)

	if cfg.RAGSnapshotPath != "" {
		if _, err := os.Stat(cfg.RAGSnapshotPath); err == nil {
			count, err := rag.LoadSnapshot(cfg.RAGSnapshotPath, store)
			if err != nil {
				logger.Warn("failed to load knowledge snapshot", "path", cfg.RAGSnapshotPath, "error", err)
			} else {
				logger.Info("knowledge snapshot loaded", "path", cfg.RAGSnapshotPath, "documents", count)
			}
		} else {
			logger.Info("no knowledge snapshot on disk; starting empty", "path", cfg.RAGSnapshotPath)
		}
	}
	return store
}
