package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/rag"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// Builds the knowledge-base snapshot the API loads at startup. Documents
// come either from an S3 prefix or from a local directory of .txt/.md
// files; every paragraph is embedded and written to the snapshot path.
func main() {
	_ = godotenv.Load()

	var (
		bucket = flag.String("bucket", os.Getenv("RAG_BUCKET"), "S3 bucket holding the corpus")
		prefix = flag.String("prefix", envOr("RAG_PREFIX", "knowledge/"), "S3 key prefix")
		dir    = flag.String("dir", "", "local directory of .txt/.md files (overrides -bucket)")
		out    = flag.String("out", envOr("RAG_SNAPSHOT_PATH", "knowledge/snapshot.json"), "snapshot output path")
		model  = flag.String("model", envOr("OPENAI_EMBED_MODEL", "text-embedding-3-small"), "embedding model")
	)
	flag.Parse()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY is required")
	}

	logger := logging.New(envOr("LOG_LEVEL", "info"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	chunks, err := loadCorpus(ctx, *dir, *bucket, *prefix)
	if err != nil {
		log.Fatalf("load corpus: %v", err)
	}
	if len(chunks) == 0 {
		log.Fatal("corpus is empty, nothing to index")
	}
	logger.Info("corpus loaded", "chunks", len(chunks))

	embedder := rag.NewOpenAIEmbedder(openai.NewClient(apiKey), *model)
	store := rag.NewMemoryStore(embedder, logger)
	if err := store.AddDocuments(ctx, chunks); err != nil {
		log.Fatalf("embed corpus: %v", err)
	}

	if parent := filepath.Dir(*out); parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			log.Fatalf("create snapshot dir: %v", err)
		}
	}
	if err := rag.SaveSnapshot(*out, *model, store.Documents()); err != nil {
		log.Fatalf("save snapshot: %v", err)
	}
	fmt.Printf("indexed %d chunks into %s\n", store.Len(), *out)
}

func loadCorpus(ctx context.Context, dir, bucket, prefix string) ([]string, error) {
	if dir != "" {
		return loadDir(dir)
	}
	if bucket == "" {
		return nil, fmt.Errorf("either -dir or -bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	source := rag.NewS3Source(s3.NewFromConfig(awsCfg), bucket, prefix)
	return source.Load(ctx)
}

func loadDir(dir string) ([]string, error) {
	var chunks []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || (!strings.HasSuffix(path, ".txt") && !strings.HasSuffix(path, ".md")) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		chunks = append(chunks, rag.SplitParagraphs(string(data))...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return chunks, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
