package bootstrap

import (
	"context"
	"testing"
	"time"

	appconfig "github.com/abbotsfordroad/cafe-ai-platform/internal/config"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/conversation"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/notify"
)

func TestBuildLLMClientWithoutCredentials(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: "openai"}

	client, model, err := BuildLLMClient(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if client != nil || model != "" {
		t.Fatalf("expected nil client without a key, got %v / %q", client, model)
	}
}

func TestBuildLLMClientUnknownProvider(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: "carrier-pigeon"}

	if _, _, err := BuildLLMClient(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestBuildConversationEngineFallsBackToStub(t *testing.T) {
	cfg := &appconfig.Config{DetectionStagger: 100 * time.Millisecond}

	svc := BuildConversationEngine(cfg, EngineDeps{})
	if _, ok := svc.(conversation.StubService); !ok {
		t.Fatalf("expected stub service, got %T", svc)
	}
}

func TestBuildKnowledgeStoreWithoutKey(t *testing.T) {
	if store := BuildKnowledgeStore(&appconfig.Config{}, nil); store != nil {
		t.Fatalf("expected nil store without a key, got %v", store)
	}
}

func TestBuildRedisClientWithoutAddr(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, nil, false); client != nil {
		t.Fatalf("expected nil client without an addr")
	}
}

func TestBuildPostgresPoolWithoutURL(t *testing.T) {
	pool, err := BuildPostgresPool(context.Background(), &appconfig.Config{}, nil)
	if err != nil || pool != nil {
		t.Fatalf("expected nil pool without a url, got %v / %v", pool, err)
	}
}

func TestBuildEmailSenderFallsBackToStub(t *testing.T) {
	sender := BuildEmailSender(context.Background(), &appconfig.Config{EmailProvider: "auto"}, nil)
	if _, ok := sender.(*notify.StubEmailSender); !ok {
		t.Fatalf("expected stub sender, got %T", sender)
	}
}
