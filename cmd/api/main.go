package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/api/router"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/app/bootstrap"
	appconfig "github.com/abbotsfordroad/cafe-ai-platform/internal/config"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/conversation"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/http/handlers"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/inbound"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/leads"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/notify"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/observability/metrics"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/webchat"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting cafe-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	convMetrics := metrics.NewConversationMetrics(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	// Persistence
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	sqlDB, err := bootstrap.BuildSQLDB(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open escalation database", "error", err)
		os.Exit(1)
	}

	var leadsRepo leads.Repository
	if pool != nil {
		leadsRepo = leads.NewPostgresRepository(pool)
	} else {
		logger.Warn("no database configured; leads held in memory only")
		leadsRepo = leads.NewInMemoryRepository()
	}

	// Notifications
	emailSender := bootstrap.BuildEmailSender(ctx, cfg, logger)
	notifier := notify.NewService(emailSender, cfg.AlertRecipients, logger)

	var leadAlerter leads.Alerter
	if cfg.QualifiedAlertsOn {
		leadAlerter = notifier
	}
	capture := leads.NewCapture(leadsRepo, leadAlerter, logger)

	// Model provider and knowledge base
	llmClient, model, err := bootstrap.BuildLLMClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build model client", "error", err)
		os.Exit(1)
	}
	knowledge := bootstrap.BuildKnowledgeStore(cfg, logger)

	// Outbound qualification engine
	engine := bootstrap.BuildConversationEngine(cfg, bootstrap.EngineDeps{
		Client:    llmClient,
		Model:     model,
		Retriever: knowledge,
		Metrics:   convMetrics,
		Listener:  capture,
		Logger:    logger,
	})

	// Transport handlers. Conversational surfaces need Redis for state.
	var (
		chatHandler    *handlers.ChatHandler
		supportHandler *handlers.SupportHandler
		webchatHandler *webchat.Handler
	)
	if redisClient != nil {
		store := conversation.NewRedisStore(redisClient, nil,
			conversation.WithConversationTTL(cfg.ConversationTTL))
		chatHandler = handlers.NewChatHandler(engine, store, logger)
		webchatHandler = webchat.NewHandler(engine, store, logger)

		if llmClient != nil {
			var escalations inbound.EscalationStore
			if sqlDB != nil {
				escalations = inbound.NewSQLEscalationStore(sqlDB, logger)
			}
			bot := inbound.NewSupportBot(inbound.SupportBotConfig{
				Client:      llmClient,
				Classifier:  inbound.NewRuleBasedIntentClassifier(llmClient, model),
				Retriever:   knowledge,
				Escalations: escalations,
				Alerts:      notifier,
				Metrics:     convMetrics,
				Logger:      logger,
				Model:       model,
			})
			supportHandler = handlers.NewSupportHandler(bot, store, logger)
		}
	} else {
		logger.Warn("redis not configured; chat endpoints disabled")
	}

	var knowledgeHandler *handlers.KnowledgeHandler
	if knowledge != nil {
		knowledgeHandler = handlers.NewKnowledgeHandler(knowledge, cfg.RAGSnapshotPath, cfg.OpenAIEmbedModel, logger)
	}

	var escalationsHandler *handlers.EscalationsHandler
	if sqlDB != nil {
		escalationsHandler = handlers.NewEscalationsHandler(inbound.NewSQLEscalationStore(sqlDB, logger), logger)
	}

	leadsHandler := leads.NewHandler(leadsRepo, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Env:                cfg.Env,
		ChatHandler:        chatHandler,
		SupportHandler:     supportHandler,
		WebchatHandler:     webchatHandler,
		LeadsHandler:       leadsHandler,
		KnowledgeHandler:   knowledgeHandler,
		EscalationsHandler: escalationsHandler,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.AllowedOrigins,
		RateLimitPerMin:    cfg.RateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if pool != nil {
		pool.Close()
	}
	if sqlDB != nil {
		_ = sqlDB.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("server stopped")
}
