package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/abbotsfordroad/cafe-ai-platform/internal/http/middleware"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/leads"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/webchat"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger
	Env    string

	ChatHandler    *handlers.ChatHandler
	SupportHandler *handlers.SupportHandler
	WebchatHandler *webchat.Handler
	LeadsHandler   *leads.Handler

	KnowledgeHandler   *handlers.KnowledgeHandler
	EscalationsHandler *handlers.EscalationsHandler

	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimitPerMin    int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.Health(cfg.Env))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Bot endpoints, rate limited per IP since they burn model tokens.
	r.Group(func(bots chi.Router) {
		if cfg.RateLimitPerMin > 0 {
			bots.Use(httpmiddleware.RateLimit(float64(cfg.RateLimitPerMin)/60.0, cfg.RateLimitPerMin))
		}
		if cfg.ChatHandler != nil {
			bots.Post("/chat", cfg.ChatHandler.HandleTurn)
		}
		if cfg.SupportHandler != nil {
			bots.Post("/support", cfg.SupportHandler.HandleMessage)
		}
		if cfg.WebchatHandler != nil {
			bots.Get("/ws", cfg.WebchatHandler.HandleWebSocket)
		}
		if cfg.LeadsHandler != nil {
			bots.Post("/leads/web", cfg.LeadsHandler.CreateWebLead)
		}
	})

	// Admin routes (protected by HMAC JWT)
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.LeadsHandler != nil {
				admin.Get("/leads", cfg.LeadsHandler.ListLeads)
				admin.Get("/leads/{leadID}", cfg.LeadsHandler.GetLead)
			}
			if cfg.KnowledgeHandler != nil {
				admin.Get("/knowledge", cfg.KnowledgeHandler.GetStats)
				admin.Post("/knowledge", cfg.KnowledgeHandler.AddDocuments)
				admin.Get("/knowledge/search", cfg.KnowledgeHandler.Search)
			}
			if cfg.EscalationsHandler != nil {
				admin.Get("/escalations", cfg.EscalationsHandler.ListPending)
				admin.Post("/escalations/{escalationID}/ack", cfg.EscalationsHandler.Acknowledge)
			}
		})
	}

	return r
}
