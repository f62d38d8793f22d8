package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/growmate-app/growmate/internal/database"
	mw "github.com/growmate-app/growmate/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// AI gateway
	ServeAI http.HandlerFunc

	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Strain catalog (public)
	ListStrains   http.HandlerFunc
	GetStrain     http.HandlerFunc
	SimilarStrain http.HandlerFunc

	// Journal & care tasks
	CreateJournalEntry http.HandlerFunc
	ListJournalEntries http.HandlerFunc
	DeleteJournalEntry http.HandlerFunc
	CreateCareTask     http.HandlerFunc
	ListCareTasks      http.HandlerFunc
	CompleteCareTask   http.HandlerFunc
	DeleteCareTask     http.HandlerFunc

	// Chat history
	GetChatHistory   http.HandlerFunc
	ClearChatHistory http.HandlerFunc

	// Quota usage + request log
	GetUsage       http.HandlerFunc
	ListAIRequests http.HandlerFunc

	// Auth middleware: required for owned resources, optional for the gateway
	AuthMiddleware         func(http.Handler) http.Handler
	OptionalAuthMiddleware func(http.Handler) http.Handler
}

// NATSHealthChecker reports broker connectivity for the readiness probe.
type NATSHealthChecker interface {
	Healthy() bool
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, redisClient *redis.Client, natsClient NATSHealthChecker, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe: always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe checks DB, Redis, and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"redis":    "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if err := pingRedis(r.Context(), redisClient); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient == nil {
			health["nats"] = "not configured"
		} else if !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// AI gateway. Anonymous traffic is allowed; identity is used for metering.
		r.Group(func(r chi.Router) {
			r.Use(h.OptionalAuthMiddleware)
			r.Post("/ai", h.ServeAI)
		})

		// Auth routes (public), optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Strain catalog (public)
		r.Route("/strains", func(r chi.Router) {
			r.Get("/", h.ListStrains)
			r.Get("/{slug}", h.GetStrain)
			r.Get("/{slug}/similar", h.SimilarStrain)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Route("/journal", func(r chi.Router) {
				r.Route("/entries", func(r chi.Router) {
					r.Post("/", h.CreateJournalEntry)
					r.Get("/", h.ListJournalEntries)
					r.Delete("/{id}", h.DeleteJournalEntry)
				})
				r.Route("/tasks", func(r chi.Router) {
					r.Post("/", h.CreateCareTask)
					r.Get("/", h.ListCareTasks)
					r.Post("/{id}/complete", h.CompleteCareTask)
					r.Delete("/{id}", h.DeleteCareTask)
				})
			})

			r.Route("/chat/history", func(r chi.Router) {
				r.Get("/", h.GetChatHistory)
				r.Delete("/", h.ClearChatHistory)
			})

			r.Get("/usage", h.GetUsage)
			r.Get("/requests", h.ListAIRequests)
		})
	})

	return r
}

func pingRedis(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Ping(ctx).Err()
}
