package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/growmate-app/growmate/internal/api"
	"github.com/growmate-app/growmate/internal/audit"
	"github.com/growmate-app/growmate/internal/auth"
	"github.com/growmate-app/growmate/internal/chat"
	"github.com/growmate-app/growmate/internal/config"
	"github.com/growmate-app/growmate/internal/database"
	"github.com/growmate-app/growmate/internal/events"
	"github.com/growmate-app/growmate/internal/gateway"
	"github.com/growmate-app/growmate/internal/gemini"
	"github.com/growmate-app/growmate/internal/journal"
	"github.com/growmate-app/growmate/internal/middleware"
	"github.com/growmate-app/growmate/internal/quota"
	iredis "github.com/growmate-app/growmate/internal/redis"
	"github.com/growmate-app/growmate/internal/server"
	"github.com/growmate-app/growmate/internal/strains"
	"github.com/growmate-app/growmate/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is optional: without it the service runs, only the request
	// log and care-task events are lost.
	var natsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		natsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Warn("connecting to NATS, continuing without events", "error", err)
		} else {
			defer natsClient.Close()
			publisher = events.NewPublisher(natsClient.JetStream())
		}
	}

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Quota
	quotaStore := quota.NewStore(pool)
	quotaSvc := quota.NewService(quotaStore, cfg.Quota.DailyLimit)
	quotaHandler := quota.NewHandler(quotaSvc)

	// Chat history
	historyStore := chat.NewHistoryStore(redisClient, cfg.Chat.HistoryMax, cfg.Chat.HistoryTTLSec)
	chatHandler := chat.NewHandler(historyStore)

	// AI gateway
	geminiClient := gemini.NewClient(cfg.Gemini)
	composer := gateway.NewComposer(cfg.Gemini.ChatModel, cfg.Gemini.DiagnosisModel)
	var sink gateway.EventSink
	var taskSink journal.TaskEventSink
	if publisher != nil {
		sink = publisher
		taskSink = publisher
	}
	gatewayHandler := gateway.NewHandler(composer, geminiClient, quotaSvc, historyStore, sink)

	// Strains
	strainRepo := strains.NewRepository(pool)
	strainHandler := strains.NewHandler(strainRepo)

	// Journal
	journalRepo := journal.NewRepository(pool)
	journalHandler := journal.NewHandler(journalRepo, taskSink)

	// Audit consumer
	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo)
	if natsClient != nil {
		consumerMgr := events.NewConsumerManager(natsClient.JetStream())
		consumer := audit.NewConsumer(auditRepo, consumerMgr)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("AI request log consumer stopped", "error", err)
			}
		}()
	}

	// Auth endpoint rate limiter
	authLimiter := middleware.NewRateLimiter(redisClient, "auth", cfg.RateLimit.AuthMaxRequests, cfg.RateLimit.AuthWindowSec)

	// Router
	routerCfg := api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthRateLimiter:    authLimiter.Middleware,
	}
	var natsHealth api.NATSHealthChecker
	if natsClient != nil {
		natsHealth = natsClient
	}
	router := api.NewRouter(pool, redisClient, natsHealth, routerCfg, api.HandlerSet{
		ServeAI: gatewayHandler.ServeAI,

		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		ListStrains:   strainHandler.List,
		GetStrain:     strainHandler.Get,
		SimilarStrain: strainHandler.Similar,

		CreateJournalEntry: journalHandler.CreateEntry,
		ListJournalEntries: journalHandler.ListEntries,
		DeleteJournalEntry: journalHandler.DeleteEntry,
		CreateCareTask:     journalHandler.CreateTask,
		ListCareTasks:      journalHandler.ListTasks,
		CompleteCareTask:   journalHandler.CompleteTask,
		DeleteCareTask:     journalHandler.DeleteTask,

		GetChatHistory:   chatHandler.GetHistory,
		ClearChatHistory: chatHandler.ClearHistory,

		GetUsage:       quotaHandler.GetUsage,
		ListAIRequests: auditHandler.List,

		AuthMiddleware:         auth.Middleware(authSvc),
		OptionalAuthMiddleware: auth.OptionalMiddleware(authSvc),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
