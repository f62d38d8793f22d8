//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/growmate-app/growmate/internal/api"
	"github.com/growmate-app/growmate/internal/audit"
	"github.com/growmate-app/growmate/internal/auth"
	"github.com/growmate-app/growmate/internal/chat"
	"github.com/growmate-app/growmate/internal/config"
	"github.com/growmate-app/growmate/internal/gateway"
	"github.com/growmate-app/growmate/internal/gemini"
	"github.com/growmate-app/growmate/internal/journal"
	"github.com/growmate-app/growmate/internal/quota"
	"github.com/growmate-app/growmate/internal/strains"
	"github.com/growmate-app/growmate/internal/users"
)

// QuotaLimit is the daily cap wired into the test environment.
const QuotaLimit = 5

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	Provider    *FakeProvider
	AuthSvc     *auth.Service
	UserSvc     *users.Service
}

// FakeProvider stands in for the generative-AI API.
type FakeProvider struct {
	server *httptest.Server

	// ReplyText is returned inside the first candidate. FailNext makes
	// the next call return HTTP 503 once.
	ReplyText string
	FailNext  bool
}

func newFakeProvider() *FakeProvider {
	p := &FakeProvider{ReplyText: "integration test reply"}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.FailNext {
			p.FailNext = false
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"code":503,"message":"model overloaded"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": p.ReplyText}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	return p
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:0.8.1-pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "growmate_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/growmate_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	migrationsPath := getMigrationsPath()
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		dsn,
	)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Fake AI provider
	provider := newFakeProvider()
	t.Cleanup(provider.server.Close)

	// Services
	jwtManager := auth.NewJWTManager("test-access-secret-32-chars-long!!", "test-refresh-secret-32-chars-lng!", 15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	quotaStore := quota.NewStore(pool)
	quotaSvc := quota.NewService(quotaStore, QuotaLimit)
	quotaHandler := quota.NewHandler(quotaSvc)

	historyStore := chat.NewHistoryStore(redisClient, 40, 3600)
	chatHandler := chat.NewHandler(historyStore)

	geminiClient := gemini.NewClient(config.GeminiConfig{
		APIKey:         "test-api-key",
		BaseURL:        provider.server.URL,
		ChatModel:      "gemini-2.5-flash",
		DiagnosisModel: "gemini-2.5-pro",
		Timeout:        10 * time.Second,
	})
	composer := gateway.NewComposer("gemini-2.5-flash", "gemini-2.5-pro")
	gatewayHandler := gateway.NewHandler(composer, geminiClient, quotaSvc, historyStore, nil)

	strainRepo := strains.NewRepository(pool)
	strainHandler := strains.NewHandler(strainRepo)

	journalRepo := journal.NewRepository(pool)
	journalHandler := journal.NewHandler(journalRepo, nil)

	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo)

	router := api.NewRouter(pool, redisClient, nil, api.RouterConfig{}, api.HandlerSet{
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

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		Provider:    provider,
		AuthSvc:     authSvc,
		UserSvc:     userSvc,
	}

	return testEnv
}

func getMigrationsPath() string {
	// Try relative paths from test directory
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

func RegisterUser(t *testing.T, env *TestEnv, email, password string) map[string]any {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status %d", resp.StatusCode)
	}
	return ParseResponse(t, resp)
}

func LoginUser(t *testing.T, env *TestEnv, email, password string) string {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
