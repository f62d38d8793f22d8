//go:build integration

package security

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/growmate-app/growmate/internal/api"
	"github.com/growmate-app/growmate/internal/auth"
	"github.com/growmate-app/growmate/internal/chat"
	"github.com/growmate-app/growmate/internal/journal"
	"github.com/growmate-app/growmate/internal/users"
)

type testEnv struct {
	server *httptest.Server
	pool   *pgxpool.Pool
}

func setupSecurityTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:0.8.1-pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "growmate_security_test",
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

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/growmate_security_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath()), dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	jwtManager := auth.NewJWTManager("test-access-secret-32-chars-long!!", "test-refresh-secret-32-chars-lng!", 15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	journalRepo := journal.NewRepository(pool)
	journalHandler := journal.NewHandler(journalRepo, nil)

	historyStore := chat.NewHistoryStore(redisClient, 40, 3600)
	chatHandler := chat.NewHandler(historyStore)

	router := api.NewRouter(pool, redisClient, nil, api.RouterConfig{}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		CreateJournalEntry: journalHandler.CreateEntry,
		ListJournalEntries: journalHandler.ListEntries,
		DeleteJournalEntry: journalHandler.DeleteEntry,
		CreateCareTask:     journalHandler.CreateTask,
		ListCareTasks:      journalHandler.ListTasks,
		CompleteCareTask:   journalHandler.CompleteTask,
		DeleteCareTask:     journalHandler.DeleteTask,

		GetChatHistory:   chatHandler.GetHistory,
		ClearChatHistory: chatHandler.ClearHistory,

		AuthMiddleware:         auth.Middleware(authSvc),
		OptionalAuthMiddleware: auth.OptionalMiddleware(authSvc),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	return &testEnv{server: server, pool: pool}
}

func migrationsPath() string {
	paths := []string{"../../migrations", "../../../migrations"}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

func (env *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	body := map[string]string{"email": email, "password": "password123"}
	resp := env.do(t, "POST", "/api/v1/auth/register", body, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	result := parse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

func (env *testEnv) do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, env.server.URL+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func parse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func TestJournalIsolation(t *testing.T) {
	env := setupSecurityTestEnv(t)

	tokenA := env.register(t, "owner-a@example.com")
	tokenB := env.register(t, "owner-b@example.com")

	// A writes an entry and a task.
	resp := env.do(t, "POST", "/api/v1/journal/entries",
		map[string]any{"stage": "flowering", "note": "week 3 of flower"}, tokenA)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entry := parse(t, resp)["data"].(map[string]any)
	entryID := entry["id"].(string)

	resp = env.do(t, "POST", "/api/v1/journal/tasks",
		map[string]any{"kind": "feed", "title": "Bloom nutrients", "due_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339)}, tokenA)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	task := parse(t, resp)["data"].(map[string]any)
	taskID := task["id"].(string)

	t.Run("B cannot see A's entries", func(t *testing.T) {
		resp := env.do(t, "GET", "/api/v1/journal/entries", nil, tokenB)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, parse(t, resp)["data"])
	})

	t.Run("B cannot delete A's entry", func(t *testing.T) {
		resp := env.do(t, "DELETE", "/api/v1/journal/entries/"+entryID, nil, tokenB)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		// Still there for A.
		resp = env.do(t, "GET", "/api/v1/journal/entries", nil, tokenA)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, parse(t, resp)["data"].([]any), 1)
	})

	t.Run("B cannot complete A's task", func(t *testing.T) {
		resp := env.do(t, "POST", "/api/v1/journal/tasks/"+taskID+"/complete", nil, tokenB)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("anonymous cannot touch journal routes", func(t *testing.T) {
		resp := env.do(t, "GET", "/api/v1/journal/entries", nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestChatHistoryIsolation(t *testing.T) {
	env := setupSecurityTestEnv(t)

	tokenA := env.register(t, "chat-a@example.com")
	tokenB := env.register(t, "chat-b@example.com")

	// Histories are keyed per user; B starts empty either way, and
	// clearing B's history must not touch A's key space.
	resp := env.do(t, "GET", "/api/v1/chat/history", nil, tokenA)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, "DELETE", "/api/v1/chat/history", nil, tokenB)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, "GET", "/api/v1/chat/history", nil, tokenB)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, parse(t, resp)["data"])
}
