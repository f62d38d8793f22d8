package journal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growmate-app/growmate/internal/auth"
	"github.com/growmate-app/growmate/internal/events"
)

type fakeRepo struct {
	entries []Entry
	tasks   []CareTask
}

func (f *fakeRepo) CreateEntry(ctx context.Context, entry *Entry) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeRepo) ListEntries(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Entry, error) {
	var out []Entry
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountEntries(ctx context.Context, userID uuid.UUID) (int64, error) {
	entries, _ := f.ListEntries(ctx, userID, 1, 1000)
	return int64(len(entries)), nil
}

func (f *fakeRepo) DeleteEntry(ctx context.Context, id, userID uuid.UUID) error {
	for i, e := range f.entries {
		if e.ID == id && e.UserID == userID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeRepo) CreateTask(ctx context.Context, task *CareTask) error {
	f.tasks = append(f.tasks, *task)
	return nil
}

func (f *fakeRepo) ListTasks(ctx context.Context, userID uuid.UUID, includeCompleted bool) ([]CareTask, error) {
	var out []CareTask
	for _, t := range f.tasks {
		if t.UserID != userID {
			continue
		}
		if !includeCompleted && t.CompletedAt != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeRepo) GetTask(ctx context.Context, id, userID uuid.UUID) (*CareTask, error) {
	for _, t := range f.tasks {
		if t.ID == id && t.UserID == userID {
			return &t, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CompleteTask(ctx context.Context, id, userID uuid.UUID, completedAt time.Time) (*CareTask, error) {
	for i, t := range f.tasks {
		if t.ID == id && t.UserID == userID && t.CompletedAt == nil {
			f.tasks[i].CompletedAt = &completedAt
			return &f.tasks[i], nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) DeleteTask(ctx context.Context, id, userID uuid.UUID) error {
	for i, t := range f.tasks {
		if t.ID == id && t.UserID == userID {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type fakeSink struct {
	published []events.CareTaskEvent
}

func (f *fakeSink) PublishCareTask(ctx context.Context, event events.CareTaskEvent) error {
	f.published = append(f.published, event)
	return nil
}

type fixture struct {
	router http.Handler
	repo   *fakeRepo
	sink   *fakeSink
	userID uuid.UUID
}

func newFixture() *fixture {
	repo := &fakeRepo{}
	sink := &fakeSink{}
	h := NewHandler(repo, sink)

	r := chi.NewRouter()
	r.Post("/journal/entries", h.CreateEntry)
	r.Get("/journal/entries", h.ListEntries)
	r.Delete("/journal/entries/{id}", h.DeleteEntry)
	r.Post("/journal/tasks", h.CreateTask)
	r.Get("/journal/tasks", h.ListTasks)
	r.Post("/journal/tasks/{id}/complete", h.CompleteTask)
	r.Delete("/journal/tasks/{id}", h.DeleteTask)

	return &fixture{router: r, repo: repo, sink: sink, userID: uuid.New()}
}

func (f *fixture) do(t *testing.T, method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authenticated {
		claims := &auth.AccessClaims{UserID: f.userID.String()}
		req = req.WithContext(context.WithValue(req.Context(), auth.UserClaimsKey, claims))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateEntry(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/journal/entries",
		`{"stage":"vegetative","note":"topped the main cola"}`, true)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, f.repo.entries, 1)
	assert.Equal(t, "vegetative", f.repo.entries[0].Stage)
	assert.Equal(t, f.userID, f.repo.entries[0].UserID)
}

func TestCreateEntry_InvalidStage(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/journal/entries",
		`{"stage":"sprouting","note":"x"}`, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.repo.entries)
}

func TestCreateEntry_Unauthenticated(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/journal/entries",
		`{"stage":"vegetative","note":"x"}`, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListEntries_OnlyOwn(t *testing.T) {
	f := newFixture()
	f.repo.entries = []Entry{
		{ID: uuid.New(), UserID: f.userID, Stage: StageSeedling, Note: "mine"},
		{ID: uuid.New(), UserID: uuid.New(), Stage: StageSeedling, Note: "someone else's"},
	}

	rec := f.do(t, http.MethodGet, "/journal/entries", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data       []Entry `json:"data"`
		TotalCount int64   `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "mine", body.Data[0].Note)
}

func TestCreateTask(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/journal/tasks",
		`{"kind":"water","title":"Water the tent","due_at":"2026-09-01T08:00:00Z","repeat_days":2}`, true)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, f.repo.tasks, 1)
	assert.Equal(t, TaskWater, f.repo.tasks[0].Kind)
	assert.Equal(t, 2, f.repo.tasks[0].RepeatDays)
}

func TestCreateTask_UnknownKind(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/journal/tasks",
		`{"kind":"repot","title":"x","due_at":"2026-09-01T08:00:00Z"}`, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteTask_PublishesEvent(t *testing.T) {
	f := newFixture()
	taskID := uuid.New()
	f.repo.tasks = []CareTask{
		{ID: taskID, UserID: f.userID, Kind: TaskFeed, Title: "Feed", DueAt: time.Now()},
	}

	rec := f.do(t, http.MethodPost, "/journal/tasks/"+taskID.String()+"/complete", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.repo.tasks[0].CompletedAt)

	require.Len(t, f.sink.published, 1)
	event := f.sink.published[0]
	assert.Equal(t, taskID, event.TaskID)
	assert.Equal(t, TaskFeed, event.Kind)
	assert.Equal(t, "completed", event.EventType)
}

func TestCompleteTask_AlreadyCompleted(t *testing.T) {
	f := newFixture()
	now := time.Now()
	taskID := uuid.New()
	f.repo.tasks = []CareTask{
		{ID: taskID, UserID: f.userID, Kind: TaskFeed, CompletedAt: &now},
	}

	rec := f.do(t, http.MethodPost, "/journal/tasks/"+taskID.String()+"/complete", "", true)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.sink.published)
}

func TestDeleteTask_ForeignTask(t *testing.T) {
	f := newFixture()
	taskID := uuid.New()
	f.repo.tasks = []CareTask{
		{ID: taskID, UserID: uuid.New(), Kind: TaskPrune},
	}

	rec := f.do(t, http.MethodDelete, "/journal/tasks/"+taskID.String(), "", true)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, f.repo.tasks, 1)
}
