package journal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/growmate-app/growmate/internal/api"
	"github.com/growmate-app/growmate/internal/auth"
	"github.com/growmate-app/growmate/internal/events"
)

const defaultPageSize = 20

// TaskEventSink publishes care-task lifecycle events. Optional.
type TaskEventSink interface {
	PublishCareTask(ctx context.Context, event events.CareTaskEvent) error
}

type Handler struct {
	repo     Repository
	sink     TaskEventSink
	validate *validator.Validate
}

func NewHandler(repo Repository, sink TaskEventSink) *Handler {
	return &Handler{
		repo:     repo,
		sink:     sink,
		validate: validator.New(),
	}
}

func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	entry := &Entry{
		ID:        uuid.New(),
		UserID:    userID,
		Stage:     req.Stage,
		Note:      req.Note,
		PhotoRef:  req.PhotoRef,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.CreateEntry(r.Context(), entry); err != nil {
		slog.Error("creating journal entry", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", defaultPageSize)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = defaultPageSize
	}

	entries, err := h.repo.ListEntries(r.Context(), userID, page, pageSize)
	if err != nil {
		slog.Error("listing journal entries", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	total, err := h.repo.CountEntries(r.Context(), userID)
	if err != nil {
		slog.Error("counting journal entries", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSONPaginated(w, http.StatusOK, entries, total, page, pageSize)
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.repo.DeleteEntry(r.Context(), id, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			api.HandleError(w, api.ErrNotFound)
			return
		}
		slog.Error("deleting journal entry", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSONMessage(w, http.StatusOK, "entry deleted")
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	task := &CareTask{
		ID:         uuid.New(),
		UserID:     userID,
		Kind:       req.Kind,
		Title:      req.Title,
		DueAt:      req.DueAt,
		RepeatDays: req.RepeatDays,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.repo.CreateTask(r.Context(), task); err != nil {
		slog.Error("creating care task", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusCreated, task)
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	includeCompleted := r.URL.Query().Get("all") == "true"

	tasks, err := h.repo.ListTasks(r.Context(), userID, includeCompleted)
	if err != nil {
		slog.Error("listing care tasks", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, tasks)
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	task, err := h.repo.CompleteTask(r.Context(), id, userID, time.Now().UTC())
	if err != nil {
		slog.Error("completing care task", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if task == nil {
		api.HandleError(w, api.NewNotFoundError("task not found or already completed"))
		return
	}

	if h.sink != nil {
		event := events.CareTaskEvent{
			TaskID:    task.ID,
			UserID:    task.UserID,
			Kind:      task.Kind,
			EventType: "completed",
			Timestamp: time.Now().UTC(),
		}
		if err := h.sink.PublishCareTask(r.Context(), event); err != nil {
			slog.Warn("publishing care task event", "error", err)
		}
	}

	api.JSON(w, http.StatusOK, task)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.repo.DeleteTask(r.Context(), id, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			api.HandleError(w, api.ErrNotFound)
			return
		}
		slog.Error("deleting care task", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSONMessage(w, http.StatusOK, "task deleted")
}

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
