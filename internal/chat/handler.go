package chat

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/growmate-app/growmate/internal/api"
	"github.com/growmate-app/growmate/internal/auth"
)

// Handler exposes the persisted conversation endpoints.
type Handler struct {
	store *HistoryStore
}

func NewHandler(store *HistoryStore) *Handler {
	return &Handler{store: store}
}

// GetHistory returns the authenticated user's recent coaching conversation.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	entries, err := h.store.Recent(r.Context(), userID, limit)
	if err != nil {
		slog.Error("reading chat history", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, entries)
}

// ClearHistory deletes the authenticated user's conversation.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	if err := h.store.Clear(r.Context(), userID); err != nil {
		slog.Error("clearing chat history", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "chat history cleared")
}

func userIDFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
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
