package quota

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/growmate-app/growmate/internal/api"
	"github.com/growmate-app/growmate/internal/auth"
)

// Handler exposes the usage endpoint.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetUsage returns the authenticated user's usage against the daily limit.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	status, err := h.svc.GetStatus(r.Context(), userID)
	if err != nil {
		slog.Error("getting usage status", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, status)
}
