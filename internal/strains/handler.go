package strains

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/growmate-app/growmate/internal/api"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	defaultSimilar  = 5
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// List serves GET /api/v1/strains with optional ?q= search.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		strains, err := h.repo.Search(r.Context(), q, defaultPageSize)
		if err != nil {
			slog.Error("searching strains", "error", err, "query", q)
			api.HandleError(w, api.ErrInternalServer)
			return
		}
		api.JSON(w, http.StatusOK, strains)
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", defaultPageSize)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	strains, err := h.repo.List(r.Context(), page, pageSize)
	if err != nil {
		slog.Error("listing strains", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	total, err := h.repo.Count(r.Context())
	if err != nil {
		slog.Error("counting strains", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSONPaginated(w, http.StatusOK, strains, total, page, pageSize)
}

// Get serves GET /api/v1/strains/{slug}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	strain, err := h.repo.GetBySlug(r.Context(), slug)
	if err != nil {
		slog.Error("getting strain", "error", err, "slug", slug)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if strain == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}
	api.JSON(w, http.StatusOK, strain)
}

// Similar serves GET /api/v1/strains/{slug}/similar.
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	strain, err := h.repo.GetBySlug(r.Context(), slug)
	if err != nil {
		slog.Error("getting strain", "error", err, "slug", slug)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if strain == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	limit := queryInt(r, "limit", defaultSimilar)
	if limit < 1 || limit > 20 {
		limit = defaultSimilar
	}

	similar, err := h.repo.SearchSimilar(r.Context(), strain.ID, limit)
	if err != nil {
		slog.Error("searching similar strains", "error", err, "strain_id", strain.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, similar)
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
