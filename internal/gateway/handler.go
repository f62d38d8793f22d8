package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/growmate-app/growmate/internal/auth"
	"github.com/growmate-app/growmate/internal/chat"
	"github.com/growmate-app/growmate/internal/events"
	"github.com/growmate-app/growmate/internal/gemini"
	"github.com/growmate-app/growmate/internal/metrics"
	"github.com/growmate-app/growmate/internal/middleware"
	"github.com/growmate-app/growmate/internal/quota"
)

// maxBodyBytes bounds the request body; diagnosis images arrive inline
// as base64 JPEG.
const maxBodyBytes = 16 << 20

// wakeupTimeout bounds the best-effort provider ping.
const wakeupTimeout = 5 * time.Second

// Invoker is the provider call surface the handler depends on.
type Invoker interface {
	Configured() bool
	GenerateContent(ctx context.Context, model string, req *gemini.GenerateRequest) (string, error)
}

// Limiter admits or rejects a request against the daily quota.
type Limiter interface {
	CheckAndIncrement(ctx context.Context, userID uuid.UUID) quota.Decision
}

// HistoryAppender persists chat turns after a successful coaching call.
type HistoryAppender interface {
	Append(ctx context.Context, userID uuid.UUID, entries ...chat.Entry) error
}

// EventSink receives one event per AI request for audit persistence.
type EventSink interface {
	PublishAIRequest(ctx context.Context, event events.AIRequestEvent) error
}

// Handler serves the AI gateway endpoint. history and sink are optional:
// nil disables chat persistence and audit events respectively.
type Handler struct {
	composer *Composer
	invoker  Invoker
	limiter  Limiter
	history  HistoryAppender
	sink     EventSink
}

func NewHandler(composer *Composer, invoker Invoker, limiter Limiter, history HistoryAppender, sink EventSink) *Handler {
	return &Handler{
		composer: composer,
		invoker:  invoker,
		limiter:  limiter,
		history:  history,
		sink:     sink,
	}
}

// ServeAI handles POST /api/v1/ai. The flow is fixed: config check,
// parse, quota, compose, invoke, respond. The quota increment happens
// before the provider call so a slow model cannot bypass metering.
func (h *Handler) ServeAI(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Config failure is fatal for every request; surfaced before any
	// side effect.
	if !h.invoker.Configured() {
		writeError(w, http.StatusInternalServerError, "AI service is not configured", "")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}

	req, err := ParseRequest(body)
	if err != nil {
		var inputErr *InputError
		if errors.As(err, &inputErr) {
			metrics.AIRequestsTotal.WithLabelValues("invalid", "input_error").Inc()
			writeError(w, http.StatusBadRequest, inputErr.Message, inputErr.Detail)
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}

	mode := req.Mode()
	userID, authenticated := resolveUser(r)

	// Wakeup is unmetered and must always succeed: the provider ping is
	// best-effort and its failure is not the caller's problem.
	if _, ok := req.(WakeupRequest); ok {
		h.handleWakeup(w, r, start)
		return
	}

	// Daily quota: anonymous callers are unmetered; a confirmed
	// at-limit counter is the only condition that blocks.
	if authenticated {
		decision := h.limiter.CheckAndIncrement(r.Context(), userID)
		if !decision.Admitted {
			metrics.AIRequestsTotal.WithLabelValues(mode, "quota_rejected").Inc()
			h.publishEvent(r, userID, authenticated, mode, "", "quota_rejected", decision.Reason, start)
			writeError(w, http.StatusTooManyRequests, decision.Reason, "")
			return
		}
	}

	comp := h.composer.Compose(req)

	text, err := h.invoker.GenerateContent(r.Context(), comp.Model, comp.GenerateRequest())
	if err != nil {
		detail := ""
		var provErr *gemini.ProviderError
		if errors.As(err, &provErr) {
			detail = provErr.Detail
		} else {
			detail = err.Error()
		}
		slog.Error("AI provider call failed",
			"mode", mode,
			"model", comp.Model,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		metrics.AIRequestsTotal.WithLabelValues(mode, "provider_error").Inc()
		h.publishEvent(r, userID, authenticated, mode, comp.Model, "provider_error", detail, start)
		writeError(w, http.StatusInternalServerError, "AI request failed", detail)
		return
	}

	metrics.AIRequestsTotal.WithLabelValues(mode, "ok").Inc()
	h.publishEvent(r, userID, authenticated, mode, comp.Model, "ok", "", start)

	if chatReq, ok := req.(ChatRequest); ok && authenticated {
		h.persistChatTurn(r.Context(), userID, chatReq.Prompt, text)
	}

	writeResult(w, text)
}

func (h *Handler) handleWakeup(w http.ResponseWriter, r *http.Request, start time.Time) {
	comp := h.composer.Compose(WakeupRequest{})

	ctx, cancel := context.WithTimeout(r.Context(), wakeupTimeout)
	defer cancel()

	result := "ok"
	if text, err := h.invoker.GenerateContent(ctx, comp.Model, comp.GenerateRequest()); err == nil {
		result = text
	} else {
		slog.Debug("wakeup ping failed", "error", err)
	}

	metrics.AIRequestsTotal.WithLabelValues("wakeup", "ok").Inc()
	h.publishEvent(r, uuid.Nil, false, "wakeup", comp.Model, "ok", "", start)
	writeResult(w, result)
}

func (h *Handler) persistChatTurn(ctx context.Context, userID uuid.UUID, prompt, reply string) {
	if h.history == nil {
		return
	}
	now := time.Now().UTC()
	entries := []chat.Entry{}
	if prompt != "" {
		entries = append(entries, chat.Entry{Role: "user", Content: prompt, Timestamp: now})
	}
	entries = append(entries, chat.Entry{Role: "assistant", Content: reply, Timestamp: now})
	if err := h.history.Append(ctx, userID, entries...); err != nil {
		slog.Warn("persisting chat turn", "error", err, "user_id", userID)
	}
}

func (h *Handler) publishEvent(r *http.Request, userID uuid.UUID, authenticated bool, mode, model, status, detail string, start time.Time) {
	if h.sink == nil {
		return
	}
	event := events.AIRequestEvent{
		RequestID: middleware.GetRequestID(r.Context()),
		UserID:    userID,
		Anonymous: !authenticated,
		Mode:      mode,
		Model:     model,
		Status:    status,
		LatencyMs: time.Since(start).Milliseconds(),
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
	if err := h.sink.PublishAIRequest(r.Context(), event); err != nil {
		slog.Warn("publishing AI request event", "error", err)
	}
}

// resolveUser reads the identity the optional auth middleware put in the
// context. Absent or unparsable claims mean an anonymous caller, never
// an error.
func resolveUser(r *http.Request) (uuid.UUID, bool) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		slog.Warn("unparsable user ID in claims, treating as anonymous", "user_id", claims.UserID)
		return uuid.Nil, false
	}
	return userID, true
}
