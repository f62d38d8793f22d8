package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growmate-app/growmate/internal/auth"
	"github.com/growmate-app/growmate/internal/chat"
	"github.com/growmate-app/growmate/internal/events"
	"github.com/growmate-app/growmate/internal/gemini"
	"github.com/growmate-app/growmate/internal/quota"
)

type fakeInvoker struct {
	configured bool
	text       string
	err        error

	calls     int
	lastModel string
	lastReq   *gemini.GenerateRequest
}

func (f *fakeInvoker) Configured() bool { return f.configured }

func (f *fakeInvoker) GenerateContent(ctx context.Context, model string, req *gemini.GenerateRequest) (string, error) {
	f.calls++
	f.lastModel = model
	f.lastReq = req
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.text, f.err
}

type fakeLimiter struct {
	decision quota.Decision
	calls    int
	lastUser uuid.UUID
}

func (f *fakeLimiter) CheckAndIncrement(ctx context.Context, userID uuid.UUID) quota.Decision {
	f.calls++
	f.lastUser = userID
	return f.decision
}

type fakeHistory struct {
	entries []chat.Entry
	userID  uuid.UUID
}

func (f *fakeHistory) Append(ctx context.Context, userID uuid.UUID, entries ...chat.Entry) error {
	f.userID = userID
	f.entries = append(f.entries, entries...)
	return nil
}

type fakeSink struct {
	published []events.AIRequestEvent
}

func (f *fakeSink) PublishAIRequest(ctx context.Context, event events.AIRequestEvent) error {
	f.published = append(f.published, event)
	return nil
}

type handlerFixture struct {
	handler *Handler
	invoker *fakeInvoker
	limiter *fakeLimiter
	history *fakeHistory
	sink    *fakeSink
}

func newHandlerFixture() *handlerFixture {
	invoker := &fakeInvoker{configured: true, text: "generated text"}
	limiter := &fakeLimiter{decision: quota.Decision{Admitted: true}}
	history := &fakeHistory{}
	sink := &fakeSink{}
	composer := NewComposer("gemini-2.5-flash", "gemini-2.5-pro")
	return &handlerFixture{
		handler: NewHandler(composer, invoker, limiter, history, sink),
		invoker: invoker,
		limiter: limiter,
		history: history,
		sink:    sink,
	}
}

func doAI(t *testing.T, f *handlerFixture, body string, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai", strings.NewReader(body))
	if userID != "" {
		claims := &auth.AccessClaims{UserID: userID}
		req = req.WithContext(context.WithValue(req.Context(), auth.UserClaimsKey, claims))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeAI(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestServeAI_AnonymousInsight(t *testing.T) {
	f := newHandlerFixture()
	f.invoker.text = "Blue Dream descends from Blueberry and Haze."

	rec := doAI(t, f, `{"mode":"insight","prompt":"Describe Blue Dream lineage"}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Blue Dream descends from Blueberry and Haze.", body["result"])

	// Anonymous callers are never metered.
	assert.Zero(t, f.limiter.calls)
	assert.Equal(t, 1, f.invoker.calls)
}

func TestServeAI_DiagnosisWithoutImage(t *testing.T) {
	f := newHandlerFixture()

	rec := doAI(t, f, `{"mode":"diagnosis","prompt":"spots"}`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "Missing required fields")

	// Validation failures never reach the provider or the quota store.
	assert.Zero(t, f.invoker.calls)
	assert.Zero(t, f.limiter.calls)
}

func TestServeAI_QuotaRejected(t *testing.T) {
	f := newHandlerFixture()
	f.limiter.decision = quota.Decision{Admitted: false, Reason: quota.RejectionReason}
	userID := uuid.New()

	rec := doAI(t, f, `{"mode":"chat","prompt":"hi"}`, userID.String())

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Daily limit reached", body["error"])

	assert.Equal(t, 1, f.limiter.calls)
	assert.Equal(t, userID, f.limiter.lastUser)
	assert.Zero(t, f.invoker.calls)

	require.Len(t, f.sink.published, 1)
	assert.Equal(t, "quota_rejected", f.sink.published[0].Status)
}

func TestServeAI_MalformedJSON(t *testing.T) {
	f := newHandlerFixture()

	rec := doAI(t, f, `{"mode":`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Invalid JSON body", body["error"])
	assert.Zero(t, f.invoker.calls)
}

func TestServeAI_InvalidMode(t *testing.T) {
	f := newHandlerFixture()

	rec := doAI(t, f, `{"mode":"summarize","prompt":"hi"}`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Invalid mode", body["error"])
}

func TestServeAI_WakeupAlways200(t *testing.T) {
	f := newHandlerFixture()
	f.invoker.err = &gemini.ProviderError{Detail: "model overloaded"}

	rec := doAI(t, f, `{"mode":"wakeup"}`, "")

	// Provider failure must not surface on the warmup path.
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["result"])
	assert.Zero(t, f.limiter.calls)
}

func TestServeAI_WakeupSkipsQuotaEvenAuthenticated(t *testing.T) {
	f := newHandlerFixture()
	f.invoker.text = "pong"

	rec := doAI(t, f, `{"mode":"wakeup"}`, uuid.NewString())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.limiter.calls)
	body := decodeBody(t, rec)
	assert.Equal(t, "pong", body["result"])
}

func TestServeAI_ProviderError(t *testing.T) {
	f := newHandlerFixture()
	f.invoker.err = &gemini.ProviderError{Detail: "upstream 503"}

	rec := doAI(t, f, `{"mode":"chat","prompt":"hi"}`, uuid.NewString())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "AI request failed", body["error"])
	assert.Equal(t, "upstream 503", body["details"])

	// The quota increment happened before the failed call and is not
	// refunded.
	assert.Equal(t, 1, f.limiter.calls)

	require.Len(t, f.sink.published, 1)
	assert.Equal(t, "provider_error", f.sink.published[0].Status)
}

func TestServeAI_NotConfigured(t *testing.T) {
	f := newHandlerFixture()
	f.invoker.configured = false

	rec := doAI(t, f, `{"mode":"chat","prompt":"hi"}`, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "not configured")
	assert.Zero(t, f.invoker.calls)
}

func TestServeAI_QuotaDegradedStillServes(t *testing.T) {
	f := newHandlerFixture()
	f.limiter.decision = quota.Decision{Admitted: true, Degraded: true}

	rec := doAI(t, f, `{"mode":"chat","prompt":"hi"}`, uuid.NewString())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.invoker.calls)
}

func TestServeAI_ChatPersistsHistory(t *testing.T) {
	f := newHandlerFixture()
	f.invoker.text = "try lowering the pH"
	userID := uuid.New()

	rec := doAI(t, f, `{"mode":"chat","prompt":"leaves curling"}`, userID.String())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, f.history.userID)
	require.Len(t, f.history.entries, 2)
	assert.Equal(t, "user", f.history.entries[0].Role)
	assert.Equal(t, "leaves curling", f.history.entries[0].Content)
	assert.Equal(t, "assistant", f.history.entries[1].Role)
	assert.Equal(t, "try lowering the pH", f.history.entries[1].Content)
}

func TestServeAI_AnonymousChatSkipsHistory(t *testing.T) {
	f := newHandlerFixture()

	rec := doAI(t, f, `{"mode":"chat","prompt":"hi"}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.history.entries)
}

func TestServeAI_DiagnosisDoesNotPersistHistory(t *testing.T) {
	f := newHandlerFixture()
	f.invoker.text = `{"diagnosis":"nitrogen deficiency"}`

	rec := doAI(t, f, `{"mode":"diagnosis","prompt":"spots","image":"aGVsbG8="}`, uuid.NewString())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.history.entries)
}

func TestServeAI_ModelSelection(t *testing.T) {
	f := newHandlerFixture()

	doAI(t, f, `{"mode":"diagnosis","prompt":"spots","image":"aGVsbG8="}`, "")
	assert.Equal(t, "gemini-2.5-pro", f.invoker.lastModel)

	doAI(t, f, `{"mode":"chat","prompt":"hi"}`, "")
	assert.Equal(t, "gemini-2.5-flash", f.invoker.lastModel)
}

func TestServeAI_EventCarriesIdentity(t *testing.T) {
	f := newHandlerFixture()
	userID := uuid.New()

	doAI(t, f, `{"mode":"insight","prompt":"lineage"}`, userID.String())

	require.Len(t, f.sink.published, 1)
	event := f.sink.published[0]
	assert.Equal(t, "insight", event.Mode)
	assert.Equal(t, "ok", event.Status)
	assert.Equal(t, userID, event.UserID)
	assert.False(t, event.Anonymous)
}

func TestServeAI_UnparsableClaimsTreatedAnonymous(t *testing.T) {
	f := newHandlerFixture()

	rec := doAI(t, f, `{"mode":"chat","prompt":"hi"}`, "not-a-uuid")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.limiter.calls)
}

func TestServeAI_NilSinkAndHistory(t *testing.T) {
	invoker := &fakeInvoker{configured: true, text: "ok"}
	limiter := &fakeLimiter{decision: quota.Decision{Admitted: true}}
	h := NewHandler(NewComposer("gemini-2.5-flash", "gemini-2.5-pro"), invoker, limiter, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai", strings.NewReader(`{"mode":"chat","prompt":"hi"}`))
	claims := &auth.AccessClaims{UserID: uuid.NewString()}
	req = req.WithContext(context.WithValue(req.Context(), auth.UserClaimsKey, claims))
	rec := httptest.NewRecorder()

	h.ServeAI(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
