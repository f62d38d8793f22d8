package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growmate-app/growmate/internal/events"
)

func TestAIRequestEventDeserialization(t *testing.T) {
	userID := uuid.New()

	event := events.AIRequestEvent{
		RequestID: "req-abc123",
		UserID:    userID,
		Mode:      "diagnosis",
		Model:     "gemini-2.5-pro",
		Status:    "ok",
		LatencyMs: 2400,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded events.AIRequestEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "req-abc123", decoded.RequestID)
	assert.Equal(t, userID, decoded.UserID)
	assert.Equal(t, "diagnosis", decoded.Mode)
	assert.Equal(t, "gemini-2.5-pro", decoded.Model)
	assert.Equal(t, "ok", decoded.Status)
	assert.Equal(t, int64(2400), decoded.LatencyMs)
}

func TestLogFromEvent_Authenticated(t *testing.T) {
	userID := uuid.New()
	event := events.AIRequestEvent{
		RequestID: "req-1",
		UserID:    userID,
		Anonymous: false,
		Mode:      "chat",
		Model:     "gemini-2.5-flash",
		Status:    "ok",
		LatencyMs: 830,
		Timestamp: time.Now().UTC(),
	}

	log := logFromEvent(event)

	require.NotNil(t, log.UserID)
	assert.Equal(t, userID, *log.UserID)
	assert.False(t, log.Anonymous)
	assert.Equal(t, "chat", log.Mode)
	assert.Equal(t, event.Timestamp, log.CreatedAt)
	assert.NotEqual(t, uuid.Nil, log.ID)
}

func TestLogFromEvent_Anonymous(t *testing.T) {
	event := events.AIRequestEvent{
		RequestID: "req-2",
		Anonymous: true,
		Mode:      "insight",
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	}

	log := logFromEvent(event)

	assert.Nil(t, log.UserID)
	assert.True(t, log.Anonymous)
}

func TestLogFromEvent_QuotaRejection(t *testing.T) {
	event := events.AIRequestEvent{
		UserID:    uuid.New(),
		Mode:      "chat",
		Status:    "quota_rejected",
		Detail:    "Daily limit reached",
		Timestamp: time.Now().UTC(),
	}

	log := logFromEvent(event)

	assert.Equal(t, "quota_rejected", log.Status)
	assert.Equal(t, "Daily limit reached", log.Detail)
	assert.Empty(t, log.Model)
}
