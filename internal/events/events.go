package events

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents = "GROWMATE_EVENTS"
)

// Subject constants.
const (
	SubjectAIRequest = "growmate.events.ai_request"
	SubjectCareTask  = "growmate.events.care_task"
)

// AIRequestEvent is published once per AI gateway request, successful or
// not, and persisted by the audit consumer.
type AIRequestEvent struct {
	RequestID string    `json:"request_id"`
	UserID    uuid.UUID `json:"user_id,omitempty"`
	Anonymous bool      `json:"anonymous"`
	Mode      string    `json:"mode"`
	Model     string    `json:"model"`
	Status    string    `json:"status"` // ok, input_error, quota_rejected, provider_error
	LatencyMs int64     `json:"latency_ms"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CareTaskEvent is published when a care task is completed, for future
// reminder/streak features.
type CareTaskEvent struct {
	TaskID    uuid.UUID `json:"task_id"`
	UserID    uuid.UUID `json:"user_id"`
	Kind      string    `json:"kind"`
	EventType string    `json:"event_type"` // completed
	Timestamp time.Time `json:"timestamp"`
}
