package audit

import (
	"time"

	"github.com/google/uuid"
)

// AIRequestLog matches the ai_request_log table schema: one row per AI
// gateway request, written asynchronously by the consumer.
type AIRequestLog struct {
	ID        uuid.UUID  `json:"id"`
	RequestID string     `json:"request_id,omitempty"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Anonymous bool       `json:"anonymous"`
	Mode      string     `json:"mode"`
	Model     string     `json:"model,omitempty"`
	Status    string     `json:"status"`
	LatencyMs int64      `json:"latency_ms"`
	Detail    string     `json:"detail,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ListParams holds pagination and filtering parameters for request log queries.
type ListParams struct {
	Mode     string
	Status   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// DefaultListParams returns sensible defaults.
func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}
