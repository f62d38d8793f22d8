package quota

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord matches the usage_records table schema: one row per user
// per calendar day. request_count never decreases within a day.
type UsageRecord struct {
	UserID       uuid.UUID `json:"user_id"`
	UsageDate    time.Time `json:"usage_date"`
	RequestCount int       `json:"request_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Status is the API response showing today's usage against the daily limit.
type Status struct {
	RequestsToday int    `json:"requests_today"`
	DailyLimit    int    `json:"daily_limit"`
	Remaining     int    `json:"remaining"`
	Date          string `json:"date"`
}

// Decision is the limiter's verdict for one request.
type Decision struct {
	Admitted bool
	// Degraded marks a fail-open admission: the quota store was
	// unreachable, so the request proceeds unmetered.
	Degraded bool
	// Reason is set when Admitted is false.
	Reason string
}

var (
	admitted         = Decision{Admitted: true}
	admittedDegraded = Decision{Admitted: true, Degraded: true}
)

func rejected(reason string) Decision {
	return Decision{Admitted: false, Reason: reason}
}
