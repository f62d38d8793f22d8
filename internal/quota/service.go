package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/growmate-app/growmate/internal/metrics"
)

// RejectionReason is the only message the limiter ever blocks with.
const RejectionReason = "Daily limit reached"

// Service enforces the soft per-day request quota. Availability wins over
// accounting accuracy: any store failure admits the request (degraded);
// only a confirmed at-ceiling counter rejects.
type Service struct {
	store Store
	limit int
	// now is swappable in tests.
	now func() time.Time
}

func NewService(store Store, dailyLimit int) *Service {
	return &Service{
		store: store,
		limit: dailyLimit,
		now:   time.Now,
	}
}

// DailyLimit returns the configured per-day request ceiling.
func (s *Service) DailyLimit() int {
	return s.limit
}

// CheckAndIncrement admits or rejects one request for userID and, when
// admitted, counts it against today's quota. The decision table:
//
//	counter below limit, increment applied  -> admitted
//	counter at limit                        -> rejected
//	store error                             -> admitted (degraded), logged
func (s *Service) CheckAndIncrement(ctx context.Context, userID uuid.UUID) Decision {
	day := s.today()

	count, applied, err := s.store.IncrementWithCeiling(ctx, userID, day, s.limit)
	if err != nil {
		slog.Warn("quota: store unreachable, admitting request fail-open",
			"user_id", userID, "error", err)
		metrics.QuotaDegradedTotal.Inc()
		return admittedDegraded
	}
	if !applied {
		slog.Info("quota: daily limit reached", "user_id", userID, "count", count, "limit", s.limit)
		metrics.QuotaRejectionsTotal.Inc()
		return rejected(RejectionReason)
	}
	return admitted
}

// GetStatus returns today's usage for API display. A missing record reads
// as zero usage.
func (s *Service) GetStatus(ctx context.Context, userID uuid.UUID) (*Status, error) {
	day := s.today()

	rec, err := s.store.GetUsage(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	used := 0
	if rec != nil {
		used = rec.RequestCount
	}
	remaining := s.limit - used
	if remaining < 0 {
		remaining = 0
	}

	return &Status{
		RequestsToday: used,
		DailyLimit:    s.limit,
		Remaining:     remaining,
		Date:          day.Format("2006-01-02"),
	}, nil
}

// today truncates to a UTC calendar day so the quota key is stable across
// server time zones.
func (s *Service) today() time.Time {
	t := s.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
