package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store defines the usage-counter persistence operations.
type Store interface {
	// GetUsage returns the record for (userID, day), or nil if none exists.
	GetUsage(ctx context.Context, userID uuid.UUID, day time.Time) (*UsageRecord, error)
	// IncrementWithCeiling atomically increments the day's counter unless
	// it has already reached limit. It returns the new count and whether
	// the increment was applied. A single conditional upsert avoids the
	// read-then-write lost-update race between concurrent requests.
	IncrementWithCeiling(ctx context.Context, userID uuid.UUID, day time.Time, limit int) (int, bool, error)
}

type postgresStore struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) GetUsage(ctx context.Context, userID uuid.UUID, day time.Time) (*UsageRecord, error) {
	query := `
		SELECT user_id, usage_date, request_count, updated_at
		FROM usage_records
		WHERE user_id = $1 AND usage_date = $2`

	rec := &UsageRecord{}
	err := s.pool.QueryRow(ctx, query, userID, day).Scan(
		&rec.UserID, &rec.UsageDate, &rec.RequestCount, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying usage record: %w", err)
	}
	return rec, nil
}

func (s *postgresStore) IncrementWithCeiling(ctx context.Context, userID uuid.UUID, day time.Time, limit int) (int, bool, error) {
	query := `
		INSERT INTO usage_records (user_id, usage_date, request_count, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (user_id, usage_date)
		DO UPDATE SET request_count = usage_records.request_count + 1, updated_at = NOW()
		WHERE usage_records.request_count < $3
		RETURNING request_count`

	var count int
	err := s.pool.QueryRow(ctx, query, userID, day, limit).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conditional upsert matched nothing: the counter is at the ceiling.
			return limit, false, nil
		}
		return 0, false, fmt.Errorf("incrementing usage record: %w", err)
	}
	return count, true, nil
}
