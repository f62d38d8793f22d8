package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles ai_request_log PostgreSQL operations.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a single request log row.
func (r *Repository) Insert(ctx context.Context, log *AIRequestLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO ai_request_log (id, request_id, user_id, anonymous, mode, model, status, latency_ms, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		log.ID, log.RequestID, log.UserID, log.Anonymous, log.Mode, log.Model,
		log.Status, log.LatencyMs, log.Detail, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting AI request log: %w", err)
	}
	return nil
}

// ListByUser returns paginated request logs for a user with optional filters.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, params ListParams) ([]AIRequestLog, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
	args = append(args, userID)
	argIdx++

	if params.Mode != "" {
		conditions = append(conditions, fmt.Sprintf("mode = $%d", argIdx))
		args = append(args, params.Mode)
		argIdx++
	}

	if params.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, params.Status)
		argIdx++
	}

	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}

	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ai_request_log WHERE %s", where)
	var totalCount int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("counting AI request logs: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(
		`SELECT id, request_id, user_id, anonymous, mode, model, status, latency_ms, detail, created_at
		 FROM ai_request_log WHERE %s
		 ORDER BY created_at DESC
		 LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying AI request logs: %w", err)
	}
	defer rows.Close()

	var logs []AIRequestLog
	for rows.Next() {
		var l AIRequestLog
		if err := rows.Scan(&l.ID, &l.RequestID, &l.UserID, &l.Anonymous, &l.Mode,
			&l.Model, &l.Status, &l.LatencyMs, &l.Detail, &l.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning AI request log: %w", err)
		}
		logs = append(logs, l)
	}

	return logs, totalCount, nil
}
