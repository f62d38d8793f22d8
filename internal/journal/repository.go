package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	CreateEntry(ctx context.Context, entry *Entry) error
	ListEntries(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Entry, error)
	CountEntries(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteEntry(ctx context.Context, id, userID uuid.UUID) error

	CreateTask(ctx context.Context, task *CareTask) error
	ListTasks(ctx context.Context, userID uuid.UUID, includeCompleted bool) ([]CareTask, error)
	GetTask(ctx context.Context, id, userID uuid.UUID) (*CareTask, error)
	CompleteTask(ctx context.Context, id, userID uuid.UUID, completedAt time.Time) (*CareTask, error)
	DeleteTask(ctx context.Context, id, userID uuid.UUID) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) CreateEntry(ctx context.Context, entry *Entry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO journal_entries (id, user_id, stage, note, photo_ref, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.UserID, entry.Stage, entry.Note, entry.PhotoRef, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListEntries(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Entry, error) {
	offset := (page - 1) * pageSize
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, stage, note, photo_ref, created_at
		 FROM journal_entries
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing journal entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Stage, &e.Note, &e.PhotoRef, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *postgresRepository) CountEntries(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM journal_entries WHERE user_id = $1`, userID,
	).Scan(&count)
	return count, err
}

func (r *postgresRepository) DeleteEntry(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM journal_entries WHERE id = $1 AND user_id = $2`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting journal entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) CreateTask(ctx context.Context, task *CareTask) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO care_tasks (id, user_id, kind, title, due_at, repeat_days, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.UserID, task.Kind, task.Title, task.DueAt, task.RepeatDays, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting care task: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListTasks(ctx context.Context, userID uuid.UUID, includeCompleted bool) ([]CareTask, error) {
	query := `SELECT id, user_id, kind, title, due_at, repeat_days, completed_at, created_at
		 FROM care_tasks
		 WHERE user_id = $1`
	if !includeCompleted {
		query += ` AND completed_at IS NULL`
	}
	query += ` ORDER BY due_at`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing care tasks: %w", err)
	}
	defer rows.Close()

	var tasks []CareTask
	for rows.Next() {
		var t CareTask
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Title, &t.DueAt, &t.RepeatDays, &t.CompletedAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning care task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *postgresRepository) GetTask(ctx context.Context, id, userID uuid.UUID) (*CareTask, error) {
	var t CareTask
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, kind, title, due_at, repeat_days, completed_at, created_at
		 FROM care_tasks
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&t.ID, &t.UserID, &t.Kind, &t.Title, &t.DueAt, &t.RepeatDays, &t.CompletedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying care task: %w", err)
	}
	return &t, nil
}

// CompleteTask marks a pending task done. A repeating task spawns its
// next occurrence in the same transaction.
func (r *postgresRepository) CompleteTask(ctx context.Context, id, userID uuid.UUID, completedAt time.Time) (*CareTask, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var t CareTask
	err = tx.QueryRow(ctx,
		`UPDATE care_tasks
		 SET completed_at = $3
		 WHERE id = $1 AND user_id = $2 AND completed_at IS NULL
		 RETURNING id, user_id, kind, title, due_at, repeat_days, completed_at, created_at`,
		id, userID, completedAt,
	).Scan(&t.ID, &t.UserID, &t.Kind, &t.Title, &t.DueAt, &t.RepeatDays, &t.CompletedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("completing care task: %w", err)
	}

	if t.RepeatDays > 0 {
		_, err = tx.Exec(ctx,
			`INSERT INTO care_tasks (id, user_id, kind, title, due_at, repeat_days, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), t.UserID, t.Kind, t.Title,
			t.DueAt.AddDate(0, 0, t.RepeatDays), t.RepeatDays, completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scheduling next occurrence: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing task completion: %w", err)
	}
	return &t, nil
}

func (r *postgresRepository) DeleteTask(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM care_tasks WHERE id = $1 AND user_id = $2`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting care task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ErrNotFound marks a missing or foreign-owned row.
var ErrNotFound = errors.New("not found")
