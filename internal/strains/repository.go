package strains

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

const strainColumns = `id, slug, name, type, lineage, breeder, thc_percent, cbd_percent,
	flowering_weeks, difficulty, terpenes, effects, description, created_at`

type Repository interface {
	List(ctx context.Context, page, pageSize int) ([]Strain, error)
	Count(ctx context.Context) (int64, error)
	Search(ctx context.Context, query string, limit int) ([]Strain, error)
	GetBySlug(ctx context.Context, slug string) (*Strain, error)
	SearchSimilar(ctx context.Context, id uuid.UUID, limit int) ([]SimilarStrain, error)
	SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) List(ctx context.Context, page, pageSize int) ([]Strain, error) {
	offset := (page - 1) * pageSize
	rows, err := r.pool.Query(ctx,
		`SELECT `+strainColumns+` FROM strains ORDER BY name LIMIT $1 OFFSET $2`,
		pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing strains: %w", err)
	}
	defer rows.Close()
	return scanStrains(rows)
}

func (r *postgresRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM strains`).Scan(&count)
	return count, err
}

func (r *postgresRepository) Search(ctx context.Context, query string, limit int) ([]Strain, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+strainColumns+` FROM strains
		 WHERE name ILIKE '%' || $1 || '%' OR lineage ILIKE '%' || $1 || '%'
		 ORDER BY name LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching strains: %w", err)
	}
	defer rows.Close()
	return scanStrains(rows)
}

func (r *postgresRepository) GetBySlug(ctx context.Context, slug string) (*Strain, error) {
	var s Strain
	err := r.pool.QueryRow(ctx,
		`SELECT `+strainColumns+` FROM strains WHERE slug = $1`, slug,
	).Scan(
		&s.ID, &s.Slug, &s.Name, &s.Type, &s.Lineage, &s.Breeder,
		&s.THCPercent, &s.CBDPercent, &s.FloweringWeeks, &s.Difficulty,
		&s.Terpenes, &s.Effects, &s.Description, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying strain by slug: %w", err)
	}
	return &s, nil
}

// SearchSimilar returns the strains closest in description space to the
// given one, excluding itself. Strains without an embedding are skipped.
func (r *postgresRepository) SearchSimilar(ctx context.Context, id uuid.UUID, limit int) ([]SimilarStrain, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+strainColumns+`,
		        1 - (embedding <=> (SELECT embedding FROM strains WHERE id = $1)) AS similarity
		 FROM strains
		 WHERE id != $1
		   AND embedding IS NOT NULL
		   AND (SELECT embedding FROM strains WHERE id = $1) IS NOT NULL
		 ORDER BY embedding <=> (SELECT embedding FROM strains WHERE id = $1)
		 LIMIT $2`,
		id, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching similar strains: %w", err)
	}
	defer rows.Close()

	var results []SimilarStrain
	for rows.Next() {
		var s SimilarStrain
		if err := rows.Scan(
			&s.ID, &s.Slug, &s.Name, &s.Type, &s.Lineage, &s.Breeder,
			&s.THCPercent, &s.CBDPercent, &s.FloweringWeeks, &s.Difficulty,
			&s.Terpenes, &s.Effects, &s.Description, &s.CreatedAt,
			&s.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scanning similar strain: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

func (r *postgresRepository) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	tag, err := r.pool.Exec(ctx,
		`UPDATE strains SET embedding = $2 WHERE id = $1`, id, vec,
	)
	if err != nil {
		return fmt.Errorf("setting strain embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("strain not found")
	}
	return nil
}

func scanStrains(rows pgx.Rows) ([]Strain, error) {
	var strains []Strain
	for rows.Next() {
		var s Strain
		if err := rows.Scan(
			&s.ID, &s.Slug, &s.Name, &s.Type, &s.Lineage, &s.Breeder,
			&s.THCPercent, &s.CBDPercent, &s.FloweringWeeks, &s.Difficulty,
			&s.Terpenes, &s.Effects, &s.Description, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning strain: %w", err)
		}
		strains = append(strains, s)
	}
	return strains, rows.Err()
}
