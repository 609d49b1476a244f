// Package postgres implements the persistence repositories on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/huhk345/alphagen-ai/internal/domain"
	"github.com/huhk345/alphagen-ai/internal/persistence"
)

// factorsRepo implements persistence.FactorsRepo.
type factorsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewFactorsRepo creates a PostgreSQL factors repository.
func NewFactorsRepo(db *sqlx.DB, timeout time.Duration) persistence.FactorsRepo {
	return &factorsRepo{db: db, timeout: timeout}
}

const upsertFactorQuery = `
	INSERT INTO alpha_factors
		(id, user_id, name, formula, description, intuition, category,
		 sources, last_benchmark, buy_threshold, sell_threshold, code, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		formula = EXCLUDED.formula,
		description = EXCLUDED.description,
		intuition = EXCLUDED.intuition,
		category = EXCLUDED.category,
		sources = EXCLUDED.sources,
		last_benchmark = EXCLUDED.last_benchmark,
		buy_threshold = EXCLUDED.buy_threshold,
		sell_threshold = EXCLUDED.sell_threshold,
		code = EXCLUDED.code`

func (r *factorsRepo) Save(ctx context.Context, userID string, factor domain.AlphaFactor) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sources, err := json.Marshal(factor.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, upsertFactorQuery,
		factor.ID, userID, factor.Name, factor.Formula, factor.Description,
		factor.Intuition, factor.Category, sources, factor.LastBenchmark,
		factor.BuyThreshold, factor.SellThreshold, factor.Code,
		time.UnixMilli(factor.CreatedAt).UTC())
	if err != nil {
		return fmt.Errorf("save factor %s: %w", factor.ID, err)
	}
	return nil
}

func (r *factorsRepo) Sync(ctx context.Context, userID string, factors []domain.AlphaFactor) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync: %w", err)
	}
	defer tx.Rollback()

	keep := make([]string, 0, len(factors))
	for _, f := range factors {
		keep = append(keep, f.ID)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM alpha_factors WHERE user_id = $1 AND id <> ALL($2)`,
		userID, pq.Array(keep)); err != nil {
		return fmt.Errorf("prune factors: %w", err)
	}

	for _, f := range factors {
		sources, err := json.Marshal(f.Sources)
		if err != nil {
			return fmt.Errorf("marshal sources: %w", err)
		}
		if _, err := tx.ExecContext(ctx, upsertFactorQuery,
			f.ID, userID, f.Name, f.Formula, f.Description, f.Intuition,
			f.Category, sources, f.LastBenchmark, f.BuyThreshold,
			f.SellThreshold, f.Code, time.UnixMilli(f.CreatedAt).UTC()); err != nil {
			return fmt.Errorf("sync factor %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

func (r *factorsRepo) Delete(ctx context.Context, userID, factorID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM alpha_factors WHERE id = $1 AND user_id = $2`, factorID, userID)
	if err != nil {
		return fmt.Errorf("delete factor %s: %w", factorID, err)
	}
	return nil
}

func (r *factorsRepo) ListByUser(ctx context.Context, userID string) ([]domain.AlphaFactor, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, user_id, name, formula, description, intuition, category,
		       sources, last_benchmark, buy_threshold, sell_threshold, code, created_at
		FROM alpha_factors
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list factors for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.AlphaFactor
	for rows.Next() {
		var (
			f         domain.AlphaFactor
			sources   []byte
			createdAt time.Time
		)
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &f.Formula, &f.Description,
			&f.Intuition, &f.Category, &sources, &f.LastBenchmark,
			&f.BuyThreshold, &f.SellThreshold, &f.Code, &createdAt); err != nil {
			return nil, fmt.Errorf("scan factor: %w", err)
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &f.Sources); err != nil {
				return nil, fmt.Errorf("decode sources for %s: %w", f.ID, err)
			}
		}
		f.CreatedAt = createdAt.UnixMilli()
		out = append(out, f)
	}
	return out, rows.Err()
}
