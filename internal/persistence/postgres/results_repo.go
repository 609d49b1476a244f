package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/huhk345/alphagen-ai/internal/domain"
	"github.com/huhk345/alphagen-ai/internal/persistence"
)

// resultsRepo implements persistence.ResultsRepo. The result document is
// stored as JSONB; only the lookup keys get their own columns.
type resultsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewResultsRepo creates a PostgreSQL backtest results repository.
func NewResultsRepo(db *sqlx.DB, timeout time.Duration) persistence.ResultsRepo {
	return &resultsRepo{db: db, timeout: timeout}
}

func (r *resultsRepo) Save(ctx context.Context, userID, factorID string, result domain.BacktestResult) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO backtest_results (user_id, factor_id, result, created_at)
		VALUES ($1, $2, $3, $4)`,
		userID, factorID, doc, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save backtest result for factor %s: %w", factorID, err)
	}
	return nil
}

func (r *resultsRepo) ListByFactor(ctx context.Context, factorID string) ([]persistence.StoredBacktest, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, user_id, factor_id, result, created_at
		FROM backtest_results
		WHERE factor_id = $1
		ORDER BY created_at DESC`, factorID)
	if err != nil {
		return nil, fmt.Errorf("list results for factor %s: %w", factorID, err)
	}
	defer rows.Close()

	var out []persistence.StoredBacktest
	for rows.Next() {
		var (
			stored persistence.StoredBacktest
			doc    []byte
		)
		if err := rows.Scan(&stored.ID, &stored.UserID, &stored.FactorID, &doc, &stored.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backtest result: %w", err)
		}
		if err := json.Unmarshal(doc, &stored.Result); err != nil {
			return nil, fmt.Errorf("decode backtest result %d: %w", stored.ID, err)
		}
		out = append(out, stored)
	}
	return out, rows.Err()
}
