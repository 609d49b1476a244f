// Package persistence defines the storage contracts for factors and backtest
// results. The engine itself is stateless; these repositories exist so the API
// layer can save what users create.
package persistence

import (
	"context"
	"time"

	"github.com/huhk345/alphagen-ai/internal/domain"
)

// StoredBacktest is one persisted backtest run for a factor.
type StoredBacktest struct {
	ID        int64                 `json:"id" db:"id"`
	UserID    string                `json:"userId" db:"user_id"`
	FactorID  string                `json:"factorId" db:"factor_id"`
	Result    domain.BacktestResult `json:"result"`
	CreatedAt time.Time             `json:"createdAt" db:"created_at"`
}

// FactorsRepo stores alpha factor definitions per user.
type FactorsRepo interface {
	// Save upserts one factor for a user.
	Save(ctx context.Context, userID string, factor domain.AlphaFactor) error
	// Sync replaces the user's factor set with the given list.
	Sync(ctx context.Context, userID string, factors []domain.AlphaFactor) error
	// Delete removes one factor owned by the user.
	Delete(ctx context.Context, userID, factorID string) error
	// ListByUser returns the user's factors, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.AlphaFactor, error)
}

// ResultsRepo stores backtest results keyed by factor.
type ResultsRepo interface {
	Save(ctx context.Context, userID, factorID string, result domain.BacktestResult) error
	ListByFactor(ctx context.Context, factorID string) ([]StoredBacktest, error)
}
