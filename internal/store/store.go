package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/pkg/logger"
)

// Store bundles the repositories behind the orchestrator's persistence
// surface.
type Store struct {
	Cycles *CycleRepository
	Alerts *AlertRepository
	Ledger *LedgerRepository
}

// New creates the repository bundle on a shared pool.
func New(pool *pgxpool.Pool, log *logger.Logger) *Store {
	return &Store{
		Cycles: NewCycleRepository(pool),
		Alerts: NewAlertRepository(pool),
		Ledger: NewLedgerRepository(pool, log),
	}
}

// SaveCycle persists one cycle's output.
func (s *Store) SaveCycle(ctx context.Context, result *contracts.CycleResult) error {
	return s.Cycles.SaveCycle(ctx, result)
}

// SaveAlerts persists the recomputed alert set.
func (s *Store) SaveAlerts(ctx context.Context, records []contracts.ConvictionRecord) error {
	return s.Alerts.SaveAlerts(ctx, records)
}

// PruneHistory drops cycle output and stale alert rows past the retention
// cutoff.
func (s *Store) PruneHistory(ctx context.Context, before time.Time) error {
	if err := s.Cycles.PruneResults(ctx, before); err != nil {
		return err
	}
	return s.Alerts.PruneStale(ctx, before)
}

// GetLatestCycle retrieves the most recent persisted cycle.
func (s *Store) GetLatestCycle(ctx context.Context) (*contracts.CycleResult, error) {
	return s.Cycles.GetLatestCycle(ctx)
}

// GetSymbolHistory retrieves a symbol's scored results since a cutoff.
func (s *Store) GetSymbolHistory(ctx context.Context, symbol string, since time.Time) ([]contracts.ScoredResult, error) {
	return s.Cycles.GetSymbolHistory(ctx, symbol, since)
}
