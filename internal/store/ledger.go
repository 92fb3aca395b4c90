package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/pkg/logger"
)

// LedgerRepository persists budget ledger checkpoints.
// SSOT: budget audit persistence happens here only.
type LedgerRepository struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(pool *pgxpool.Pool, log *logger.Logger) *LedgerRepository {
	return &LedgerRepository{pool: pool, logger: log}
}

// SaveCheckpoint appends one ledger checkpoint row.
func (r *LedgerRepository) SaveCheckpoint(ctx context.Context, cp contracts.LedgerCheckpoint) error {
	query := `
		INSERT INTO scan.budget_ledger (checkpoint_at, source, window_name, cumulative_used, window_limit)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		cp.Timestamp, string(cp.Source), string(cp.Window), cp.CumulativeUsed, cp.WindowLimit,
	)
	return err
}

// Checkpoint adapts the repository to the budget manager's callback. The
// write is best effort; a failed checkpoint must never stall admission.
func (r *LedgerRepository) Checkpoint(cp contracts.LedgerCheckpoint) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.SaveCheckpoint(ctx, cp); err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"source": cp.Source,
			"window": cp.Window,
		}).Warn("Ledger checkpoint write failed")
	}
}

// GetUsage retrieves the latest checkpoint per source/window since a cutoff.
func (r *LedgerRepository) GetUsage(ctx context.Context, since time.Time) ([]contracts.LedgerCheckpoint, error) {
	query := `
		SELECT DISTINCT ON (source, window_name)
			checkpoint_at, source, window_name, cumulative_used, window_limit
		FROM scan.budget_ledger
		WHERE checkpoint_at >= $1
		ORDER BY source, window_name, checkpoint_at DESC
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checkpoints []contracts.LedgerCheckpoint
	for rows.Next() {
		var cp contracts.LedgerCheckpoint
		var source, window string
		if err := rows.Scan(&cp.Timestamp, &source, &window, &cp.CumulativeUsed, &cp.WindowLimit); err != nil {
			return nil, err
		}
		cp.Source = contracts.Source(source)
		cp.Window = contracts.WindowName(window)
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}
