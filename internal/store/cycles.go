// Package store persists scan output to PostgreSQL: cycle results, the
// early-warning alert set and budget ledger checkpoints.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/vigil/internal/contracts"
)

// CycleRepository persists per-cycle scan output.
// SSOT: cycle result persistence happens here only.
type CycleRepository struct {
	pool *pgxpool.Pool
}

// NewCycleRepository creates a new cycle repository
func NewCycleRepository(pool *pgxpool.Pool) *CycleRepository {
	return &CycleRepository{pool: pool}
}

// SaveCycle saves a cycle header plus one row per scored result. The verdict
// and per-result detail are stored as JSONB so the scoring schema can evolve
// without migrations.
func (r *CycleRepository) SaveCycle(ctx context.Context, result *contracts.CycleResult) error {
	verdict, err := json.Marshal(result.Verdict)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scan.cycles (cycle_timestamp, verdict, completed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cycle_timestamp) DO UPDATE SET
			verdict = EXCLUDED.verdict,
			completed_at = EXCLUDED.completed_at
	`
	if _, err := r.pool.Exec(ctx, query, result.Cycle, verdict, result.CompletedAt); err != nil {
		return err
	}

	for engine, results := range result.ResultsByEngine {
		for i := range results {
			if err := r.saveResult(ctx, result.Cycle, engine, &results[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *CycleRepository) saveResult(ctx context.Context, cycle time.Time, engine contracts.Engine, res *contracts.ScoredResult) error {
	detail, err := json.Marshal(res)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scan.cycle_results (cycle_timestamp, symbol, engine, final_score, actionable, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cycle_timestamp, symbol) DO UPDATE SET
			engine = EXCLUDED.engine,
			final_score = EXCLUDED.final_score,
			actionable = EXCLUDED.actionable,
			detail = EXCLUDED.detail
	`
	_, err = r.pool.Exec(ctx, query,
		cycle, res.Symbol, string(engine), res.FinalScore, res.Actionable, detail,
	)
	return err
}

// GetLatestCycle retrieves the most recent completed cycle.
func (r *CycleRepository) GetLatestCycle(ctx context.Context) (*contracts.CycleResult, error) {
	query := `
		SELECT cycle_timestamp, verdict, completed_at
		FROM scan.cycles
		ORDER BY cycle_timestamp DESC
		LIMIT 1
	`

	var result contracts.CycleResult
	var verdict []byte
	err := r.pool.QueryRow(ctx, query).Scan(&result.Cycle, &verdict, &result.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(verdict, &result.Verdict); err != nil {
		return nil, err
	}

	results, err := r.getResults(ctx, result.Cycle)
	if err != nil {
		return nil, err
	}
	result.ResultsByEngine = results
	return &result, nil
}

func (r *CycleRepository) getResults(ctx context.Context, cycle time.Time) (map[contracts.Engine][]contracts.ScoredResult, error) {
	query := `
		SELECT engine, detail
		FROM scan.cycle_results
		WHERE cycle_timestamp = $1
		ORDER BY final_score DESC, symbol ASC
	`

	rows, err := r.pool.Query(ctx, query, cycle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := make(map[contracts.Engine][]contracts.ScoredResult)
	for rows.Next() {
		var engine string
		var detail []byte
		if err := rows.Scan(&engine, &detail); err != nil {
			return nil, err
		}
		var res contracts.ScoredResult
		if err := json.Unmarshal(detail, &res); err != nil {
			return nil, err
		}
		grouped[contracts.Engine(engine)] = append(grouped[contracts.Engine(engine)], res)
	}
	return grouped, rows.Err()
}

// GetSymbolHistory retrieves a symbol's scored results within a window,
// newest first.
func (r *CycleRepository) GetSymbolHistory(ctx context.Context, symbol string, since time.Time) ([]contracts.ScoredResult, error) {
	query := `
		SELECT detail
		FROM scan.cycle_results
		WHERE symbol = $1 AND cycle_timestamp >= $2
		ORDER BY cycle_timestamp DESC
	`

	rows, err := r.pool.Query(ctx, query, symbol, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []contracts.ScoredResult
	for rows.Next() {
		var detail []byte
		if err := rows.Scan(&detail); err != nil {
			return nil, err
		}
		var res contracts.ScoredResult
		if err := json.Unmarshal(detail, &res); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// PruneResults deletes cycle rows older than the retention cutoff.
func (r *CycleRepository) PruneResults(ctx context.Context, before time.Time) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM scan.cycle_results WHERE cycle_timestamp < $1`, before); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM scan.cycles WHERE cycle_timestamp < $1`, before)
	return err
}
