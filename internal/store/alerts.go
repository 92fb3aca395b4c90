package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/vigil/internal/contracts"
)

// AlertRepository persists the early-warning alert set.
// SSOT: conviction alert persistence happens here only.
type AlertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(pool *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{pool: pool}
}

// SaveAlerts upserts the recomputed conviction records. One row per symbol;
// appearance history travels inside the record JSONB.
func (r *AlertRepository) SaveAlerts(ctx context.Context, records []contracts.ConvictionRecord) error {
	query := `
		INSERT INTO scan.alerts (symbol, level, conviction_score, record, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol) DO UPDATE SET
			level = EXCLUDED.level,
			conviction_score = EXCLUDED.conviction_score,
			record = EXCLUDED.record,
			updated_at = EXCLUDED.updated_at
	`

	for i := range records {
		rec := &records[i]
		detail, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = r.pool.Exec(ctx, query,
			rec.Symbol, string(rec.Level), rec.Score, detail, rec.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetActive retrieves alerts at or above the watch tier, strongest first.
func (r *AlertRepository) GetActive(ctx context.Context) ([]contracts.ConvictionRecord, error) {
	query := `
		SELECT record
		FROM scan.alerts
		WHERE level IN ('act', 'prepare', 'watch')
		ORDER BY conviction_score DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []contracts.ConvictionRecord
	for rows.Next() {
		var detail []byte
		if err := rows.Scan(&detail); err != nil {
			return nil, err
		}
		var rec contracts.ConvictionRecord
		if err := json.Unmarshal(detail, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PruneStale removes alert rows that stopped updating before the cutoff.
// Their conviction history has long since decayed to nothing.
func (r *AlertRepository) PruneStale(ctx context.Context, before time.Time) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM scan.alerts WHERE updated_at < $1`, before)
	return err
}
