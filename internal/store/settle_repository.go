// Package store holds the pgx repositories: the curated settlement table
// and the continuous-series destination table.
package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taquant/mxfeed/internal/contracts"
)

// SettleRepository implements contracts.SettleTable on Postgres. The table
// is curated by the operator; this repository reads it in full and appends
// to it when a new contract window is confirmed.
type SettleRepository struct {
	pool *pgxpool.Pool
}

// NewSettleRepository creates a new settlement-table repository.
func NewSettleRepository(pool *pgxpool.Pool) *SettleRepository {
	return &SettleRepository{pool: pool}
}

// Load reads the whole settlement table ordered by window start.
func (r *SettleRepository) Load(ctx context.Context) ([]contracts.SettleRecord, error) {
	query := `
		SELECT contract_year_month, next_contract_diff, accumulated_contract_diff, start_k, settle_k
		FROM mxf_settle
		ORDER BY start_k ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []contracts.SettleRecord
	for rows.Next() {
		var rec contracts.SettleRecord
		if err := rows.Scan(
			&rec.ContractYearMonth, &rec.NextContractDiff, &rec.AccumulatedContractDiff,
			&rec.StartK, &rec.SettleK,
		); err != nil {
			return nil, err
		}
		rec.StartK = rec.StartK.In(contracts.Taipei)
		rec.SettleK = rec.SettleK.In(contracts.Taipei)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Save upserts a single settlement record. Used by the table-extension
// workflow: the final record gets its diffs filled in once the contract
// settles, and the successor record is appended.
func (r *SettleRepository) Save(ctx context.Context, rec contracts.SettleRecord) error {
	query := `
		INSERT INTO mxf_settle (contract_year_month, next_contract_diff, accumulated_contract_diff, start_k, settle_k)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (contract_year_month) DO UPDATE SET
			next_contract_diff = EXCLUDED.next_contract_diff,
			accumulated_contract_diff = EXCLUDED.accumulated_contract_diff,
			start_k = EXCLUDED.start_k,
			settle_k = EXCLUDED.settle_k
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ContractYearMonth, rec.NextContractDiff, rec.AccumulatedContractDiff,
		rec.StartK, rec.SettleK,
	)
	return err
}
