package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taquant/mxfeed/internal/contracts"
)

// RowRepository implements contracts.RowStore on Postgres. The destination
// table is append-only at the (date_market_type, timeframe) grain: rows for
// a completed session batch are inserted once and never rewritten, so the
// insert uses DO NOTHING rather than an upsert.
type RowRepository struct {
	pool *pgxpool.Pool
}

// NewRowRepository creates a new continuous-series repository.
func NewRowRepository(pool *pgxpool.Pool) *RowRepository {
	return &RowRepository{pool: pool}
}

// ExistingKeys returns the watermark: every (date_market_type, timeframe)
// pair already persisted for session dates in [from, to]. Padding the
// timestamp window past `to` is owned here, per the RowStore contract:
// a night session attributed to `to` carries stamps into the following
// early morning. Too wide is safe, it only suppresses more duplicates.
func (r *RowRepository) ExistingKeys(ctx context.Context, from, to time.Time) (contracts.KeySet, error) {
	query := `
		SELECT DISTINCT date_market_type, timeframe
		FROM mxf_continuous
		WHERE ts >= $1 AND ts < $2
	`

	rows, err := r.pool.Query(ctx, query, from, to.AddDate(0, 0, 2))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(contracts.KeySet)
	for rows.Next() {
		var dmt, tf string
		if err := rows.Scan(&dmt, &tf); err != nil {
			return nil, err
		}
		keys[contracts.RowKey{DateMarketType: dmt, Timeframe: contracts.Timeframe(tf)}] = struct{}{}
	}
	return keys, rows.Err()
}

// Rows returns the persisted rows for one session batch and timeframe,
// ordered by timestamp. Serves the status API.
func (r *RowRepository) Rows(ctx context.Context, dateMarketType string, tf contracts.Timeframe) ([]contracts.AdjustedRow, error) {
	query := `
		SELECT ts, open_price, high_price, low_price, close_price, volume,
		       timeframe, session, date_market_type, mxf_code, contract_year_month, accumulated_contract_diff
		FROM mxf_continuous
		WHERE date_market_type = $1 AND timeframe = $2
		ORDER BY ts ASC
	`

	rows, err := r.pool.Query(ctx, query, dateMarketType, string(tf))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.AdjustedRow
	for rows.Next() {
		var row contracts.AdjustedRow
		var tfs, sess string
		if err := rows.Scan(&row.TS, &row.Open, &row.High, &row.Low, &row.Close, &row.Volume,
			&tfs, &sess, &row.DateMarketType, &row.MXFCode, &row.ContractYearMonth,
			&row.AccumulatedContractDiff); err != nil {
			return nil, err
		}
		row.Timeframe = contracts.Timeframe(tfs)
		row.Session = contracts.Session(sess)
		row.TS = row.TS.In(contracts.Taipei)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Write inserts adjusted rows in one round trip.
func (r *RowRepository) Write(ctx context.Context, rows []contracts.AdjustedRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO mxf_continuous
			(ts, open_price, high_price, low_price, close_price, volume,
			 timeframe, session, date_market_type, mxf_code, contract_year_month, accumulated_contract_diff)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (date_market_type, timeframe, ts) DO NOTHING`

	for _, row := range rows {
		batch.Queue(query, row.TS, row.Open, row.High, row.Low, row.Close, row.Volume,
			string(row.Timeframe), string(row.Session), row.DateMarketType,
			row.MXFCode, row.ContractYearMonth, row.AccumulatedContractDiff)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}

	return nil
}
