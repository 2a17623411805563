package contracts

import "time"

// RowKey is the idempotency key at which the destination store is
// append-only: one completed session batch per timeframe.
type RowKey struct {
	DateMarketType string
	Timeframe      Timeframe
}

// KeySet is the watermark: the set of row keys already persisted.
type KeySet map[RowKey]struct{}

// Contains reports whether the key is already persisted.
func (s KeySet) Contains(k RowKey) bool {
	_, ok := s[k]
	return ok
}

// AdjustedRow is the output unit of the pipeline: a resampled bar with the
// cumulative roll offset applied and the persistence metadata attached.
// Constructed once per run, immutable thereafter, written at most once.
type AdjustedRow struct {
	TS                      time.Time `json:"ts"` // interval open
	Open                    int64     `json:"open"`
	High                    int64     `json:"high"`
	Low                     int64     `json:"low"`
	Close                   int64     `json:"close"`
	Volume                  int64     `json:"volume"`
	Timeframe               Timeframe `json:"timeframe"`
	Session                 Session   `json:"session"`
	DateMarketType          string    `json:"date_market_type"` // e.g. "251231N"
	MXFCode                 string    `json:"mxf_code"`
	ContractYearMonth       string    `json:"contract_year_month"`
	AccumulatedContractDiff int64     `json:"accumulated_contract_diff"`
}

// Key returns the row's idempotency key.
func (r AdjustedRow) Key() RowKey {
	return RowKey{DateMarketType: r.DateMarketType, Timeframe: r.Timeframe}
}
