package contracts

import "time"

// SettleRecord is one row of the curated settlement table. Windows of
// consecutive records are contiguous and non-overlapping, and the
// accumulated diff chain is built forward in time:
//
//	acc[k] == acc[k-1] + next[k-1]
type SettleRecord struct {
	ContractYearMonth       string    `json:"contract_year_month"` // YYYYMM
	NextContractDiff        int64     `json:"next_contract_diff"`
	AccumulatedContractDiff int64     `json:"accumulated_contract_diff"`
	StartK                  time.Time `json:"start_k"`
	SettleK                 time.Time `json:"settle_k"`
}

// Contains reports whether ts falls inside the contract's active window.
// Both bounds are inclusive, matching the table's convention.
func (r SettleRecord) Contains(ts time.Time) bool {
	return !ts.Before(r.StartK) && !ts.After(r.SettleK)
}

// MXFCode returns the derived contract label, e.g. "MXF202512".
func (r SettleRecord) MXFCode() string {
	return "MXF" + r.ContractYearMonth
}
