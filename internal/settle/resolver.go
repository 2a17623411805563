// Package settle owns interpretation of the curated settlement table:
// which contract is active at any point in time, and what the next
// contract is expected to look like before the table has been extended.
package settle

import (
	"fmt"
	"sort"
	"time"

	"github.com/taquant/mxfeed/internal/contracts"
)

// Resolver answers active-contract lookups against an in-memory copy of
// the settlement table. The table is validated once at construction and
// never mutated afterwards.
type Resolver struct {
	records []contracts.SettleRecord // ordered by StartK
}

// NewResolver validates the table and builds a resolver. Validation
// failures are configuration errors: windows must be ordered and
// non-overlapping, and the accumulated diff chain must satisfy
// acc[k] == acc[k-1] + next[k-1].
func NewResolver(records []contracts.SettleRecord) (*Resolver, error) {
	if len(records) == 0 {
		return nil, &contracts.ConfigError{Detail: "empty settlement table"}
	}

	sorted := make([]contracts.SettleRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartK.Before(sorted[j].StartK)
	})

	for i, rec := range sorted {
		if !rec.StartK.Before(rec.SettleK) {
			return nil, &contracts.ConfigError{
				Detail: fmt.Sprintf("contract %s: start_k %s not before settle_k %s",
					rec.ContractYearMonth, rec.StartK, rec.SettleK),
			}
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if !rec.StartK.After(prev.SettleK) {
			return nil, &contracts.ConfigError{
				Detail: fmt.Sprintf("contracts %s and %s have overlapping windows",
					prev.ContractYearMonth, rec.ContractYearMonth),
			}
		}
		want := prev.AccumulatedContractDiff + prev.NextContractDiff
		if rec.AccumulatedContractDiff != want {
			return nil, &contracts.ConfigError{
				Detail: fmt.Sprintf("contract %s: accumulated_contract_diff %d, want %d (=%d+%d from %s)",
					rec.ContractYearMonth, rec.AccumulatedContractDiff,
					want, prev.AccumulatedContractDiff, prev.NextContractDiff,
					prev.ContractYearMonth),
			}
		}
	}

	return &Resolver{records: sorted}, nil
}

// Resolve returns the settlement record whose [start_k, settle_k] window
// contains ts. A date outside table coverage is fatal for the run, not
// retried: it means the table needs to be extended by hand.
func (r *Resolver) Resolve(ts time.Time) (contracts.SettleRecord, error) {
	// First record whose settle_k is not before ts.
	i := sort.Search(len(r.records), func(i int) bool {
		return !r.records[i].SettleK.Before(ts)
	})
	if i < len(r.records) && r.records[i].Contains(ts) {
		return r.records[i], nil
	}
	return contracts.SettleRecord{}, fmt.Errorf("%w: %s",
		contracts.ErrNoActiveContract, ts.In(contracts.Taipei).Format("2006-01-02 15:04"))
}

// Records returns the validated table in window order.
func (r *Resolver) Records() []contracts.SettleRecord {
	out := make([]contracts.SettleRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Last returns the most recent curated record.
func (r *Resolver) Last() contracts.SettleRecord {
	return r.records[len(r.records)-1]
}

// PredictNext estimates the record that follows the last curated one:
// next contract month, settlement at 13:25 on the third Wednesday of that
// month, window opening five minutes after the previous settlement, and
// the accumulated diff rolled forward. The next_contract_diff is unknown
// until the roll actually happens and stays zero. This is a fallback for
// forward-looking runs only; whenever the curated table disagrees with a
// prediction, the table wins.
func (r *Resolver) PredictNext() contracts.SettleRecord {
	last := r.Last()

	ym, err := time.ParseInLocation("200601", last.ContractYearMonth, contracts.Taipei)
	if err != nil {
		// Fall back to the month after the last settlement timestamp.
		ym = time.Date(last.SettleK.Year(), last.SettleK.Month(), 1, 0, 0, 0, 0, contracts.Taipei)
	}
	next := ym.AddDate(0, 1, 0)

	return contracts.SettleRecord{
		ContractYearMonth:       next.Format("200601"),
		NextContractDiff:        0,
		AccumulatedContractDiff: last.AccumulatedContractDiff + last.NextContractDiff,
		StartK:                  last.SettleK.Add(5 * time.Minute),
		SettleK:                 settlementTime(next.Year(), next.Month()),
	}
}

// settlementTime returns 13:25 on the third Wednesday of the given month,
// the exchange's final-settlement slot. Policy constant, not recomputed
// from exchange calendars.
func settlementTime(year int, month time.Month) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, contracts.Taipei)
	offset := (int(time.Wednesday) - int(first.Weekday()) + 7) % 7
	thirdWed := first.AddDate(0, 0, offset+14)
	return thirdWed.Add(13*time.Hour + 25*time.Minute)
}
