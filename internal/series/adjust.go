package series

import (
	"fmt"
	"time"

	"github.com/taquant/mxfeed/internal/contracts"
)

// ContractResolver resolves which settlement record covers a timestamp.
// Satisfied by *settle.Resolver.
type ContractResolver interface {
	Resolve(ts time.Time) (contracts.SettleRecord, error)
}

// BackAdjuster turns resampled bars into adjusted rows by applying the
// cumulative roll offset of the contract each bar belongs to. The lookup
// is per-bar, not per-run: a single run may straddle a roll date, and the
// bars on either side need different offsets.
type BackAdjuster struct {
	resolver ContractResolver
}

// NewBackAdjuster creates a BackAdjuster over the given resolver.
func NewBackAdjuster(resolver ContractResolver) *BackAdjuster {
	return &BackAdjuster{resolver: resolver}
}

// Adjust produces one AdjustedRow per bar. Price fields are shifted by the
// contract's accumulated_contract_diff in whole ticks; volume is never
// adjusted. sourceCode is the contract label the bars were fetched under
// (usually the continuous alias "MXFR1") and is carried into MXF_code; if
// empty, the resolved contract's own label is used.
//
// A bar outside settlement table coverage aborts the whole batch with the
// resolver's configuration error.
func (a *BackAdjuster) Adjust(key contracts.BatchKey, bars []contracts.Bar, sourceCode string) ([]contracts.AdjustedRow, error) {
	marketType := key.MarketType()
	if marketType == "" {
		return nil, fmt.Errorf("adjust: invalid batch key %s", key)
	}

	rows := make([]contracts.AdjustedRow, 0, len(bars))
	for _, bar := range bars {
		rec, err := a.resolver.Resolve(bar.TS)
		if err != nil {
			return nil, fmt.Errorf("adjust %s: %w", key, err)
		}

		code := sourceCode
		if code == "" {
			code = rec.MXFCode()
		}

		diff := rec.AccumulatedContractDiff
		rows = append(rows, contracts.AdjustedRow{
			TS:                      bar.TS,
			Open:                    bar.Open + diff,
			High:                    bar.High + diff,
			Low:                     bar.Low + diff,
			Close:                   bar.Close + diff,
			Volume:                  bar.Volume,
			Timeframe:               bar.Timeframe,
			Session:                 key.Session,
			DateMarketType:          marketType,
			MXFCode:                 code,
			ContractYearMonth:       rec.ContractYearMonth,
			AccumulatedContractDiff: diff,
		})
	}

	return rows, nil
}
