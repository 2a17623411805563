package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/internal/settle"
)

func rollTable(t *testing.T) *settle.Resolver {
	t.Helper()
	// Two contracts with a known roll gap of 49: the December contract
	// trades 49 points above the January one. The offset is added to raw
	// prices, so December carries accumulated -49 while its
	// next_contract_diff of +49 rolls the chain back to 0 for January.
	resolver, err := settle.NewResolver([]contracts.SettleRecord{
		{
			ContractYearMonth:       "202512",
			NextContractDiff:        49,
			AccumulatedContractDiff: -49,
			StartK:                  tpe(2025, 11, 19, 13, 30),
			SettleK:                 tpe(2025, 12, 17, 13, 25),
		},
		{
			ContractYearMonth:       "202601",
			NextContractDiff:        0,
			AccumulatedContractDiff: 0,
			StartK:                  tpe(2025, 12, 17, 13, 30),
			SettleK:                 tpe(2026, 1, 21, 13, 25),
		},
	})
	require.NoError(t, err)
	return resolver
}

func TestBackAdjuster_RollContinuity(t *testing.T) {
	adjuster := NewBackAdjuster(rollTable(t))

	// Last bar of the December contract and first bar of the January
	// contract. Raw closes differ by exactly the roll gap; adjusted
	// closes must not jump at all.
	before := contracts.Bar{
		TS: tpe(2025, 12, 17, 13, 20), Open: 23049, High: 23049, Low: 23049, Close: 23049,
		Volume: 7, Timeframe: contracts.Timeframe5m,
	}
	after := contracts.Bar{
		TS: tpe(2025, 12, 17, 13, 30), Open: 23000, High: 23000, Low: 23000, Close: 23000,
		Volume: 9, Timeframe: contracts.Timeframe5m,
	}

	key := contracts.BatchKey{Date: "2025-12-17", Session: contracts.SessionDay}
	rows, err := adjuster.Adjust(key, []contracts.Bar{before, after}, "MXFR1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(49), before.Close-after.Close, "unadjusted closes jump by the gap")
	assert.Equal(t, rows[0].Close, rows[1].Close, "adjusted closes are continuous")
	assert.Equal(t, int64(23000), rows[0].Close)

	assert.Equal(t, "202512", rows[0].ContractYearMonth)
	assert.Equal(t, int64(-49), rows[0].AccumulatedContractDiff)
	assert.Equal(t, "202601", rows[1].ContractYearMonth)
	assert.Equal(t, int64(0), rows[1].AccumulatedContractDiff)
}

func TestBackAdjuster_ShiftsAllPricesNeverVolume(t *testing.T) {
	adjuster := NewBackAdjuster(rollTable(t))

	bar := contracts.Bar{
		TS: tpe(2025, 12, 1, 9, 0), Open: 23010, High: 23025, Low: 23005, Close: 23020,
		Volume: 42, Timeframe: contracts.Timeframe5m,
	}
	key := contracts.BatchKey{Date: "2025-12-01", Session: contracts.SessionDay}

	rows, err := adjuster.Adjust(key, []contracts.Bar{bar}, "MXFR1")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, int64(23010-49), row.Open)
	assert.Equal(t, int64(23025-49), row.High)
	assert.Equal(t, int64(23005-49), row.Low)
	assert.Equal(t, int64(23020-49), row.Close)
	assert.Equal(t, int64(42), row.Volume)
	assert.Equal(t, "251201D", row.DateMarketType)
	assert.Equal(t, "MXFR1", row.MXFCode)
}

func TestBackAdjuster_EmptySourceCodeFallsBackToResolved(t *testing.T) {
	adjuster := NewBackAdjuster(rollTable(t))
	key := contracts.BatchKey{Date: "2025-12-01", Session: contracts.SessionDay}

	rows, err := adjuster.Adjust(key, []contracts.Bar{
		{TS: tpe(2025, 12, 1, 9, 0), Timeframe: contracts.Timeframe5m},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "MXF202512", rows[0].MXFCode)
}

func TestBackAdjuster_UncoveredDateAbortsBatch(t *testing.T) {
	adjuster := NewBackAdjuster(rollTable(t))
	key := contracts.BatchKey{Date: "2026-03-02", Session: contracts.SessionDay}

	_, err := adjuster.Adjust(key, []contracts.Bar{
		{TS: tpe(2026, 3, 2, 9, 0), Timeframe: contracts.Timeframe5m},
	}, "MXFR1")
	assert.ErrorIs(t, err, contracts.ErrNoActiveContract)
}

func TestBackAdjuster_NightBatchUsesOpeningDateKey(t *testing.T) {
	adjuster := NewBackAdjuster(rollTable(t))
	key := contracts.BatchKey{Date: "2025-12-16", Session: contracts.SessionNight}

	// Overnight bar stamped the next morning still keys to Dec 16.
	rows, err := adjuster.Adjust(key, []contracts.Bar{
		{TS: time.Date(2025, 12, 17, 2, 0, 0, 0, contracts.Taipei), Timeframe: contracts.Timeframe5m},
	}, "MXFR1")
	require.NoError(t, err)
	assert.Equal(t, "251216N", rows[0].DateMarketType)
}
