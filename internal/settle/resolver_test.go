package settle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquant/mxfeed/internal/contracts"
)

func tpe(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, contracts.Taipei)
}

func testTable() []contracts.SettleRecord {
	return []contracts.SettleRecord{
		{
			ContractYearMonth:       "202511",
			NextContractDiff:        -49,
			AccumulatedContractDiff: -120,
			StartK:                  tpe(2025, 10, 15, 13, 30),
			SettleK:                 tpe(2025, 11, 19, 13, 25),
		},
		{
			ContractYearMonth:       "202512",
			NextContractDiff:        23,
			AccumulatedContractDiff: -169,
			StartK:                  tpe(2025, 11, 19, 13, 30),
			SettleK:                 tpe(2025, 12, 17, 13, 25),
		},
		{
			ContractYearMonth:       "202601",
			NextContractDiff:        0,
			AccumulatedContractDiff: -146,
			StartK:                  tpe(2025, 12, 17, 13, 30),
			SettleK:                 tpe(2026, 1, 21, 13, 25),
		},
	}
}

func TestNewResolver_ValidChain(t *testing.T) {
	r, err := NewResolver(testTable())
	require.NoError(t, err)
	assert.Len(t, r.Records(), 3)
}

func TestNewResolver_SortsRecords(t *testing.T) {
	table := testTable()
	table[0], table[2] = table[2], table[0]

	r, err := NewResolver(table)
	require.NoError(t, err)
	assert.Equal(t, "202511", r.Records()[0].ContractYearMonth)
	assert.Equal(t, "202601", r.Last().ContractYearMonth)
}

func TestNewResolver_BrokenOffsetChain(t *testing.T) {
	table := testTable()
	table[2].AccumulatedContractDiff = -150 // should be -169 + 23 = -146

	_, err := NewResolver(table)
	require.Error(t, err)
	var cfgErr *contracts.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "202601")
}

func TestNewResolver_OverlappingWindows(t *testing.T) {
	table := testTable()
	table[1].StartK = table[0].SettleK.Add(-time.Hour)

	_, err := NewResolver(table)
	var cfgErr *contracts.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNewResolver_Empty(t *testing.T) {
	_, err := NewResolver(nil)
	var cfgErr *contracts.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestResolver_Resolve(t *testing.T) {
	r, err := NewResolver(testTable())
	require.NoError(t, err)

	tests := []struct {
		name    string
		ts      time.Time
		wantYM  string
		wantErr bool
	}{
		{name: "mid window", ts: tpe(2025, 12, 1, 8, 45), wantYM: "202512"},
		{name: "start bound inclusive", ts: tpe(2025, 11, 19, 13, 30), wantYM: "202512"},
		{name: "settle bound inclusive", ts: tpe(2025, 11, 19, 13, 25), wantYM: "202511"},
		{name: "before coverage", ts: tpe(2025, 9, 1, 8, 45), wantErr: true},
		{name: "after coverage", ts: tpe(2026, 2, 1, 8, 45), wantErr: true},
		{name: "between windows", ts: tpe(2025, 11, 19, 13, 27), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := r.Resolve(tt.ts)
			if tt.wantErr {
				assert.ErrorIs(t, err, contracts.ErrNoActiveContract)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantYM, rec.ContractYearMonth)
		})
	}
}

func TestResolver_PredictNext(t *testing.T) {
	r, err := NewResolver(testTable())
	require.NoError(t, err)

	next := r.PredictNext()

	assert.Equal(t, "202602", next.ContractYearMonth)
	assert.Equal(t, "MXF202602", next.MXFCode())
	// Third Wednesday of February 2026 is the 18th.
	assert.Equal(t, tpe(2026, 2, 18, 13, 25), next.SettleK)
	assert.Equal(t, tpe(2026, 1, 21, 13, 30), next.StartK)
	// Accumulated diff rolls forward from the last curated record.
	assert.Equal(t, int64(-146), next.AccumulatedContractDiff)
	assert.Equal(t, int64(0), next.NextContractDiff)
}

func TestSettlementTime_ThirdWednesday(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		day   int
	}{
		{2025, time.December, 17}, // month starts on a Monday
		{2026, time.January, 21},  // month starts on a Thursday
		{2026, time.April, 15},    // month starts on a Wednesday
	}

	for _, tt := range tests {
		got := settlementTime(tt.year, tt.month)
		assert.Equal(t, tpe(tt.year, tt.month, tt.day, 13, 25), got)
		assert.Equal(t, time.Wednesday, got.Weekday())
	}
}
