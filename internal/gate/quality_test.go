package gate

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

// sessionRows builds a day-session batch of n five-minute rows starting at
// 08:45, optionally skipping one window index.
func dayRows(n int, skip int) []contracts.AdjustedRow {
	rows := make([]contracts.AdjustedRow, 0, n)
	ts := tpe(2025, 6, 18, 8, 45)
	for i := 0; len(rows) < n; i++ {
		if i == skip {
			continue
		}
		rows = append(rows, contracts.AdjustedRow{
			TS:             ts.Add(time.Duration(i) * 5 * time.Minute),
			Timeframe:      contracts.Timeframe5m,
			Session:        contracts.SessionDay,
			DateMarketType: "250618D",
		})
	}
	return rows
}

func TestExpectedCount(t *testing.T) {
	tests := []struct {
		tf   contracts.Timeframe
		sess contracts.Session
		want int
	}{
		{contracts.Timeframe5m, contracts.SessionDay, 60},
		{contracts.Timeframe5m, contracts.SessionNight, 168},
		{contracts.Timeframe60m, contracts.SessionDay, 5},
		{contracts.Timeframe60m, contracts.SessionNight, 14},
		{contracts.Timeframe1m, contracts.SessionDay, 300},
		{contracts.Timeframe1m, contracts.SessionNight, 840},
	}

	for _, tt := range tests {
		got, ok := ExpectedCount(tt.tf, tt.sess)
		require.True(t, ok)
		assert.Equal(t, tt.want, got, "%s %s", tt.tf, tt.sess)
	}

	_, ok := ExpectedCount(contracts.Timeframe("15m"), contracts.SessionDay)
	assert.False(t, ok)
}

func TestQualityGate_CompleteSessionPasses(t *testing.T) {
	g := NewQualityGate()
	key := contracts.BatchKey{Date: "2025-06-18", Session: contracts.SessionDay}

	err := g.Check(key, contracts.Timeframe5m, dayRows(60, -1))
	assert.NoError(t, err)
}

func TestQualityGate_ShortfallReportsMissingStamp(t *testing.T) {
	g := NewQualityGate()
	key := contracts.BatchKey{Date: "2025-06-18", Session: contracts.SessionDay}

	// 59 rows, window index 12 (09:45) missing.
	err := g.Check(key, contracts.Timeframe5m, dayRows(59, 12))
	require.Error(t, err)

	var cerr *contracts.CompletenessError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 60, cerr.Expected)
	assert.Equal(t, 59, cerr.Actual)
	assert.Equal(t, 1, cerr.Shortfall())
	require.Len(t, cerr.Missing, 1)
	assert.Equal(t, tpe(2025, 6, 18, 9, 45), cerr.Missing[0])
}

func TestQualityGate_OvercountFails(t *testing.T) {
	g := NewQualityGate()
	key := contracts.BatchKey{Date: "2025-06-18", Session: contracts.SessionDay}

	// 61 rows: the full session plus a duplicated stamp. Not silently
	// accepted.
	rows := dayRows(60, -1)
	rows = append(rows, rows[30])

	err := g.Check(key, contracts.Timeframe5m, rows)
	require.Error(t, err)

	var cerr *contracts.CompletenessError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 61, cerr.Actual)
	assert.Equal(t, -1, cerr.Shortfall())
	assert.Empty(t, cerr.Missing)
}

func TestQualityGate_NightSession(t *testing.T) {
	g := NewQualityGate()
	key := contracts.BatchKey{Date: "2025-12-31", Session: contracts.SessionNight}

	rows := make([]contracts.AdjustedRow, 0, 168)
	for ts := tpe(2025, 12, 31, 15, 0); len(rows) < 168; ts = ts.Add(5 * time.Minute) {
		rows = append(rows, contracts.AdjustedRow{
			TS: ts, Timeframe: contracts.Timeframe5m, Session: contracts.SessionNight,
		})
	}
	assert.NoError(t, g.Check(key, contracts.Timeframe5m, rows))

	// Drop the last overnight window (04:55 Jan 1).
	err := g.Check(key, contracts.Timeframe5m, rows[:167])
	var cerr *contracts.CompletenessError
	require.ErrorAs(t, err, &cerr)
	require.Len(t, cerr.Missing, 1)
	assert.Equal(t, tpe(2026, 1, 1, 4, 55), cerr.Missing[0])
}

func TestQualityGate_UnknownTimeframeFails(t *testing.T) {
	g := NewQualityGate()
	key := contracts.BatchKey{Date: "2025-06-18", Session: contracts.SessionDay}

	err := g.Check(key, contracts.Timeframe("15m"), nil)
	assert.Error(t, err)
}
