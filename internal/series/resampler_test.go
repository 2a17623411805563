package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquant/mxfeed/internal/contracts"
)

func TestResample_FiveMinuteAggregation(t *testing.T) {
	key := contracts.BatchKey{Date: "2025-06-18", Session: contracts.SessionDay}
	closes := []int64{100, 101, 99, 102, 103}
	volumes := []int64{1, 2, 3, 4, 5}

	var bars []contracts.Bar
	for i := 0; i < 5; i++ {
		bars = append(bars, contracts.Bar{
			TS:        tpe(2025, 6, 18, 8, 45+i),
			Open:      closes[i],
			High:      closes[i],
			Low:       closes[i],
			Close:     closes[i],
			Volume:    volumes[i],
			Timeframe: contracts.Timeframe1m,
		})
	}

	out, err := Resample(key, bars, contracts.Timeframe5m)
	require.NoError(t, err)
	require.Len(t, out, 1)

	bar := out[0]
	assert.Equal(t, tpe(2025, 6, 18, 8, 45), bar.TS, "stamp marks window open")
	assert.Equal(t, int64(100), bar.Open, "open from first bar")
	assert.Equal(t, int64(103), bar.Close, "close from last bar")
	assert.Equal(t, int64(103), bar.High)
	assert.Equal(t, int64(99), bar.Low)
	assert.Equal(t, int64(15), bar.Volume)
	assert.Equal(t, contracts.Timeframe5m, bar.Timeframe)
	assert.Equal(t, contracts.SessionDay, bar.Session)
}

func TestResample_SixtyMinuteAnchoredAtSessionOpen(t *testing.T) {
	// Day-session hourly windows start at 08:45, 09:45, ... not on the
	// clock hour.
	key := contracts.BatchKey{Date: "2025-06-18", Session: contracts.SessionDay}

	var bars []contracts.Bar
	for ts := tpe(2025, 6, 18, 8, 45); ts.Before(tpe(2025, 6, 18, 13, 45)); ts = ts.Add(time.Minute) {
		bars = append(bars, minuteBar(ts))
	}

	out, err := Resample(key, bars, contracts.Timeframe60m)
	require.NoError(t, err)
	require.Len(t, out, 5)

	wantStamps := []time.Time{
		tpe(2025, 6, 18, 8, 45),
		tpe(2025, 6, 18, 9, 45),
		tpe(2025, 6, 18, 10, 45),
		tpe(2025, 6, 18, 11, 45),
		tpe(2025, 6, 18, 12, 45),
	}
	for i, bar := range out {
		assert.Equal(t, wantStamps[i], bar.TS)
		assert.Equal(t, int64(600), bar.Volume, "60 source bars of volume 10")
	}
}

func TestResample_NightSessionCrossesMidnight(t *testing.T) {
	key := contracts.BatchKey{Date: "2025-12-31", Session: contracts.SessionNight}

	var bars []contracts.Bar
	for ts := tpe(2025, 12, 31, 15, 0); ts.Before(tpe(2026, 1, 1, 5, 0)); ts = ts.Add(time.Minute) {
		bars = append(bars, minuteBar(ts))
	}

	out, err := Resample(key, bars, contracts.Timeframe5m)
	require.NoError(t, err)
	assert.Len(t, out, 168)
	assert.Equal(t, tpe(2025, 12, 31, 15, 0), out[0].TS)
	assert.Equal(t, tpe(2026, 1, 1, 4, 55), out[167].TS)
}

func TestResample_PartialWindowStillEmitted(t *testing.T) {
	// A 5-minute window with only 3 source bars (feed gap) is emitted;
	// completeness is the quality gate's job.
	key := contracts.BatchKey{Date: "2025-06-18", Session: contracts.SessionDay}
	bars := []contracts.Bar{
		minuteBar(tpe(2025, 6, 18, 8, 45)),
		minuteBar(tpe(2025, 6, 18, 8, 47)),
		minuteBar(tpe(2025, 6, 18, 8, 49)),
	}

	out, err := Resample(key, bars, contracts.Timeframe5m)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(30), out[0].Volume)
}

func TestResample_RejectsBadTarget(t *testing.T) {
	key := contracts.BatchKey{Date: "2025-06-18", Session: contracts.SessionDay}

	_, err := Resample(key, nil, contracts.Timeframe1m)
	assert.Error(t, err)

	_, err = Resample(key, nil, contracts.Timeframe("15m"))
	assert.Error(t, err)
}
