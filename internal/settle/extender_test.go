package settle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/pkg/config"
	"github.com/taquant/mxfeed/pkg/logger"
)

type fakeBars struct {
	code string
	bars []contracts.Bar
}

func (f *fakeBars) Fetch(ctx context.Context, date time.Time, contractCode string) ([]contracts.Bar, error) {
	f.code = contractCode
	return f.bars, nil
}

type fakeSettlements struct {
	prices map[string]int64
}

func (f *fakeSettlements) SettlementPrice(ctx context.Context, ym string) (int64, error) {
	return f.prices[ym], nil
}

type fakeWriter struct {
	saved []contracts.SettleRecord
}

func (f *fakeWriter) Save(ctx context.Context, rec contracts.SettleRecord) error {
	f.saved = append(f.saved, rec)
	return nil
}

func extenderLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

func TestExtender_Extend(t *testing.T) {
	// 202512 settles 2025-12-17 13:25 at 23000; the January contract's
	// 13:24 bar closes at 22954. The expiring contract sits 46 points
	// above its successor, so history shifts up by 46 at the roll.
	settleK := time.Date(2025, 12, 17, 13, 25, 0, 0, contracts.Taipei)
	resolver, err := NewResolver([]contracts.SettleRecord{{
		ContractYearMonth:       "202512",
		NextContractDiff:        0,
		AccumulatedContractDiff: -169,
		StartK:                  time.Date(2025, 11, 19, 13, 30, 0, 0, contracts.Taipei),
		SettleK:                 settleK,
	}})
	require.NoError(t, err)

	bars := &fakeBars{bars: []contracts.Bar{{
		TS:    settleK.Add(-time.Minute),
		Close: 22954,
	}}}
	settlements := &fakeSettlements{prices: map[string]int64{"202512": 23000}}
	writer := &fakeWriter{}

	ext := NewExtender(bars, settlements, writer, extenderLogger())
	next, err := ext.Extend(context.Background(), resolver, settleK.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "MXF202601", bars.code, "successor contract fetched")
	assert.Equal(t, "202601", next.ContractYearMonth)
	assert.Equal(t, int64(-169+46), next.AccumulatedContractDiff)

	require.Len(t, writer.saved, 2)
	finalized, appended := writer.saved[0], writer.saved[1]

	assert.Equal(t, "202512", finalized.ContractYearMonth)
	assert.Equal(t, int64(46), finalized.NextContractDiff)

	assert.Equal(t, "202601", appended.ContractYearMonth)
	assert.True(t, appended.StartK.Equal(settleK.Add(5*time.Minute)))
	assert.True(t, appended.SettleK.Equal(time.Date(2026, 1, 21, 13, 25, 0, 0, contracts.Taipei)))
	assert.Zero(t, appended.NextContractDiff)

	// Chain stays valid with the two new records in place.
	_, err = NewResolver([]contracts.SettleRecord{finalized, appended})
	assert.NoError(t, err)

	// Back-adjustment adds the accumulated offset to raw prices. With the
	// diff the extender wrote, the 46-point raw gap at the roll cancels
	// exactly instead of doubling.
	adjustedOld := int64(23000) + finalized.AccumulatedContractDiff
	adjustedNew := int64(22954) + appended.AccumulatedContractDiff
	assert.Equal(t, adjustedOld, adjustedNew, "adjusted series is continuous through the roll")
}

func TestExtender_RefusesWhileTrading(t *testing.T) {
	settleK := time.Date(2025, 12, 17, 13, 25, 0, 0, contracts.Taipei)
	resolver, err := NewResolver([]contracts.SettleRecord{{
		ContractYearMonth: "202512",
		StartK:            settleK.AddDate(0, -1, 0),
		SettleK:           settleK,
	}})
	require.NoError(t, err)

	writer := &fakeWriter{}
	ext := NewExtender(&fakeBars{}, &fakeSettlements{}, writer, extenderLogger())

	_, err = ext.Extend(context.Background(), resolver, settleK.Add(-24*time.Hour))
	assert.Error(t, err)
	assert.Empty(t, writer.saved)
}

func TestExtender_MissingSettlementBar(t *testing.T) {
	settleK := time.Date(2025, 12, 17, 13, 25, 0, 0, contracts.Taipei)
	resolver, err := NewResolver([]contracts.SettleRecord{{
		ContractYearMonth: "202512",
		StartK:            settleK.AddDate(0, -1, 0),
		SettleK:           settleK,
	}})
	require.NoError(t, err)

	// Feed returns bars, none at 13:24.
	bars := &fakeBars{bars: []contracts.Bar{{TS: settleK.Add(-10 * time.Minute), Close: 22900}}}
	settlements := &fakeSettlements{prices: map[string]int64{"202512": 23000}}
	writer := &fakeWriter{}

	ext := NewExtender(bars, settlements, writer, extenderLogger())
	_, err = ext.Extend(context.Background(), resolver, settleK.Add(time.Hour))
	assert.Error(t, err)
	assert.Empty(t, writer.saved, "nothing persisted on failure")
}
