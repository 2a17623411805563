package settle

import (
	"context"
	"fmt"
	"time"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/pkg/logger"
)

// SettlementSource supplies final settlement prices per contract month.
type SettlementSource interface {
	SettlementPrice(ctx context.Context, contractYearMonth string) (int64, error)
}

// RecordWriter persists one settlement record.
type RecordWriter interface {
	Save(ctx context.Context, rec contracts.SettleRecord) error
}

// Extender appends the next contract window to the settlement table once
// the current one has settled. The roll offset is the shift that keeps the
// adjusted series continuous through the roll: history gets the offset
// added to it, so the offset is how far the expiring contract sat above
// its successor.
//
//	next_contract_diff = expiring contract's final settlement price
//	                   - next contract's price at settlement
//
// The expiring side comes from the exchange's published settlement price,
// the successor side from its own bar closing at the settlement stamp.
type Extender struct {
	bars        contracts.BarSource
	settlements SettlementSource
	writer      RecordWriter
	logger      *logger.Logger
}

// NewExtender creates an extender.
func NewExtender(bars contracts.BarSource, settlements SettlementSource, writer RecordWriter, log *logger.Logger) *Extender {
	return &Extender{
		bars:        bars,
		settlements: settlements,
		writer:      writer,
		logger:      log,
	}
}

// Extend finalizes the last curated record and appends its successor.
// It refuses to act while the last contract is still trading, and it is
// idempotent: re-running after a successful extension finds the new last
// record unsettled and stops.
func (e *Extender) Extend(ctx context.Context, resolver *Resolver, now time.Time) (contracts.SettleRecord, error) {
	last := resolver.Last()
	if now.Before(last.SettleK) {
		return contracts.SettleRecord{}, fmt.Errorf("contract %s settles %s, nothing to extend",
			last.ContractYearMonth, last.SettleK.Format("2006-01-02 15:04"))
	}

	settlePrice, err := e.settlements.SettlementPrice(ctx, last.ContractYearMonth)
	if err != nil {
		return contracts.SettleRecord{}, fmt.Errorf("settlement price for %s: %w", last.ContractYearMonth, err)
	}

	next := resolver.PredictNext()

	nextAtSettle, err := e.priceAtSettlement(ctx, next.MXFCode(), last.SettleK)
	if err != nil {
		return contracts.SettleRecord{}, fmt.Errorf("successor price at settlement: %w", err)
	}

	diff := settlePrice - nextAtSettle

	finalized := last
	finalized.NextContractDiff = diff
	if err := e.writer.Save(ctx, finalized); err != nil {
		return contracts.SettleRecord{}, fmt.Errorf("finalize %s: %w", last.ContractYearMonth, err)
	}

	next.AccumulatedContractDiff = last.AccumulatedContractDiff + diff
	if err := e.writer.Save(ctx, next); err != nil {
		return contracts.SettleRecord{}, fmt.Errorf("append %s: %w", next.ContractYearMonth, err)
	}

	e.logger.WithFields(map[string]interface{}{
		"settled":            last.ContractYearMonth,
		"successor":          next.ContractYearMonth,
		"next_contract_diff": diff,
		"accumulated":        next.AccumulatedContractDiff,
	}).Info("Settlement table extended")

	return next, nil
}

// priceAtSettlement returns the successor contract's close of the minute
// bar ending at the settlement stamp. Bars carry open-time labels, so
// that is the bar opening one minute earlier.
func (e *Extender) priceAtSettlement(ctx context.Context, contractCode string, settleK time.Time) (int64, error) {
	date := time.Date(settleK.Year(), settleK.Month(), settleK.Day(), 0, 0, 0, 0, contracts.Taipei)

	bars, err := e.bars.Fetch(ctx, date, contractCode)
	if err != nil {
		return 0, err
	}

	want := settleK.Add(-time.Minute)
	for _, bar := range bars {
		if bar.TS.Equal(want) {
			return bar.Close, nil
		}
	}
	return 0, fmt.Errorf("no %s bar at %s", contractCode, want.Format("2006-01-02 15:04"))
}
