// Package pipeline sequences the continuous-series engine for one run
// window: fetch, segment, resample, back-adjust, quality gate, watermark
// gate, write. It is the only package that talks to the external
// collaborators, and it never writes a batch until every gate has passed
// for that batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/internal/gate"
	"github.com/taquant/mxfeed/internal/series"
	"github.com/taquant/mxfeed/internal/settle"
	"github.com/taquant/mxfeed/pkg/logger"
)

// ContinuousCode is the front-month alias the feed accepts in place of a
// fixed-month contract code.
const ContinuousCode = "MXFR1"

// ErrBatchesBlocked reports that at least one batch failed the quality
// gate. Batches that passed have already been persisted; the error is the
// run's non-zero failure signal for the blocked remainder.
var ErrBatchesBlocked = errors.New("one or more batches blocked by quality gate")

// targets are the timeframes the pipeline persists.
var targets = []contracts.Timeframe{contracts.Timeframe5m, contracts.Timeframe60m}

// Orchestrator wires the engine to its collaborators.
type Orchestrator struct {
	source    contracts.BarSource
	settles   contracts.SettleTable
	store     contracts.RowStore
	quality   *gate.QualityGate
	watermark *gate.WatermarkGate
	log       *logger.Logger

	forceContinuous bool
	now             func() time.Time
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithForceContinuous fetches raw bars under the MXFR1 alias instead of
// the resolved fixed-month code.
func WithForceContinuous(force bool) Option {
	return func(o *Orchestrator) { o.forceContinuous = force }
}

// WithClock overrides the wall clock, for tests and replays.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator over the given collaborators.
func New(source contracts.BarSource, settles contracts.SettleTable, store contracts.RowStore, log *logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:    source,
		settles:   settles,
		store:     store,
		quality:   gate.NewQualityGate(),
		watermark: gate.NewWatermarkGate(),
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes the session-date window [from, to] end to end. Each run is
// a pure function of the raw bars, the settlement table, and the watermark
// set; there is no state carried between runs and no partial side effect:
// a batch either passes both gates and is written, or leaves the store
// untouched.
//
// Configuration errors abort immediately. Completeness failures block only
// their batch; the rest of the run proceeds and the blocked remainder is
// reported through ErrBatchesBlocked.
func (o *Orchestrator) Run(ctx context.Context, from, to time.Time) (*Report, error) {
	started := o.now()
	from = dateOnly(from)
	to = dateOnly(to)
	if to.Before(from) {
		return nil, fmt.Errorf("run window inverted: %s after %s",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	report := NewReport(from, to)

	records, err := o.settles.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settlement table: %w", err)
	}
	resolver, err := settle.NewResolver(records)
	if err != nil {
		return nil, err
	}
	adjuster := series.NewBackAdjuster(resolver)

	bars, fetchCode, err := o.fetchWindow(ctx, resolver, from, to)
	if err != nil {
		return nil, err
	}
	report.FetchedBars = len(bars)
	report.FetchCode = fetchCode

	segmented := series.Segment(bars)
	report.DroppedBars = segmented.Dropped

	existing, err := o.store.ExistingKeys(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load watermark: %w", err)
	}

	activeKey, activeOK := series.Classify(o.now())

	var pending []contracts.AdjustedRow
	for _, key := range segmented.Keys() {
		if key.Date < from.Format("2006-01-02") || key.Date > to.Format("2006-01-02") {
			// Overnight tail of a session outside the requested window.
			continue
		}

		minutes := segmented.Batches[key]

		if activeOK && key == activeKey {
			// Session still open right now: bars are necessarily partial,
			// dropping them beats failing the gate on data that is not
			// late, just not finished.
			o.log.WithField("batch", key.String()).Info("Session in progress, deferred to next run")
			report.Skip(key, len(minutes))
			continue
		}

		rows, err := o.processBatch(key, minutes, adjuster, report)
		if err != nil {
			return nil, err
		}
		pending = append(pending, rows...)
	}

	kept, suppressed := o.watermark.Filter(pending, existing)
	report.SuppressedRows = suppressed
	if suppressed > 0 {
		o.log.WithField("rows", suppressed).Info("Duplicate rows suppressed by watermark")
	}

	if len(kept) > 0 {
		if err := o.store.Write(ctx, kept); err != nil {
			return nil, fmt.Errorf("write rows: %w", err)
		}
	}
	report.WrittenRows = len(kept)
	report.Finish(o.now().Sub(started))

	o.log.WithFields(map[string]interface{}{
		"written":    report.WrittenRows,
		"suppressed": report.SuppressedRows,
		"blocked":    report.BlockedBatches(),
		"duration":   report.Duration,
	}).Info("Pipeline run finished")

	if report.BlockedBatches() > 0 {
		return report, fmt.Errorf("%w: %d blocked", ErrBatchesBlocked, report.BlockedBatches())
	}
	return report, nil
}

// processBatch resamples and adjusts one session batch at every target
// timeframe, gating each result. Gate failures land in the report; only
// configuration errors propagate.
func (o *Orchestrator) processBatch(key contracts.BatchKey, minutes []contracts.Bar, adjuster *series.BackAdjuster, report *Report) ([]contracts.AdjustedRow, error) {
	sourceCode := ""
	if o.forceContinuous {
		sourceCode = ContinuousCode
	}

	var out []contracts.AdjustedRow
	for _, tf := range targets {
		resampled, err := series.Resample(key, minutes, tf)
		if err != nil {
			return nil, err
		}

		rows, err := adjuster.Adjust(key, resampled, sourceCode)
		if err != nil {
			return nil, err
		}

		if err := o.quality.Check(key, tf, rows); err != nil {
			var cerr *contracts.CompletenessError
			if errors.As(err, &cerr) {
				o.log.WithFields(map[string]interface{}{
					"batch":     key.String(),
					"timeframe": string(tf),
					"expected":  cerr.Expected,
					"actual":    cerr.Actual,
				}).Warn("Batch blocked by quality gate")
				report.Block(key, tf, cerr)
				continue
			}
			return nil, err
		}

		report.Pass(key, tf, len(rows))
		out = append(out, rows...)
	}
	return out, nil
}

// fetchWindow pulls raw 1-minute bars for every calendar date the session
// window touches, including the day after the last session date for the
// overnight tail.
func (o *Orchestrator) fetchWindow(ctx context.Context, resolver *settle.Resolver, from, to time.Time) ([]contracts.Bar, string, error) {
	var bars []contracts.Bar
	lastCode := ""

	for date := from; !date.After(to.AddDate(0, 0, 1)); date = date.AddDate(0, 0, 1) {
		code, err := o.contractCode(resolver, date)
		if err != nil {
			return nil, "", err
		}
		lastCode = code

		fetched, err := o.source.Fetch(ctx, date, code)
		if err != nil {
			return nil, "", fmt.Errorf("fetch %s %s: %w", code, date.Format("2006-01-02"), err)
		}
		bars = append(bars, fetched...)
	}

	return bars, lastCode, nil
}

// contractCode picks the code to fetch under for a calendar date. The
// continuous alias bypasses resolution entirely; otherwise the curated
// table decides, with the predicted next contract as a fallback for dates
// just past table coverage.
func (o *Orchestrator) contractCode(resolver *settle.Resolver, date time.Time) (string, error) {
	if o.forceContinuous {
		return ContinuousCode, nil
	}

	noon := date.Add(12 * time.Hour)
	rec, err := resolver.Resolve(noon)
	if err == nil {
		return rec.MXFCode(), nil
	}
	if !errors.Is(err, contracts.ErrNoActiveContract) {
		return "", err
	}

	predicted := resolver.PredictNext()
	if predicted.Contains(noon) {
		o.log.WithField("contract", predicted.MXFCode()).Warn("Settlement table not yet extended, using predicted contract")
		return predicted.MXFCode(), nil
	}
	return "", err
}

// dateOnly truncates to midnight Taipei.
func dateOnly(t time.Time) time.Time {
	local := t.In(contracts.Taipei)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, contracts.Taipei)
}
