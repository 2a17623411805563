// Package gate holds the two blocking checks a batch must pass before
// persistence: session completeness (Gate 1) and watermark idempotency
// (Gate 2). Both are pure functions over explicit inputs; neither performs
// I/O.
package gate

import (
	"time"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/internal/series"
)

// expectedCounts fixes how many bars a complete session holds per
// timeframe. Policy constants, not derived from data.
var expectedCounts = map[contracts.Timeframe]map[contracts.Session]int{
	contracts.Timeframe1m:  {contracts.SessionDay: 300, contracts.SessionNight: 840},
	contracts.Timeframe5m:  {contracts.SessionDay: 60, contracts.SessionNight: 168},
	contracts.Timeframe60m: {contracts.SessionDay: 5, contracts.SessionNight: 14},
}

// ExpectedCount returns the complete-session bar count for a timeframe and
// session.
func ExpectedCount(tf contracts.Timeframe, s contracts.Session) (int, bool) {
	bySession, ok := expectedCounts[tf]
	if !ok {
		return 0, false
	}
	n, ok := bySession[s]
	return n, ok
}

// QualityGate is Gate 1: it blocks any batch that does not hold exactly
// the expected number of bars for its session and timeframe. Partial
// sessions are never persisted; a partial session silently corrupts
// downstream indicator calculations worse than an explicit gap would.
type QualityGate struct{}

// NewQualityGate creates a QualityGate.
func NewQualityGate() *QualityGate {
	return &QualityGate{}
}

// Check validates one (date, session, timeframe) batch. On failure it
// returns a *contracts.CompletenessError carrying the expected count, the
// actual count, and the missing window stamps. An overcount (duplicate
// timestamps) fails too, with an empty missing list.
func (g *QualityGate) Check(key contracts.BatchKey, tf contracts.Timeframe, rows []contracts.AdjustedRow) error {
	expected, ok := ExpectedCount(tf, key.Session)
	if !ok {
		return &contracts.CompletenessError{
			Batch: key, Timeframe: tf, Expected: 0, Actual: len(rows),
		}
	}

	missing, err := missingStamps(key, tf, rows)
	if err != nil {
		return err
	}

	if len(rows) == expected && len(missing) == 0 {
		return nil
	}
	return &contracts.CompletenessError{
		Batch:     key,
		Timeframe: tf,
		Expected:  expected,
		Actual:    len(rows),
		Missing:   missing,
	}
}

// missingStamps walks the full expected window sequence of the session and
// collects the stamps no row carries.
func missingStamps(key contracts.BatchKey, tf contracts.Timeframe, rows []contracts.AdjustedRow) ([]time.Time, error) {
	open, err := series.SessionOpen(key)
	if err != nil {
		return nil, err
	}

	present := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		present[row.TS.Unix()] = struct{}{}
	}

	step := tf.Duration()
	end := open.Add(time.Duration(series.SessionMinutes(key.Session)) * time.Minute)

	var missing []time.Time
	for ts := open; ts.Before(end); ts = ts.Add(step) {
		if _, ok := present[ts.Unix()]; !ok {
			missing = append(missing, ts)
		}
	}
	return missing, nil
}
