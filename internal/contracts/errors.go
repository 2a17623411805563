package contracts

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoActiveContract reports a date outside the settlement table's
// coverage. Fatal for the run and never retried: the table itself needs
// human correction.
var ErrNoActiveContract = errors.New("no active contract covers date")

// ConfigError marks an inconsistency in the settlement table (broken
// offset chain, overlapping windows). Like ErrNoActiveContract it aborts
// the run instead of being silently defaulted.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string {
	return "settle table: " + e.Detail
}

// CompletenessError is a quality-gate failure for one batch: the session
// does not hold exactly the expected number of bars. It blocks only the
// affected batch; other batches in the same run may still proceed.
type CompletenessError struct {
	Batch     BatchKey
	Timeframe Timeframe
	Expected  int
	Actual    int
	Missing   []time.Time
}

func (e *CompletenessError) Error() string {
	msg := fmt.Sprintf("incomplete session %s %s: expected %d bars, got %d",
		e.Batch, e.Timeframe, e.Expected, e.Actual)
	if len(e.Missing) > 0 {
		stamps := make([]string, 0, len(e.Missing))
		for _, ts := range e.Missing {
			stamps = append(stamps, ts.Format("2006-01-02 15:04"))
		}
		msg += " (missing " + strings.Join(stamps, ", ") + ")"
	}
	return msg
}

// Shortfall returns expected minus actual. Negative means an overcount
// (duplicate timestamps), which is also a failure.
func (e *CompletenessError) Shortfall() int {
	return e.Expected - e.Actual
}
