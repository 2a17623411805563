package series

import (
	"fmt"

	"github.com/taquant/mxfeed/internal/contracts"
)

// Resample aggregates one session batch of 1-minute bars into target bars.
// Windows are anchored at the session open (so 60-minute day bars start at
// 08:45, 09:45, ... rather than on the clock hour) and never span the
// batch boundary. Output stamps mark the window open, like every other
// timestamp in the system.
//
// A window with fewer than the full count of source bars is still emitted;
// completeness is judged at the session level by the quality gate, not
// here.
func Resample(key contracts.BatchKey, bars []contracts.Bar, target contracts.Timeframe) ([]contracts.Bar, error) {
	if target != contracts.Timeframe5m && target != contracts.Timeframe60m {
		return nil, fmt.Errorf("resample target must be 5m or 60m, got %q", target)
	}

	open, err := SessionOpen(key)
	if err != nil {
		return nil, fmt.Errorf("resample %s: %w", key, err)
	}

	size := target.Duration()
	var out []contracts.Bar

	for _, bar := range bars {
		start := open.Add(bar.TS.Sub(open) / size * size)

		if n := len(out); n > 0 && out[n-1].TS.Equal(start) {
			agg := &out[n-1]
			if bar.High > agg.High {
				agg.High = bar.High
			}
			if bar.Low < agg.Low {
				agg.Low = bar.Low
			}
			agg.Close = bar.Close
			agg.Volume += bar.Volume
			continue
		}

		out = append(out, contracts.Bar{
			TS:           start,
			Open:         bar.Open,
			High:         bar.High,
			Low:          bar.Low,
			Close:        bar.Close,
			Volume:       bar.Volume,
			Timeframe:    target,
			Session:      key.Session,
			ContractCode: bar.ContractCode,
		})
	}

	return out, nil
}
