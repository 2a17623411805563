// Package series holds the continuous-series construction engine: session
// segmentation of raw minute bars, session-aware resampling, and roll
// back-adjustment. Everything here is a pure transform; no I/O.
package series

import (
	"sort"
	"time"

	"github.com/taquant/mxfeed/internal/contracts"
)

// Session clock boundaries, minutes from midnight, Taipei time. Bars carry
// open-time stamps, so a session of [open, close) contains stamps up to but
// excluding the close.
const (
	dayOpenMin    = 8*60 + 45  // 08:45
	dayCloseMin   = 13*60 + 45 // 13:45
	nightOpenMin  = 15 * 60    // 15:00
	nightCloseMin = 5 * 60     // 05:00 next morning
)

// SessionOpen returns the opening timestamp of a batch: 08:45 on the trade
// date for the day session, 15:00 for the night session.
func SessionOpen(key contracts.BatchKey) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", key.Date, contracts.Taipei)
	if err != nil {
		return time.Time{}, err
	}
	if key.Session == contracts.SessionDay {
		return date.Add(time.Duration(dayOpenMin) * time.Minute), nil
	}
	return date.Add(time.Duration(nightOpenMin) * time.Minute), nil
}

// SessionMinutes returns the session length in minutes.
func SessionMinutes(s contracts.Session) int {
	if s == contracts.SessionDay {
		return dayCloseMin - dayOpenMin
	}
	return 24*60 - nightOpenMin + nightCloseMin
}

// SegmentResult groups 1-minute bars by (trade date, session). Bars outside
// both session windows are not silently lost: Dropped records how many were
// discarded, as a diagnostic for the caller.
type SegmentResult struct {
	Batches map[contracts.BatchKey][]contracts.Bar
	Dropped int
}

// Keys returns the batch keys in chronological order: trade date first,
// day session before night session within a date.
func (r SegmentResult) Keys() []contracts.BatchKey {
	keys := make([]contracts.BatchKey, 0, len(r.Batches))
	for key := range r.Batches {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		// ISO date strings sort chronologically.
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].Session == contracts.SessionDay && keys[j].Session == contracts.SessionNight
	})
	return keys
}

// Classify attributes a bar timestamp to its session. The whole night
// session belongs to the calendar date it opened on, so stamps before
// 05:00 map to the previous day; the rule holds across month and year
// boundaries because the date arithmetic is plain calendar subtraction.
// ok is false for stamps outside both windows.
func Classify(ts time.Time) (key contracts.BatchKey, ok bool) {
	local := ts.In(contracts.Taipei)
	minute := local.Hour()*60 + local.Minute()

	switch {
	case minute >= dayOpenMin && minute < dayCloseMin:
		return contracts.BatchKey{
			Date:    local.Format("2006-01-02"),
			Session: contracts.SessionDay,
		}, true
	case minute >= nightOpenMin:
		return contracts.BatchKey{
			Date:    local.Format("2006-01-02"),
			Session: contracts.SessionNight,
		}, true
	case minute < nightCloseMin:
		return contracts.BatchKey{
			Date:    local.AddDate(0, 0, -1).Format("2006-01-02"),
			Session: contracts.SessionNight,
		}, true
	default:
		return contracts.BatchKey{}, false
	}
}

// Segment splits an ordered stream of 1-minute bars into per-session
// batches. A date with no night session (holiday) simply produces no entry
// for that key; empty placeholders are never created.
func Segment(bars []contracts.Bar) SegmentResult {
	result := SegmentResult{Batches: make(map[contracts.BatchKey][]contracts.Bar)}

	for _, bar := range bars {
		key, ok := Classify(bar.TS)
		if !ok {
			result.Dropped++
			continue
		}
		bar.Session = key.Session
		result.Batches[key] = append(result.Batches[key], bar)
	}

	return result
}
