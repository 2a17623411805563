package contracts

import (
	"fmt"
	"time"
)

// Timeframe is the bar interval. Only the three intervals the pipeline
// produces are valid.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe60m Timeframe = "60m"
)

// Duration returns the bar interval as a time.Duration.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1m:
		return time.Minute
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe60m:
		return time.Hour
	default:
		return 0
	}
}

// Valid reports whether tf is one of the supported intervals.
func (tf Timeframe) Valid() bool {
	return tf.Duration() > 0
}

// Session is the trading session a bar belongs to.
type Session string

const (
	SessionDay   Session = "D"
	SessionNight Session = "N"
)

// Taipei is the exchange timezone. All session and calendar arithmetic
// happens in this location.
var Taipei = loadTaipei()

func loadTaipei() *time.Location {
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		// TAIFEX has no DST, a fixed offset is equivalent.
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// Bar is a single OHLCV observation. The timestamp marks the open of the
// interval, matching the upstream feed's convention. Prices are whole MXF
// index points (tick size 1), so int64 arithmetic is exact across any
// number of roll adjustments.
type Bar struct {
	TS           time.Time `json:"ts"`
	Open         int64     `json:"open"`
	High         int64     `json:"high"`
	Low          int64     `json:"low"`
	Close        int64     `json:"close"`
	Volume       int64     `json:"volume"`
	Timeframe    Timeframe `json:"timeframe"`
	Session      Session   `json:"session,omitempty"`
	ContractCode string    `json:"contract_code,omitempty"`
}

// BatchKey identifies one (trade date, session) batch. Date is the calendar
// date the session opened on, formatted "2006-01-02"; an overnight bar
// carries the prior day's date.
type BatchKey struct {
	Date    string
	Session Session
}

// MarketType returns the composite date+session code used as part of the
// persisted row key, e.g. "251231N" for the night session opening
// 2025-12-31.
func (k BatchKey) MarketType() string {
	t, err := time.ParseInLocation("2006-01-02", k.Date, Taipei)
	if err != nil {
		return ""
	}
	return t.Format("060102") + string(k.Session)
}

func (k BatchKey) String() string {
	return fmt.Sprintf("%s_%s", k.Date, k.Session)
}
