package contracts

import (
	"context"
	"time"
)

// BarSource fetches raw fixed-contract minute bars for one calendar date.
// Returning fewer bars than a full session holds is expected input (feed
// gap), not an error; the quality gate catches it downstream.
type BarSource interface {
	Fetch(ctx context.Context, date time.Time, contractCode string) ([]Bar, error)
}

// SettleTable loads the curated settlement table, ordered by contract
// window start.
type SettleTable interface {
	Load(ctx context.Context) ([]SettleRecord, error)
}

// RowStore is the destination for adjusted rows. Append-only at the
// RowKey grain: ExistingKeys supplies the watermark and Write must never
// duplicate a key the watermark already covered.
//
// ExistingKeys takes session-date bounds, both inclusive. The
// implementation owns widening them to timestamp bounds: a night session
// attributed to `to` carries stamps into the following early morning, and
// the caller must not pad for that.
type RowStore interface {
	ExistingKeys(ctx context.Context, from, to time.Time) (KeySet, error)
	Write(ctx context.Context, rows []AdjustedRow) error
}
