package pipeline

import (
	"sync"
	"time"

	"github.com/taquant/mxfeed/internal/contracts"
)

// BatchStatus is the per-batch outcome of a run.
type BatchStatus string

const (
	BatchPersisted BatchStatus = "persisted"
	BatchBlocked   BatchStatus = "blocked"
	BatchSkipped   BatchStatus = "skipped" // session still open at run time
)

// BatchResult reports one (date, session, timeframe) batch.
type BatchResult struct {
	Batch     string              `json:"batch"`
	Timeframe contracts.Timeframe `json:"timeframe,omitempty"`
	Status    BatchStatus         `json:"status"`
	Rows      int                 `json:"rows"`
	Error     string              `json:"error,omitempty"`
}

// Report summarizes a pipeline run per batch. Partial progress is normal:
// persisted and blocked batches coexist in the same report.
type Report struct {
	From           string        `json:"from"`
	To             string        `json:"to"`
	FetchCode      string        `json:"fetch_code"`
	FetchedBars    int           `json:"fetched_bars"`
	DroppedBars    int           `json:"dropped_bars"` // outside session windows
	WrittenRows    int           `json:"written_rows"`
	SuppressedRows int           `json:"suppressed_rows"`
	Batches        []BatchResult `json:"batches"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// NewReport creates an empty report for a run window.
func NewReport(from, to time.Time) *Report {
	return &Report{
		From:      from.Format("2006-01-02"),
		To:        to.Format("2006-01-02"),
		StartedAt: time.Now().In(contracts.Taipei),
	}
}

// Pass records a batch that cleared the quality gate.
func (r *Report) Pass(key contracts.BatchKey, tf contracts.Timeframe, rows int) {
	r.Batches = append(r.Batches, BatchResult{
		Batch:     key.String(),
		Timeframe: tf,
		Status:    BatchPersisted,
		Rows:      rows,
	})
}

// Block records a quality-gate failure.
func (r *Report) Block(key contracts.BatchKey, tf contracts.Timeframe, err *contracts.CompletenessError) {
	r.Batches = append(r.Batches, BatchResult{
		Batch:     key.String(),
		Timeframe: tf,
		Status:    BatchBlocked,
		Rows:      err.Actual,
		Error:     err.Error(),
	})
}

// Skip records a batch deferred because its session was still open.
func (r *Report) Skip(key contracts.BatchKey, minuteBars int) {
	r.Batches = append(r.Batches, BatchResult{
		Batch:  key.String(),
		Status: BatchSkipped,
		Rows:   minuteBars,
	})
}

// Finish stamps the run duration.
func (r *Report) Finish(d time.Duration) {
	r.Duration = d
}

// BlockedBatches counts quality-gate failures.
func (r *Report) BlockedBatches() int {
	n := 0
	for _, b := range r.Batches {
		if b.Status == BatchBlocked {
			n++
		}
	}
	return n
}

// PersistedBatches counts batches that cleared both gates.
func (r *Report) PersistedBatches() int {
	n := 0
	for _, b := range r.Batches {
		if b.Status == BatchPersisted {
			n++
		}
	}
	return n
}

// Tracker keeps the most recent run report for the status API. Runs are
// sequential; the mutex only guards against API reads racing a run.
type Tracker struct {
	mu     sync.RWMutex
	latest *Report
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record stores a finished report.
func (t *Tracker) Record(r *Report) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest = r
}

// Latest returns the most recent report, or nil before the first run.
func (t *Tracker) Latest() *Report {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}
