package gate

import "github.com/taquant/mxfeed/internal/contracts"

// WatermarkGate is Gate 2: it drops candidate rows whose key the
// destination already holds, so rerunning the pipeline over an
// already-processed window produces zero additional writes. The watermark
// set comes from the destination collaborator; this gate is pure
// set-difference.
type WatermarkGate struct{}

// NewWatermarkGate creates a WatermarkGate.
func NewWatermarkGate() *WatermarkGate {
	return &WatermarkGate{}
}

// Filter returns the rows not yet persisted and the number suppressed as
// duplicates. Suppression is a normal outcome, not an error; callers log
// it as informational only.
func (g *WatermarkGate) Filter(rows []contracts.AdjustedRow, existing contracts.KeySet) (kept []contracts.AdjustedRow, suppressed int) {
	for _, row := range rows {
		if existing.Contains(row.Key()) {
			suppressed++
			continue
		}
		kept = append(kept, row)
	}
	return kept, suppressed
}
