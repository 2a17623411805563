// Package handlers holds the status API endpoint handlers.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/internal/pipeline"
	"github.com/taquant/mxfeed/pkg/logger"
)

// StatusHandler serves run reports and the settlement table.
type StatusHandler struct {
	tracker *pipeline.Tracker
	table   contracts.SettleTable
	logger  *logger.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(tracker *pipeline.Tracker, table contracts.SettleTable, log *logger.Logger) *StatusHandler {
	return &StatusHandler{
		tracker: tracker,
		table:   table,
		logger:  log,
	}
}

// GetLatestRun returns the most recent pipeline run report
// GET /api/status/latest
func (h *StatusHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	report := h.tracker.Latest()
	if report == nil {
		respondError(w, http.StatusNotFound, "No pipeline run recorded yet")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// settleItem is the wire form of one settlement-table record.
type settleItem struct {
	ContractYearMonth       string `json:"contract_year_month"`
	NextContractDiff        int64  `json:"next_contract_diff"`
	AccumulatedContractDiff int64  `json:"accumulated_contract_diff"`
	StartK                  string `json:"start_k"`
	SettleK                 string `json:"settle_k"`
}

// GetSettleTable returns the curated settlement table
// GET /api/settle
func (h *StatusHandler) GetSettleTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.table.Load(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load settle table")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve settle table")
		return
	}

	items := make([]settleItem, 0, len(records))
	for _, rec := range records {
		items = append(items, settleItem{
			ContractYearMonth:       rec.ContractYearMonth,
			NextContractDiff:        rec.NextContractDiff,
			AccumulatedContractDiff: rec.AccumulatedContractDiff,
			StartK:                  rec.StartK.Format("2006-01-02 15:04"),
			SettleK:                 rec.SettleK.Format("2006-01-02 15:04"),
		})
	}

	respondJSON(w, http.StatusOK, items)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
