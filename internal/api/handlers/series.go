package handlers

import (
	"context"
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/pkg/logger"
)

// RowReader reads persisted continuous-series rows for one session batch.
type RowReader interface {
	Rows(ctx context.Context, dateMarketType string, tf contracts.Timeframe) ([]contracts.AdjustedRow, error)
}

// SeriesHandler serves persisted continuous-series rows.
type SeriesHandler struct {
	rows   RowReader
	logger *logger.Logger
}

// NewSeriesHandler creates a new series handler
func NewSeriesHandler(rows RowReader, log *logger.Logger) *SeriesHandler {
	return &SeriesHandler{
		rows:   rows,
		logger: log,
	}
}

var dateMarketTypePattern = regexp.MustCompile(`^\d{6}[DN]$`)

// GetRows returns the rows of one session batch
// GET /api/series/{dateMarketType}/{timeframe}
func (h *SeriesHandler) GetRows(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	dmt := vars["dateMarketType"]
	if !dateMarketTypePattern.MatchString(dmt) {
		respondError(w, http.StatusBadRequest, "dateMarketType must look like 251231D or 251231N")
		return
	}

	tf := contracts.Timeframe(vars["timeframe"])
	if !tf.Valid() {
		respondError(w, http.StatusBadRequest, "timeframe must be one of 1m, 5m, 60m")
		return
	}

	rows, err := h.rows.Rows(ctx, dmt, tf)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read series rows")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve series rows")
		return
	}

	if len(rows) == 0 {
		respondError(w, http.StatusNotFound, "No rows for this batch and timeframe")
		return
	}

	respondJSON(w, http.StatusOK, rows)
}
