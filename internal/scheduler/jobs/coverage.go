package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/internal/settle"
	"github.com/taquant/mxfeed/pkg/logger"
)

// coverageHorizon is how far ahead of table exhaustion the job starts
// warning. One week covers a missed settlement Wednesday plus slack.
const coverageHorizon = 7 * 24 * time.Hour

// CoverageJob watches the settlement table's remaining runway. The
// pipeline degrades to predicted contract windows once the table runs out,
// so the operator needs to extend it before the last settlement date.
type CoverageJob struct {
	table  contracts.SettleTable
	logger *logger.Logger
}

// NewCoverageJob creates a new coverage job
func NewCoverageJob(table contracts.SettleTable, log *logger.Logger) *CoverageJob {
	return &CoverageJob{
		table:  table,
		logger: log,
	}
}

// Name returns the job name
func (j *CoverageJob) Name() string {
	return "settle_coverage"
}

// Schedule returns the cron schedule: every afternoon after the day close.
func (j *CoverageJob) Schedule() string {
	return "0 0 15 * * *"
}

// Run checks how much of the settlement table remains ahead of now.
func (j *CoverageJob) Run(ctx context.Context) error {
	records, err := j.table.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settle table: %w", err)
	}

	resolver, err := settle.NewResolver(records)
	if err != nil {
		return fmt.Errorf("settle table invalid: %w", err)
	}

	now := time.Now().In(contracts.Taipei)
	last := resolver.Last()
	remaining := last.SettleK.Sub(now)

	switch {
	case remaining < 0:
		next := resolver.PredictNext()
		j.logger.WithFields(map[string]interface{}{
			"last_contract": last.ContractYearMonth,
			"settled_at":    last.SettleK.Format("2006-01-02 15:04"),
			"predicted":     next.ContractYearMonth,
		}).Error("Settle table exhausted, pipeline is running on predicted windows")
		return fmt.Errorf("settle table exhausted at %s", last.SettleK.Format("2006-01-02"))
	case remaining < coverageHorizon:
		j.logger.WithFields(map[string]interface{}{
			"last_contract": last.ContractYearMonth,
			"settles_at":    last.SettleK.Format("2006-01-02 15:04"),
			"remaining":     remaining.Round(time.Hour).String(),
		}).Warn("Settle table close to exhaustion, extend it")
	default:
		j.logger.WithFields(map[string]interface{}{
			"last_contract": last.ContractYearMonth,
			"remaining":     remaining.Round(time.Hour).String(),
		}).Debug("Settle table coverage ok")
	}

	return nil
}
