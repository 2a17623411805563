// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/internal/pipeline"
	"github.com/taquant/mxfeed/pkg/config"
	"github.com/taquant/mxfeed/pkg/logger"
)

// PipelineRunner runs the continuous-series pipeline over a date window.
type PipelineRunner interface {
	Run(ctx context.Context, from, to time.Time) (*pipeline.Report, error)
}

// PipelineJob runs the pipeline after each session close: 05:10 for the
// night session ending at 05:00, 14:10 for the day session ending at
// 13:45. The watermark makes the overlap between consecutive runs free.
type PipelineJob struct {
	runner  PipelineRunner
	tracker *pipeline.Tracker
	config  *config.Config
	logger  *logger.Logger
}

// NewPipelineJob creates a new pipeline job
func NewPipelineJob(runner PipelineRunner, tracker *pipeline.Tracker, cfg *config.Config, log *logger.Logger) *PipelineJob {
	return &PipelineJob{
		runner:  runner,
		tracker: tracker,
		config:  cfg,
		logger:  log,
	}
}

// Name returns the job name
func (j *PipelineJob) Name() string {
	return "pipeline"
}

// Schedule returns the cron schedule: shortly after both session closes,
// Taipei time.
func (j *PipelineJob) Schedule() string {
	return "0 10 5,14 * * *"
}

// Run executes the pipeline over the configured backfill window.
func (j *PipelineJob) Run(ctx context.Context) error {
	now := time.Now().In(contracts.Taipei)
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, contracts.Taipei)
	from := to.AddDate(0, 0, -j.config.Pipeline.BackfillDays)

	j.logger.WithFields(map[string]interface{}{
		"from": from.Format("2006-01-02"),
		"to":   to.Format("2006-01-02"),
	}).Info("Starting scheduled pipeline run")

	report, err := j.runner.Run(ctx, from, to)
	if report != nil {
		j.tracker.Record(report)
	}
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"written":    report.WrittenRows,
		"suppressed": report.SuppressedRows,
		"batches":    len(report.Batches),
	}).Info("Scheduled pipeline run finished")

	return nil
}
