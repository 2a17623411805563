package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/internal/pipeline"
	"github.com/taquant/mxfeed/pkg/config"
	"github.com/taquant/mxfeed/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

type stubRunner struct {
	from, to time.Time
	report   *pipeline.Report
	err      error
}

func (r *stubRunner) Run(ctx context.Context, from, to time.Time) (*pipeline.Report, error) {
	r.from, r.to = from, to
	return r.report, r.err
}

func TestPipelineJob_Run(t *testing.T) {
	report := pipeline.NewReport(time.Now(), time.Now())
	runner := &stubRunner{report: report}
	tracker := pipeline.NewTracker()
	cfg := &config.Config{Pipeline: config.PipelineConfig{BackfillDays: 7}}

	job := NewPipelineJob(runner, tracker, cfg, testLogger())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 7*24*time.Hour, runner.to.Sub(runner.from))
	assert.Equal(t, contracts.Taipei.String(), runner.to.Location().String())
	assert.Zero(t, runner.to.Hour(), "window bounds are midnights")

	// Report lands in the tracker even on success.
	assert.Same(t, report, tracker.Latest())
}

func TestPipelineJob_RunRecordsFailedReport(t *testing.T) {
	report := pipeline.NewReport(time.Now(), time.Now())
	runner := &stubRunner{report: report, err: pipeline.ErrBatchesBlocked}
	tracker := pipeline.NewTracker()
	cfg := &config.Config{Pipeline: config.PipelineConfig{BackfillDays: 3}}

	job := NewPipelineJob(runner, tracker, cfg, testLogger())
	err := job.Run(context.Background())

	assert.Error(t, err)
	assert.Same(t, report, tracker.Latest(), "partial report still recorded")
}

type stubTable struct {
	records []contracts.SettleRecord
}

func (s *stubTable) Load(ctx context.Context) ([]contracts.SettleRecord, error) {
	return s.records, nil
}

func coverageRecord(settleK time.Time) contracts.SettleRecord {
	return contracts.SettleRecord{
		ContractYearMonth: settleK.Format("200601"),
		StartK:            settleK.AddDate(0, -1, 0),
		SettleK:           settleK,
	}
}

func TestCoverageJob_Run(t *testing.T) {
	now := time.Now().In(contracts.Taipei)

	t.Run("plenty of runway", func(t *testing.T) {
		table := &stubTable{records: []contracts.SettleRecord{coverageRecord(now.AddDate(0, 1, 0))}}
		job := NewCoverageJob(table, testLogger())
		assert.NoError(t, job.Run(context.Background()))
	})

	t.Run("close to exhaustion", func(t *testing.T) {
		table := &stubTable{records: []contracts.SettleRecord{coverageRecord(now.AddDate(0, 0, 2))}}
		job := NewCoverageJob(table, testLogger())
		assert.NoError(t, job.Run(context.Background()), "warning only, not an error")
	})

	t.Run("exhausted", func(t *testing.T) {
		table := &stubTable{records: []contracts.SettleRecord{coverageRecord(now.AddDate(0, 0, -3))}}
		job := NewCoverageJob(table, testLogger())
		assert.Error(t, job.Run(context.Background()))
	})
}

func TestSchedules(t *testing.T) {
	cfg := &config.Config{}
	assert.Equal(t, "0 10 5,14 * * *", NewPipelineJob(nil, nil, cfg, testLogger()).Schedule())
	assert.Equal(t, "0 0 15 * * *", NewCoverageJob(nil, testLogger()).Schedule())
}
