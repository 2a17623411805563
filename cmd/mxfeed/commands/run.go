package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/internal/external/sinopac"
	"github.com/taquant/mxfeed/internal/pipeline"
	"github.com/taquant/mxfeed/internal/store"
	"github.com/taquant/mxfeed/pkg/config"
	"github.com/taquant/mxfeed/pkg/database"
	"github.com/taquant/mxfeed/pkg/logger"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline over a date window",
	Long: `Runs the continuous-series pipeline over a window of session dates.

For every completed (date, session) batch in the window this:
- fetches raw 1-minute bars from the upstream feed
- segments them into day/night session batches
- resamples to 5m and 60m
- applies the settlement-table roll offsets
- writes batches that pass the completeness and watermark gates

Completed batches already in the store are suppressed, so overlapping
windows are safe to re-run. A batch with missing bars is blocked and
reported; the rest of the window still persists, and the command exits
non-zero.

Example:
  go run ./cmd/mxfeed run
  go run ./cmd/mxfeed run --from 2025-06-16 --to 2025-06-20
  go run ./cmd/mxfeed run --force-continuous=false`,
	RunE: runPipeline,
}

var (
	runFrom            string
	runTo              string
	runForceContinuous bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	// Flags
	runCmd.Flags().StringVar(&runFrom, "from", "", "first session date (YYYY-MM-DD, default: today minus backfill days)")
	runCmd.Flags().StringVar(&runTo, "to", "", "last session date (YYYY-MM-DD, default: today)")
	runCmd.Flags().BoolVar(&runForceContinuous, "force-continuous", true, "fetch under the MXFR1 front-month alias")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	fmt.Println("=== mxfeed Pipeline Run ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("force-continuous") {
		cfg.Pipeline.ForceContinuous = runForceContinuous
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Resolve the window
	from, to, err := runWindow(cfg)
	if err != nil {
		return err
	}

	// 4. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// 5. Wire the collaborators
	source := sinopac.New(cfg, log)
	settles := store.NewSettleRepository(db.Pool)
	rows := store.NewRowRepository(db.Pool)

	orch := pipeline.New(source, settles, rows, log,
		pipeline.WithForceContinuous(cfg.Pipeline.ForceContinuous))

	// 6. Run
	fmt.Printf("Window: %s ~ %s\n\n", from.Format("2006-01-02"), to.Format("2006-01-02"))

	report, runErr := orch.Run(context.Background(), from, to)
	if report != nil {
		printReport(report)
	}
	if runErr != nil {
		if errors.Is(runErr, pipeline.ErrBatchesBlocked) {
			return fmt.Errorf("%d batch(es) blocked by quality gate", report.BlockedBatches())
		}
		return runErr
	}

	return nil
}

// runWindow resolves the --from/--to flags against the configured
// backfill default.
func runWindow(cfg *config.Config) (time.Time, time.Time, error) {
	now := time.Now().In(contracts.Taipei)
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, contracts.Taipei)
	from := to.AddDate(0, 0, -cfg.Pipeline.BackfillDays)

	var err error
	if runFrom != "" {
		from, err = time.ParseInLocation("2006-01-02", runFrom, contracts.Taipei)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if runTo != "" {
		to, err = time.ParseInLocation("2006-01-02", runTo, contracts.Taipei)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return from, to, nil
}

// printReport renders a run report the way an operator reads it: batches
// first, totals last.
func printReport(report *pipeline.Report) {
	for _, b := range report.Batches {
		switch b.Status {
		case pipeline.BatchPersisted:
			fmt.Printf("  ✅ %-14s %-4s %4d rows\n", b.Batch, b.Timeframe, b.Rows)
		case pipeline.BatchBlocked:
			fmt.Printf("  ❌ %-14s %-4s blocked: %s\n", b.Batch, b.Timeframe, b.Error)
		case pipeline.BatchSkipped:
			fmt.Printf("  ⏭  %-14s session still open, deferred\n", b.Batch)
		}
	}

	fmt.Println()
	fmt.Printf("Fetched %d bars (%s), dropped %d outside sessions\n",
		report.FetchedBars, report.FetchCode, report.DroppedBars)
	fmt.Printf("Written %d rows, suppressed %d already-persisted rows\n",
		report.WrittenRows, report.SuppressedRows)
	fmt.Printf("Done in %.2fs\n", report.Duration.Seconds())
}
