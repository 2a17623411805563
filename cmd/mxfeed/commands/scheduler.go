package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taquant/mxfeed/internal/api"
	"github.com/taquant/mxfeed/internal/api/handlers"
	"github.com/taquant/mxfeed/internal/external/sinopac"
	"github.com/taquant/mxfeed/internal/pipeline"
	"github.com/taquant/mxfeed/internal/scheduler"
	"github.com/taquant/mxfeed/internal/scheduler/jobs"
	"github.com/taquant/mxfeed/internal/store"
	"github.com/taquant/mxfeed/pkg/config"
	"github.com/taquant/mxfeed/pkg/database"
	"github.com/taquant/mxfeed/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the session-close scheduler daemon",
	Long: `Runs the scheduler daemon with the session-close jobs.

Registered jobs (Taipei time):
- pipeline:        05:10 and 14:10, after each session close
- settle_coverage: 15:00 daily, warns before the settle table runs out

The daemon also serves the status API on the configured port, so the
latest run report of a scheduled pipeline run is visible at
/api/status/latest.

Subcommands:
  start - start the daemon
  list  - list registered jobs

Example:
  go run ./cmd/mxfeed scheduler start
  go run ./cmd/mxfeed scheduler list`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
}

// initScheduler wires the scheduler, its jobs, and the shared run tracker.
func initScheduler(cfg *config.Config, log *logger.Logger, db *database.DB) (*scheduler.Scheduler, *pipeline.Tracker, error) {
	source := sinopac.New(cfg, log)
	settles := store.NewSettleRepository(db.Pool)
	rows := store.NewRowRepository(db.Pool)

	orch := pipeline.New(source, settles, rows, log,
		pipeline.WithForceContinuous(cfg.Pipeline.ForceContinuous))
	tracker := pipeline.NewTracker()

	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewPipelineJob(orch, tracker, cfg, log)); err != nil {
		return nil, nil, err
	}
	if err := sched.AddJob(jobs.NewCoverageJob(settles, log)); err != nil {
		return nil, nil, err
	}

	return sched, tracker, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== mxfeed Scheduler ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	sched, tracker, err := initScheduler(cfg, log, db)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	// Status API sharing the tracker, so scheduled runs are observable.
	statusHandler := handlers.NewStatusHandler(tracker, store.NewSettleRepository(db.Pool), log)
	seriesHandler := handlers.NewSeriesHandler(store.NewRowRepository(db.Pool), log)
	server := api.New(cfg, log, api.NewRouter(statusHandler, seriesHandler, log))

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start status API")
		}
	}()

	sched.Start()

	fmt.Println("\n✅ Scheduler started")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Printf("\nStatus API on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("status API shutdown failed: %w", err)
	}

	fmt.Println("Scheduler stopped")
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	sched, _, err := initScheduler(cfg, log, db)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	return nil
}
