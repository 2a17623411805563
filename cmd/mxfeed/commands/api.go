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
	"github.com/taquant/mxfeed/internal/pipeline"
	"github.com/taquant/mxfeed/internal/store"
	"github.com/taquant/mxfeed/pkg/config"
	"github.com/taquant/mxfeed/pkg/database"
	"github.com/taquant/mxfeed/pkg/logger"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the status API server",
	Long: `Starts the read-only status API server.

Endpoints:
  GET  /health                                  - Health check
  GET  /api/status/latest                       - Latest run report
  GET  /api/settle                              - Settlement table
  GET  /api/series/{dateMarketType}/{timeframe} - Persisted rows of a batch

Example:
  go run ./cmd/mxfeed api
  go run ./cmd/mxfeed api --port 8089`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default: PORT env)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== mxfeed API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Create repositories and handlers. The API process has no runs of
	// its own, so the tracker stays empty until one is wired in (the
	// scheduler daemon shares it in-process).
	settles := store.NewSettleRepository(db.Pool)
	rows := store.NewRowRepository(db.Pool)
	tracker := pipeline.NewTracker()

	statusHandler := handlers.NewStatusHandler(tracker, settles, log)
	seriesHandler := handlers.NewSeriesHandler(rows, log)

	// 5. Create router and server
	router := api.NewRouter(statusHandler, seriesHandler, log)
	server := api.New(cfg, log, router)

	// 6. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
