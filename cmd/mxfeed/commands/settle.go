package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/internal/external/sinopac"
	"github.com/taquant/mxfeed/internal/external/taifex"
	"github.com/taquant/mxfeed/internal/settle"
	"github.com/taquant/mxfeed/internal/store"
	"github.com/taquant/mxfeed/pkg/config"
	"github.com/taquant/mxfeed/pkg/database"
	"github.com/taquant/mxfeed/pkg/logger"
)

// settleCmd represents the settle command
var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Inspect and extend the settlement table",
	Long: `Manages the curated settlement table the back-adjustment runs on.

Subcommands:
  show     - print the table with its roll offsets
  predict  - print the predicted next contract window
  extend   - finalize the settled contract and append its successor

Example:
  go run ./cmd/mxfeed settle show
  go run ./cmd/mxfeed settle predict
  go run ./cmd/mxfeed settle extend`,
}

var (
	settleShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the settlement table",
		RunE:  showSettleTable,
	}

	settlePredictCmd = &cobra.Command{
		Use:   "predict",
		Short: "Print the predicted next contract window",
		RunE:  predictSettle,
	}

	settleExtendCmd = &cobra.Command{
		Use:   "extend",
		Short: "Finalize the settled contract and append its successor",
		Long: `Extends the table after a settlement Wednesday.

This fetches the expiring contract's final settlement price from the
exchange, reads the successor contract's price at the settlement stamp
from the feed, writes the resulting next_contract_diff into the settled
record, and appends the successor window. Refuses to act while the last
curated contract is still trading.`,
		RunE: extendSettle,
	}
)

func init() {
	rootCmd.AddCommand(settleCmd)
	settleCmd.AddCommand(settleShowCmd)
	settleCmd.AddCommand(settlePredictCmd)
	settleCmd.AddCommand(settleExtendCmd)
}

func loadResolver(ctx context.Context, cfg *config.Config) (*settle.Resolver, *database.DB, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	records, err := store.NewSettleRepository(db.Pool).Load(ctx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("load settle table: %w", err)
	}

	resolver, err := settle.NewResolver(records)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return resolver, db, nil
}

func showSettleTable(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	resolver, db, err := loadResolver(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Settlement table:")
	fmt.Println()
	fmt.Printf("  %-8s %-17s %-17s %10s %12s\n", "contract", "start_k", "settle_k", "next_diff", "accumulated")
	for _, rec := range resolver.Records() {
		fmt.Printf("  %-8s %-17s %-17s %+10d %+12d\n",
			rec.ContractYearMonth,
			rec.StartK.Format("2006-01-02 15:04"),
			rec.SettleK.Format("2006-01-02 15:04"),
			rec.NextContractDiff,
			rec.AccumulatedContractDiff)
	}

	last := resolver.Last()
	remaining := time.Until(last.SettleK)
	if remaining > 0 {
		fmt.Printf("\nCoverage ends %s (%s from now)\n",
			last.SettleK.Format("2006-01-02 15:04"), remaining.Round(time.Hour))
	} else {
		fmt.Printf("\n⚠️  Coverage ended %s, extend the table\n", last.SettleK.Format("2006-01-02 15:04"))
	}

	return nil
}

func predictSettle(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	resolver, db, err := loadResolver(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	next := resolver.PredictNext()
	fmt.Printf("Predicted next contract: %s\n", next.ContractYearMonth)
	fmt.Printf("  start_k    : %s\n", next.StartK.Format("2006-01-02 15:04"))
	fmt.Printf("  settle_k   : %s (third Wednesday, 13:25)\n", next.SettleK.Format("2006-01-02 15:04"))
	fmt.Printf("  accumulated: %+d (rolled forward, diff unknown until settlement)\n", next.AccumulatedContractDiff)

	return nil
}

func extendSettle(cmd *cobra.Command, args []string) error {
	fmt.Println("=== mxfeed Settle Extend ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	ctx := context.Background()
	resolver, db, err := loadResolver(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ext := settle.NewExtender(
		sinopac.New(cfg, log),
		taifex.New(cfg, log),
		store.NewSettleRepository(db.Pool),
		log,
	)

	next, err := ext.Extend(ctx, resolver, time.Now().In(contracts.Taipei))
	if err != nil {
		return err
	}

	fmt.Printf("\n✅ Table extended with %s (settles %s, accumulated %+d)\n",
		next.ContractYearMonth, next.SettleK.Format("2006-01-02"), next.AccumulatedContractDiff)
	return nil
}
