package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/internal/gate"
	"github.com/taquant/mxfeed/internal/store"
	"github.com/taquant/mxfeed/pkg/config"
	"github.com/taquant/mxfeed/pkg/database"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [date_market_type]",
	Short: "Re-run the completeness gate on stored rows",
	Long: `Dry-runs the completeness gate against rows already in the store.

The store only ever receives batches that passed the gate, so a failure
here means rows were lost or mangled after the fact and the batch needs
investigating.

Example:
  go run ./cmd/mxfeed check 250618D
  go run ./cmd/mxfeed check 250618N`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

var batchKeyPattern = regexp.MustCompile(`^(\d{6})([DN])$`)

func runCheck(cmd *cobra.Command, args []string) error {
	m := batchKeyPattern.FindStringSubmatch(args[0])
	if m == nil {
		return fmt.Errorf("argument must look like 250618D or 250618N")
	}

	date, err := time.ParseInLocation("060102", m[1], contracts.Taipei)
	if err != nil {
		return fmt.Errorf("invalid date in %q: %w", args[0], err)
	}
	key := contracts.BatchKey{Date: date.Format("2006-01-02"), Session: contracts.Session(m[2])}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	rows := store.NewRowRepository(db.Pool)
	quality := gate.NewQualityGate()
	ctx := context.Background()

	fmt.Printf("Checking stored batch %s\n\n", key)

	failed := false
	for _, tf := range []contracts.Timeframe{contracts.Timeframe5m, contracts.Timeframe60m} {
		stored, err := rows.Rows(ctx, key.MarketType(), tf)
		if err != nil {
			return fmt.Errorf("read %s rows: %w", tf, err)
		}

		expected, _ := gate.ExpectedCount(tf, key.Session)
		if len(stored) == 0 {
			fmt.Printf("  −  %-4s not persisted (expected %d rows)\n", tf, expected)
			continue
		}

		if err := quality.Check(key, tf, stored); err != nil {
			failed = true
			var ce *contracts.CompletenessError
			if errors.As(err, &ce) {
				fmt.Printf("  ❌ %-4s %s\n", tf, ce.Error())
				continue
			}
			return err
		}

		fmt.Printf("  ✅ %-4s %d/%d rows\n", tf, len(stored), expected)
	}

	if failed {
		return fmt.Errorf("stored batch %s failed the completeness gate", key)
	}
	return nil
}
