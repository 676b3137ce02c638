// Command tryon-usage reports and resets the generation usage ledger held in
// the configured store (TRYON_LEDGER_BACKEND).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/virtual-tryon/internal/cli"
	"github.com/fpang/virtual-tryon/internal/config"
	"github.com/fpang/virtual-tryon/internal/lambdaboot"
	"github.com/fpang/virtual-tryon/internal/logging"
	"github.com/fpang/virtual-tryon/internal/usage"
)

// CLI flags
var (
	jsonFlag bool
	yesFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "tryon-usage",
	Short: "Inspect or reset try-on generation usage",
	Long: `Tryon Usage reads the usage ledger from the store the server is configured
with and prints totals, costs and the most recent generations.

Examples:
  tryon-usage stats
  tryon-usage stats --json
  TRYON_LEDGER_BACKEND=dynamodb TRYON_LEDGER_TABLE=tryon-usage tryon-usage stats
  tryon-usage reset --yes`,
	SilenceUsage: true,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print usage statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every usage record and restart record ids",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	statsCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the stats as JSON")
	resetCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Reset without asking for confirmation")
	rootCmd.AddCommand(statsCmd, resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openLedger loads config and opens the ledger it names.
func openLedger(ctx context.Context) (*usage.Ledger, lambdaboot.LedgerStore, error) {
	logging.Init()
	cfg, err := config.Load()
	if err != nil {
		return nil, lambdaboot.LedgerStore{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, lambdaboot.LedgerStore{}, err
	}

	var awsCfg *aws.Config
	if cfg.NeedsAWS() {
		clients, err := lambdaboot.InitAWS(ctx)
		if err != nil {
			return nil, lambdaboot.LedgerStore{}, err
		}
		awsCfg = &clients.Config
	}
	ledger, store, err := lambdaboot.OpenLedger(ctx, cfg, awsCfg)
	if err != nil {
		return nil, lambdaboot.LedgerStore{}, err
	}
	log.Debug().Str("store", ledger.Describe()).Msg("Ledger opened")
	return ledger, store, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ledger, store, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	stats := ledger.Stats()
	if jsonFlag {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Store: %s\n", ledger.Describe())
	cli.PrintStats(cmd.OutOrStdout(), stats, time.Now())
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	ledger, store, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	n := ledger.Stats().TotalGenerations
	if !yesFlag {
		q := fmt.Sprintf("Delete %d usage records from %s?", n, ledger.Describe())
		if !cli.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), q) {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}
	if err := ledger.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Usage data has been reset.")
	return nil
}
