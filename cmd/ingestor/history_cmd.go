package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdforge/ingestor/ledger"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent ingestion events from the ledger",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of events to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.LedgerPath == "" {
		return fmt.Errorf("no ledger configured (set ledger_path in the config file)")
	}

	led, err := ledger.Open(cfg.LedgerPath, cfg.Logger)
	if err != nil {
		return err
	}
	defer led.Close()

	entries, err := led.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no events recorded")
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s  %-7s %-8s %s", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Outcome, e.MediaType, e.SourceID)
		if e.Error != "" {
			line += "  (" + e.Error + ")"
		}
		fmt.Println(line)
	}
	return nil
}
