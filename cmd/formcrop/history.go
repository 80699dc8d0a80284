package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formcrop/formcrop/internal/database"
	"github.com/formcrop/formcrop/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently processed scans",
		Long: `History lists the newest entries of the processing ledger written by
"process --history" and "watch --history" (or history.enabled in the
configuration).

Examples:
  formcrop history
  formcrop history -n 50 --format markdown`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20, "Number of items to show")
	cmd.Flags().StringP("format", "f", "text", "Output format: text, json or markdown")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	writer, err := report.NewWriter(format, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.History.Dir, database.Options{CreateIfNotExists: false})
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return writer.Write(report.FromHistory(records))
}
