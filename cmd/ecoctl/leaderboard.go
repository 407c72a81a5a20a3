package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"example.com/ecotrack/internal/api"
	"example.com/ecotrack/internal/domain"
)

type leaderboardFlags struct {
	file   string
	period string
	format string
}

func newLeaderboardCmd() *cobra.Command {
	f := &leaderboardFlags{}

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the leaderboard with the ledger's score",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboard(cmd.OutOrStdout(), f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.file, "file", "f", "", "Ledger file (YAML or JSON)")
	flags.StringVar(&f.period, "period", string(domain.PeriodWeekly), "Period: weekly, monthly or all-time")
	flags.StringVar(&f.format, "format", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runLeaderboard(out io.Writer, f *leaderboardFlags) error {
	ledger, err := loadLedger(f.file, time.Now().UTC())
	if err != nil {
		return exitError(3, "failed to load ledger: %v", err)
	}

	period := domain.ParsePeriod(f.period)
	result := ledger.Score()
	rows := domain.Leaderboard(period, result.Score)

	switch f.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(api.NewLeaderboardResponse(period, result, rows))
	case "text":
		fmt.Fprintf(out, "Leaderboard (%s)\n", period)
		if result.Empty {
			fmt.Fprintln(out, "  (no activities recorded, your score is the baseline)")
		}
		for _, row := range rows {
			fmt.Fprintf(out, "  %s\n", row)
		}
		return nil
	default:
		return exitError(2, "unknown format: %s", f.format)
	}
}
