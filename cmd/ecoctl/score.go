package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/spf13/cobra"

	"example.com/ecotrack/internal/api"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/random"
)

type scoreFlags struct {
	file    string
	format  string
	seed    uint64
	hasSeed bool
	recent  int
}

func newScoreCmd() *cobra.Command {
	f := &scoreFlags{}

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a ledger file and print chart and suggestions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.hasSeed = cmd.Flags().Changed("seed")
			return runScore(cmd.OutOrStdout(), f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.file, "file", "f", "", "Ledger file (YAML or JSON)")
	flags.StringVar(&f.format, "format", "text", "Output format: text or json")
	flags.Uint64Var(&f.seed, "seed", 0, "Seed for the eco tip (default: random)")
	flags.IntVar(&f.recent, "recent", domain.DefaultRecentLimit, "Number of recent entries to include")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runScore(out io.Writer, f *scoreFlags) error {
	src, err := tipSource(f.seed, f.hasSeed)
	if err != nil {
		return err
	}
	ledger, err := loadLedger(f.file, time.Now().UTC())
	if err != nil {
		return exitError(3, "failed to load ledger: %v", err)
	}

	svc := domain.NewService(nil, domain.NewSuggester(src), domain.WithRecentLimit(f.recent))
	summary := svc.Summarize(ledger)

	switch f.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(api.NewSummaryView(summary))
	case "text":
		return renderSummary(out, summary)
	default:
		return exitError(2, "unknown format: %s", f.format)
	}
}

func tipSource(seed uint64, hasSeed bool) (domain.RandomSource, error) {
	if hasSeed {
		return random.NewSource(seed), nil
	}
	return random.NewSeededSource()
}

func renderSummary(out io.Writer, summary domain.Summary) error {
	result := summary.Result
	if result.Empty {
		_, err := fmt.Fprintln(out, "No activities recorded yet.")
		return err
	}

	fmt.Fprintf(out, "Activities: %d\n", summary.ActivityCount)
	fmt.Fprintf(out, "Eco score:  %d\n", result.Score)
	fmt.Fprintf(out, "Negative:   %d\n", result.Negative)
	fmt.Fprintf(out, "Positive:   %d\n", result.Positive)

	chart := summary.Chart
	if chart.Placeholder {
		fmt.Fprintln(out, "Chart:      no impact")
	} else {
		fmt.Fprintf(out, "Chart:      negative %.1f%% (%.1f°), positive %.1f%% (%.1f°)\n",
			chart.NegativeShare*100, degrees(chart.NegativeAngle),
			chart.PositiveShare*100, degrees(chart.PositiveAngle))
	}

	fmt.Fprintln(out, "Suggestions:")
	for _, s := range summary.Suggestions {
		fmt.Fprintf(out, "  %s %s\n", s.Icon, s.Text)
		if s.Link != "" {
			fmt.Fprintf(out, "    %s\n", s.Link)
		}
	}
	_, err := fmt.Fprintln(out)
	return err
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
