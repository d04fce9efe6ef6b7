package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/discochess/coach"
	"github.com/discochess/coach/internal/insights"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns <username>",
	Short: "Refresh and list a player's recurring weaknesses",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatterns,
}

var insightsCmd = &cobra.Command{
	Use:   "insights <username>",
	Short: "Print the deep multi-game report as JSON",
	Long: `Build the deep insights report over a player's most recent games:
per-game phase statistics and critical moments, opening and time
management rollups, phase trends and improvement/regression signals.

Examples:
  coach insights alice --games 20
  coach insights alice --from 2024-01-01 --to 2024-03-31 --anonymize`,
	Args: cobra.ExactArgs(1),
	RunE: runInsights,
}

var overviewCmd = &cobra.Command{
	Use:   "overview <username>",
	Short: "Print game and move classification totals",
	Args:  cobra.ExactArgs(1),
	RunE:  runOverview,
}

var openingsCmd = &cobra.Command{
	Use:   "openings <username>",
	Short: "Print results and accuracy per opening",
	Args:  cobra.ExactArgs(1),
	RunE:  runOpenings,
}

var timeCmd = &cobra.Command{
	Use:   "time <username>",
	Short: "Print clock usage and time trouble figures",
	Args:  cobra.ExactArgs(1),
	RunE:  runTime,
}

var (
	analysisVersion string
	outputJSON      bool
	gameLimit       int
	fromDate        string
	toDate          string
	anonymize       bool
	thresholdMS     int
)

func init() {
	for _, cmd := range []*cobra.Command{patternsCmd, overviewCmd, openingsCmd, timeCmd} {
		cmd.Flags().StringVar(&analysisVersion, "version", "", "analysis version (default: latest)")
	}
	patternsCmd.Flags().BoolVar(&outputJSON, "json", false, "output result as JSON")
	openingsCmd.Flags().BoolVar(&outputJSON, "json", false, "output result as JSON")

	insightsCmd.Flags().IntVar(&gameLimit, "games", insights.DefaultGameLimit, "number of recent games (max 25)")
	insightsCmd.Flags().StringVar(&fromDate, "from", "", "earliest game end date (YYYY-MM-DD)")
	insightsCmd.Flags().StringVar(&toDate, "to", "", "latest game end date (YYYY-MM-DD), inclusive")
	insightsCmd.Flags().BoolVar(&anonymize, "anonymize", false, "replace opponent usernames with stable hashes")

	timeCmd.Flags().IntVar(&thresholdMS, "threshold-ms", insights.TimeTroubleMS, "remaining clock that counts as time trouble")

	rootCmd.AddCommand(patternsCmd, insightsCmd, overviewCmd, openingsCmd, timeCmd)
}

func runPatterns(cmd *cobra.Command, args []string) error {
	client, err := openClient(cmd.Context(), false)
	if err != nil {
		return err
	}
	res, err := client.Patterns(cmd.Context(), args[0], analysisVersion)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(res)
	}

	if len(res.Patterns) == 0 {
		fmt.Printf("No patterns for %s.\n", res.PlayerUsername)
		return nil
	}
	fmt.Printf("Player:  %s\n", res.PlayerUsername)
	fmt.Printf("Version: %s\n\n", res.AnalysisVersion)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATTERN\tOCCURRENCES\tAVG CPL\tSEVERITY")
	for _, p := range res.Patterns {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.2f\n", p.Title, p.Occurrences, formatFloat(p.AverageCPL), p.Severity)
	}
	return tw.Flush()
}

func runInsights(cmd *cobra.Command, args []string) error {
	opts := coach.DeepOptions{Anonymize: anonymize}
	opts.Limit = gameLimit
	var err error
	if opts.From, err = parseDate(fromDate, false); err != nil {
		return err
	}
	if opts.To, err = parseDate(toDate, true); err != nil {
		return err
	}

	client, err := openClient(cmd.Context(), false)
	if err != nil {
		return err
	}
	report, err := client.DeepInsights(cmd.Context(), args[0], opts)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runOverview(cmd *cobra.Command, args []string) error {
	client, err := openClient(cmd.Context(), false)
	if err != nil {
		return err
	}
	res, err := client.Overview(cmd.Context(), args[0], analysisVersion)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runOpenings(cmd *cobra.Command, args []string) error {
	client, err := openClient(cmd.Context(), false)
	if err != nil {
		return err
	}
	res, err := client.Openings(cmd.Context(), args[0], analysisVersion)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(res)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPENING\tGAMES\tW/D/L\tWIN RATE\tAVG CPL")
	for _, o := range res {
		fmt.Fprintf(tw, "%s\t%d\t%d/%d/%d\t%.0f%%\t%s\n",
			o.Opening, o.Games, o.Wins, o.Draws, o.Losses, o.WinRate*100, formatFloat(o.AvgCPL))
	}
	return tw.Flush()
}

func runTime(cmd *cobra.Command, args []string) error {
	client, err := openClient(cmd.Context(), false)
	if err != nil {
		return err
	}
	res, err := client.TimeInsights(cmd.Context(), args[0], analysisVersion, thresholdMS)
	if err != nil {
		return err
	}
	return printJSON(res)
}

// parseDate parses a YYYY-MM-DD flag. An end date covers the whole day.
func parseDate(value string, end bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", value)
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
