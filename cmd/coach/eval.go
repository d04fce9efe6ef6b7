package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:   "eval <FEN>",
	Short: "Evaluate one position",
	Long: `Evaluate a position with the configured evaluator.

The result is cached under the evaluator's analysis version like any
position met during game analysis.

Examples:
  # Starting position with the engine
  coach eval "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

  # After 1.e4, served from a snapshot
  coach eval --evaluator snapshot "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

var (
	evalForce  bool
	showTiming bool
)

func init() {
	evalCmd.Flags().BoolVar(&outputJSON, "json", false, "output result as JSON")
	evalCmd.Flags().BoolVar(&evalForce, "force", false, "search even when the position is cached")
	evalCmd.Flags().BoolVar(&showTiming, "timing", false, "show evaluation timing")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	client, err := openClient(cmd.Context(), true)
	if err != nil {
		return err
	}

	start := time.Now()
	pos, err := client.Eval(cmd.Context(), args[0], evalForce)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if outputJSON {
		return printJSON(pos)
	}

	ev := pos.Evaluation()
	fmt.Printf("FEN:     %s\n", pos.FEN)
	fmt.Printf("Version: %s\n", pos.AnalysisVersion)
	fmt.Printf("Score:   %s\n", ev.Score())
	fmt.Printf("Depth:   %d\n", pos.Depth)
	for i, line := range ev.Lines {
		fmt.Printf("PV %d:    %s (%s)\n", i+1, line.PV, line.Score())
	}
	if showTiming {
		fmt.Printf("Time:    %s\n", elapsed)
	}
	return nil
}
