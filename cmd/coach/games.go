package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/discochess/coach"
)

var importCmd = &cobra.Command{
	Use:   "import <file.pgn>",
	Short: "Import the games of a PGN file for a player",
	Long: `Import every game of a multi-game PGN file.

The player is created when missing. Games the player did not take part
in, and games already imported under the same link, are skipped.

Examples:
  coach import lichess_alice_2024.pgn --player alice`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var parseCmd = &cobra.Command{
	Use:   "parse <gameID>",
	Short: "Extract the moves of a stored game",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <gameID>",
	Short: "Evaluate and classify every move of one game",
	Long: `Evaluate every position of a game and classify each move.

Moves already analyzed under the current analysis version are skipped
unless --force is set.

Examples:
  coach analyze 42 --depth 16
  coach analyze 42 --evaluator snapshot --snapshot-dir ./snapshot`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var analyzeAllCmd = &cobra.Command{
	Use:   "analyze-all <username>",
	Short: "Analyze every game of a player, most recent first",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyzeAll,
}

var (
	importPlayer string
	force        bool
	maxPlies     int
)

func init() {
	importCmd.Flags().StringVar(&importPlayer, "player", "", "username the games belong to")
	_ = importCmd.MarkFlagRequired("player")

	parseCmd.Flags().BoolVar(&force, "force", false, "replace existing moves and their analyses")
	for _, cmd := range []*cobra.Command{analyzeCmd, analyzeAllCmd} {
		cmd.Flags().BoolVar(&force, "force", false, "re-evaluate positions and overwrite analyses")
		cmd.Flags().IntVar(&maxPlies, "max-plies", 0, "analyze only the first N plies (0 = all)")
	}
	rootCmd.AddCommand(importCmd, parseCmd, analyzeCmd, analyzeAllCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening PGN: %w", err)
	}
	defer f.Close()

	client, err := openClient(cmd.Context(), false)
	if err != nil {
		return err
	}
	res, err := client.Import(cmd.Context(), f, importPlayer)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runParse(cmd *cobra.Command, args []string) error {
	id, err := parseGameID(args[0])
	if err != nil {
		return err
	}
	client, err := openClient(cmd.Context(), false)
	if err != nil {
		return err
	}
	res, err := client.ParseGame(cmd.Context(), id, force)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	id, err := parseGameID(args[0])
	if err != nil {
		return err
	}
	client, err := openClient(cmd.Context(), true)
	if err != nil {
		return err
	}
	res, err := client.AnalyzeGame(cmd.Context(), id, coach.AnalyzeOptions{Force: force, MaxPlies: maxPlies})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runAnalyzeAll(cmd *cobra.Command, args []string) error {
	client, err := openClient(cmd.Context(), true)
	if err != nil {
		return err
	}
	res, err := client.AnalyzeAll(cmd.Context(), args[0], coach.AnalyzeOptions{Force: force, MaxPlies: maxPlies})
	if err != nil {
		return err
	}
	return printJSON(res)
}
