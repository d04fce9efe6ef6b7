// Package main provides the coach CLI for importing, analyzing and mining
// a player's chess games.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/discochess/coach"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	closeAll()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch coach.KindOf(err) {
	case coach.KindClient:
		return 2
	case coach.KindUpstream:
		return 3
	default:
		return 1
	}
}
