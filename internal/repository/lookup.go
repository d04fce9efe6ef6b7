package repository

import (
	"context"
	"errors"
	"strings"
)

// LookupPlayer trims username and finds the player. A blank or unknown
// username yields a *ValidationError with a user-facing reason.
func LookupPlayer(ctx context.Context, s PlayerStore, username string) (*Player, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, NewValidationError("username", "Username is required.")
	}
	player, err := s.FindPlayer(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, NewValidationError("username", "Player not found.")
	}
	if err != nil {
		return nil, err
	}
	return player, nil
}

// ResolveVersion returns version, or the player's latest analysis version
// when version is empty. The result is empty when nothing was analyzed.
func ResolveVersion(ctx context.Context, s AnalysisStore, playerID uint, version string) (string, error) {
	if version != "" {
		return version, nil
	}
	return s.LatestVersion(ctx, playerID)
}
