package pgn

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var headerRegex = regexp.MustCompile(`^\[\s*([A-Za-z0-9_]+)\s+"((?:[^"\\]|\\.)*)"\s*\]`)

// maxLineBytes bounds a single PGN line; Lichess exports keep movetext on one line.
const maxLineBytes = 4 << 20

// Split reads a multi-game PGN stream and returns each game record.
func Split(r io.Reader) ([]string, error) {
	var (
		games   []string
		current strings.Builder
		inMoves bool
	)
	flush := func() {
		if rec := strings.TrimSpace(current.String()); rec != "" {
			games = append(games, rec)
		}
		current.Reset()
		inMoves = false
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && inMoves {
			flush()
		}
		if trimmed != "" && !strings.HasPrefix(trimmed, "[") {
			inMoves = true
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading pgn: %w", err)
	}
	flush()
	return games, nil
}

// Headers returns the tag pairs of a single game record without replaying
// its moves.
func Headers(record string) map[string]string {
	headers := make(map[string]string)
	for _, line := range strings.Split(record, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "[") {
			break
		}
		if m := headerRegex.FindStringSubmatch(line); m != nil {
			headers[m[1]] = strings.ReplaceAll(m[2], `\"`, `"`)
		}
	}
	return headers
}
