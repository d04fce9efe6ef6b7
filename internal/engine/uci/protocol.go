package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/discochess/coach/internal/engine"
)

// pump forwards engine output lines until EOF or until the session is
// killed.
func (s *session) pump(stdout io.Reader) {
	defer close(s.lines)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		select {
		case s.lines <- scanner.Text():
		case <-s.done:
			return
		}
	}
}

func (s *session) send(cmd string) error {
	if _, err := fmt.Fprintln(s.stdin, cmd); err != nil {
		return fmt.Errorf("writing %q: %w", cmd, err)
	}
	return nil
}

// next returns the next output line, honoring ctx.
func (s *session) next(ctx context.Context) (string, error) {
	select {
	case line, ok := <-s.lines:
		if !ok {
			return "", errClosed
		}
		return strings.TrimSpace(line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// handshake runs uci/uciok, sets MultiPV and waits for readyok. It returns
// the engine's "id name" value.
func (s *session) handshake(ctx context.Context, multiPV int) (string, error) {
	if err := s.send("uci"); err != nil {
		return "", err
	}
	var idName string
	for {
		line, err := s.next(ctx)
		if err != nil {
			return "", fmt.Errorf("waiting for uciok: %w", err)
		}
		if name, ok := strings.CutPrefix(line, "id name "); ok {
			idName = name
		}
		if line == "uciok" {
			break
		}
	}
	if err := s.send(fmt.Sprintf("setoption name MultiPV value %d", multiPV)); err != nil {
		return "", err
	}
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	return idName, nil
}

func (s *session) ready(ctx context.Context) error {
	if err := s.send("isready"); err != nil {
		return err
	}
	for {
		line, err := s.next(ctx)
		if err != nil {
			return fmt.Errorf("waiting for readyok: %w", err)
		}
		if line == "readyok" {
			return nil
		}
	}
}

// search analyzes fen and returns the final line per multipv index, in rank
// order and relative to the side to move.
func (s *session) search(ctx context.Context, fen string, cfg engine.Config) ([]engine.Line, error) {
	if err := s.send("ucinewgame"); err != nil {
		return nil, err
	}
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if err := s.send("position fen " + fen); err != nil {
		return nil, err
	}
	if err := s.send(goCommand(cfg)); err != nil {
		return nil, err
	}

	latest := make(map[int]engine.Line)
	for {
		line, err := s.next(ctx)
		if err != nil {
			return nil, fmt.Errorf("waiting for bestmove: %w", err)
		}
		if strings.HasPrefix(line, "bestmove") {
			break
		}
		if idx, l, ok := parseInfo(line); ok {
			latest[idx] = l
		}
	}

	ranks := make([]int, 0, len(latest))
	for idx := range latest {
		ranks = append(ranks, idx)
	}
	sort.Ints(ranks)

	lines := make([]engine.Line, 0, len(ranks))
	for _, idx := range ranks {
		lines = append(lines, latest[idx])
	}
	return lines, nil
}

// goCommand builds the go command with the positive limits only.
func goCommand(cfg engine.Config) string {
	cmd := "go"
	if cfg.Depth > 0 {
		cmd += " depth " + strconv.Itoa(cfg.Depth)
	}
	if cfg.TimeMS > 0 {
		cmd += " movetime " + strconv.Itoa(cfg.TimeMS)
	}
	return cmd
}

// parseInfo reads an "info" line carrying a score or a pv. It returns the
// multipv index (1 when absent). A "score mate 0" means the side to move is
// checkmated and is reported as a lost centipawn score.
func parseInfo(line string) (int, engine.Line, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "info" {
		return 0, engine.Line{}, false
	}

	var (
		l      engine.Line
		idx    = 1
		scored bool
	)
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "string":
			return 0, engine.Line{}, false
		case "depth":
			if i+1 < len(fields) {
				l.Depth, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "multipv":
			if i+1 < len(fields) {
				if n, err := strconv.Atoi(fields[i+1]); err == nil {
					idx = n
				}
				i++
			}
		case "score":
			if i+2 >= len(fields) {
				continue
			}
			n, err := strconv.Atoi(fields[i+2])
			if err != nil {
				continue
			}
			switch fields[i+1] {
			case "cp":
				l.CP, scored = &n, true
			case "mate":
				if n == 0 {
					lost := -engine.MateScoreCP
					l.CP = &lost
				} else {
					l.Mate = &n
				}
				scored = true
			}
			i += 2
		case "pv":
			l.PV = strings.Join(fields[i+1:], " ")
			i = len(fields)
		}
	}
	if !scored && l.PV == "" {
		return 0, engine.Line{}, false
	}
	return idx, l, true
}
