package search

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound indicates the position is not in the shard.
var ErrNotFound = errors.New("search: position not found")

// Shard is a decompressed shard split into records, with each record's key
// read once.
type Shard struct {
	lines [][]byte
	keys  []string
}

// Parse splits sorted JSONL data into records. Blank lines are skipped. The
// data is retained, not copied.
func Parse(data []byte) *Shard {
	n := bytes.Count(data, []byte{'\n'}) + 1
	s := &Shard{
		lines: make([][]byte, 0, n),
		keys:  make([]string, 0, n),
	}
	for len(data) > 0 {
		line := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			data = nil
		}
		if len(line) == 0 {
			continue
		}
		s.lines = append(s.lines, line)
		s.keys = append(s.keys, Key(line))
	}
	return s
}

// Len returns the number of records.
func (s *Shard) Len() int { return len(s.lines) }

// Key returns the key of record i, or "" when the record has none.
func (s *Shard) Key(i int) string { return s.keys[i] }

// Find binary-searches the shard for fen.
func (s *Shard) Find(fen string) (*EvalRecord, error) {
	i := sort.SearchStrings(s.keys, fen)
	if i >= len(s.keys) || s.keys[i] != fen {
		return nil, ErrNotFound
	}
	var record EvalRecord
	if err := json.Unmarshal(s.lines[i], &record); err != nil {
		return nil, fmt.Errorf("parsing eval record %q: %w", fen, err)
	}
	return &record, nil
}

// Search finds fen in sorted JSONL data.
func Search(data []byte, fen string) (*EvalRecord, error) {
	return Parse(data).Find(fen)
}
