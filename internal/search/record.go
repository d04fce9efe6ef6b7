// Package search stores and finds evaluation records in sorted JSONL shards.
package search

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PV is one principal variation of an evaluation.
type PV struct {
	CP   *int   `json:"cp,omitempty"`
	Mate *int   `json:"mate,omitempty"`
	Line string `json:"line"`
}

// Eval is one search result for a position.
type Eval struct {
	PVs    []PV `json:"pvs"`
	Knodes int  `json:"knodes"`
	Depth  int  `json:"depth"`
}

// EvalRecord is one shard line in the Lichess evaluation export format.
// FEN is the first field so keys can be read without decoding the line.
type EvalRecord struct {
	FEN   string `json:"fen"`
	Evals []Eval `json:"evals"`
}

// Encode renders the record as one JSONL line without the trailing newline.
func (r *EvalRecord) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encoding eval record: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

var keyPrefix = []byte(`{"fen":"`)

// Key returns the FEN of an encoded record, or "" when the line does not
// start with one.
func Key(line []byte) string {
	if !bytes.HasPrefix(line, keyPrefix) {
		return ""
	}
	rest := line[len(keyPrefix):]
	end := bytes.IndexByte(rest, '"')
	if end <= 0 {
		return ""
	}
	return string(rest[:end])
}
