package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/discochess/coach/internal/search"
	"github.com/discochess/coach/internal/shard/shards"
	"github.com/discochess/coach/internal/store"
)

// ShardError reports a shard that failed verification.
type ShardError struct {
	ShardID int
	Err     error
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %d: %v", e.ShardID, e.Err)
}

func (e *ShardError) Unwrap() error { return e.Err }

// Report is the outcome of Verify.
type Report struct {
	Manifest *Manifest
	Shards   int   // shards present in the store
	Records  int64 // records read
	Errors   []*ShardError
}

// OK reports whether the snapshot matches its manifest.
func (r *Report) OK() bool {
	return len(r.Errors) == 0 && r.Shards == r.Manifest.ShardCount && r.Records == r.Manifest.RecordCount
}

// Verify checks that every shard decodes, holds parseable sorted records
// placed by the manifest strategy, and that the totals match the manifest.
// With quick set only the first and last record of each shard are checked.
func Verify(ctx context.Context, s store.Store, quick bool) (*Report, error) {
	m, err := ReadManifest(ctx, s)
	if err != nil {
		return nil, err
	}
	strategy, err := shards.ByName(m.Strategy)
	if err != nil {
		return nil, err
	}

	report := &Report{Manifest: m}
	for id := 0; id < m.TotalShards; id++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := s.ReadShard(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		report.Shards++
		if err != nil {
			report.Errors = append(report.Errors, &ShardError{ShardID: id, Err: err})
			continue
		}

		sh := search.Parse(data)
		report.Records += int64(sh.Len())
		if err := verifyShard(sh, quick, func(key string) bool {
			return strategy.ShardID(key, m.TotalShards) == id
		}); err != nil {
			report.Errors = append(report.Errors, &ShardError{ShardID: id, Err: err})
		}
	}
	return report, nil
}

func verifyShard(sh *search.Shard, quick bool, placed func(string) bool) error {
	n := sh.Len()
	if n == 0 {
		return fmt.Errorf("empty shard")
	}

	indices := make([]int, 0, n)
	if quick {
		indices = append(indices, 0)
		if n > 1 {
			indices = append(indices, n-1)
		}
	} else {
		for i := 0; i < n; i++ {
			indices = append(indices, i)
		}
	}

	var prev string
	for _, idx := range indices {
		key := sh.Key(idx)
		if key == "" {
			return fmt.Errorf("line %d: invalid JSON or missing FEN", idx+1)
		}
		if prev != "" && key < prev {
			return fmt.Errorf("lines not sorted: %q comes after %q", key, prev)
		}
		if !placed(key) {
			return fmt.Errorf("line %d: %q belongs to another shard", idx+1, key)
		}
		prev = key
	}
	return nil
}
