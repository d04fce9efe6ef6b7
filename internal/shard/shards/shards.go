// Package shards resolves sharding strategies by the names recorded in
// snapshot manifests.
package shards

import (
	"fmt"

	"github.com/discochess/coach/internal/shard"
	"github.com/discochess/coach/internal/shard/fnvshard"
	"github.com/discochess/coach/internal/shard/materialshard"
)

// ByName returns the strategy whose Name is name. An empty name selects
// material sharding.
func ByName(name string) (shard.Strategy, error) {
	switch name {
	case "", materialshard.Name:
		return materialshard.New(), nil
	case fnvshard.Name:
		return fnvshard.New(), nil
	}
	return nil, fmt.Errorf("unknown shard strategy %q", name)
}
