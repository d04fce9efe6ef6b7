package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/store"
)

// ManifestName is the object name of the manifest next to the shards.
const ManifestName = "manifest.json"

// FormatVersion is the current snapshot layout version.
const FormatVersion = 1

// Manifest describes an exported snapshot.
type Manifest struct {
	Version         int             `json:"version"`
	SnapshotID      string          `json:"snapshot_id"`
	TotalShards     int             `json:"total_shards"`
	Strategy        string          `json:"strategy"`
	RecordCount     int64           `json:"record_count"`
	ShardCount      int             `json:"shard_count"` // Non-empty shards
	BuiltAt         time.Time       `json:"built_at"`
	Compression     string          `json:"compression"`
	AnalysisVersion string          `json:"analysis_version"`
	Engine          engine.Metadata `json:"engine"`
}

// WriteManifest stores m next to the shards.
func WriteManifest(ctx context.Context, w store.Writer, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := w.WriteObject(ctx, ManifestName, data); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest of the snapshot held by s.
func ReadManifest(ctx context.Context, s store.Store) (*Manifest, error) {
	data, err := s.ReadObject(ctx, ManifestName)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", m.Version)
	}
	if m.TotalShards <= 0 {
		return nil, fmt.Errorf("manifest: invalid total_shards %d", m.TotalShards)
	}
	return &m, nil
}
