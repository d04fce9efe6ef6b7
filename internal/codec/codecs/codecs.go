// Package codecs resolves codecs by the names recorded in snapshot manifests.
package codecs

import (
	"fmt"

	"github.com/discochess/coach/internal/codec"
	"github.com/discochess/coach/internal/codec/gzipcodec"
	"github.com/discochess/coach/internal/codec/noopcodec"
	"github.com/discochess/coach/internal/codec/zstdcodec"
)

// ByName returns the codec registered under name. An empty name selects zstd.
func ByName(name string) (codec.Codec, error) {
	switch name {
	case "", zstdcodec.Name:
		return zstdcodec.New(), nil
	case gzipcodec.Name:
		return gzipcodec.New(), nil
	case noopcodec.Name:
		return noopcodec.New(), nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}
