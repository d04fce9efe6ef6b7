// Package noopcodec stores shards uncompressed.
package noopcodec

import (
	"io"

	"github.com/discochess/coach/internal/codec"
)

// Name is the codec name recorded in manifests.
const Name = "none"

var _ codec.Codec = Codec{}

// Codec passes data through unchanged. Shard files get no extension.
type Codec struct{}

// New returns the pass-through codec.
func New() Codec {
	return Codec{}
}

func (Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

func (Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return writer{w}, nil
}

func (Codec) Name() string      { return Name }
func (Codec) Extension() string { return "" }

type writer struct{ io.Writer }

func (writer) Close() error { return nil }
