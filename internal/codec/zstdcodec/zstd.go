// Package zstdcodec compresses shards with zstd.
package zstdcodec

import (
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/discochess/coach/internal/codec"
)

// Name is the codec name recorded in manifests.
const Name = "zstd"

var _ codec.Codec = (*Codec)(nil)

// Codec implements zstd compression.
type Codec struct {
	level zstd.EncoderLevel
}

// Option configures a Codec.
type Option func(*Codec)

// WithLevel sets the encoder level.
func WithLevel(level zstd.EncoderLevel) Option {
	return func(c *Codec) {
		c.level = level
	}
}

// New returns a zstd codec at zstd.SpeedBetterCompression.
func New(opts ...Option) *Codec {
	c := &Codec{level: zstd.SpeedBetterCompression}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reader decodes r on a single goroutine.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return d.IOReadCloser(), nil
}

func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(c.level))
}

func (c *Codec) Name() string {
	return Name
}

func (c *Codec) Extension() string {
	return "zst"
}
