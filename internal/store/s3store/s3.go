// Package s3store keeps snapshots in an S3 bucket or any S3-compatible
// service.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/discochess/coach/internal/codec"
	"github.com/discochess/coach/internal/store"
)

var (
	_ store.Store  = (*Store)(nil)
	_ store.Writer = (*Store)(nil)
)

// API is the subset of the S3 client the store uses.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ API = (*s3.Client)(nil)

// Store reads and writes one snapshot under a bucket prefix.
type Store struct {
	client API
	bucket string
	layout store.Layout
	codec  codec.Codec
}

type settings struct {
	prefix   string
	region   string
	endpoint string
	client   API
}

// Option configures a Store.
type Option func(*settings)

// WithPrefix sets the key prefix of the snapshot.
func WithPrefix(prefix string) Option {
	return func(s *settings) { s.prefix = prefix }
}

// WithRegion overrides the region from the environment.
func WithRegion(region string) Option {
	return func(s *settings) { s.region = region }
}

// WithEndpoint targets an S3-compatible service such as MinIO. Path-style
// addressing is enabled.
func WithEndpoint(endpoint string) Option {
	return func(s *settings) { s.endpoint = endpoint }
}

// WithClient uses client instead of one built from the AWS environment.
func WithClient(client API) Option {
	return func(s *settings) { s.client = client }
}

// New opens the snapshot stored in bucket. Credentials and region come from
// the default AWS configuration chain unless a client is supplied.
func New(ctx context.Context, bucket string, c codec.Codec, opts ...Option) (*Store, error) {
	var set settings
	for _, opt := range opts {
		opt(&set)
	}

	client := set.client
	if client == nil {
		var loadOpts []func(*config.LoadOptions) error
		if set.region != "" {
			loadOpts = append(loadOpts, config.WithRegion(set.region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if set.endpoint != "" {
				o.BaseEndpoint = aws.String(set.endpoint)
				o.UsePathStyle = true
			}
		})
	}

	return &Store{
		client: client,
		bucket: bucket,
		layout: store.NewLayout(set.prefix, c.Extension()),
		codec:  c,
	}, nil
}

// ReadShard downloads and decompresses a shard.
func (s *Store) ReadShard(ctx context.Context, shardID int) ([]byte, error) {
	compressed, err := s.get(ctx, s.layout.Shard(shardID))
	if err != nil {
		return nil, err
	}
	return codec.Decompress(s.codec, bytes.NewReader(compressed))
}

// ReadObject downloads a metadata object.
func (s *Store) ReadObject(ctx context.Context, name string) ([]byte, error) {
	return s.get(ctx, s.layout.Object(name))
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("getting s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// WriteShard compresses and uploads a shard.
func (s *Store) WriteShard(ctx context.Context, shardID int, data []byte) error {
	compressed, err := codec.Compress(s.codec, data)
	if err != nil {
		return err
	}
	return s.put(ctx, s.layout.Shard(shardID), compressed)
}

// WriteObject uploads a metadata object.
func (s *Store) WriteObject(ctx context.Context, name string, data []byte) error {
	return s.put(ctx, s.layout.Object(name), data)
}

func (s *Store) put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(store.ContentType(key)),
	})
	if err != nil {
		return fmt.Errorf("putting s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Close is a no-op; the S3 client holds no connections of its own.
func (s *Store) Close() error {
	return nil
}
