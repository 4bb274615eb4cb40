package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/hupe1980/ndgo/blas"
	"github.com/hupe1980/ndgo/blobstore"
	"github.com/hupe1980/ndgo/blobstore/minio"
	"github.com/hupe1980/ndgo/blobstore/s3"
	"github.com/hupe1980/ndgo/checkpoint"
	"github.com/hupe1980/ndgo/codec"
	"github.com/hupe1980/ndgo/dealloc"
	"github.com/hupe1980/ndgo/metrics"
	"github.com/hupe1980/ndgo/resource"
)

// Logger builds a slog logger writing to w in the configured format.
func (l LoggingConfiguration) Logger(w io.Writer) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Controller builds the resource controller.
func (r ResourceConfiguration) Controller() *resource.Controller {
	return resource.NewController(resource.Config{
		MemoryLimitBytes:     int64(r.MemoryLimit),
		MaxBackgroundWorkers: r.MaxBackgroundWorkers,
		IOLimitBytesPerSec:   int64(r.IOLimitPerSec),
	})
}

// Service builds a deallocator. The caller starts and closes it.
func (d DeallocConfiguration) Service(logger *slog.Logger, m metrics.Collector) *dealloc.Service {
	return dealloc.New(
		dealloc.WithSweepInterval(d.SweepInterval),
		dealloc.WithLogger(logger),
		dealloc.WithMetrics(m),
	)
}

// Backend resolves the configured BLAS backend and applies the thread count.
func (b BLASConfiguration) Backend() (blas.Backend, error) {
	bk, err := blas.Get(b.Name)
	if err != nil {
		return nil, err
	}
	if b.Threads > 0 {
		bk.SetMaxThreads(b.Threads)
	}
	return bk, nil
}

// ZipMethod parses Method.
func (c CheckpointConfiguration) ZipMethod() (checkpoint.Method, error) {
	switch strings.ToLower(c.Method) {
	case "store", "none":
		return checkpoint.Store, nil
	case "deflate", "":
		return checkpoint.Deflate, nil
	case "zstd":
		return checkpoint.Zstd, nil
	default:
		return 0, fmt.Errorf("unknown zip method %q", c.Method)
	}
}

// Options returns the checkpoint options implied by the section.
func (c CheckpointConfiguration) Options() []checkpoint.Option {
	var opts []checkpoint.Option
	if cd, ok := codec.ByName(c.Codec); ok {
		opts = append(opts, checkpoint.WithCodec(cd))
	}
	if m, err := c.ZipMethod(); err == nil {
		opts = append(opts, checkpoint.WithMethod(m))
	}
	if c.Commit {
		opts = append(opts, checkpoint.WithCommit())
	}
	if c.Exclusive {
		opts = append(opts, checkpoint.WithExclusive())
	}
	return opts
}

// OpenStore builds the configured checkpoint store. For s3 with a DynamoDB
// table the store is wrapped so CURRENT uses conditional writes.
func (c CheckpointConfiguration) OpenStore(ctx context.Context) (blobstore.BlobStore, error) {
	store, err := c.openStore(ctx)
	if err != nil || c.CacheBlocks == 0 {
		return store, err
	}
	// CURRENT is rewritten in place on every commit.
	cached, err := blobstore.NewCachingStore(store, c.CacheBlocks,
		blobstore.WithBlockSize(int64(c.CacheBlockSize)),
		blobstore.WithCacheFilter(func(name string) bool { return name != checkpoint.CurrentName }),
	)
	if err != nil {
		return nil, fmt.Errorf("config: checkpoint cache: %w", err)
	}
	return cached, nil
}

func (c CheckpointConfiguration) openStore(ctx context.Context) (blobstore.BlobStore, error) {
	switch c.Store {
	case StoreLocal:
		return blobstore.NewLocalStore(c.Dir), nil
	case StoreMemory:
		return blobstore.NewMemoryStore(), nil
	case StoreS3:
		return c.openS3(ctx)
	case StoreMinio:
		return minio.New(minio.Config{
			Endpoint:  c.Minio.Endpoint,
			AccessKey: c.Minio.AccessKey,
			SecretKey: c.Minio.SecretKey,
			Region:    c.Minio.Region,
			Secure:    c.Minio.UseSSL,
			Bucket:    c.Minio.Bucket,
			Prefix:    c.Minio.Prefix,
		})
	default:
		return nil, fmt.Errorf("config: unknown store %q", c.Store)
	}
}

func (c CheckpointConfiguration) openS3(ctx context.Context) (blobstore.BlobStore, error) {
	opts := []s3.Option{s3.WithPrefix(c.S3.Prefix)}
	if c.S3.Region != "" {
		opts = append(opts, s3.WithRegion(c.S3.Region))
	}
	if c.S3.Endpoint != "" {
		opts = append(opts, s3.WithEndpoint(c.S3.Endpoint))
	}
	store, err := s3.New(ctx, c.S3.Bucket, opts...)
	if err != nil {
		return nil, err
	}
	if c.S3.DDBTable == "" {
		return store, nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if c.S3.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(c.S3.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	baseURI := "s3://" + path.Join(c.S3.Bucket, c.S3.Prefix)
	return s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(awsCfg), c.S3.DDBTable, baseURI), nil
}
