// Package config loads ndgo settings from a TOML file.
//
// Every field has a default, so an empty file (or no file) yields a working
// configuration: a 16 MiB off-heap workspace that spills on overflow, no
// memory limit, the pure Go BLAS backend and a local checkpoint directory.
//
//	[workspace]
//	initial_size = "64MiB"
//	overflow = "grow"
//
//	[checkpoint]
//	store = "s3"
//	cache_blocks = 1024
//	[checkpoint.s3]
//	bucket = "training"
//	prefix = "run-42"
//	ddb_table = "ndgo-commits"
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/hupe1980/ndgo/blas"
	"github.com/hupe1980/ndgo/buffer"
	"github.com/hupe1980/ndgo/codec"
	"github.com/hupe1980/ndgo/workspace"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// ByteSize is a size in bytes written as a human readable string
// ("64MiB", "1.5GB", "4096").
type ByteSize int64

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(string(text))
	if err != nil {
		return err
	}
	if n > 1<<62 {
		return fmt.Errorf("size %q too large", text)
	}
	*b = ByteSize(n)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b ByteSize) String() string {
	if b < 0 {
		return fmt.Sprintf("%d B", int64(b))
	}
	return humanize.IBytes(uint64(b))
}

// StoreType selects the checkpoint blob store.
type StoreType string

const (
	StoreLocal  StoreType = "local"
	StoreMemory StoreType = "memory"
	StoreS3     StoreType = "s3"
	StoreMinio  StoreType = "minio"
)

// WorkspaceConfiguration is the default workspace configuration.
type WorkspaceConfiguration struct {
	InitialSize               ByteSize `toml:"initial_size"`
	Alignment                 int      `toml:"alignment"`
	Overflow                  string   `toml:"overflow"`
	Learning                  string   `toml:"learning"`
	Backing                   string   `toml:"backing"`
	DebugMode                 string   `toml:"debug_mode"`
	UnsafeSkipGenerationCheck bool     `toml:"unsafe_skip_generation_check"`
}

// ResourceConfiguration bounds memory, background work and checkpoint IO.
type ResourceConfiguration struct {
	MemoryLimit          ByteSize `toml:"memory_limit"`
	MaxBackgroundWorkers int64    `toml:"max_background_workers"`
	IOLimitPerSec        ByteSize `toml:"io_limit_per_sec"`
}

// DeallocConfiguration controls the reachability-driven deallocator.
type DeallocConfiguration struct {
	SweepInterval time.Duration `toml:"sweep_interval"`
}

// BLASConfiguration selects the BLAS backend.
type BLASConfiguration struct {
	Name    string `toml:"backend"`
	Threads int    `toml:"threads"`
}

// S3Configuration for the s3 checkpoint store.
type S3Configuration struct {
	Bucket   string `toml:"bucket"`
	Prefix   string `toml:"prefix"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
	// DDBTable enables DynamoDB conditional writes for the CURRENT pointer.
	DDBTable string `toml:"ddb_table"`
}

// MinioConfiguration for the minio checkpoint store.
type MinioConfiguration struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	UseSSL    bool   `toml:"use_ssl"`
}

// CheckpointConfiguration controls where and how checkpoints are written.
type CheckpointConfiguration struct {
	Store     StoreType          `toml:"store"`
	Dir       string             `toml:"dir"`
	Codec     string             `toml:"codec"`
	Method    string             `toml:"method"`
	Commit    bool               `toml:"commit"`
	Exclusive bool               `toml:"exclusive"`
	S3        S3Configuration    `toml:"s3"`
	Minio     MinioConfiguration `toml:"minio"`
	// CacheBlocks enables a read cache of that many blocks in front of the
	// store. Zero disables it.
	CacheBlocks    int      `toml:"cache_blocks"`
	CacheBlockSize ByteSize `toml:"cache_block_size"`
}

// MetricsConfiguration controls the Prometheus endpoint.
type MetricsConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// LoggingConfiguration controls log output.
type LoggingConfiguration struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// BenchConfiguration drives cmd/ndbench.
type BenchConfiguration struct {
	Workers         int      `toml:"workers"`
	Iterations      int      `toml:"iterations"`
	AllocsPerIter   int      `toml:"allocs_per_iteration"`
	AllocSize       ByteSize `toml:"alloc_size"`
	CheckpointEvery int      `toml:"checkpoint_every"`
}

// Configuration is the root of the TOML file.
type Configuration struct {
	Workspace  WorkspaceConfiguration  `toml:"workspace"`
	Resource   ResourceConfiguration   `toml:"resource"`
	Dealloc    DeallocConfiguration    `toml:"dealloc"`
	BLAS       BLASConfiguration       `toml:"blas"`
	Checkpoint CheckpointConfiguration `toml:"checkpoint"`
	Metrics    MetricsConfiguration    `toml:"metrics"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Bench      BenchConfiguration      `toml:"bench"`
}

// Default returns the built-in configuration.
func Default() *Configuration {
	return &Configuration{
		Workspace: WorkspaceConfiguration{
			InitialSize: workspace.DefaultInitialSize,
			Alignment:   workspace.DefaultAlignment,
			Overflow:    workspace.Spill.String(),
			Learning:    workspace.LearningNone.String(),
			Backing:     buffer.OffHeap.String(),
			DebugMode:   workspace.DebugDisabled.String(),
		},
		Dealloc: DeallocConfiguration{
			SweepInterval: time.Second,
		},
		BLAS: BLASConfiguration{
			Name: blas.DefaultBackend,
		},
		Checkpoint: CheckpointConfiguration{
			Store:  StoreLocal,
			Dir:    "checkpoints",
			Codec:  codec.Default.Name(),
			Method: "deflate",
			Commit: true,
		},
		Metrics: MetricsConfiguration{
			Address: "127.0.0.1:9090",
		},
		Logging: LoggingConfiguration{
			Level:  "info",
			Format: "text",
		},
		Bench: BenchConfiguration{
			Workers:       4,
			Iterations:    100,
			AllocsPerIter: 32,
			AllocSize:     64 << 10,
		},
	}
}

// Load reads path on top of the defaults, applies environment overrides and
// validates the result. An empty path returns the defaults. Unknown keys
// are rejected so typos do not silently fall back to defaults.
func Load(path string) (*Configuration, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML text on top of the defaults. It does not read the
// environment.
func Parse(text string) (*Configuration, error) {
	cfg := Default()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %s", ErrInvalid, undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets NDGO_BLAS override the configured backend.
func (c *Configuration) applyEnv() {
	if v := os.Getenv(blas.BackendEnv); v != "" {
		c.BLAS.Name = v
	}
}

// Validate checks every section.
func (c *Configuration) Validate() error {
	if _, err := c.Workspace.Config(); err != nil {
		return fmt.Errorf("%w: workspace: %v", ErrInvalid, err)
	}
	if c.Resource.MemoryLimit < 0 || c.Resource.IOLimitPerSec < 0 || c.Resource.MaxBackgroundWorkers < 0 {
		return fmt.Errorf("%w: resource limits must not be negative", ErrInvalid)
	}
	if c.Dealloc.SweepInterval < 0 {
		return fmt.Errorf("%w: negative sweep interval", ErrInvalid)
	}
	if c.BLAS.Threads < 0 {
		return fmt.Errorf("%w: negative blas thread count", ErrInvalid)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.Logging.Format)
	}
	if err := c.Checkpoint.validate(); err != nil {
		return fmt.Errorf("%w: checkpoint: %v", ErrInvalid, err)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("%w: metrics enabled without address", ErrInvalid)
	}
	b := c.Bench
	if b.Workers < 1 || b.Iterations < 0 || b.AllocsPerIter < 0 || b.AllocSize < 0 || b.CheckpointEvery < 0 {
		return fmt.Errorf("%w: bench: workers must be >= 1 and counts must not be negative", ErrInvalid)
	}
	return nil
}

// Config converts the section to a workspace.Config.
func (w WorkspaceConfiguration) Config() (workspace.Config, error) {
	overflow, err := workspace.ParseOverflowPolicy(w.Overflow)
	if err != nil {
		return workspace.Config{}, err
	}
	learning, err := workspace.ParseLearningPolicy(w.Learning)
	if err != nil {
		return workspace.Config{}, err
	}
	backing, err := buffer.ParseBacking(w.Backing)
	if err != nil {
		return workspace.Config{}, err
	}
	debug, err := workspace.ParseDebugMode(w.DebugMode)
	if err != nil {
		return workspace.Config{}, err
	}
	if int64(w.InitialSize) > int64(^uint(0)>>1) {
		return workspace.Config{}, fmt.Errorf("initial size %s overflows int", w.InitialSize)
	}
	cfg := workspace.Config{
		InitialSize:               int(w.InitialSize),
		Alignment:                 w.Alignment,
		Overflow:                  overflow,
		Learning:                  learning,
		Backing:                   backing,
		UnsafeSkipGenerationCheck: w.UnsafeSkipGenerationCheck,
		DebugMode:                 debug,
	}
	return cfg, cfg.Validate()
}

// SlogLevel parses Level.
func (l LoggingConfiguration) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", l.Level, err)
	}
	return level, nil
}

func (c CheckpointConfiguration) validate() error {
	if _, ok := codec.ByName(c.Codec); !ok {
		return fmt.Errorf("unknown codec %q", c.Codec)
	}
	if _, err := c.ZipMethod(); err != nil {
		return err
	}
	if c.CacheBlocks < 0 {
		return errors.New("cache_blocks must not be negative")
	}
	switch c.Store {
	case StoreLocal:
		if c.Dir == "" {
			return errors.New("local store needs dir")
		}
	case StoreMemory:
	case StoreS3:
		if c.S3.Bucket == "" {
			return errors.New("s3 store needs bucket")
		}
	case StoreMinio:
		if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
			return errors.New("minio store needs endpoint and bucket")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	return nil
}
