package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent hvision configuration stored as config.toml
// in the .hvision/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Vocabulary  VocabularyConfig  `toml:"vocabulary"`
	Search      SearchConfig      `toml:"search"`
	Detection   DetectionConfig   `toml:"detection"`
	Storage     StorageConfig     `toml:"storage"`
	Artifacts   ArtifactsConfig   `toml:"artifacts"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Logging     LoggingConfig     `toml:"logging"`
}

// PipelineConfig holds scheduler settings shared by every job.
type PipelineConfig struct {
	Workers      uint   `toml:"workers,omitempty"`
	Reducers     uint   `toml:"reducers,omitempty"`
	MaxAttempts  uint   `toml:"max_attempts,omitempty"`
	StallTimeout string `toml:"stall_timeout,omitempty"`
	Compression  string `toml:"compression,omitempty"`
}

// VocabularyConfig holds clustering settings for hvision vocab.
type VocabularyConfig struct {
	K             uint `toml:"k,omitempty"`
	MaxIterations uint `toml:"max_iterations,omitempty"`
}

// SearchConfig holds similarity search settings.
type SearchConfig struct {
	Method   string `toml:"method,omitempty"`
	HistBins uint   `toml:"hist_bins,omitempty"`
}

// DetectionConfig holds face detector settings.
type DetectionConfig struct {
	MinSize uint `toml:"min_size,omitempty"`
	MaxSize uint `toml:"max_size,omitempty"`
}

// StorageConfig selects the classifier model registry.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// ArtifactsConfig holds object store settings for s3:// and minio:// artifacts.
type ArtifactsConfig struct {
	S3Region       string `toml:"s3_region,omitempty"`
	S3Endpoint     string `toml:"s3_endpoint,omitempty"`
	MinIOEndpoint  string `toml:"minio_endpoint,omitempty"`
	MinIOAccessKey string `toml:"minio_access_key,omitempty"`
	MinIOSecretKey string `toml:"minio_secret_key,omitempty"`
	MinIOSecure    bool   `toml:"minio_secure,omitempty"`
}

// EventStreamConfig holds job event publishing settings. Publishing is
// disabled while Brokers is empty.
type EventStreamConfig struct {
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// LoggingConfig holds job log settings. When File is set every job also
// appends JSON records to it.
type LoggingConfig struct {
	File string `toml:"file,omitempty"`
}

// BrokerList splits the comma separated broker setting.
func (e EventStreamConfig) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Enumerated values accepted by Set.
var (
	StorageDrivers  = []string{"none", "memory", "sqlite", "postgres"}
	SearchMethods   = []string{"hist", "surf", "bow"}
	CompressionKind = []string{"none", "zstd", "lz4"}
)

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func enumKey(name string, allowed []string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			v = strings.ToLower(strings.TrimSpace(v))
			if !slices.Contains(allowed, v) {
				return fmt.Errorf("invalid value for %s: %q (available: %s)", name, v, strings.Join(allowed, ", "))
			}
			*field(c) = v
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// orderedKeys lists every config key in TOML section order.
var orderedKeys = []string{
	"pipeline.workers",
	"pipeline.reducers",
	"pipeline.max_attempts",
	"pipeline.stall_timeout",
	"pipeline.compression",
	"vocabulary.k",
	"vocabulary.max_iterations",
	"search.method",
	"search.hist_bins",
	"detection.min_size",
	"detection.max_size",
	"storage.driver",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"artifacts.s3_region",
	"artifacts.s3_endpoint",
	"artifacts.minio_endpoint",
	"artifacts.minio_access_key",
	"artifacts.minio_secret_key",
	"artifacts.minio_secure",
	"eventstream.brokers",
	"eventstream.topic",
	"logging.file",
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"pipeline.workers":       uintKey("pipeline.workers", func(c *Config) *uint { return &c.Pipeline.Workers }),
	"pipeline.reducers":      uintKey("pipeline.reducers", func(c *Config) *uint { return &c.Pipeline.Reducers }),
	"pipeline.max_attempts":  uintKey("pipeline.max_attempts", func(c *Config) *uint { return &c.Pipeline.MaxAttempts }),
	"pipeline.stall_timeout": durationKey("pipeline.stall_timeout", func(c *Config) *string { return &c.Pipeline.StallTimeout }),
	"pipeline.compression":   enumKey("pipeline.compression", CompressionKind, func(c *Config) *string { return &c.Pipeline.Compression }),

	"vocabulary.k":              uintKey("vocabulary.k", func(c *Config) *uint { return &c.Vocabulary.K }),
	"vocabulary.max_iterations": uintKey("vocabulary.max_iterations", func(c *Config) *uint { return &c.Vocabulary.MaxIterations }),

	"search.method":    enumKey("search.method", SearchMethods, func(c *Config) *string { return &c.Search.Method }),
	"search.hist_bins": uintKey("search.hist_bins", func(c *Config) *uint { return &c.Search.HistBins }),

	"detection.min_size": uintKey("detection.min_size", func(c *Config) *uint { return &c.Detection.MinSize }),
	"detection.max_size": uintKey("detection.max_size", func(c *Config) *uint { return &c.Detection.MaxSize }),

	"storage.driver":       enumKey("storage.driver", StorageDrivers, func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"artifacts.s3_region":        stringKey(func(c *Config) *string { return &c.Artifacts.S3Region }),
	"artifacts.s3_endpoint":      stringKey(func(c *Config) *string { return &c.Artifacts.S3Endpoint }),
	"artifacts.minio_endpoint":   stringKey(func(c *Config) *string { return &c.Artifacts.MinIOEndpoint }),
	"artifacts.minio_access_key": stringKey(func(c *Config) *string { return &c.Artifacts.MinIOAccessKey }),
	"artifacts.minio_secret_key": stringKey(func(c *Config) *string { return &c.Artifacts.MinIOSecretKey }),
	"artifacts.minio_secure":     boolKey("artifacts.minio_secure", func(c *Config) *bool { return &c.Artifacts.MinIOSecure }),

	"eventstream.brokers": stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":   stringKey(func(c *Config) *string { return &c.EventStream.Topic }),

	"logging.file": stringKey(func(c *Config) *string { return &c.Logging.File }),
}
