package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/hvision/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the HVISION_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (HVISION_PIPELINE_WORKERS, HVISION_STORAGE_DRIVER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: HVISION_PIPELINE_WORKERS, HVISION_SEARCH_METHOD, etc.
	v.SetEnvPrefix("HVISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Pipeline
	v.SetDefault("pipeline.workers", d.Pipeline.Workers)
	v.SetDefault("pipeline.reducers", d.Pipeline.Reducers)
	v.SetDefault("pipeline.max_attempts", d.Pipeline.MaxAttempts)
	v.SetDefault("pipeline.stall_timeout", d.Pipeline.StallTimeout)
	v.SetDefault("pipeline.compression", d.Pipeline.Compression)

	// Vocabulary
	v.SetDefault("vocabulary.k", d.Vocabulary.K)
	v.SetDefault("vocabulary.max_iterations", d.Vocabulary.MaxIterations)

	// Search
	v.SetDefault("search.method", d.Search.Method)
	v.SetDefault("search.hist_bins", d.Search.HistBins)

	// Detection
	v.SetDefault("detection.min_size", d.Detection.MinSize)
	v.SetDefault("detection.max_size", d.Detection.MaxSize)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Artifacts
	v.SetDefault("artifacts.s3_region", d.Artifacts.S3Region)
	v.SetDefault("artifacts.s3_endpoint", d.Artifacts.S3Endpoint)
	v.SetDefault("artifacts.minio_endpoint", d.Artifacts.MinIOEndpoint)
	v.SetDefault("artifacts.minio_access_key", d.Artifacts.MinIOAccessKey)
	v.SetDefault("artifacts.minio_secret_key", d.Artifacts.MinIOSecretKey)
	v.SetDefault("artifacts.minio_secure", d.Artifacts.MinIOSecure)

	// Event stream
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)

	// Logging
	v.SetDefault("logging.file", d.Logging.File)
}

// FromViper materializes the effective configuration once flags are bound.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Pipeline: PipelineConfig{
			Workers:      v.GetUint("pipeline.workers"),
			Reducers:     v.GetUint("pipeline.reducers"),
			MaxAttempts:  v.GetUint("pipeline.max_attempts"),
			StallTimeout: v.GetString("pipeline.stall_timeout"),
			Compression:  v.GetString("pipeline.compression"),
		},
		Vocabulary: VocabularyConfig{
			K:             v.GetUint("vocabulary.k"),
			MaxIterations: v.GetUint("vocabulary.max_iterations"),
		},
		Search: SearchConfig{
			Method:   v.GetString("search.method"),
			HistBins: v.GetUint("search.hist_bins"),
		},
		Detection: DetectionConfig{
			MinSize: v.GetUint("detection.min_size"),
			MaxSize: v.GetUint("detection.max_size"),
		},
		Storage: StorageConfig{
			Driver:      v.GetString("storage.driver"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		Artifacts: ArtifactsConfig{
			S3Region:       v.GetString("artifacts.s3_region"),
			S3Endpoint:     v.GetString("artifacts.s3_endpoint"),
			MinIOEndpoint:  v.GetString("artifacts.minio_endpoint"),
			MinIOAccessKey: v.GetString("artifacts.minio_access_key"),
			MinIOSecretKey: v.GetString("artifacts.minio_secret_key"),
			MinIOSecure:    v.GetBool("artifacts.minio_secure"),
		},
		EventStream: EventStreamConfig{
			Brokers: v.GetString("eventstream.brokers"),
			Topic:   v.GetString("eventstream.topic"),
		},
		Logging: LoggingConfig{
			File: v.GetString("logging.file"),
		},
	}
}
