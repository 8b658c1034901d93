package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --workers
// on "hvision train", "hvision search" and "hvision detect").
type Flag struct {
	// Name is the long flag name (e.g. "workers").
	Name string

	// Shorthand is the one-letter short flag (e.g. "w"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "pipeline.workers").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagWorkers       = "workers"
	FlagReducers      = "reducers"
	FlagMaxAttempts   = "max-attempts"
	FlagStallTimeout  = "stall-timeout"
	FlagCompression   = "compression"
	FlagK             = "k"
	FlagMaxIterations = "max-iterations"
	FlagMethod        = "method"
	FlagHistBins      = "hist-bins"
	FlagMinSize       = "min-size"
	FlagMaxSize       = "max-size"
	FlagStorageDriver = "storage-driver"
	FlagSQLite        = "sqlite"
	FlagPostgresDSN   = "postgres-dsn"
	FlagBrokers       = "brokers"
	FlagTopic         = "topic"
	FlagLogFile       = "log-file"
)

// Registry holds the flags shared by hvision job commands.
var Registry = FlagSet{
	FlagWorkers:       {Name: "workers", ViperKey: "pipeline.workers", Description: "Number of map and reduce workers"},
	FlagReducers:      {Name: "reducers", ViperKey: "pipeline.reducers", Description: "Number of reduce partitions"},
	FlagMaxAttempts:   {Name: "max-attempts", ViperKey: "pipeline.max_attempts", Description: "Attempts per task before the job aborts"},
	FlagStallTimeout:  {Name: "stall-timeout", ViperKey: "pipeline.stall_timeout", Description: "Fail a task attempt that makes no progress for this long"},
	FlagCompression:   {Name: "compression", ViperKey: "pipeline.compression", Description: "Output record compression (none, zstd, lz4)"},
	FlagK:             {Name: "clusters", Shorthand: "k", ViperKey: "vocabulary.k", Description: "Number of visual words"},
	FlagMaxIterations: {Name: "max-iterations", ViperKey: "vocabulary.max_iterations", Description: "Maximum k-means iterations"},
	FlagMethod:        {Name: "method", Shorthand: "m", ViperKey: "search.method", Description: "Similarity method (hist, surf, bow)"},
	FlagHistBins:      {Name: "hist-bins", ViperKey: "search.hist_bins", Description: "Histogram bins per color channel"},
	FlagMinSize:       {Name: "min-size", ViperKey: "detection.min_size", Description: "Smallest face side in pixels"},
	FlagMaxSize:       {Name: "max-size", ViperKey: "detection.max_size", Description: "Largest face side in pixels"},
	FlagStorageDriver: {Name: "storage-driver", ViperKey: "storage.driver", Description: "Model registry driver (none, memory, sqlite, postgres)"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite model registry"},
	FlagPostgresDSN:   {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string for the model registry"},
	FlagBrokers:       {Name: "brokers", ViperKey: "eventstream.brokers", Description: "Comma separated Kafka brokers for job events"},
	FlagTopic:         {Name: "topic", ViperKey: "eventstream.topic", Description: "Kafka topic for job events"},
	FlagLogFile:       {Name: "log-file", ViperKey: "logging.file", Description: "Append JSON job logs to this file"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
