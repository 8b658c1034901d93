package jobenv

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/hvision/pkg/config"
)

var (
	// SchedulerFlags tune the mapreduce runtime of every job.
	SchedulerFlags = []string{
		config.FlagWorkers,
		config.FlagMaxAttempts,
		config.FlagStallTimeout,
		config.FlagCompression,
		config.FlagLogFile,
	}

	// EventFlags select the Kafka job event sink.
	EventFlags = []string{
		config.FlagBrokers,
		config.FlagTopic,
	}

	// RegistryFlags select the classifier model registry.
	RegistryFlags = []string{
		config.FlagStorageDriver,
		config.FlagSQLite,
		config.FlagPostgresDSN,
	}
)

var uintFlags = map[string]bool{
	config.FlagWorkers:       true,
	config.FlagReducers:      true,
	config.FlagMaxAttempts:   true,
	config.FlagK:             true,
	config.FlagMaxIterations: true,
	config.FlagHistBins:      true,
	config.FlagMinSize:       true,
	config.FlagMaxSize:       true,
}

// AddFlags registers the given registry flags on cmd and returns the keys so
// the caller can hand them to Load. Flag values are read back through viper.
func AddFlags(cmd *cobra.Command, groups ...[]string) []string {
	var keys []string
	for _, group := range groups {
		for _, key := range group {
			if uintFlags[key] {
				config.AddUintFlag(cmd, config.Registry, key, new(uint))
			} else {
				config.AddStringFlag(cmd, config.Registry, key, new(string))
			}
			keys = append(keys, key)
		}
	}
	return keys
}
