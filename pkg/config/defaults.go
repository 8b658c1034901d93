package config

const (
	defaultWorkers      = 4
	defaultReducers     = 1
	defaultMaxAttempts  = 4
	defaultStallTimeout = "10m"
	defaultCompression  = "zstd"

	defaultVocabularyK    = 100
	defaultKMeansMaxIters = 10

	defaultSearchMethod = "hist"
	defaultHistBins     = 8

	defaultDetectMinSize = 20
	defaultDetectMaxSize = 1000

	defaultStorageDriver = "sqlite"

	defaultS3Region   = "us-east-1"
	defaultEventTopic = "hvision.jobs"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Pipeline: PipelineConfig{
			Workers:      defaultWorkers,
			Reducers:     defaultReducers,
			MaxAttempts:  defaultMaxAttempts,
			StallTimeout: defaultStallTimeout,
			Compression:  defaultCompression,
		},
		Vocabulary: VocabularyConfig{
			K:             defaultVocabularyK,
			MaxIterations: defaultKMeansMaxIters,
		},
		Search: SearchConfig{
			Method:   defaultSearchMethod,
			HistBins: defaultHistBins,
		},
		Detection: DetectionConfig{
			MinSize: defaultDetectMinSize,
			MaxSize: defaultDetectMaxSize,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Artifacts: ArtifactsConfig{
			S3Region: defaultS3Region,
		},
		EventStream: EventStreamConfig{
			Topic: defaultEventTopic,
		},
	}
}
