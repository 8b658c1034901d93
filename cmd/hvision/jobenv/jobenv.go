// Package jobenv resolves the configuration, logger and backing services
// shared by every hvision job command.
package jobenv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hvision/pkg/artifact"
	artifactutils "github.com/papercomputeco/hvision/pkg/artifact/utils"
	"github.com/papercomputeco/hvision/pkg/cliui"
	"github.com/papercomputeco/hvision/pkg/config"
	"github.com/papercomputeco/hvision/pkg/dataset"
	"github.com/papercomputeco/hvision/pkg/dotdir"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/eventstream"
	"github.com/papercomputeco/hvision/pkg/eventstream/kafka"
	"github.com/papercomputeco/hvision/pkg/eventstream/nop"
	"github.com/papercomputeco/hvision/pkg/logger"
	"github.com/papercomputeco/hvision/pkg/mapreduce"
	"github.com/papercomputeco/hvision/pkg/storage"
	"github.com/papercomputeco/hvision/pkg/storage/inmemory"
	"github.com/papercomputeco/hvision/pkg/storage/postgres"
	"github.com/papercomputeco/hvision/pkg/storage/sqlite"
	"github.com/papercomputeco/hvision/pkg/vocabulary"
)

// registryFile is the default SQLite model registry inside .hvision/.
const registryFile = "models.db"

// Env is the resolved environment of one command invocation.
type Env struct {
	Config    *config.Config
	Logger    *slog.Logger
	ConfigDir string
	Debug     bool

	jobLog *os.File
}

// Load reads the global flags, initializes viper and binds the given
// registry flags. Call it from PreRunE or RunE.
func Load(cmd *cobra.Command, flagKeys []string) (*Env, error) {
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, fmt.Errorf("could not get debug flag: %w", err)
	}
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	}
	config.BindRegisteredFlags(v, cmd, config.Registry, flagKeys)
	cfg := config.FromViper(v)

	console := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(cliui.IsTerminal(os.Stderr)),
		logger.WithWriter(os.Stderr),
	)

	env := &Env{
		Config:    cfg,
		Logger:    console,
		ConfigDir: configDir,
		Debug:     debug,
	}

	if path := cfg.Logging.File; path != "" {
		f, err := openJobLog(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
		}
		env.jobLog = f
		env.Logger = logger.Multi(console, logger.New(
			logger.WithDebug(debug),
			logger.WithJSON(true),
			logger.WithWriter(f),
			logger.WithJob(cmd.Name()),
		))
	}

	return env, nil
}

func openJobLog(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating job log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening job log: %w", err)
	}
	return f, nil
}

// Close releases the job log, if any.
func (e *Env) Close() error {
	if e.jobLog == nil {
		return nil
	}
	err := e.jobLog.Close()
	e.jobLog = nil
	return err
}

// RequireFlags fails with errs.ErrConfiguration if any named flag is empty.
func RequireFlags(cmd *cobra.Command, names ...string) error {
	var missing []string
	for _, name := range names {
		f := cmd.Flags().Lookup(name)
		if f == nil || f.Value.String() == "" {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required flag(s) %s", errs.ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// Scheduler returns the mapreduce settings of the pipeline section.
func (e *Env) Scheduler() (mapreduce.Config, error) {
	p := e.Config.Pipeline
	if p.Workers == 0 {
		return mapreduce.Config{}, fmt.Errorf("%w: pipeline.workers must be positive", errs.ErrConfiguration)
	}

	var stall time.Duration
	if p.StallTimeout != "" {
		d, err := time.ParseDuration(p.StallTimeout)
		if err != nil {
			return mapreduce.Config{}, fmt.Errorf("%w: pipeline.stall_timeout: %w", errs.ErrConfiguration, err)
		}
		stall = d
	}

	return mapreduce.Config{
		Workers:      int(p.Workers),
		MaxAttempts:  int(p.MaxAttempts),
		StallTimeout: stall,
		Logger:       e.Logger,
	}, nil
}

// Reducers returns the configured number of reduce partitions.
func (e *Env) Reducers() int {
	return max(int(e.Config.Pipeline.Reducers), 1)
}

// Compression returns the codec for output record files.
func (e *Env) Compression() (dataset.Compression, error) {
	c, err := dataset.ParseCompression(e.Config.Pipeline.Compression)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	}
	return c, nil
}

// ArtifactOpts returns the object store settings for artifact locations.
func (e *Env) ArtifactOpts() *artifactutils.Opts {
	a := e.Config.Artifacts
	return &artifactutils.Opts{
		S3Region:       a.S3Region,
		S3Endpoint:     a.S3Endpoint,
		MinIOEndpoint:  a.MinIOEndpoint,
		MinIOAccessKey: a.MinIOAccessKey,
		MinIOSecretKey: a.MinIOSecretKey,
		MinIOSecure:    a.MinIOSecure,
	}
}

// ReadArtifact fetches a shared resource (query image, detector model).
// Failures wrap errs.ErrResourceUnavailable; a malformed location is a
// configuration error.
func (e *Env) ReadArtifact(ctx context.Context, raw string) ([]byte, error) {
	if _, err := artifact.ParseLocation(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	}
	data, err := artifactutils.Get(ctx, raw, e.ArtifactOpts())
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", errs.ErrResourceUnavailable, raw, err)
	}
	return data, nil
}

// LoadVocabulary reads a persisted vocabulary from its artifact location.
func (e *Env) LoadVocabulary(ctx context.Context, raw string) (*vocabulary.Vocabulary, error) {
	loc, err := artifact.ParseLocation(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	}
	store, err := artifactutils.NewStore(ctx, loc, e.ArtifactOpts())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrResourceUnavailable, err)
	}
	return vocabulary.Load(ctx, store, loc.Key)
}

// PersistVocabulary writes v to its artifact location.
func (e *Env) PersistVocabulary(ctx context.Context, raw string, v *vocabulary.Vocabulary) error {
	loc, err := artifact.ParseLocation(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	}
	store, err := artifactutils.NewStore(ctx, loc, e.ArtifactOpts())
	if err != nil {
		return err
	}
	return vocabulary.Persist(ctx, store, loc.Key, v)
}

// VocabularyLocation returns raw, or the artifact of the latest vocab run.
func (e *Env) VocabularyLocation(raw string) (string, error) {
	if raw != "" {
		return raw, nil
	}
	state, ok, err := dotdir.NewManager().LastRun("vocab", e.ConfigDir)
	if err != nil {
		return "", err
	}
	if !ok || state.Artifact == "" {
		return "", fmt.Errorf("%w: no vocabulary given and no previous vocab run recorded", errs.ErrConfiguration)
	}
	e.Logger.Info("using vocabulary of previous run", "run_id", state.RunID, "vocabulary", state.Artifact)
	return state.Artifact, nil
}

// ReadInput loads every record of a dataset file or directory.
func (e *Env) ReadInput(path string) ([]dataset.Record, error) {
	records, err := dataset.ReadAll(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: input %s: %w", errs.ErrResourceUnavailable, path, err)
		}
		return nil, fmt.Errorf("reading input %s: %w", path, err)
	}
	e.Logger.Debug("read input", "path", path, "records", len(records))
	return records, nil
}

// WriteOutput writes records to <dir>/part-r-00000.
func (e *Env) WriteOutput(dir string, records []dataset.Record) (string, error) {
	c, err := e.Compression()
	if err != nil {
		return "", err
	}
	return dataset.WriteAll(dir, records, c)
}

// OpenRegistry opens the configured classifier model registry. It returns
// nil when storage.driver is "none".
func (e *Env) OpenRegistry(ctx context.Context) (storage.Driver, error) {
	s := e.Config.Storage
	switch s.Driver {
	case "none", "":
		return nil, nil

	case "memory":
		e.Logger.Debug("using in-memory model registry")
		return inmemory.NewDriver(), nil

	case "sqlite":
		path := s.SQLitePath
		if path == "" {
			p, err := dotdir.NewManager().Path(e.ConfigDir, registryFile)
			if err != nil {
				return nil, err
			}
			path = p
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: opening SQLite registry: %w", errs.ErrResourceUnavailable, err)
		}
		e.Logger.Debug("using SQLite model registry", "path", path)
		return driver, nil

	case "postgres":
		if s.PostgresDSN == "" {
			return nil, fmt.Errorf("%w: storage.postgres_dsn is required for the postgres driver", errs.ErrConfiguration)
		}
		driver, err := postgres.NewDriver(ctx, s.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("%w: opening PostgreSQL registry: %w", errs.ErrResourceUnavailable, err)
		}
		e.Logger.Debug("using PostgreSQL model registry")
		return driver, nil

	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", errs.ErrConfiguration, s.Driver)
	}
}

// OpenPublisher returns the Kafka publisher when brokers are configured and a
// no-op publisher otherwise.
func (e *Env) OpenPublisher() (eventstream.Publisher, error) {
	brokers := e.Config.EventStream.BrokerList()
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}
	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   e.Config.EventStream.Topic,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	}
	return p, nil
}

// Completed announces a finished job: it publishes the event and records the
// run in .hvision/runs.json. Neither failure fails the job.
func (e *Env) Completed(ctx context.Context, event *eventstream.JobEvent, state dotdir.RunState) {
	pub, err := e.OpenPublisher()
	if err != nil {
		e.Logger.Warn("event publisher unavailable", "error", err)
	} else {
		defer pub.Close()
		if err := pub.Publish(ctx, event); err != nil {
			e.Logger.Warn("could not publish job event", "event_type", event.EventType, "error", err)
		}
	}

	state.RunID = event.RunID
	if state.CompletedAt.IsZero() {
		state.CompletedAt = time.Now().UTC()
	}
	if err := dotdir.NewManager().RecordRun(event.Job.Name, state, e.ConfigDir); err != nil {
		e.Logger.Warn("could not record run", "error", err)
	}
}

// JobMeta builds the lifecycle metadata of an event.
func (e *Env) JobMeta(name, input string, started time.Time) eventstream.JobMeta {
	return eventstream.JobMeta{
		Name:       name,
		Input:      input,
		StartedAt:  started.UTC(),
		DurationMs: time.Since(started).Milliseconds(),
		Workers:    int(e.Config.Pipeline.Workers),
		Reducers:   e.Reducers(),
	}
}
