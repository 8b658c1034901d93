package vocabulary

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/papercomputeco/hvision/pkg/dataset"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/features"
	"github.com/papercomputeco/hvision/pkg/kmeans"
	"github.com/papercomputeco/hvision/pkg/mapreduce"
)

// JobConfig configures a vocabulary build over a dataset.
type JobConfig struct {
	// K is the number of visual words.
	K int

	Clustering kmeans.Options

	// NewExtractor builds one extractor per map worker.
	NewExtractor func() features.Extractor

	Scheduler mapreduce.Config
	Logger    *slog.Logger
}

// JobOutcome is the result of a vocabulary build.
type JobOutcome struct {
	RunID       string
	Vocabulary  *Vocabulary
	Descriptors int
	Counters    map[string]int64
}

// BuildFromRecords extracts local descriptors from every record in parallel,
// accumulates them in input order and clusters them into K visual words.
// Undecodable records are skipped and counted.
func BuildFromRecords(ctx context.Context, cfg JobConfig, records []dataset.Record) (*JobOutcome, error) {
	if cfg.K <= 0 {
		return nil, fmt.Errorf("%w: cluster count must be positive, got %d", errs.ErrConfiguration, cfg.K)
	}
	if cfg.NewExtractor == nil {
		return nil, fmt.Errorf("%w: vocabulary build needs a feature extractor", errs.ErrConfiguration)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	runID := uuid.NewString()
	log := cfg.Logger.With("run_id", runID)
	sched := cfg.Scheduler
	sched.Logger = log

	job := mapreduce.MapOnlyJob[dataset.Record, struct{}, []features.Descriptor]{
		Name: "vocab",
		NewMapper: func(context.Context, int) (mapreduce.Mapper[dataset.Record, struct{}, []features.Descriptor], error) {
			return &extractMapper{ex: cfg.NewExtractor()}, nil
		},
	}

	res, err := mapreduce.RunMapOnly(ctx, sched, job, records)
	if err != nil {
		return nil, err
	}

	b := NewBuilder(cfg.Clustering)
	for _, p := range res.Output {
		if err := b.Accumulate(p.Value); err != nil {
			return nil, err
		}
	}
	n := b.Accumulator().Len()
	log.Info("clustering descriptors", "descriptors", n, "k", cfg.K)

	v, err := b.Cluster(ctx, cfg.K)
	if err != nil {
		return nil, err
	}

	return &JobOutcome{
		RunID:       runID,
		Vocabulary:  v,
		Descriptors: n,
		Counters:    res.Counters,
	}, nil
}

type extractMapper struct {
	ex features.Extractor
}

func (m *extractMapper) Map(_ context.Context, rec dataset.Record, emit func(struct{}, []features.Descriptor)) error {
	img, _, err := rec.Image()
	if err != nil {
		return err
	}

	fs, err := m.ex.Extract(img)
	if err != nil {
		return fmt.Errorf("%w: extracting features: %w", errs.ErrRecordDecode, err)
	}
	if len(fs) > 0 {
		emit(struct{}{}, features.Descriptors(fs))
	}
	return nil
}

func (m *extractMapper) Close() error { return nil }
