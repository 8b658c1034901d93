package training

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/papercomputeco/hvision/pkg/bow"
	"github.com/papercomputeco/hvision/pkg/classifier"
	"github.com/papercomputeco/hvision/pkg/dataset"
	"github.com/papercomputeco/hvision/pkg/distance"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/features"
	"github.com/papercomputeco/hvision/pkg/mapreduce"
	"github.com/papercomputeco/hvision/pkg/vocabulary"
)

// Persister stores the models of a successful run. Models are ordered by
// label id.
type Persister interface {
	PersistModels(ctx context.Context, runID string, models []ClassifierModel) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, runID string, models []ClassifierModel) error

// PersistModels implements Persister.
func (f PersisterFunc) PersistModels(ctx context.Context, runID string, models []ClassifierModel) error {
	return f(ctx, runID, models)
}

// Config configures a Coordinator.
type Config struct {
	// Scheduler controls the map and reduce worker pools.
	Scheduler mapreduce.Config

	// Reducers is the number of class partitions.
	Reducers int

	// Trainer fits each class. Defaults to a balanced linear SVM.
	Trainer classifier.Trainer

	// NewExtractor builds one extractor per map worker. Defaults to the dense
	// extractor.
	NewExtractor func() features.Extractor

	// Metric assigns descriptors to visual words. Defaults to L2.
	Metric distance.Metric

	// Persister receives the models. Optional.
	Persister Persister

	Logger *slog.Logger
}

// Result is the outcome of a successful Run.
type Result struct {
	RunID    string
	Models   []ClassifierModel
	Counters map[string]int64
}

// Coordinator drives one training run:
// StateAwaitingVocab → StateTraining → StatePersisted.
type Coordinator struct {
	cfg Config

	mu    sync.Mutex
	state State
	vocab *vocabulary.Vocabulary
	runID string
}

// NewCoordinator creates a Coordinator awaiting its vocabulary.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Trainer == nil {
		cfg.Trainer = classifier.NewLinearSVMTrainer(classifier.SVMOptions{Balanced: true})
	}
	if cfg.NewExtractor == nil {
		cfg.NewExtractor = func() features.Extractor {
			return features.NewDense(features.DenseOptions{})
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Coordinator{
		cfg:   cfg,
		state: StateAwaitingVocab,
		runID: uuid.NewString(),
	}
}

// RunID identifies the run in logs, events and the model registry.
func (c *Coordinator) RunID() string {
	return c.runID
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetVocabulary installs the shared vocabulary and moves to StateTraining.
func (c *Coordinator) SetVocabulary(v *vocabulary.Vocabulary) error {
	if err := v.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingVocab {
		return fmt.Errorf("vocabulary cannot change in state %s", c.state)
	}
	c.vocab = v
	c.state = StateTraining
	return nil
}

// Run trains one model per class in [0, max label_count) over records and
// hands them to the Persister. A failed run may be retried; a persisted run
// returns ErrAlreadyPersisted.
func (c *Coordinator) Run(ctx context.Context, records []dataset.Record) (*Result, error) {
	c.mu.Lock()
	state, vocab := c.state, c.vocab
	c.mu.Unlock()

	switch state {
	case StateAwaitingVocab:
		return nil, bow.ErrNotReady
	case StatePersisted:
		return nil, ErrAlreadyPersisted
	}

	classes, err := labelCount(records)
	if err != nil {
		return nil, err
	}

	logger := c.cfg.Logger.With("run_id", c.runID)
	sched := c.cfg.Scheduler
	sched.Logger = logger

	logger.Info("training started", "records", len(records), "classes", classes, "vocabulary_size", vocab.K)

	job := mapreduce.Job[dataset.Record, int, Sample, ClassifierModel]{
		Name:       "train",
		NewMapper:  c.newMapper(vocab),
		NewReducer: c.newReducer,
		Compare:    cmp.Compare[int],
		Partition:  mapreduce.HashPartition,
		Reducers:   c.cfg.Reducers,
	}

	res, err := mapreduce.Run(ctx, sched, job, records)
	if err != nil {
		return nil, err
	}

	models := res.Output
	slices.SortFunc(models, func(a, b ClassifierModel) int { return cmp.Compare(a.LabelID, b.LabelID) })
	if err := checkCoverage(models, classes); err != nil {
		return nil, err
	}

	if c.cfg.Persister != nil {
		if err := c.cfg.Persister.PersistModels(ctx, c.runID, models); err != nil {
			return nil, fmt.Errorf("persisting models: %w", err)
		}
	}

	c.mu.Lock()
	c.state = StatePersisted
	c.mu.Unlock()

	logger.Info("training complete",
		"models", len(models),
		"skipped", res.Counters[mapreduce.CounterRecordsSkipped],
	)

	return &Result{RunID: c.runID, Models: models, Counters: res.Counters}, nil
}

// labelCount validates every key and returns the largest label count.
func labelCount(records []dataset.Record) (int, error) {
	n := 0
	for i, rec := range records {
		md, err := rec.Metadata()
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		_, count, err := md.Label()
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		n = max(n, count)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: no labelled records", errs.ErrInsufficientTrainingData)
	}
	return n, nil
}

func checkCoverage(models []ClassifierModel, classes int) error {
	have := make(map[int]bool, len(models))
	for _, m := range models {
		have[m.LabelID] = true
	}
	for i := range classes {
		if !have[i] {
			return fmt.Errorf("%w: class %d received no samples", errs.ErrInsufficientTrainingData, i)
		}
	}
	return nil
}

// mapper encodes each record once and fans it out to every class. The
// vocabulary is shared read-only; the extractor and encoder belong to the
// worker.
type mapper struct {
	enc *bow.Encoder
}

func (c *Coordinator) newMapper(vocab *vocabulary.Vocabulary) func(context.Context, int) (mapreduce.Mapper[dataset.Record, int, Sample], error) {
	return func(_ context.Context, _ int) (mapreduce.Mapper[dataset.Record, int, Sample], error) {
		enc, err := bow.NewEncoder(c.cfg.NewExtractor(), bow.WithVocabulary(vocab), bow.WithMetric(c.cfg.Metric))
		if err != nil {
			return nil, err
		}
		return &mapper{enc: enc}, nil
	}
}

func (m *mapper) Map(_ context.Context, rec dataset.Record, emit func(int, Sample)) error {
	img, md, err := rec.Image()
	if err != nil {
		return err
	}
	id, count, err := md.Label()
	if err != nil {
		return err
	}

	desc, err := m.enc.Encode(img)
	if err != nil {
		return err
	}
	for _, cs := range FanOut(desc, id, count) {
		emit(cs.Class, cs.Sample)
	}
	return nil
}

func (m *mapper) Close() error { return nil }

type reducer struct {
	trainer classifier.Trainer
	logger  *slog.Logger
}

func (c *Coordinator) newReducer(_ context.Context, _ int) (mapreduce.Reducer[int, Sample, ClassifierModel], error) {
	return &reducer{trainer: c.cfg.Trainer, logger: c.cfg.Logger.With("run_id", c.runID)}, nil
}

func (r *reducer) Reduce(ctx context.Context, class int, samples []Sample, emit func(ClassifierModel)) error {
	if len(samples) == 0 {
		return fmt.Errorf("%w: class %d received no samples", errs.ErrInsufficientTrainingData, class)
	}

	rows := slices.Clone(samples)
	canonicalize(rows)

	X := make([][]float32, len(rows))
	y := make([]int8, len(rows))
	for i, s := range rows {
		X[i] = s.Descriptor
		y[i] = s.Target
	}

	model, err := r.trainer.Fit(ctx, X, y)
	if err != nil {
		return fmt.Errorf("fitting class %d: %w", class, err)
	}
	blob, err := model.Marshal()
	if err != nil {
		return fmt.Errorf("serializing class %d: %w", class, err)
	}

	r.logger.Debug("class trained", "label_id", class, "samples", len(rows))
	emit(ClassifierModel{LabelID: class, Blob: blob})
	return nil
}

func (r *reducer) Close() error { return nil }
