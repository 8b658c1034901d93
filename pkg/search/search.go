// Package search ranks a dataset by similarity to a single query image.
//
// The query is decoded and described once, before any map work, and shared
// read-only by every map worker. Map tasks emit (distance, key) composite
// keys into a single partition whose sort is the ranking; the reducer only
// forwards.
package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/papercomputeco/hvision/pkg/dataset"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/imaging"
	"github.com/papercomputeco/hvision/pkg/mapreduce"
	"github.com/papercomputeco/hvision/pkg/similarity"
)

// Result is one ranked record.
type Result struct {
	Distance float64
	Key      string
}

// Compare orders results by ascending distance, then by key.
func Compare(a, b Result) int {
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	return cmp.Compare(a.Key, b.Key)
}

// Record renders the result as an output record: the distance as text keyed
// to the original record key.
func (r Result) Record() dataset.Record {
	return dataset.Record{
		Key:   strconv.FormatFloat(r.Distance, 'g', -1, 64),
		Value: []byte(r.Key),
	}
}

// Config configures a Coordinator.
type Config struct {
	Method    similarity.Method
	Scheduler mapreduce.Config
	Logger    *slog.Logger
}

// Outcome is the result of a search run.
type Outcome struct {
	RunID    string
	Results  []Result
	Counters map[string]int64
}

// Coordinator ranks datasets against one prepared query.
type Coordinator struct {
	cfg   Config
	query similarity.Signature
	runID string
}

// NewCoordinator decodes and describes the query payload. Any failure wraps
// errs.ErrResourceUnavailable.
func NewCoordinator(cfg Config, query []byte) (*Coordinator, error) {
	if cfg.Method == nil {
		return nil, fmt.Errorf("%w: search needs a similarity method", errs.ErrConfiguration)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	img, err := imaging.Decode(query, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query image: %w", errs.ErrResourceUnavailable, err)
	}
	cmpr, err := cfg.Method.NewComparer()
	if err != nil {
		return nil, err
	}
	sig, err := cmpr.Describe(img)
	if err != nil {
		return nil, fmt.Errorf("%w: describing query image: %w", errs.ErrResourceUnavailable, err)
	}

	return &Coordinator{cfg: cfg, query: sig, runID: uuid.NewString()}, nil
}

// RunID identifies the run in logs and events.
func (c *Coordinator) RunID() string {
	return c.runID
}

// Run ranks records by distance to the query. Undecodable records are
// skipped and counted; a malformed key fails the run before any map work.
func (c *Coordinator) Run(ctx context.Context, records []dataset.Record) (*Outcome, error) {
	if err := validateKeys(records); err != nil {
		return nil, err
	}

	logger := c.cfg.Logger.With("run_id", c.runID, "method", c.cfg.Method.Kind())
	sched := c.cfg.Scheduler
	sched.Logger = logger

	logger.Info("search started", "records", len(records))

	job := mapreduce.Job[dataset.Record, Result, struct{}, Result]{
		Name:       "search",
		NewMapper:  c.newMapper,
		NewReducer: newForwarder,
		Compare:    Compare,
		Reducers:   1,
	}

	res, err := mapreduce.Run(ctx, sched, job, records)
	if err != nil {
		return nil, err
	}
	return &Outcome{RunID: c.runID, Results: res.Output, Counters: res.Counters}, nil
}

// validateKeys parses every record key, including any raw layout it names.
func validateKeys(records []dataset.Record) error {
	for i, rec := range records {
		md, err := rec.Metadata()
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := md.RawLayout(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

type mapper struct {
	cmp   similarity.Comparer
	query similarity.Signature
}

func (c *Coordinator) newMapper(_ context.Context, _ int) (mapreduce.Mapper[dataset.Record, Result, struct{}], error) {
	cmpr, err := c.cfg.Method.NewComparer()
	if err != nil {
		return nil, err
	}
	return &mapper{cmp: cmpr, query: c.query}, nil
}

func (m *mapper) Map(_ context.Context, rec dataset.Record, emit func(Result, struct{})) error {
	img, _, err := rec.Image()
	if err != nil {
		return err
	}
	sig, err := m.cmp.Describe(img)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrRecordDecode, err)
	}
	emit(Result{Distance: m.cmp.Distance(m.query, sig), Key: rec.Key}, struct{}{})
	return nil
}

func (m *mapper) Close() error { return nil }

// newForwarder builds the reducer: the shuffle already ranked the results.
func newForwarder(_ context.Context, _ int) (mapreduce.Reducer[Result, struct{}, Result], error) {
	return mapreduce.ReducerFunc[Result, struct{}, Result](func(_ context.Context, r Result, values []struct{}, emit func(Result)) error {
		for range values {
			emit(r)
		}
		return nil
	}), nil
}
