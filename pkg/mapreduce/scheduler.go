package mapreduce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/papercomputeco/hvision/pkg/errs"
)

type split[I any] struct {
	id     int
	offset int
	inputs []I
}

func makeSplits[I any](inputs []I, size, workers int) []split[I] {
	if size <= 0 {
		size = max(1, (len(inputs)+workers*DefaultSplitsPerWorker-1)/(workers*DefaultSplitsPerWorker))
	}

	var out []split[I]
	for off := 0; off < len(inputs); off += size {
		end := min(off+size, len(inputs))
		out = append(out, split[I]{id: len(out), offset: off, inputs: inputs[off:end]})
	}
	return out
}

// mapPhase runs every split through a mapper pool and returns, per split, the
// committed per-partition buffers.
func mapPhase[I, K, V any](
	ctx context.Context,
	cfg Config,
	name string,
	inputs []I,
	partitions int,
	partition func(K, int) int,
	newMapper func(context.Context, int) (Mapper[I, K, V], error),
	counters *Counters,
) ([][][]Pair[K, V], error) {
	splits := makeSplits(inputs, cfg.SplitSize, cfg.Workers)
	committed := make([][][]Pair[K, V], len(splits))
	if len(splits) == 0 {
		return committed, nil
	}

	tasks := make(chan split[I], len(splits))
	for _, s := range splits {
		tasks <- s
	}
	close(tasks)

	logger := cfg.Logger.With("phase", "map")
	progress := rate.Sometimes{Interval: cfg.ProgressInterval}
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for id := range min(cfg.Workers, len(splits)) {
		g.Go(func() error {
			mapper, err := newMapper(gctx, id)
			if err != nil {
				return fmt.Errorf("initializing map worker %d: %w", id, err)
			}
			defer func() {
				if mapper != nil {
					if err := mapper.Close(); err != nil {
						logger.Warn("closing mapper", "worker_id", id, "error", err)
					}
				}
			}()

			for s := range tasks {
				for attempt := 1; ; attempt++ {
					var (
						buf   [][]Pair[K, V]
						stats local
						m     = mapper
					)
					abandoned, err := watch(gctx, cfg.StallTimeout, func(actx context.Context, tick func()) error {
						var err error
						buf, stats, err = runSplit(actx, logger, m, s, partitions, partition, tick)
						return err
					})
					if err == nil {
						committed[s.id] = buf
						stats.commitTo(counters)
						break
					}

					if errors.Is(err, ErrStalled) {
						// The stalled mapper may still be running; replace it.
						go closeWhenDone(logger, m, abandoned)
						mapper = nil
						if mapper, err = replaceMapper(gctx, newMapper, id, err); err != nil {
							return err
						}
						err = ErrStalled
					}

					counters.Add(CounterMapAttemptsFailed, 1)
					if gctx.Err() != nil {
						return context.Cause(gctx)
					}
					if permanent(err) {
						return fmt.Errorf("%s: map task %d: %w", name, s.id, err)
					}
					if attempt >= cfg.MaxAttempts {
						return fmt.Errorf("%s: map task %d failed after %d attempts: %w", name, s.id, attempt, err)
					}
					logger.Warn("retrying map task", "task", s.id, "attempt", attempt, "error", err)
				}

				n := done.Add(1)
				progress.Do(func() {
					logger.Info("map progress", "tasks_done", n, "tasks_total", len(splits))
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return committed, nil
}

func replaceMapper[I, K, V any](ctx context.Context, newMapper func(context.Context, int) (Mapper[I, K, V], error), id int, cause error) (Mapper[I, K, V], error) {
	m, err := newMapper(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("re-initializing map worker %d after %w: %w", id, cause, err)
	}
	return m, nil
}

type closer interface{ Close() error }

func closeWhenDone(logger *slog.Logger, c closer, done <-chan error) {
	<-done
	if err := c.Close(); err != nil {
		logger.Warn("closing abandoned task resources", "error", err)
	}
}

func runSplit[I, K, V any](
	ctx context.Context,
	logger *slog.Logger,
	mapper Mapper[I, K, V],
	s split[I],
	partitions int,
	partition func(K, int) int,
	tick func(),
) ([][]Pair[K, V], local, error) {
	buf := make([][]Pair[K, V], partitions)
	stats := local{}

	emit := func(k K, v V) {
		p := 0
		if partition != nil && partitions > 1 {
			p = partition(k, partitions) % partitions
			if p < 0 {
				p += partitions
			}
		}
		buf[p] = append(buf[p], Pair[K, V]{Key: k, Value: v})
		stats[CounterMapOutputRecords]++
	}

	for i, in := range s.inputs {
		if err := ctx.Err(); err != nil {
			return nil, nil, context.Cause(ctx)
		}

		stats[CounterRecordsIn]++
		if err := mapper.Map(ctx, in, emit); err != nil {
			if errs.IsRecoverable(err) {
				stats[CounterRecordsSkipped]++
				logger.Debug("skipping record", "record", s.offset+i, "error", err)
				tick()
				continue
			}
			return nil, nil, fmt.Errorf("record %d: %w", s.offset+i, err)
		}
		tick()
	}
	return buf, stats, nil
}

type group[K, V any] struct {
	key    K
	values []V
}

// shuffle gathers one partition from every split in split order, stably sorts
// it and groups equal keys.
func shuffle[K, V any](committed [][][]Pair[K, V], p int, compare func(a, b K) int) []group[K, V] {
	var pairs []Pair[K, V]
	for _, parts := range committed {
		pairs = append(pairs, parts[p]...)
	}
	slices.SortStableFunc(pairs, func(a, b Pair[K, V]) int {
		return compare(a.Key, b.Key)
	})

	var groups []group[K, V]
	for _, pr := range pairs {
		if n := len(groups); n > 0 && compare(groups[n-1].key, pr.Key) == 0 {
			groups[n-1].values = append(groups[n-1].values, pr.Value)
			continue
		}
		groups = append(groups, group[K, V]{key: pr.Key, values: []V{pr.Value}})
	}
	return groups
}

// Run executes job over inputs.
func Run[I, K, V, O any](ctx context.Context, cfg Config, job Job[I, K, V, O], inputs []I) (*Result[O], error) {
	if job.NewMapper == nil || job.NewReducer == nil || job.Compare == nil {
		return nil, fmt.Errorf("%w: job %q needs a mapper, a reducer and a key comparator", errs.ErrConfiguration, job.Name)
	}

	cfg = cfg.withDefaults()
	cfg.Logger = cfg.Logger.With("job", job.Name)
	partitions := max(job.Reducers, 1)
	counters := NewCounters()
	start := time.Now()

	committed, err := mapPhase(ctx, cfg, job.Name, inputs, partitions, job.Partition, job.NewMapper, counters)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Debug("map phase complete", "splits", len(committed), "counters", counters.Snapshot())

	outputs := make([][]O, partitions)
	tasks := make(chan int, partitions)
	for p := range partitions {
		tasks <- p
	}
	close(tasks)

	logger := cfg.Logger.With("phase", "reduce")
	g, gctx := errgroup.WithContext(ctx)
	for id := range min(cfg.Workers, partitions) {
		g.Go(func() error {
			reducer, err := job.NewReducer(gctx, id)
			if err != nil {
				return fmt.Errorf("initializing reduce worker %d: %w", id, err)
			}
			defer func() {
				if reducer != nil {
					if err := reducer.Close(); err != nil {
						logger.Warn("closing reducer", "worker_id", id, "error", err)
					}
				}
			}()

			for p := range tasks {
				groups := shuffle(committed, p, job.Compare)

				for attempt := 1; ; attempt++ {
					var (
						out []O
						r   = reducer
					)
					abandoned, err := watch(gctx, cfg.StallTimeout, func(actx context.Context, tick func()) error {
						var err error
						out, err = runPartition(actx, r, groups, tick)
						return err
					})
					if err == nil {
						outputs[p] = out
						counters.Add(CounterReduceGroups, int64(len(groups)))
						counters.Add(CounterReduceOutputRecords, int64(len(out)))
						break
					}

					if errors.Is(err, ErrStalled) {
						go closeWhenDone(logger, r, abandoned)
						reducer = nil
						if reducer, err = job.NewReducer(gctx, id); err != nil {
							return fmt.Errorf("re-initializing reduce worker %d after %w: %w", id, ErrStalled, err)
						}
						err = ErrStalled
					}

					counters.Add(CounterReduceAttemptsFailed, 1)
					if gctx.Err() != nil {
						return context.Cause(gctx)
					}
					if permanent(err) {
						return fmt.Errorf("%s: reduce partition %d: %w", job.Name, p, err)
					}
					if attempt >= cfg.MaxAttempts {
						return fmt.Errorf("%s: reduce partition %d failed after %d attempts: %w", job.Name, p, attempt, err)
					}
					logger.Warn("retrying reduce task", "partition", p, "attempt", attempt, "error", err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result[O]{
		Counters:    counters.Snapshot(),
		MapTasks:    len(committed),
		ReduceTasks: partitions,
		Duration:    time.Since(start),
	}
	for _, out := range outputs {
		res.Output = append(res.Output, out...)
	}

	cfg.Logger.Info("job complete",
		"map_tasks", res.MapTasks,
		"reduce_tasks", res.ReduceTasks,
		"outputs", len(res.Output),
		"skipped", res.Counters[CounterRecordsSkipped],
		"duration", res.Duration,
	)
	return res, nil
}

func runPartition[K, V, O any](ctx context.Context, reducer Reducer[K, V, O], groups []group[K, V], tick func()) ([]O, error) {
	var out []O
	emit := func(o O) { out = append(out, o) }

	for _, gr := range groups {
		if err := ctx.Err(); err != nil {
			return nil, context.Cause(ctx)
		}
		if err := reducer.Reduce(ctx, gr.key, gr.values, emit); err != nil {
			return nil, err
		}
		tick()
	}
	return out, nil
}

// RunMapOnly executes a map-only job. Pairs are returned in input order.
func RunMapOnly[I, K, V any](ctx context.Context, cfg Config, job MapOnlyJob[I, K, V], inputs []I) (*Result[Pair[K, V]], error) {
	if job.NewMapper == nil {
		return nil, fmt.Errorf("%w: job %q needs a mapper", errs.ErrConfiguration, job.Name)
	}

	cfg = cfg.withDefaults()
	cfg.Logger = cfg.Logger.With("job", job.Name)
	counters := NewCounters()
	start := time.Now()

	committed, err := mapPhase(ctx, cfg, job.Name, inputs, 1, nil, job.NewMapper, counters)
	if err != nil {
		return nil, err
	}

	res := &Result[Pair[K, V]]{
		MapTasks: len(committed),
	}
	for _, parts := range committed {
		res.Output = append(res.Output, parts[0]...)
	}
	res.Counters = counters.Snapshot()
	res.Duration = time.Since(start)

	cfg.Logger.Info("job complete",
		"map_tasks", res.MapTasks,
		"outputs", len(res.Output),
		"skipped", res.Counters[CounterRecordsSkipped],
		"duration", res.Duration,
	)
	return res, nil
}
