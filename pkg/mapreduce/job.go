package mapreduce

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"log/slog"
	"time"
)

const (
	DefaultMaxAttempts     = 4
	DefaultStallTimeout    = 10 * time.Minute
	DefaultSplitsPerWorker = 4
)

// Pair is one emitted key/value pair.
type Pair[K, V any] struct {
	Key   K
	Value V
}

// Mapper turns one input record into zero or more key/value pairs.
type Mapper[I, K, V any] interface {
	// Map processes one record. Errors satisfying errs.IsRecoverable skip the
	// record; any other error fails the attempt.
	Map(ctx context.Context, in I, emit func(K, V)) error

	// Close releases per-worker resources.
	Close() error
}

// Reducer consumes the groups of one partition in key order.
type Reducer[K, V, O any] interface {
	Reduce(ctx context.Context, key K, values []V, emit func(O)) error
	Close() error
}

// MapperFunc adapts a function without per-worker state to Mapper.
type MapperFunc[I, K, V any] func(ctx context.Context, in I, emit func(K, V)) error

// Map implements Mapper.
func (f MapperFunc[I, K, V]) Map(ctx context.Context, in I, emit func(K, V)) error {
	return f(ctx, in, emit)
}

// Close implements Mapper.
func (MapperFunc[I, K, V]) Close() error { return nil }

// ReducerFunc adapts a function without per-worker state to Reducer.
type ReducerFunc[K, V, O any] func(ctx context.Context, key K, values []V, emit func(O)) error

// Reduce implements Reducer.
func (f ReducerFunc[K, V, O]) Reduce(ctx context.Context, key K, values []V, emit func(O)) error {
	return f(ctx, key, values, emit)
}

// Close implements Reducer.
func (ReducerFunc[K, V, O]) Close() error { return nil }

// Job describes one map → shuffle → reduce computation.
type Job[I, K, V, O any] struct {
	// Name identifies the job in logs.
	Name string

	// NewMapper builds the mapper of one map worker.
	NewMapper func(ctx context.Context, workerID int) (Mapper[I, K, V], error)

	// NewReducer builds the reducer of one reduce worker.
	NewReducer func(ctx context.Context, workerID int) (Reducer[K, V, O], error)

	// Compare orders keys within a partition.
	Compare func(a, b K) int

	// Partition routes a key to a partition in [0, partitions). Defaults to
	// a single partition.
	Partition func(key K, partitions int) int

	// Reducers is the number of partitions. Defaults to 1.
	Reducers int
}

// MapOnlyJob describes a job without shuffle or reduce. Emitted pairs are
// returned in input order.
type MapOnlyJob[I, K, V any] struct {
	Name      string
	NewMapper func(ctx context.Context, workerID int) (Mapper[I, K, V], error)
}

// Config controls scheduling.
type Config struct {
	// Workers is the size of the map and reduce worker pools.
	Workers int

	// SplitSize is the number of records per map task. Zero spreads the input
	// over DefaultSplitsPerWorker tasks per worker.
	SplitSize int

	// MaxAttempts bounds how often a task runs before the job aborts.
	MaxAttempts int

	// StallTimeout fails an attempt that reports no progress for this long.
	// Negative disables stall detection.
	StallTimeout time.Duration

	// ProgressInterval throttles progress logs.
	ProgressInterval time.Duration

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.StallTimeout == 0 {
		c.StallTimeout = DefaultStallTimeout
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Result is the outcome of a successful job.
type Result[O any] struct {
	Output      []O
	Counters    map[string]int64
	MapTasks    int
	ReduceTasks int
	Duration    time.Duration
}

// HashPartition spreads integer keys over partitions with FNV-1a.
func HashPartition(key, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(key))
	h := fnv.New32a()
	h.Write(b[:])
	return int(h.Sum32() % uint32(partitions))
}

// StringPartition spreads string keys over partitions with FNV-1a.
func StringPartition(key string, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(partitions))
}
