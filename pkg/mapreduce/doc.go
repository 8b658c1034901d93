// Package mapreduce is an in-process map → shuffle → reduce scheduler.
//
// Input records are cut into splits and processed by a pool of map workers.
// Every worker builds its Mapper once through Job.NewMapper, so read-only
// resources (a vocabulary, a query descriptor, a detector model) are acquired
// once per worker and released by Mapper.Close at teardown. Each map attempt
// writes into private per-partition buffers that are committed only when the
// attempt succeeds, which makes retries idempotent.
//
// After every map task has committed (the only barrier of a job), each
// partition is stably sorted with Job.Compare and grouped by key. A pool of
// reduce workers then consumes the partitions, each Reducer seeing its groups
// as an ordered stream. Outputs are concatenated in partition order.
//
// A task that fails, panics or reports no progress within Config.StallTimeout
// is retried up to Config.MaxAttempts times. Errors that retrying cannot fix
// (configuration, unavailable resources, insufficient data, cancellation)
// abort the job immediately. Record-level decode errors never fail a task:
// the record is skipped and counted under CounterRecordsSkipped.
package mapreduce
