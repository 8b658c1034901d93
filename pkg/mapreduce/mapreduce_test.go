package mapreduce_test

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/mapreduce"
)

type count struct {
	word string
	n    int
}

// trackingMapper splits lines into words and records its lifecycle.
type trackingMapper struct {
	closed *atomic.Int64
}

func (m *trackingMapper) Map(_ context.Context, line string, emit func(string, int)) error {
	if strings.HasPrefix(line, "!") {
		return fmt.Errorf("%w: bad line", errs.ErrRecordDecode)
	}
	for _, w := range strings.Fields(line) {
		emit(w, 1)
	}
	return nil
}

func (m *trackingMapper) Close() error {
	m.closed.Add(1)
	return nil
}

func sumReducer(_ context.Context, _ int) (mapreduce.Reducer[string, int, count], error) {
	return mapreduce.ReducerFunc[string, int, count](func(_ context.Context, key string, values []int, emit func(count)) error {
		total := 0
		for _, v := range values {
			total += v
		}
		emit(count{word: key, n: total})
		return nil
	}), nil
}

func wordCount(newMapper func(context.Context, int) (mapreduce.Mapper[string, string, int], error), reducers int) mapreduce.Job[string, string, int, count] {
	return mapreduce.Job[string, string, int, count]{
		Name:       "wordcount",
		NewMapper:  newMapper,
		NewReducer: sumReducer,
		Compare:    strings.Compare,
		Partition:  mapreduce.StringPartition,
		Reducers:   reducers,
	}
}

func plainMapper(context.Context, int) (mapreduce.Mapper[string, string, int], error) {
	return mapreduce.MapperFunc[string, string, int](func(_ context.Context, line string, emit func(string, int)) error {
		for _, w := range strings.Fields(line) {
			emit(w, 1)
		}
		return nil
	}), nil
}

func toMap(out []count) map[string]int {
	m := map[string]int{}
	for _, c := range out {
		m[c.word] += c.n
	}
	return m
}

var lines = []string{
	"a b c", "b c", "c", "d a", "a a", "e", "b", "c d e",
}

var _ = Describe("Run", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("groups every key into exactly one reduce call", func() {
		res, err := mapreduce.Run(ctx, mapreduce.Config{Workers: 3, SplitSize: 2}, wordCount(plainMapper, 3), lines)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Output).To(HaveLen(5))
		Expect(toMap(res.Output)).To(Equal(map[string]int{"a": 4, "b": 3, "c": 4, "d": 2, "e": 2}))
		Expect(res.MapTasks).To(Equal(4))
		Expect(res.ReduceTasks).To(Equal(3))
		Expect(res.Counters[mapreduce.CounterRecordsIn]).To(Equal(int64(len(lines))))
		Expect(res.Counters[mapreduce.CounterMapOutputRecords]).To(Equal(int64(15)))
		Expect(res.Counters[mapreduce.CounterReduceGroups]).To(Equal(int64(5)))
	})

	It("delivers a single partition in global key order", func() {
		res, err := mapreduce.Run(ctx, mapreduce.Config{Workers: 4, SplitSize: 1}, wordCount(plainMapper, 1), lines)
		Expect(err).NotTo(HaveOccurred())

		var words []string
		for _, c := range res.Output {
			words = append(words, c.word)
		}
		Expect(words).To(Equal([]string{"a", "b", "c", "d", "e"}))
	})

	It("keeps equal keys in input order", func() {
		type tagged struct {
			key, tag int
		}
		job := mapreduce.Job[tagged, int, int, int]{
			Name: "stable",
			NewMapper: func(context.Context, int) (mapreduce.Mapper[tagged, int, int], error) {
				return mapreduce.MapperFunc[tagged, int, int](func(_ context.Context, in tagged, emit func(int, int)) error {
					emit(in.key, in.tag)
					return nil
				}), nil
			},
			NewReducer: func(context.Context, int) (mapreduce.Reducer[int, int, int], error) {
				return mapreduce.ReducerFunc[int, int, int](func(_ context.Context, _ int, values []int, emit func(int)) error {
					for _, v := range values {
						emit(v)
					}
					return nil
				}), nil
			},
			Compare: cmp.Compare[int],
		}
		in := []tagged{{2, 0}, {1, 1}, {2, 2}, {1, 3}, {2, 4}, {0, 5}}
		res, err := mapreduce.Run(ctx, mapreduce.Config{Workers: 3, SplitSize: 1}, job, in)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Output).To(Equal([]int{5, 1, 3, 0, 2, 4}))
	})

	It("builds and closes one mapper per worker", func() {
		var built, closed atomic.Int64
		newMapper := func(context.Context, int) (mapreduce.Mapper[string, string, int], error) {
			built.Add(1)
			return &trackingMapper{closed: &closed}, nil
		}

		_, err := mapreduce.Run(ctx, mapreduce.Config{Workers: 2, SplitSize: 1}, wordCount(newMapper, 2), lines)
		Expect(err).NotTo(HaveOccurred())
		Expect(built.Load()).To(Equal(int64(2)))
		Expect(closed.Load()).To(Equal(int64(2)))
	})

	It("skips and counts undecodable records", func() {
		var closed atomic.Int64
		newMapper := func(context.Context, int) (mapreduce.Mapper[string, string, int], error) {
			return &trackingMapper{closed: &closed}, nil
		}

		in := append([]string{"!broken", "x y"}, "!also broken", "x")
		res, err := mapreduce.Run(ctx, mapreduce.Config{Workers: 2}, wordCount(newMapper, 1), in)
		Expect(err).NotTo(HaveOccurred())
		Expect(toMap(res.Output)).To(Equal(map[string]int{"x": 2, "y": 1}))
		Expect(res.Counters[mapreduce.CounterRecordsSkipped]).To(Equal(int64(2)))
	})

	It("retries failed map attempts without duplicating output", func() {
		var failures atomic.Int64
		newMapper := func(context.Context, int) (mapreduce.Mapper[string, string, int], error) {
			return mapreduce.MapperFunc[string, string, int](func(_ context.Context, line string, emit func(string, int)) error {
				for _, w := range strings.Fields(line) {
					emit(w, 1)
				}
				if line == "e" && failures.Add(1) == 1 {
					return errors.New("transient")
				}
				return nil
			}), nil
		}

		res, err := mapreduce.Run(ctx, mapreduce.Config{Workers: 2, SplitSize: 3}, wordCount(newMapper, 2), lines)
		Expect(err).NotTo(HaveOccurred())
		Expect(toMap(res.Output)).To(Equal(map[string]int{"a": 4, "b": 3, "c": 4, "d": 2, "e": 2}))
		Expect(res.Counters[mapreduce.CounterMapAttemptsFailed]).To(Equal(int64(1)))
	})

	It("aborts once the retry bound is exceeded", func() {
		var attempts atomic.Int64
		newMapper := func(context.Context, int) (mapreduce.Mapper[string, string, int], error) {
			return mapreduce.MapperFunc[string, string, int](func(context.Context, string, func(string, int)) error {
				attempts.Add(1)
				return errors.New("always")
			}), nil
		}

		_, err := mapreduce.Run(ctx, mapreduce.Config{Workers: 1, MaxAttempts: 3}, wordCount(newMapper, 1), []string{"a"})
		Expect(err).To(MatchError(ContainSubstring("failed after 3 attempts")))
		Expect(attempts.Load()).To(Equal(int64(3)))
	})

	It("does not retry configuration errors", func() {
		var attempts atomic.Int64
		newMapper := func(context.Context, int) (mapreduce.Mapper[string, string, int], error) {
			return mapreduce.MapperFunc[string, string, int](func(context.Context, string, func(string, int)) error {
				attempts.Add(1)
				return fmt.Errorf("%w: malformed key", errs.ErrConfiguration)
			}), nil
		}

		_, err := mapreduce.Run(ctx, mapreduce.Config{Workers: 1}, wordCount(newMapper, 1), []string{"a"})
		Expect(errors.Is(err, errs.ErrConfiguration)).To(BeTrue())
		Expect(attempts.Load()).To(Equal(int64(1)))
	})

	It("replaces a stalled mapper and retries its task", func() {
		var built, stalls atomic.Int64
		newMapper := func(context.Context, int) (mapreduce.Mapper[string, string, int], error) {
			built.Add(1)
			return mapreduce.MapperFunc[string, string, int](func(ctx context.Context, line string, emit func(string, int)) error {
				if stalls.Add(1) == 1 {
					<-ctx.Done()
					return ctx.Err()
				}
				emit(line, 1)
				return nil
			}), nil
		}

		cfg := mapreduce.Config{Workers: 1, StallTimeout: 50 * time.Millisecond}
		res, err := mapreduce.Run(ctx, cfg, wordCount(newMapper, 1), []string{"a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(toMap(res.Output)).To(Equal(map[string]int{"a": 1}))
		Expect(built.Load()).To(Equal(int64(2)))
		Expect(res.Counters[mapreduce.CounterMapAttemptsFailed]).To(Equal(int64(1)))
	})

	It("fails the job on permanent reduce errors", func() {
		job := wordCount(plainMapper, 2)
		job.NewReducer = func(context.Context, int) (mapreduce.Reducer[string, int, count], error) {
			return mapreduce.ReducerFunc[string, int, count](func(context.Context, string, []int, func(count)) error {
				return fmt.Errorf("%w: empty class", errs.ErrInsufficientTrainingData)
			}), nil
		}

		_, err := mapreduce.Run(ctx, mapreduce.Config{Workers: 2}, job, lines)
		Expect(errors.Is(err, errs.ErrInsufficientTrainingData)).To(BeTrue())
	})

	It("rejects incomplete jobs", func() {
		_, err := mapreduce.Run(ctx, mapreduce.Config{}, mapreduce.Job[string, string, int, count]{Name: "x"}, lines)
		Expect(errors.Is(err, errs.ErrConfiguration)).To(BeTrue())
	})

	It("handles empty input", func() {
		res, err := mapreduce.Run(ctx, mapreduce.Config{Workers: 2}, wordCount(plainMapper, 2), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Output).To(BeEmpty())
	})
})

var _ = Describe("RunMapOnly", func() {
	It("returns emitted pairs in input order", func() {
		job := mapreduce.MapOnlyJob[int, int, string]{
			Name: "square",
			NewMapper: func(context.Context, int) (mapreduce.Mapper[int, int, string], error) {
				return mapreduce.MapperFunc[int, int, string](func(_ context.Context, in int, emit func(int, string)) error {
					if in%5 == 0 {
						return fmt.Errorf("%w: multiple of five", errs.ErrRecordDecode)
					}
					emit(in, fmt.Sprint(in*in))
					return nil
				}), nil
			},
		}

		in := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
		res, err := mapreduce.RunMapOnly(context.Background(), mapreduce.Config{Workers: 4, SplitSize: 2}, job, in)
		Expect(err).NotTo(HaveOccurred())

		var keys []int
		for _, p := range res.Output {
			keys = append(keys, p.Key)
		}
		Expect(keys).To(Equal([]int{1, 2, 3, 4, 6, 7, 8, 9, 11}))
		Expect(res.Output[1].Value).To(Equal("4"))
		Expect(res.Counters[mapreduce.CounterRecordsSkipped]).To(Equal(int64(2)))
	})
})

var _ = Describe("Partitioners", func() {
	It("stay within range and are stable", func() {
		for k := -50; k < 50; k++ {
			p := mapreduce.HashPartition(k, 7)
			Expect(p).To(BeNumerically(">=", 0))
			Expect(p).To(BeNumerically("<", 7))
			Expect(mapreduce.HashPartition(k, 7)).To(Equal(p))
		}
		Expect(mapreduce.HashPartition(3, 1)).To(BeZero())
		Expect(mapreduce.StringPartition("abc", 4)).To(Equal(mapreduce.StringPartition("abc", 4)))
	})
})
