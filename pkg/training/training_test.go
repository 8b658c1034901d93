package training_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hvision/pkg/bow"
	"github.com/papercomputeco/hvision/pkg/classifier"
	"github.com/papercomputeco/hvision/pkg/dataset"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/mapreduce"
	"github.com/papercomputeco/hvision/pkg/training"
)

var _ = Describe("FanOut", func() {
	It("emits one sample per class with the true class positive", func() {
		desc := bow.Descriptor{0.5, 0.5}
		got := training.FanOut(desc, 1, 3)
		Expect(got).To(HaveLen(3))
		Expect(got[0].Class).To(Equal(0))
		Expect(got[0].Target).To(Equal(classifier.Negative))
		Expect(got[1].Class).To(Equal(1))
		Expect(got[1].Target).To(Equal(classifier.Positive))
		Expect(got[2].Class).To(Equal(2))
		Expect(got[2].Target).To(Equal(classifier.Negative))
	})

	It("always produces exactly one positive sample", func() {
		for n := 1; n <= 6; n++ {
			for label := 0; label < n; label++ {
				samples := training.FanOut(bow.Descriptor{1}, label, n)
				Expect(samples).To(HaveLen(n))

				positives := 0
				for _, s := range samples {
					Expect(s.Descriptor).To(Equal(bow.Descriptor{1}))
					if s.Target == classifier.Positive {
						positives++
						Expect(s.Class).To(Equal(label))
					}
				}
				Expect(positives).To(Equal(1))
			}
		}
	})
})

var _ = Describe("ClassifierModel", func() {
	It("is keyed by label id", func() {
		rec := training.ClassifierModel{LabelID: 4, Blob: []byte{1}}.Record()
		Expect(rec.Key).To(Equal("labelid=4"))
		Expect(rec.Value).To(Equal([]byte{1}))
	})
})

var _ = Describe("Coordinator", func() {
	var (
		ctx context.Context
		cfg training.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = training.Config{
			Scheduler:    mapreduce.Config{Workers: 3, SplitSize: 2},
			Reducers:     2,
			NewExtractor: newRowExtractor,
		}
	})

	It("refuses to run without a vocabulary", func() {
		c := training.NewCoordinator(cfg)
		Expect(c.State()).To(Equal(training.StateAwaitingVocab))
		_, err := c.Run(ctx, labelled())
		Expect(err).To(MatchError(bow.ErrNotReady))
	})

	It("trains one model per class and moves to persisted", func() {
		c := training.NewCoordinator(cfg)
		Expect(c.SetVocabulary(brightVocab())).To(Succeed())
		Expect(c.State()).To(Equal(training.StateTraining))

		res, err := c.Run(ctx, labelled())
		Expect(err).NotTo(HaveOccurred())
		Expect(c.State()).To(Equal(training.StatePersisted))
		Expect(res.RunID).To(Equal(c.RunID()))
		Expect(res.Models).To(HaveLen(2))
		Expect(res.Models[0].LabelID).To(Equal(0))
		Expect(res.Models[1].LabelID).To(Equal(1))

		bright, err := classifier.Unmarshal(res.Models[0].Blob)
		Expect(err).NotTo(HaveOccurred())
		dark, err := classifier.Unmarshal(res.Models[1].Blob)
		Expect(err).NotTo(HaveOccurred())

		allBright := []float32{1, 0}
		allDark := []float32{0, 1}
		Expect(classifier.Predict(bright, allBright)).To(Equal(classifier.Positive))
		Expect(classifier.Predict(bright, allDark)).To(Equal(classifier.Negative))
		Expect(classifier.Predict(dark, allDark)).To(Equal(classifier.Positive))
		Expect(classifier.Predict(dark, allBright)).To(Equal(classifier.Negative))

		Expect(res.Counters[mapreduce.CounterRecordsIn]).To(Equal(int64(8)))
		Expect(res.Counters[mapreduce.CounterMapOutputRecords]).To(Equal(int64(16)))
	})

	It("does not run twice", func() {
		c := training.NewCoordinator(cfg)
		Expect(c.SetVocabulary(brightVocab())).To(Succeed())
		_, err := c.Run(ctx, labelled())
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Run(ctx, labelled())
		Expect(err).To(MatchError(training.ErrAlreadyPersisted))
		Expect(c.SetVocabulary(brightVocab())).NotTo(Succeed())
	})

	It("produces bit-identical models regardless of record order and parallelism", func() {
		train := func(records []dataset.Record, workers, reducers int) [][]byte {
			cfg.Scheduler.Workers = workers
			cfg.Reducers = reducers
			c := training.NewCoordinator(cfg)
			Expect(c.SetVocabulary(brightVocab())).To(Succeed())
			res, err := c.Run(ctx, records)
			Expect(err).NotTo(HaveOccurred())

			var blobs [][]byte
			for _, m := range res.Models {
				blobs = append(blobs, m.Blob)
			}
			return blobs
		}

		records := labelled()
		reversed := make([]dataset.Record, len(records))
		for i, r := range records {
			reversed[len(records)-1-i] = r
		}
		interleaved := []dataset.Record{
			records[4], records[0], records[5], records[1],
			records[6], records[2], records[7], records[3],
		}

		want := train(records, 1, 1)
		Expect(train(reversed, 3, 2)).To(Equal(want))
		Expect(train(interleaved, 4, 3)).To(Equal(want))
	})

	It("skips and counts undecodable records", func() {
		broken := dataset.Record{
			Key:   "labelid=0;label_count=2;type=raw;width=8;height=8;channel_count=1;depth=8",
			Value: []byte{1, 2, 3},
		}
		c := training.NewCoordinator(cfg)
		Expect(c.SetVocabulary(brightVocab())).To(Succeed())

		res, err := c.Run(ctx, append(labelled(), broken))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Models).To(HaveLen(2))
		Expect(res.Counters[mapreduce.CounterRecordsSkipped]).To(Equal(int64(1)))
	})

	It("rejects malformed metadata before any work starts", func() {
		c := training.NewCoordinator(cfg)
		Expect(c.SetVocabulary(brightVocab())).To(Succeed())

		_, err := c.Run(ctx, append(labelled(), dataset.Record{Key: "labelid", Value: []byte{1}}))
		Expect(errors.Is(err, errs.ErrConfiguration)).To(BeTrue())

		_, err = c.Run(ctx, append(labelled(), dataset.Record{Key: "labelid=5;label_count=2", Value: []byte{1}}))
		Expect(errors.Is(err, errs.ErrConfiguration)).To(BeTrue())
		Expect(c.State()).To(Equal(training.StateTraining))
	})

	It("fails when a class receives no samples", func() {
		c := training.NewCoordinator(cfg)
		Expect(c.SetVocabulary(brightVocab())).To(Succeed())

		wider := dataset.Record{
			Key:   "labelid=2;label_count=3;type=raw;width=8;height=8;channel_count=1;depth=8",
			Value: []byte{0},
		}
		_, err := c.Run(ctx, append(labelled(), wider))
		Expect(errors.Is(err, errs.ErrInsufficientTrainingData)).To(BeTrue())
		Expect(c.State()).To(Equal(training.StateTraining))
	})

	It("fails when every record is undecodable", func() {
		c := training.NewCoordinator(cfg)
		Expect(c.SetVocabulary(brightVocab())).To(Succeed())

		_, err := c.Run(ctx, []dataset.Record{{Key: "labelid=0;label_count=1", Value: []byte("not an image")}})
		Expect(errors.Is(err, errs.ErrInsufficientTrainingData)).To(BeTrue())
	})

	It("hands models to the persister before completing", func() {
		var gotRun string
		var gotModels []training.ClassifierModel
		cfg.Persister = training.PersisterFunc(func(_ context.Context, runID string, models []training.ClassifierModel) error {
			gotRun, gotModels = runID, models
			return nil
		})

		c := training.NewCoordinator(cfg)
		Expect(c.SetVocabulary(brightVocab())).To(Succeed())
		res, err := c.Run(ctx, labelled())
		Expect(err).NotTo(HaveOccurred())
		Expect(gotRun).To(Equal(c.RunID()))
		Expect(gotModels).To(Equal(res.Models))
	})

	It("stays in training when persisting fails", func() {
		cfg.Persister = training.PersisterFunc(func(context.Context, string, []training.ClassifierModel) error {
			return errors.New("disk full")
		})

		c := training.NewCoordinator(cfg)
		Expect(c.SetVocabulary(brightVocab())).To(Succeed())
		_, err := c.Run(ctx, labelled())
		Expect(err).To(MatchError(ContainSubstring("disk full")))
		Expect(c.State()).To(Equal(training.StateTraining))
	})
})
