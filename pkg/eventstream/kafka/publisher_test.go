package kafka_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/hvision/pkg/eventstream"
	"github.com/papercomputeco/hvision/pkg/eventstream/kafka"
)

type recordingWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	It("requires brokers and a topic", func() {
		_, err := kafka.NewPublisher(kafka.Config{Topic: "t"})
		Expect(err).To(HaveOccurred())
		_, err = kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(HaveOccurred())
	})

	It("writes one JSON message keyed by run id", func() {
		w := &recordingWriter{}
		p := kafka.NewPublisherWithWriter(w)
		event := eventstream.NewJobEvent(eventstream.EventTypeDetectCompleted, "run-9", eventstream.JobMeta{Name: "detect"})

		Expect(p.Publish(context.Background(), event)).To(Succeed())
		Expect(w.msgs).To(HaveLen(1))
		Expect(string(w.msgs[0].Key)).To(Equal("run-9"))
		Expect(w.msgs[0].Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte("hvision.detect.completed")}))

		var got eventstream.JobEvent
		Expect(json.Unmarshal(w.msgs[0].Value, &got)).To(Succeed())
		Expect(got.EventID).To(Equal(event.EventID))
		Expect(got.Job.Name).To(Equal("detect"))
	})

	It("rejects nil events", func() {
		p := kafka.NewPublisherWithWriter(&recordingWriter{})
		Expect(p.Publish(context.Background(), nil)).To(MatchError(eventstream.ErrNilJobEvent))
	})

	It("rejects events without an envelope before writing", func() {
		w := &recordingWriter{}
		p := kafka.NewPublisherWithWriter(w)
		err := p.Publish(context.Background(), &eventstream.JobEvent{EventType: eventstream.EventTypeTrainingCompleted})
		Expect(err).To(MatchError(eventstream.ErrIncompleteJobEvent))
		Expect(w.msgs).To(BeEmpty())
	})

	It("wraps writer failures", func() {
		boom := errors.New("broker down")
		p := kafka.NewPublisherWithWriter(&recordingWriter{err: boom})
		event := eventstream.NewJobEvent(eventstream.EventTypeVocabularyBuilt, "run-3", eventstream.JobMeta{Name: "vocab"})
		err := p.Publish(context.Background(), event)
		Expect(err).To(MatchError(boom))
	})

	It("closes the writer", func() {
		w := &recordingWriter{}
		Expect(kafka.NewPublisherWithWriter(w).Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
