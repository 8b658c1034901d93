package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hvision/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals JobEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.JobEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeTrainingCompleted,
			EventID:       "evt_123",
			EmittedAt:     now,
			RunID:         "run-1",
			Job: eventstream.JobMeta{
				Name:       "train",
				Input:      "s3://bucket/train",
				StartedAt:  now.Add(-2 * time.Second),
				DurationMs: 2000,
				Workers:    4,
				Reducers:   2,
			},
			Counters: map[string]int64{"records.in": 10},
			Outputs:  []string{"out/part-r-00000"},
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("run_id"))
		Expect(got).To(HaveKey("job"))
		Expect(got).To(HaveKey("counters"))
		Expect(got).To(HaveKey("outputs"))
	})

	It("fills the envelope in NewJobEvent", func() {
		e := eventstream.NewJobEvent(eventstream.EventTypeSearchCompleted, "run-2", eventstream.JobMeta{Name: "search"})
		Expect(e.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(e.EventType).To(Equal("hvision.search.completed"))
		Expect(e.EventID).NotTo(BeEmpty())
		Expect(e.EmittedAt).NotTo(BeZero())
		Expect(e.RunID).To(Equal("run-2"))
		Expect(e.Job.Name).To(Equal("search"))

		other := eventstream.NewJobEvent(eventstream.EventTypeSearchCompleted, "run-2", eventstream.JobMeta{})
		Expect(other.EventID).NotTo(Equal(e.EventID))
	})

	Describe("Validate", func() {
		It("accepts events built by NewJobEvent", func() {
			e := eventstream.NewJobEvent(eventstream.EventTypeDetectCompleted, "run-4", eventstream.JobMeta{Name: "detect"})
			Expect(eventstream.Validate(e)).To(Succeed())
		})

		It("rejects nil and incomplete events", func() {
			Expect(eventstream.Validate(nil)).To(MatchError(eventstream.ErrNilJobEvent))
			Expect(eventstream.Validate(&eventstream.JobEvent{RunID: "r"})).To(MatchError(eventstream.ErrIncompleteJobEvent))
			err := eventstream.Validate(&eventstream.JobEvent{EventType: eventstream.EventTypeSearchCompleted})
			Expect(err).To(MatchError(eventstream.ErrIncompleteJobEvent))
			Expect(err.Error()).To(ContainSubstring("hvision.search.completed"))
		})
	})
})
