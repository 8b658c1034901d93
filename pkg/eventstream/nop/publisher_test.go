package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hvision/pkg/eventstream"
	"github.com/papercomputeco/hvision/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	var (
		ctx context.Context
		p   *nop.Publisher
	)

	BeforeEach(func() {
		ctx = context.Background()
		p = nop.NewPublisher()
	})

	It("drops valid events", func() {
		event := eventstream.NewJobEvent(eventstream.EventTypeSearchCompleted, "run-1", eventstream.JobMeta{Name: "search"})
		Expect(p.Publish(ctx, event)).To(Succeed())
		Expect(p.Publish(ctx, event)).To(Succeed())
		Expect(p.Dropped()).To(BeEquivalentTo(2))
	})

	It("rejects nil events", func() {
		Expect(p.Publish(ctx, nil)).To(MatchError(eventstream.ErrNilJobEvent))
		Expect(p.Dropped()).To(BeZero())
	})

	It("rejects events without a run id", func() {
		err := p.Publish(ctx, &eventstream.JobEvent{EventType: eventstream.EventTypeDetectCompleted})
		Expect(err).To(MatchError(eventstream.ErrIncompleteJobEvent))
	})

	It("closes cleanly", func() {
		Expect(p.Close()).To(Succeed())
	})
})
