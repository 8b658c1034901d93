// Package nop provides the publisher used when no event brokers are
// configured.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/hvision/pkg/eventstream"
)

// Publisher validates and drops events, counting what it accepted.
type Publisher struct {
	dropped atomic.Int64
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(_ context.Context, event *eventstream.JobEvent) error {
	if err := eventstream.Validate(event); err != nil {
		return err
	}
	p.dropped.Add(1)
	return nil
}

// Dropped returns how many valid events were discarded.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) Close() error {
	return nil
}
