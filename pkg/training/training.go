// Package training trains one one-vs-rest binary classifier per label class
// over a labelled image dataset.
//
// Every image is encoded once and fanned out to every class: for label count
// N it contributes N samples, positive for its own class and negative for the
// rest. Samples are partitioned by class index so that each reduce call sees
// every sample of one class and fits that class's model.
package training

import (
	"errors"
	"fmt"
	"slices"

	"github.com/papercomputeco/hvision/pkg/bow"
	"github.com/papercomputeco/hvision/pkg/classifier"
	"github.com/papercomputeco/hvision/pkg/dataset"
)

// ErrAlreadyPersisted is returned by Run once a run's models were persisted.
var ErrAlreadyPersisted = errors.New("models already persisted for this run")

// State is the lifecycle of a Coordinator. Transitions only move forward.
type State int

const (
	StateAwaitingVocab State = iota
	StateTraining
	StatePersisted
)

func (s State) String() string {
	switch s {
	case StateAwaitingVocab:
		return "awaiting_vocab"
	case StateTraining:
		return "training"
	case StatePersisted:
		return "persisted"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Sample is one row of a per-class binary problem.
type Sample struct {
	Descriptor bow.Descriptor
	Target     int8
}

// ClassSample is a Sample routed to a class.
type ClassSample struct {
	Class int
	Sample
}

// ClassifierModel is the fitted model of one class.
type ClassifierModel struct {
	LabelID int
	Blob    []byte
}

// Record returns the model as a dataset record keyed "labelid=<id>".
func (m ClassifierModel) Record() dataset.Record {
	return dataset.Record{
		Key:   dataset.Metadata{}.With(dataset.KeyLabelID, fmt.Sprint(m.LabelID)).String(),
		Value: m.Blob,
	}
}

// FanOut expands one image's descriptor into labelCount samples; exactly the
// sample of class labelID is positive.
func FanOut(desc bow.Descriptor, labelID, labelCount int) []ClassSample {
	out := make([]ClassSample, labelCount)
	for i := range labelCount {
		target := classifier.Negative
		if i == labelID {
			target = classifier.Positive
		}
		out[i] = ClassSample{Class: i, Sample: Sample{Descriptor: desc, Target: target}}
	}
	return out
}

// canonicalize orders samples by target then descriptor so that fitting
// never depends on the order samples arrived in.
func canonicalize(samples []Sample) {
	slices.SortFunc(samples, func(a, b Sample) int {
		if a.Target != b.Target {
			return int(b.Target) - int(a.Target)
		}
		return slices.Compare(a.Descriptor, b.Descriptor)
	})
}
