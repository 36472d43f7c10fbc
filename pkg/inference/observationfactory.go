package inference

import (
	"github.com/travigo/inference/pkg/inference/state"
)

// ObservationFactory builds the observation chain of a single vehicle. Only
// one step of history is kept: once an observation becomes the previous of a
// new one its own previous link is cut.
type ObservationFactory struct {
	classifier ContextClassifier
	last       *state.Observation
}

func NewObservationFactory(classifier ContextClassifier) *ObservationFactory {
	return &ObservationFactory{classifier: classifier}
}

func (f *ObservationFactory) Build(record state.RawRecord) *state.Observation {
	var context state.ObservationContext
	if f.classifier != nil {
		context = f.classifier.Classify(record, f.last)
	}

	observation := state.NewObservation(record, context, f.last)

	if f.last != nil {
		f.last.ClearPrevious()
	}
	f.last = observation

	return observation
}

func (f *ObservationFactory) Last() *state.Observation {
	return f.last
}

func (f *ObservationFactory) Reset() {
	f.last = nil
}
