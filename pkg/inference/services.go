// Package inference infers what a transit vehicle is doing from its stream of
// location reports using a particle filter over journey phases and scheduled
// block positions.
package inference

import (
	"time"

	"github.com/travigo/inference/pkg/ctdf"
	"github.com/travigo/inference/pkg/inference/state"
	"github.com/travigo/inference/pkg/schedule"
)

var (
	_ BlockStateService        = (*schedule.Index)(nil)
	_ ScheduleDeviationService = (*schedule.Index)(nil)
)

// BlockStateService searches the schedule for block positions that explain
// an observation. Implementations must answer from memory.
type BlockStateService interface {
	// BestBlockStates returns the best matches for the observation between
	// the two distances along the block. A nil target searches every active
	// block instance.
	BestBlockStates(observation *state.Observation, target *ctdf.BlockInstance, minDistanceAlongBlock float64, maxDistanceAlongBlock float64) ([]*state.BlockStateObservation, error)

	// ScheduledTimeAsState is the block state at a scheduled time
	ScheduledTimeAsState(instance *ctdf.BlockInstance, scheduledTime int) (*state.BlockState, error)

	// BlockStarts are the states at the start of blocks departing within the
	// window either side of the observation time
	BlockStarts(observation *state.Observation, window time.Duration) ([]*state.BlockStateObservation, error)
}

type ScheduleDeviationService interface {
	ScheduleDeviation(instance *ctdf.BlockInstance, location *ctdf.BlockLocation, observation *state.Observation) float64
}

type BaseLocationService interface {
	IsAtBase(location ctdf.Location) bool
}

// ContextClassifier computes the context flags of a record before the
// observation is built from it
type ContextClassifier interface {
	Classify(record state.RawRecord, previous *state.Observation) state.ObservationContext
}
