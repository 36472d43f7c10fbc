package inference

import (
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/inference/pkg/inference/state"
	"github.com/travigo/inference/pkg/schedule"
)

// BlockStateTransitionModel proposes the block states a child particle in a
// journey state could be matched to
type BlockStateTransitionModel interface {
	TransitionBlockStates(parent *state.VehicleState, motionState state.MotionState, journeyState state.JourneyState, observation *state.Observation) ([]*state.BlockStateObservation, error)
}

const (
	DefaultMaxSpeed          = 30.0
	DefaultBacktrackDistance = 250.0
	DefaultBlockStartWindow  = 45 * time.Minute
)

// ScheduleBlockStateTransitionModel moves block states along the in memory
// schedule
type ScheduleBlockStateTransitionModel struct {
	blockStates        BlockStateService
	scheduleDeviations ScheduleDeviationService

	// MaxSpeed in m/s bounds how far along its block an in progress vehicle
	// is searched for between reports
	MaxSpeed float64

	// BacktrackDistance is how far behind its last position a vehicle may
	// appear, absorbing GPS noise
	BacktrackDistance float64

	BlockStartWindow time.Duration
}

func NewScheduleBlockStateTransitionModel(blockStates BlockStateService, scheduleDeviations ScheduleDeviationService) *ScheduleBlockStateTransitionModel {
	return &ScheduleBlockStateTransitionModel{
		blockStates:        blockStates,
		scheduleDeviations: scheduleDeviations,
		MaxSpeed:           DefaultMaxSpeed,
		BacktrackDistance:  DefaultBacktrackDistance,
		BlockStartWindow:   DefaultBlockStartWindow,
	}
}

func (m *ScheduleBlockStateTransitionModel) TransitionBlockStates(parent *state.VehicleState, motionState state.MotionState, journeyState state.JourneyState, observation *state.Observation) ([]*state.BlockStateObservation, error) {
	if m.blockStates == nil || m.scheduleDeviations == nil {
		return nil, &InvariantError{Reason: "schedule block state transition model is missing its services"}
	}

	var parentBlockState *state.BlockStateObservation
	var parentPhase state.Phase
	if parent != nil {
		parentBlockState = parent.BlockState
		parentPhase = parent.Phase()
	}

	var blockStates []*state.BlockStateObservation
	var err error

	switch journeyState.Phase() {
	case state.PhaseAtBase:
		return nil, nil
	case state.PhaseInProgress:
		blockStates, err = m.inProgressBlockStates(parentBlockState, parentPhase, observation)
	case state.PhaseDeadheadDuring, state.PhaseLayoverDuring:
		if parentBlockState != nil && parentPhase.IsActiveDuringBlock() {
			blockStates = []*state.BlockStateObservation{m.carry(parentBlockState, observation)}
		}
	case state.PhaseDeadheadBefore, state.PhaseLayoverBefore:
		if parentBlockState != nil && parentPhase.IsActiveBeforeBlock() {
			blockStates = []*state.BlockStateObservation{m.carry(parentBlockState, observation)}
		} else {
			blockStates, err = m.blockStates.BlockStarts(observation, m.BlockStartWindow)
		}
	default:
		return nil, &InvariantError{Reason: "transitioning block state", Err: journeyState.Phase().Validate()}
	}

	if err != nil {
		var missingShapePoints *schedule.MissingShapePointsError
		if errors.As(err, &missingShapePoints) {
			log.Debug().Err(err).Str("vehicle", observation.Record().VehicleRef).Msg("Skipping block states")
			return nil, nil
		}
		return nil, err
	}

	return blockStates, nil
}

func (m *ScheduleBlockStateTransitionModel) inProgressBlockStates(parentBlockState *state.BlockStateObservation, parentPhase state.Phase, observation *state.Observation) ([]*state.BlockStateObservation, error) {
	if parentBlockState != nil {
		instance := parentBlockState.BlockState.BlockInstance

		minDistance := 0.0
		maxDistance := math.Inf(1)

		if parentPhase.IsActiveDuringBlock() {
			timeDelta, _ := observation.TimeDelta()
			parentDistance := parentBlockState.BlockState.DistanceAlongBlock()

			minDistance = math.Max(0, parentDistance-m.BacktrackDistance)
			maxDistance = parentDistance + math.Max(timeDelta, 0)*m.MaxSpeed + m.BacktrackDistance
		}

		blockStates, err := m.blockStates.BestBlockStates(observation, instance, minDistance, maxDistance)
		if err != nil || len(blockStates) > 0 {
			return blockStates, err
		}
	}

	return m.blockStates.BestBlockStates(observation, nil, 0, math.Inf(1))
}

// carry keeps the parent block position with the deviation refreshed for the
// new observation time
func (m *ScheduleBlockStateTransitionModel) carry(parentBlockState *state.BlockStateObservation, observation *state.Observation) *state.BlockStateObservation {
	blockState := parentBlockState.BlockState

	return &state.BlockStateObservation{
		BlockState:        blockState,
		ScheduleDeviation: m.scheduleDeviations.ScheduleDeviation(blockState.BlockInstance, blockState.BlockLocation, observation),
		IsSnapped:         false,
		IsOnTrip:          parentBlockState.IsOnTrip,
	}
}
