package inference

import (
	"github.com/travigo/inference/pkg/inference/state"
)

const DefaultMotionThreshold = 20.0

// MotionModel proposes the child particles of a vehicle state for the
// particle filter
type MotionModel struct {
	journeyStateTransitionModel *JourneyStateTransitionModel

	// MotionThreshold is the distance in metres from the last in motion
	// location after which the vehicle counts as moving again
	MotionThreshold float64
}

func NewMotionModel(journeyStateTransitionModel *JourneyStateTransitionModel) *MotionModel {
	return &MotionModel{
		journeyStateTransitionModel: journeyStateTransitionModel,
		MotionThreshold:             DefaultMotionThreshold,
	}
}

func (m *MotionModel) InitialStates(observation *state.Observation) ([]*state.VehicleState, error) {
	motionState := state.MotionState{
		LastInMotionTime:     observation.Time(),
		LastInMotionLocation: observation.Location(),
	}

	journeyStates := m.journeyStateTransitionModel.InitialJourneyStates(observation)

	return m.journeyStateTransitionModel.GenerateVehicleStates(nil, motionState, journeyStates, observation)
}

func (m *MotionModel) Move(parent *state.VehicleState, observation *state.Observation) ([]*state.VehicleState, error) {
	motionState := m.UpdateMotionState(parent.MotionState, observation)

	return m.journeyStateTransitionModel.Move(parent, motionState, observation)
}

// UpdateMotionState moves the last in motion point forward once the vehicle
// has travelled further than the threshold from it
func (m *MotionModel) UpdateMotionState(parent state.MotionState, observation *state.Observation) state.MotionState {
	if observation.Record().LocationDataIsMissing() {
		parent.InMotion = false
		return parent
	}

	if !parent.LastInMotionLocation.IsValid() {
		return state.MotionState{
			LastInMotionTime:     observation.Time(),
			LastInMotionLocation: observation.Location(),
		}
	}

	if parent.LastInMotionLocation.Distance(observation.Location()) > m.MotionThreshold {
		return state.MotionState{
			LastInMotionTime:     observation.Time(),
			LastInMotionLocation: observation.Location(),
			InMotion:             true,
		}
	}

	return state.MotionState{
		LastInMotionTime:     parent.LastInMotionTime,
		LastInMotionLocation: parent.LastInMotionLocation,
	}
}
