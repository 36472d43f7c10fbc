package inference

import (
	"github.com/travigo/inference/pkg/inference/state"
)

// JourneyStateTransitionModel is the phase state machine. For a parent
// particle it lists every phase the vehicle could be in now and pairs each
// with the block states that fit it.
type JourneyStateTransitionModel struct {
	blockStateTransitionModel BlockStateTransitionModel
	vehicleStateLibrary       *VehicleStateLibrary

	Debug bool
}

func NewJourneyStateTransitionModel(blockStateTransitionModel BlockStateTransitionModel, vehicleStateLibrary *VehicleStateLibrary) *JourneyStateTransitionModel {
	return &JourneyStateTransitionModel{
		blockStateTransitionModel: blockStateTransitionModel,
		vehicleStateLibrary:       vehicleStateLibrary,
	}
}

// Move creates the child states of the parent for the observation
func (m *JourneyStateTransitionModel) Move(parent *state.VehicleState, motionState state.MotionState, observation *state.Observation) ([]*state.VehicleState, error) {
	journeyStates, err := m.TransitionJourneyStates(parent.JourneyState, observation)
	if err != nil {
		return nil, err
	}

	return m.GenerateVehicleStates(parent, motionState, journeyStates, observation)
}

// GenerateVehicleStates pairs each journey state with its block states. A
// journey state without any block match still gets one blockless child.
func (m *JourneyStateTransitionModel) GenerateVehicleStates(parent *state.VehicleState, motionState state.MotionState, journeyStates []state.JourneyState, observation *state.Observation) ([]*state.VehicleState, error) {
	if m.blockStateTransitionModel == nil {
		return nil, &InvariantError{Reason: "no block state transition model"}
	}

	var vehicleStates []*state.VehicleState

	for _, journeyState := range journeyStates {
		blockStates, err := m.blockStateTransitionModel.TransitionBlockStates(parent, motionState, journeyState, observation)
		if err != nil {
			return nil, err
		}

		if len(blockStates) == 0 {
			vehicleStates = append(vehicleStates, m.newVehicleState(parent, motionState, nil, journeyState, observation))
			continue
		}

		for _, blockState := range blockStates {
			vehicleStates = append(vehicleStates, m.newVehicleState(parent, motionState, blockState, journeyState, observation))
		}
	}

	return vehicleStates, nil
}

func (m *JourneyStateTransitionModel) newVehicleState(parent *state.VehicleState, motionState state.MotionState, blockState *state.BlockStateObservation, journeyState state.JourneyState, observation *state.Observation) *state.VehicleState {
	vehicleState := &state.VehicleState{
		MotionState:  motionState,
		BlockState:   blockState,
		JourneyState: journeyState,
		Observation:  observation,
	}

	if m.Debug {
		var summaries []state.JourneyPhaseSummary
		if parent != nil {
			summaries = parent.Summaries
		}
		vehicleState.Summaries = state.ExtendPhaseSummaries(summaries, journeyState, blockState, observation)
	}

	return vehicleState
}

// TransitionJourneyStates lists the phases reachable from the parent phase.
// The result is never empty for a known phase.
func (m *JourneyStateTransitionModel) TransitionJourneyStates(parent state.JourneyState, observation *state.Observation) ([]state.JourneyState, error) {
	here := state.JourneyStartState{
		JourneyStart: observation.Location(),
		Relief:       observation.OperatorChanged(),
	}

	original := here
	if start, ok := parent.Start(); ok {
		original = start
	}

	var journeyStates []state.JourneyState

	switch parent.Phase() {
	case state.PhaseAtBase:
		journeyStates = []state.JourneyState{state.LayoverBefore(), state.DeadheadBefore(here)}
	case state.PhaseDeadheadBefore:
		journeyStates = []state.JourneyState{state.LayoverBefore(), state.DeadheadBefore(original)}
	case state.PhaseLayoverBefore:
		journeyStates = []state.JourneyState{state.LayoverBefore(), state.DeadheadBefore(here)}
	case state.PhaseInProgress:
		journeyStates = []state.JourneyState{
			state.DeadheadDuring(here),
			state.LayoverDuring(),
			state.DeadheadBefore(here),
			state.LayoverBefore(),
		}
	case state.PhaseDeadheadDuring:
		journeyStates = []state.JourneyState{
			state.DeadheadDuring(original),
			state.LayoverDuring(),
			state.DeadheadBefore(here),
			state.LayoverBefore(),
		}
	case state.PhaseLayoverDuring:
		journeyStates = []state.JourneyState{state.DeadheadDuring(here), state.LayoverDuring()}
	default:
		return nil, &InvariantError{Reason: "transitioning journey state", Err: parent.Phase().Validate()}
	}

	return m.includeConditionalStates(journeyStates, observation), nil
}

// InitialJourneyStates are the phases a vehicle can be in without a parent,
// on its first report or when its ensemble is restarted
func (m *JourneyStateTransitionModel) InitialJourneyStates(observation *state.Observation) []state.JourneyState {
	here := state.JourneyStartState{JourneyStart: observation.Location()}

	journeyStates := []state.JourneyState{state.DeadheadBefore(here), state.LayoverBefore()}

	return m.includeConditionalStates(journeyStates, observation)
}

func (m *JourneyStateTransitionModel) includeConditionalStates(journeyStates []state.JourneyState, observation *state.Observation) []state.JourneyState {
	if m.vehicleStateLibrary.CanBeInProgress(observation) {
		journeyStates = append(journeyStates, state.InProgress())
	}

	if m.vehicleStateLibrary.IsAtBase(observation.Location()) {
		journeyStates = append(journeyStates, state.AtBase())
	}

	return journeyStates
}
