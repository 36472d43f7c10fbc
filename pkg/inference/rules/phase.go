package rules

import (
	"github.com/travigo/inference/pkg/inference"
	"github.com/travigo/inference/pkg/inference/state"
	"github.com/travigo/inference/pkg/particlefilter"
)

// AtBaseLikelihood ties the AT_BASE phase to the base geofences and makes
// being in service inside a base unlikely
type AtBaseLikelihood struct {
	vehicleStateLibrary *inference.VehicleStateLibrary
}

func NewAtBaseLikelihood(vehicleStateLibrary *inference.VehicleStateLibrary) *AtBaseLikelihood {
	return &AtBaseLikelihood{vehicleStateLibrary: vehicleStateLibrary}
}

func (r *AtBaseLikelihood) Likelihood(context Context) (*particlefilter.SensorModelResult, error) {
	result := particlefilter.NewSensorModelResult("atBase")

	atBase := r.vehicleStateLibrary.IsAtBase(context.Observation.Location())
	phase := context.State.Phase()

	switch {
	case phase == state.PhaseAtBase && atBase:
		return result, nil
	case phase == state.PhaseAtBase:
		return result.AddProbabilityAsAnd("not at base", 0), nil
	case !atBase:
		return result, nil
	case phase.IsActiveBeforeBlock():
		return result.AddProbabilityAsAnd("before block at base", 0.5), nil
	default:
		return result.AddProbabilityAsAnd("during block at base", 0.1), nil
	}
}

// LayoverLikelihood penalises layover hypotheses while the vehicle moves
type LayoverLikelihood struct {
	MovingProbability float64
}

func NewLayoverLikelihood() *LayoverLikelihood {
	return &LayoverLikelihood{MovingProbability: 0.05}
}

func (r *LayoverLikelihood) Likelihood(context Context) (*particlefilter.SensorModelResult, error) {
	result := particlefilter.NewSensorModelResult("layover")

	if !context.State.Phase().IsLayover() || !context.State.MotionState.InMotion {
		return result, nil
	}

	return result.AddProbabilityAsAnd("moving during layover", r.MovingProbability), nil
}

// NullStateLikelihood rules out phases that only make sense on a block when
// no block was matched
type NullStateLikelihood struct{}

func NewNullStateLikelihood() *NullStateLikelihood {
	return &NullStateLikelihood{}
}

func (r *NullStateLikelihood) Likelihood(context Context) (*particlefilter.SensorModelResult, error) {
	result := particlefilter.NewSensorModelResult("nullState")

	if context.State.BlockState == nil && context.State.Phase().IsActiveDuringBlock() {
		return result.AddProbabilityAsAnd("no block during block phase", 0), nil
	}

	return result, nil
}
