// Package rules holds the sensor model rules that weight vehicle state
// particles against an observation.
package rules

import (
	"github.com/travigo/inference/pkg/inference"
	"github.com/travigo/inference/pkg/inference/state"
	"github.com/travigo/inference/pkg/particlefilter"
)

type Context = particlefilter.Context[*state.VehicleState, *state.Observation]

// Rule contributes one independent term to the weight of a particle
type Rule interface {
	Likelihood(context Context) (*particlefilter.SensorModelResult, error)
}

// SensorModel ANDs every rule together. Once a particle reaches zero the
// remaining rules are skipped.
type SensorModel struct {
	rules []Rule
}

func NewSensorModel(rules ...Rule) *SensorModel {
	return &SensorModel{rules: rules}
}

// DefaultSensorModel is the full rule set used by the tracker
func DefaultSensorModel(blockStates inference.BlockStateService, scheduleDeviations inference.ScheduleDeviationService, vehicleStateLibrary *inference.VehicleStateLibrary) *SensorModel {
	return NewSensorModel(
		NewNullStateLikelihood(),
		NewAtBaseLikelihood(vehicleStateLibrary),
		NewLayoverLikelihood(),
		NewEdgeLikelihood(blockStates, scheduleDeviations),
	)
}

func (m *SensorModel) Likelihood(context Context) (*particlefilter.SensorModelResult, error) {
	result := particlefilter.NewSensorModelResult("total")

	for _, rule := range m.rules {
		ruleResult, err := rule.Likelihood(context)
		if err != nil {
			return nil, err
		}

		result.AddResultAsAnd(ruleResult)

		if result.IsZero() {
			break
		}
	}

	return result, nil
}

// Priority weights in progress particles with a block first so the best in
// progress probability is cached before the fallbacks read it
func (m *SensorModel) Priority(vehicleState *state.VehicleState) int {
	if vehicleState.Phase() == state.PhaseInProgress && vehicleState.BlockState != nil {
		return 0
	}
	return 1
}
