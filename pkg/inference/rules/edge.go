package rules

import (
	"errors"
	"math"

	"github.com/travigo/inference/pkg/inference"
	"github.com/travigo/inference/pkg/inference/state"
	"github.com/travigo/inference/pkg/particlefilter"
	"github.com/travigo/inference/pkg/schedule"
	"gonum.org/v1/gonum/stat"
)

// RouteLocationKey caches the best in progress probability among particles
// on a route implied by the destination sign
const RouteLocationKey particlefilter.CacheKey = "ROUTE_LOCATION"

const (
	gpsErrorMean   = 10.0
	gpsErrorSigma  = 50.0
	scheduleMean   = 5.0
	scheduleSigma  = 40.0
	distanceStdDev = 250.0
)

// EdgeLikelihood scores how well an in progress block position explains the
// observation: distance from the path, deviation from the schedule and
// distance travelled along the block since the previous observation
type EdgeLikelihood struct {
	blockStates        inference.BlockStateService
	scheduleDeviations inference.ScheduleDeviationService
}

func NewEdgeLikelihood(blockStates inference.BlockStateService, scheduleDeviations inference.ScheduleDeviationService) *EdgeLikelihood {
	return &EdgeLikelihood{
		blockStates:        blockStates,
		scheduleDeviations: scheduleDeviations,
	}
}

func (r *EdgeLikelihood) Likelihood(context Context) (*particlefilter.SensorModelResult, error) {
	vehicleState := context.State
	observation := context.Observation
	phase := vehicleState.Phase()

	result := particlefilter.NewSensorModelResult("edge")

	if phase != state.PhaseInProgress && phase != state.PhaseDeadheadBefore && phase != state.PhaseDeadheadDuring {
		return result, nil
	}

	if observation.Previous() == nil || !context.HasParent || context.Parent == nil {
		if phase == state.PhaseInProgress {
			return result.AddProbabilityAsAnd("no previous observation", 0), nil
		}
		return result.AddProbabilityAsAnd("no previous observation", 1), nil
	}

	if vehicleState.BlockState == nil || phase != state.PhaseInProgress {
		inverse := 1.0
		if best, ok := particlefilter.CacheValue[float64](context.Cache, RouteLocationKey); ok {
			inverse = 1.0 - best
		}

		return result.AddProbabilityAsAnd("not in progress", inverse), nil
	}

	blockState := vehicleState.BlockState.BlockState

	previousBlockStates, err := r.previousBlockStates(context.Parent, blockState, observation.Previous())
	if err != nil {
		var missingShapePoints *schedule.MissingShapePointsError
		if errors.As(err, &missingShapePoints) {
			return result.AddProbabilityAsAnd("missing shape points", 0), nil
		}
		return nil, err
	}
	if len(previousBlockStates) == 0 {
		return result.AddProbabilityAsAnd("no previous block state", 0), nil
	}

	if !blockState.BlockLocation.Location.IsValid() {
		return result.AddProbabilityAsAnd("missing shape points", 0), nil
	}

	distance := blockState.BlockLocation.Location.Distance(observation.Location())
	pGps := 1.0 - FoldedNormalCDF(gpsErrorMean, gpsErrorSigma, distance)

	scheduleDeviation := r.scheduleDeviations.ScheduleDeviation(blockState.BlockInstance, blockState.BlockLocation, observation)
	pSchedule := 1.0 - FoldedNormalCDF(scheduleMean, scheduleSigma, scheduleDeviation/60.0)

	timeDelta, _ := observation.TimeDelta()
	currentDistance := blockState.DistanceAlongBlock()

	ratios := make([]float64, 0, len(previousBlockStates))
	for _, previousBlockState := range previousBlockStates {
		previousDistance := previousBlockState.DistanceAlongBlock()
		actualDelta := currentDistance - previousDistance

		// Whichever is first, the previous scheduled time moved on by the
		// elapsed time or the departure from the last stop
		expectedScheduledTime := min(
			previousBlockState.ScheduledTime()+int(timeDelta),
			previousBlockState.BlockInstance.Block.LastStopTime().DepartureTime,
		)

		expectedState, err := r.blockStates.ScheduledTimeAsState(blockState.BlockInstance, expectedScheduledTime)
		if err != nil {
			var missingShapePoints *schedule.MissingShapePointsError
			if errors.As(err, &missingShapePoints) {
				return result.AddProbabilityAsAnd("missing shape points", 0), nil
			}
			return nil, err
		}

		expectedDelta := expectedState.DistanceAlongBlock() - previousDistance

		ratios = append(ratios, NormalDensityRatio(expectedDelta, distanceStdDev, actualDelta))
	}

	pDistance := stat.Mean(ratios, nil)

	logInProgress := math.Log(pGps) + math.Log(pSchedule) + math.Log(pDistance)
	pInProgress := math.Exp(logInProgress)

	result.AddResult(particlefilter.NewSensorModelResultWithProbability("gps", pGps))
	result.AddResult(particlefilter.NewSensorModelResultWithProbability("schedule", pSchedule))
	result.AddResult(particlefilter.NewSensorModelResultWithProbability("distance", pDistance))

	if observation.DscImpliedRoutes().Contains(blockState.RouteRef()) {
		best, ok := particlefilter.CacheValue[float64](context.Cache, RouteLocationKey)
		if !ok || best < pInProgress {
			context.Cache.Put(RouteLocationKey, pInProgress)
		}
	}

	return result.AddResultAsAnd(particlefilter.NewSensorModelResultWithLogProbability("composite", logInProgress)), nil
}

// previousBlockStates are the positions the vehicle may have been at on the
// same block instance at the previous observation
func (r *EdgeLikelihood) previousBlockStates(parent *state.VehicleState, blockState *state.BlockState, previousObservation *state.Observation) ([]*state.BlockState, error) {
	var previousBlockStates []*state.BlockState

	if parent.BlockState != nil && parent.BlockState.BlockState.BlockInstance.Equal(blockState.BlockInstance) {
		previousBlockStates = append(previousBlockStates, parent.BlockState.BlockState)
	}

	if len(previousBlockStates) > 0 && parent.Phase().IsActiveDuringBlock() {
		return previousBlockStates, nil
	}

	bestBlockStates, err := r.blockStates.BestBlockStates(previousObservation, blockState.BlockInstance, 0, math.Inf(1))
	if err != nil {
		return nil, err
	}
	if len(bestBlockStates) == 0 {
		return nil, nil
	}

	for _, best := range bestBlockStates {
		duplicate := false
		for _, existing := range previousBlockStates {
			if existing.Equal(best.BlockState) {
				duplicate = true
				break
			}
		}

		if !duplicate {
			previousBlockStates = append(previousBlockStates, best.BlockState)
		}
	}

	return previousBlockStates, nil
}
