package schedule

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/inference/pkg/ctdf"
	"github.com/travigo/inference/pkg/inference/state"
)

// Snapped and scheduled states closer than this are the same state
const duplicateDistance = 1.0

// BestBlockStates finds, for each candidate block instance, the position on
// the block path closest to the observation and the position the schedule
// puts the vehicle at, both limited to the distance window
func (i *Index) BestBlockStates(observation *state.Observation, target *ctdf.BlockInstance, minDistanceAlongBlock float64, maxDistanceAlongBlock float64) ([]*state.BlockStateObservation, error) {
	if target != nil {
		return i.bestBlockStatesForInstance(observation, target, minDistanceAlongBlock, maxDistanceAlongBlock)
	}

	var blockStates []*state.BlockStateObservation

	for _, instance := range i.candidateInstances(observation) {
		instanceStates, err := i.bestBlockStatesForInstance(observation, instance, minDistanceAlongBlock, maxDistanceAlongBlock)
		if err != nil {
			log.Debug().Err(err).Str("block", instance.PrimaryIdentifier()).Msg("Skipping block instance")
			continue
		}

		blockStates = append(blockStates, instanceStates...)
	}

	return blockStates, nil
}

// candidateInstances narrows the active block instances down by the assigned
// block or the routes implied by the observation
func (i *Index) candidateInstances(observation *state.Observation) []*ctdf.BlockInstance {
	if observation.HasValidAssignedBlockRef() {
		if instance, exists := i.BlockInstance(observation.AssignedBlockRef(), observation.Time()); exists {
			return []*ctdf.BlockInstance{instance}
		}
	}

	return i.filterByRoutes(i.ActiveBlockInstances(observation.Time(), i.ActiveSlack), observation.ImpliedRoutes())
}

func (i *Index) filterByRoutes(instances []*ctdf.BlockInstance, routes state.RouteSet) []*ctdf.BlockInstance {
	if len(routes) == 0 {
		return instances
	}

	var filtered []*ctdf.BlockInstance
	for _, instance := range instances {
		for _, routeRef := range i.blockRoutes[instance.Block.PrimaryIdentifier] {
			if routes.Contains(routeRef) {
				filtered = append(filtered, instance)
				break
			}
		}
	}

	// Sign codes are often wrong, rather search everything than nothing
	if len(filtered) == 0 {
		return instances
	}

	return filtered
}

func (i *Index) bestBlockStatesForInstance(observation *state.Observation, instance *ctdf.BlockInstance, minDistanceAlongBlock float64, maxDistanceAlongBlock float64) ([]*state.BlockStateObservation, error) {
	block := instance.Block

	if len(block.Path) < 2 || len(block.Path) != len(block.PathDistances) {
		return nil, &MissingShapePointsError{BlockRef: block.PrimaryIdentifier}
	}

	minDistanceAlongBlock = math.Max(0, minDistanceAlongBlock)
	maxDistanceAlongBlock = math.Min(block.TotalDistance(), maxDistanceAlongBlock)
	if minDistanceAlongBlock > maxDistanceAlongBlock {
		return nil, nil
	}

	var blockStates []*state.BlockStateObservation

	snappedDistance := math.NaN()
	if !observation.Record().LocationDataIsMissing() {
		snappedDistance = snapToPath(block, observation.Location(), minDistanceAlongBlock, maxDistanceAlongBlock)
		blockStates = append(blockStates, i.blockStateObservation(instance, snappedDistance, observation, true))
	}

	scheduledDistance := block.DistanceForScheduledTime(instance.ServiceSeconds(observation.Time()))
	if scheduledDistance >= minDistanceAlongBlock && scheduledDistance <= maxDistanceAlongBlock {
		if math.IsNaN(snappedDistance) || math.Abs(scheduledDistance-snappedDistance) > duplicateDistance {
			blockStates = append(blockStates, i.blockStateObservation(instance, scheduledDistance, observation, false))
		}
	}

	return blockStates, nil
}

// snapToPath finds the distance along the block within the window whose
// location is closest to the given location
func snapToPath(block *ctdf.Block, location ctdf.Location, minDistanceAlongBlock float64, maxDistanceAlongBlock float64) float64 {
	bestDistance := math.Inf(1)
	bestDistanceAlongBlock := minDistanceAlongBlock

	for segment := 0; segment < len(block.Path)-1; segment++ {
		segmentStart := block.PathDistances[segment]
		segmentEnd := block.PathDistances[segment+1]

		if segmentEnd < minDistanceAlongBlock || segmentStart > maxDistanceAlongBlock {
			continue
		}

		_, fraction := location.ClosestPointOnLine(block.Path[segment], block.Path[segment+1])

		distanceAlongBlock := segmentStart + fraction*(segmentEnd-segmentStart)
		distanceAlongBlock = math.Max(minDistanceAlongBlock, math.Min(maxDistanceAlongBlock, distanceAlongBlock))

		point, _, _ := block.LocationForDistance(distanceAlongBlock)

		distance := location.Distance(point)
		if distance < bestDistance {
			bestDistance = distance
			bestDistanceAlongBlock = distanceAlongBlock
		}
	}

	return bestDistanceAlongBlock
}

func (i *Index) blockStateObservation(instance *ctdf.BlockInstance, distanceAlongBlock float64, observation *state.Observation, snapped bool) *state.BlockStateObservation {
	blockLocation := BlockLocation(instance, distanceAlongBlock)

	onTrip := false
	if trip := blockLocation.ActiveTrip; trip != nil {
		onTrip = distanceAlongBlock >= trip.FirstStopTime().DistanceAlongBlock && distanceAlongBlock <= trip.LastStopTime().DistanceAlongBlock
	}

	return &state.BlockStateObservation{
		BlockState: &state.BlockState{
			BlockInstance: instance,
			BlockLocation: blockLocation,
		},
		ScheduleDeviation: i.ScheduleDeviation(instance, blockLocation, observation),
		IsSnapped:         snapped,
		IsOnTrip:          onTrip,
	}
}

// BlockLocation describes the position at a distance along the block
func BlockLocation(instance *ctdf.BlockInstance, distanceAlongBlock float64) *ctdf.BlockLocation {
	block := instance.Block

	location, orientation, _ := block.LocationForDistance(distanceAlongBlock)

	return &ctdf.BlockLocation{
		DistanceAlongBlock: distanceAlongBlock,
		ScheduledTime:      block.ScheduledTimeForDistance(distanceAlongBlock),
		Location:           location,
		Orientation:        orientation,
		ActiveTrip:         block.TripForDistance(distanceAlongBlock),
		NextStop:           block.NextStopTime(distanceAlongBlock),
	}
}

// ScheduledTimeAsState is where the schedule puts a vehicle on the block at
// the scheduled time, clamped to the ends of the block
func (i *Index) ScheduledTimeAsState(instance *ctdf.BlockInstance, scheduledTime int) (*state.BlockState, error) {
	block := instance.Block
	if len(block.StopTimes) == 0 {
		return nil, &MissingShapePointsError{BlockRef: block.PrimaryIdentifier}
	}

	scheduledTime = max(block.FirstStopTime().DepartureTime, min(block.LastStopTime().ArrivalTime, scheduledTime))

	blockLocation := BlockLocation(instance, block.DistanceForScheduledTime(scheduledTime))
	blockLocation.ScheduledTime = scheduledTime

	return &state.BlockState{
		BlockInstance: instance,
		BlockLocation: blockLocation,
	}, nil
}

// ScheduleDeviation is the observed service time minus the scheduled time at
// the location, positive when running late
func (i *Index) ScheduleDeviation(instance *ctdf.BlockInstance, location *ctdf.BlockLocation, observation *state.Observation) float64 {
	return float64(instance.ServiceSeconds(observation.Time()) - location.ScheduledTime)
}

// BlockStarts lists the start of every block departing within the window of
// the observation time
func (i *Index) BlockStarts(observation *state.Observation, window time.Duration) ([]*state.BlockStateObservation, error) {
	var instances []*ctdf.BlockInstance

	windowSeconds := int(window.Seconds())

	for _, serviceDate := range i.ServiceDates(observation.Time()) {
		for _, blockRef := range i.blockRefs {
			block := i.blocks[blockRef]
			if len(block.Trips) == 0 || !i.ServiceActive(block.Trips[0].ServiceRef, serviceDate) {
				continue
			}

			instance := &ctdf.BlockInstance{Block: block, ServiceDate: serviceDate}

			seconds := instance.ServiceSeconds(observation.Time())
			firstDeparture := block.FirstStopTime().DepartureTime
			if firstDeparture < seconds-windowSeconds || firstDeparture > seconds+windowSeconds {
				continue
			}

			instances = append(instances, instance)
		}
	}

	if observation.HasValidAssignedBlockRef() {
		for _, instance := range instances {
			if instance.Block.PrimaryIdentifier == observation.AssignedBlockRef() {
				return []*state.BlockStateObservation{i.blockStateObservation(instance, instance.Block.FirstStopTime().DistanceAlongBlock, observation, false)}, nil
			}
		}
	}

	var blockStates []*state.BlockStateObservation
	for _, instance := range i.filterByRoutes(instances, observation.ImpliedRoutes()) {
		blockStates = append(blockStates, i.blockStateObservation(instance, instance.Block.FirstStopTime().DistanceAlongBlock, observation, false))
	}

	return blockStates, nil
}
