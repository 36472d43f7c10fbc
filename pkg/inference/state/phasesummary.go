package state

import (
	"fmt"
	"time"
)

// JourneyPhaseSummary is one contiguous stretch of a single phase in a
// vehicle's history. Only tracked in debug mode.
type JourneyPhaseSummary struct {
	Phase Phase

	BlockInstanceRef string
	TripRef          string

	StartTime time.Time
	EndTime   time.Time

	StartDistanceAlongBlock float64
	EndDistanceAlongBlock   float64
}

func (s JourneyPhaseSummary) String() string {
	return fmt.Sprintf("%s block=%s trip=%s %s-%s",
		s.Phase, s.BlockInstanceRef, s.TripRef, s.StartTime.Format(time.TimeOnly), s.EndTime.Format(time.TimeOnly))
}

// ExtendPhaseSummaries returns a copy of the summaries with the new state
// either stretching the last entry or opening a new one when the phase,
// block or trip changed
func ExtendPhaseSummaries(summaries []JourneyPhaseSummary, journeyState JourneyState, blockState *BlockStateObservation, observation *Observation) []JourneyPhaseSummary {
	blockInstanceRef := ""
	tripRef := ""
	distanceAlongBlock := 0.0
	if blockState != nil {
		blockInstanceRef = blockState.BlockState.BlockInstance.PrimaryIdentifier()
		if trip := blockState.BlockState.ActiveTrip(); trip != nil {
			tripRef = trip.TripRef
		}
		distanceAlongBlock = blockState.BlockState.DistanceAlongBlock()
	}

	extended := make([]JourneyPhaseSummary, len(summaries), len(summaries)+1)
	copy(extended, summaries)

	if len(extended) > 0 {
		last := &extended[len(extended)-1]

		if last.Phase == journeyState.Phase() && last.BlockInstanceRef == blockInstanceRef && last.TripRef == tripRef {
			last.EndTime = observation.Time()
			last.EndDistanceAlongBlock = distanceAlongBlock
			return extended
		}
	}

	return append(extended, JourneyPhaseSummary{
		Phase:                   journeyState.Phase(),
		BlockInstanceRef:        blockInstanceRef,
		TripRef:                 tripRef,
		StartTime:               observation.Time(),
		EndTime:                 observation.Time(),
		StartDistanceAlongBlock: distanceAlongBlock,
		EndDistanceAlongBlock:   distanceAlongBlock,
	})
}
