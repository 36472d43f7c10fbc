package state

import (
	"fmt"

	"github.com/travigo/inference/pkg/ctdf"
)

// BlockState is a hypothesis of which block instance the vehicle is serving
// and where along it
type BlockState struct {
	BlockInstance *ctdf.BlockInstance
	BlockLocation *ctdf.BlockLocation
}

func (b *BlockState) ActiveTrip() *ctdf.BlockTrip {
	return b.BlockLocation.ActiveTrip
}

func (b *BlockState) DistanceAlongBlock() float64 {
	return b.BlockLocation.DistanceAlongBlock
}

func (b *BlockState) ScheduledTime() int {
	return b.BlockLocation.ScheduledTime
}

func (b *BlockState) RouteRef() string {
	if b.BlockLocation.ActiveTrip == nil {
		return ""
	}

	return b.BlockLocation.ActiveTrip.RouteRef
}

func (b *BlockState) Equal(other *BlockState) bool {
	if b == nil || other == nil {
		return b == other
	}

	return b.BlockInstance.Equal(other.BlockInstance) &&
		b.BlockLocation.DistanceAlongBlock == other.BlockLocation.DistanceAlongBlock &&
		b.BlockLocation.ScheduledTime == other.BlockLocation.ScheduledTime
}

func (b *BlockState) String() string {
	tripRef := ""
	if trip := b.ActiveTrip(); trip != nil {
		tripRef = trip.TripRef
	}

	return fmt.Sprintf("%s trip=%s dab=%.1f sched=%d",
		b.BlockInstance.PrimaryIdentifier(), tripRef, b.DistanceAlongBlock(), b.ScheduledTime())
}

// BlockStateObservation is a block state matched against an observation
type BlockStateObservation struct {
	BlockState *BlockState

	// Observed service time minus the scheduled time at the block location
	ScheduleDeviation float64

	IsSnapped bool
	IsOnTrip  bool
}

func (b *BlockStateObservation) Equal(other *BlockStateObservation) bool {
	if b == nil || other == nil {
		return b == other
	}

	return b.BlockState.Equal(other.BlockState) && b.ScheduleDeviation == other.ScheduleDeviation
}
