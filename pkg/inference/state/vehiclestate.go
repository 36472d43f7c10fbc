package state

import (
	"cmp"
	"fmt"
	"strings"
)

// VehicleState is a single particle: one complete hypothesis of what the
// vehicle is doing at the time of its observation. The link to the parent
// particle lives in the particle filter generation, not here.
type VehicleState struct {
	MotionState  MotionState
	BlockState   *BlockStateObservation
	JourneyState JourneyState
	Observation  *Observation

	Summaries []JourneyPhaseSummary
}

func (v *VehicleState) Phase() Phase {
	return v.JourneyState.Phase()
}

// ParticleKey identifies states that are equivalent for resampling so
// duplicates can be collapsed into a single weighted entry
func (v *VehicleState) ParticleKey() string {
	var key strings.Builder

	key.WriteString(v.JourneyState.String())
	key.WriteByte('|')

	if v.BlockState != nil {
		fmt.Fprintf(&key, "%s|%.3f|%d|%.3f",
			v.BlockState.BlockState.BlockInstance.PrimaryIdentifier(),
			v.BlockState.BlockState.DistanceAlongBlock(),
			v.BlockState.BlockState.ScheduledTime(),
			v.BlockState.ScheduleDeviation,
		)
	}

	fmt.Fprintf(&key, "|%t|%d", v.MotionState.InMotion, v.MotionState.LastInMotionTime.UnixMilli())

	return key.String()
}

// Compare orders states deterministically, used to break ties when picking
// the best particle
func (v *VehicleState) Compare(other *VehicleState) int {
	return cmp.Or(
		strings.Compare(string(v.Phase()), string(other.Phase())),
		compareBlockStates(v.BlockState, other.BlockState),
		v.Observation.Compare(other.Observation),
		strings.Compare(v.ParticleKey(), other.ParticleKey()),
	)
}

func compareBlockStates(a *BlockStateObservation, b *BlockStateObservation) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	return cmp.Or(
		strings.Compare(a.BlockState.BlockInstance.PrimaryIdentifier(), b.BlockState.BlockInstance.PrimaryIdentifier()),
		cmp.Compare(a.BlockState.DistanceAlongBlock(), b.BlockState.DistanceAlongBlock()),
		cmp.Compare(a.BlockState.ScheduledTime(), b.BlockState.ScheduledTime()),
		cmp.Compare(a.ScheduleDeviation, b.ScheduleDeviation),
	)
}

func (v *VehicleState) String() string {
	block := "none"
	if v.BlockState != nil {
		block = v.BlockState.BlockState.String()
	}

	return fmt.Sprintf("VehicleState{%s block=(%s) moving=%t}", v.JourneyState, block, v.MotionState.InMotion)
}
