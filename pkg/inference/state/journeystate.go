package state

import (
	"fmt"

	"github.com/travigo/inference/pkg/ctdf"
)

// JourneyState is a tagged union over the journey phases. Only the deadhead
// phases carry a JourneyStartState payload.
type JourneyState struct {
	phase Phase
	start *JourneyStartState
}

// JourneyStartState records where a deadhead started and whether it began
// with an operator relief
type JourneyStartState struct {
	JourneyStart ctdf.Location
	Relief       bool
}

func AtBase() JourneyState {
	return JourneyState{phase: PhaseAtBase}
}

func DeadheadBefore(start JourneyStartState) JourneyState {
	return JourneyState{phase: PhaseDeadheadBefore, start: &start}
}

func LayoverBefore() JourneyState {
	return JourneyState{phase: PhaseLayoverBefore}
}

func InProgress() JourneyState {
	return JourneyState{phase: PhaseInProgress}
}

func DeadheadDuring(start JourneyStartState) JourneyState {
	return JourneyState{phase: PhaseDeadheadDuring, start: &start}
}

func LayoverDuring() JourneyState {
	return JourneyState{phase: PhaseLayoverDuring}
}

func (j JourneyState) Phase() Phase {
	return j.phase
}

// Start returns the deadhead payload, false for phases without one
func (j JourneyState) Start() (JourneyStartState, bool) {
	if j.start == nil {
		return JourneyStartState{}, false
	}

	return *j.start, true
}

func (j JourneyState) Equal(other JourneyState) bool {
	if j.phase != other.phase {
		return false
	}

	if j.start == nil || other.start == nil {
		return j.start == other.start
	}

	return j.start.Relief == other.start.Relief && j.start.JourneyStart.Equal(other.start.JourneyStart)
}

func (j JourneyState) String() string {
	if j.start == nil {
		return string(j.phase)
	}

	return fmt.Sprintf("%s(start=%.6f,%.6f relief=%t)",
		j.phase, j.start.JourneyStart.Latitude(), j.start.JourneyStart.Longitude(), j.start.Relief)
}
