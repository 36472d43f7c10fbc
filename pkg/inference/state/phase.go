package state

import (
	"errors"
	"fmt"
)

// Phase is the operational phase of a vehicle
type Phase string

const (
	PhaseAtBase         Phase = "AT_BASE"
	PhaseDeadheadBefore Phase = "DEADHEAD_BEFORE"
	PhaseLayoverBefore  Phase = "LAYOVER_BEFORE"
	PhaseInProgress     Phase = "IN_PROGRESS"
	PhaseDeadheadDuring Phase = "DEADHEAD_DURING"
	PhaseLayoverDuring  Phase = "LAYOVER_DURING"
)

var Phases = []Phase{
	PhaseAtBase,
	PhaseDeadheadBefore,
	PhaseLayoverBefore,
	PhaseInProgress,
	PhaseDeadheadDuring,
	PhaseLayoverDuring,
}

var ErrUnknownPhase = errors.New("unknown journey phase")

func (p Phase) Validate() error {
	switch p {
	case PhaseAtBase, PhaseDeadheadBefore, PhaseLayoverBefore, PhaseInProgress, PhaseDeadheadDuring, PhaseLayoverDuring:
		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnknownPhase, string(p))
}

// IsActiveDuringBlock is true for phases where the vehicle is part way
// through serving its block
func (p Phase) IsActiveDuringBlock() bool {
	return p == PhaseInProgress || p == PhaseDeadheadDuring || p == PhaseLayoverDuring
}

func (p Phase) IsActiveBeforeBlock() bool {
	return p == PhaseDeadheadBefore || p == PhaseLayoverBefore
}

func (p Phase) IsLayover() bool {
	return p == PhaseLayoverBefore || p == PhaseLayoverDuring
}

func (p Phase) IsDeadhead() bool {
	return p == PhaseDeadheadBefore || p == PhaseDeadheadDuring
}

// Status is the coarse service status reported downstream
func (p Phase) Status() string {
	switch p {
	case PhaseInProgress:
		return "IN_SERVICE"
	case PhaseAtBase:
		return "AT_BASE"
	case PhaseLayoverBefore, PhaseLayoverDuring:
		return "LAYOVER"
	default:
		return "DEADHEAD"
	}
}
