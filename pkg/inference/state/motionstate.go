package state

import (
	"time"

	"github.com/travigo/inference/pkg/ctdf"
)

// MotionState tracks whether the vehicle is moving and since when
type MotionState struct {
	LastInMotionTime     time.Time
	LastInMotionLocation ctdf.Location
	InMotion             bool
}

func (m MotionState) StationaryDuration(now time.Time) time.Duration {
	if m.InMotion {
		return 0
	}

	return now.Sub(m.LastInMotionTime)
}
