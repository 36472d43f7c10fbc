package inference

import (
	"github.com/travigo/inference/pkg/ctdf"
	"github.com/travigo/inference/pkg/inference/state"
)

// VehicleStateLibrary answers static questions about vehicle states
type VehicleStateLibrary struct {
	bases BaseLocationService
}

func NewVehicleStateLibrary(bases BaseLocationService) *VehicleStateLibrary {
	return &VehicleStateLibrary{bases: bases}
}

func (l *VehicleStateLibrary) IsAtBase(location ctdf.Location) bool {
	if l.bases == nil || !location.IsValid() {
		return false
	}

	return l.bases.IsAtBase(location)
}

// IsInService is true when the state is serving a block in revenue
func (l *VehicleStateLibrary) IsInService(vehicleState *state.VehicleState) bool {
	return vehicleState.Phase() == state.PhaseInProgress && vehicleState.BlockState != nil
}

// CanBeInProgress is true when an observation can support an in progress
// hypothesis. Direction of travel needs a previous located observation.
func (l *VehicleStateLibrary) CanBeInProgress(observation *state.Observation) bool {
	previous := observation.Previous()

	return !observation.IsOutOfService() && previous != nil && !previous.Record().LocationDataIsMissing()
}
