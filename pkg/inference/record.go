package inference

import (
	"math"
	"time"

	"github.com/travigo/inference/pkg/inference/state"
	"github.com/travigo/inference/pkg/particlefilter"
)

// InferredLocationRecord is what the engine reports for a vehicle after each
// observation
type InferredLocationRecord struct {
	VehicleRef      string    `json:"vehicleRef"`
	RecordTimestamp time.Time `json:"recordTimestamp"`
	ServiceDate     string    `json:"serviceDate,omitempty"`

	Phase  state.Phase `json:"phase"`
	Status string      `json:"status"`

	BlockRef string `json:"blockRef,omitempty"`
	TripRef  string `json:"tripRef,omitempty"`
	RouteRef string `json:"routeRef,omitempty"`
	RunRef   string `json:"runRef,omitempty"`

	AssignedBlockRef string `json:"assignedBlockRef,omitempty"`

	DistanceAlongBlock float64 `json:"distanceAlongBlock"`
	DistanceAlongTrip  float64 `json:"distanceAlongTrip"`
	ScheduleDeviation  float64 `json:"scheduleDeviation"`

	InferredLatitude  float64 `json:"inferredLatitude"`
	InferredLongitude float64 `json:"inferredLongitude"`
	ObservedLatitude  float64 `json:"observedLatitude"`
	ObservedLongitude float64 `json:"observedLongitude"`
	Bearing           float64 `json:"bearing"`

	NextStopRef string `json:"nextStopRef,omitempty"`

	Confidence float64 `json:"confidence"`
	Valid      bool    `json:"valid"`
	Recovered  bool    `json:"recovered"`

	Summaries []state.JourneyPhaseSummary `json:"summaries,omitempty"`
}

func NewInferredLocationRecord(result *particlefilter.UpdateResult[*state.VehicleState]) *InferredLocationRecord {
	vehicleState := result.Best.State
	observation := vehicleState.Observation
	rawRecord := observation.Record()

	record := &InferredLocationRecord{
		VehicleRef:        rawRecord.VehicleRef,
		RecordTimestamp:   observation.Time(),
		Phase:             vehicleState.Phase(),
		Status:            vehicleState.Phase().Status(),
		RunRef:            observation.RunResults().AssignedRunRef,
		ObservedLatitude:  finiteOrZero(rawRecord.Latitude),
		ObservedLongitude: finiteOrZero(rawRecord.Longitude),
		InferredLatitude:  finiteOrZero(rawRecord.Latitude),
		InferredLongitude: finiteOrZero(rawRecord.Longitude),
		Bearing:           finiteOrZero(observation.Orientation()),
		Confidence:        finiteOrZero(result.Confidence),
		Valid:             !result.Recovered && !rawRecord.LocationDataIsMissing(),
		Recovered:         result.Recovered,
		Summaries:         vehicleState.Summaries,
	}

	if observation.HasValidAssignedBlockRef() {
		record.AssignedBlockRef = observation.AssignedBlockRef()
	}

	if vehicleState.BlockState != nil {
		blockState := vehicleState.BlockState.BlockState
		blockLocation := blockState.BlockLocation

		record.ServiceDate = blockState.BlockInstance.ServiceDate.Format(time.DateOnly)
		record.BlockRef = blockState.BlockInstance.Block.PrimaryIdentifier
		record.DistanceAlongBlock = blockLocation.DistanceAlongBlock
		record.DistanceAlongTrip = blockLocation.DistanceAlongTrip()
		record.ScheduleDeviation = vehicleState.BlockState.ScheduleDeviation
		record.RouteRef = blockState.RouteRef()

		if trip := blockState.ActiveTrip(); trip != nil {
			record.TripRef = trip.TripRef
		}
		if blockLocation.NextStop != nil {
			record.NextStopRef = blockLocation.NextStop.StopRef
		}

		// Only snap to the block while actually serving it
		if vehicleState.Phase() == state.PhaseInProgress && blockLocation.Location.IsValid() {
			record.InferredLatitude = blockLocation.Location.Latitude()
			record.InferredLongitude = blockLocation.Location.Longitude()
			record.Bearing = finiteOrZero(blockLocation.Orientation)
		}
	}

	return record
}

func finiteOrZero(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}
