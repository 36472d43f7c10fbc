package inference

import (
	"fmt"
	"time"

	"github.com/travigo/inference/pkg/inference/state"
	"github.com/travigo/inference/pkg/particlefilter"
)

type VehicleFilter = particlefilter.Filter[*state.VehicleState, *state.Observation]
type VehicleSensorModel = particlefilter.SensorModel[*state.VehicleState, *state.Observation]
type VehicleUpdateResult = particlefilter.UpdateResult[*state.VehicleState]

// VehicleInferenceInstance is the inference state of one vehicle. Records
// must be handled in time order and never concurrently.
type VehicleInferenceInstance struct {
	VehicleRef string

	observations *ObservationFactory
	filter       *VehicleFilter

	lastRecordTime time.Time
	lastResult     *VehicleUpdateResult
}

func NewVehicleInferenceInstance(vehicleRef string, config particlefilter.Config, motionModel *MotionModel, sensorModel VehicleSensorModel, classifier ContextClassifier) *VehicleInferenceInstance {
	if config.Label == "" {
		config.Label = vehicleRef
	}

	return &VehicleInferenceInstance{
		VehicleRef:   vehicleRef,
		observations: NewObservationFactory(classifier),
		filter:       particlefilter.NewFilter[*state.VehicleState, *state.Observation](config, motionModel, sensorModel),
	}
}

func (i *VehicleInferenceInstance) Handle(record state.RawRecord) (*InferredLocationRecord, error) {
	if !i.lastRecordTime.IsZero() && !record.Timestamp.After(i.lastRecordTime) {
		return nil, fmt.Errorf("%w: %s at %s", ErrStaleRecord, i.VehicleRef, record.Timestamp.Format(time.RFC3339))
	}

	observation := i.observations.Build(record)

	result, err := i.filter.Update(observation)
	if err != nil {
		return nil, err
	}

	i.lastRecordTime = record.Timestamp
	i.lastResult = result

	return NewInferredLocationRecord(result), nil
}

func (i *VehicleInferenceInstance) LastRecordTime() time.Time {
	return i.lastRecordTime
}

// LastResult is the full filter output of the last handled record
func (i *VehicleInferenceInstance) LastResult() *VehicleUpdateResult {
	return i.lastResult
}

// Reset forgets everything about the vehicle, used after an invariant error
func (i *VehicleInferenceInstance) Reset() {
	i.observations.Reset()
	i.filter.Reset()
	i.lastResult = nil
	i.lastRecordTime = time.Time{}
}
