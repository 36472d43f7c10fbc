package vehicletracker

import (
	"time"
)

type InferenceEventType string

const (
	EventRecovered InferenceEventType = "RECOVERED"
	EventFailed    InferenceEventType = "FAILED"
)

// InferenceElasticEvent is written when a vehicle filter degenerates or a
// vehicle worker fails
type InferenceElasticEvent struct {
	Timestamp time.Time

	Type       InferenceEventType
	FailReason string

	VehicleRef      string
	RecordTimestamp time.Time

	Phase    string
	BlockRef string
}
