package vehicletracker

import (
	"errors"
	"time"

	"github.com/travigo/inference/pkg/inference/state"
)

var ErrInvalidReport = errors.New("raw report has no vehicle or timestamp")

// RawReport is the wire form of a vehicle location report, used by the raw
// queue and by replay traces. A zero latitude and longitude means the
// location is missing.
type RawReport struct {
	VehicleRef string    `json:"vehicleRef" csv:"vehicle_ref"`
	Timestamp  time.Time `json:"timestamp" csv:"timestamp"`

	Latitude  float64 `json:"latitude" csv:"latitude"`
	Longitude float64 `json:"longitude" csv:"longitude"`

	RunRef              string `json:"runRef" csv:"run_ref"`
	OperatorRef         string `json:"operatorRef" csv:"operator_ref"`
	DestinationSignCode string `json:"destinationSignCode" csv:"destination_sign_code"`
}

func (r RawReport) Validate() error {
	if r.VehicleRef == "" || r.Timestamp.IsZero() {
		return ErrInvalidReport
	}
	return nil
}

func (r RawReport) Record() state.RawRecord {
	return state.RawRecord{
		VehicleRef:          r.VehicleRef,
		Timestamp:           r.Timestamp,
		Latitude:            r.Latitude,
		Longitude:           r.Longitude,
		ReportedRunRef:      r.RunRef,
		OperatorRef:         r.OperatorRef,
		DestinationSignCode: r.DestinationSignCode,
	}
}
