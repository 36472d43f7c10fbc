package vehicletracker

import (
	"sync"
	"testing"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/inference/pkg/inference/state"
)

type recordingDispatcher struct {
	mutex   sync.Mutex
	records []state.RawRecord
}

func (d *recordingDispatcher) Dispatch(record state.RawRecord) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.records = append(d.records, record)
}

func TestBatchConsumer(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	consumer := NewBatchConsumer(dispatcher)

	valid := rmq.NewTestDeliveryString(`{"vehicleRef":"4512","timestamp":"2024-03-04T08:01:00Z","latitude":40.6036,"longitude":-73.95,"runRef":"B63-101","operatorRef":"OP1","destinationSignCode":"4630"}`)
	noLocation := rmq.NewTestDeliveryString(`{"vehicleRef":"4512","timestamp":"2024-03-04T08:02:00Z"}`)
	malformed := rmq.NewTestDeliveryString(`{"vehicleRef":`)
	noVehicle := rmq.NewTestDeliveryString(`{"timestamp":"2024-03-04T08:01:00Z","latitude":40.6036,"longitude":-73.95}`)
	noTimestamp := rmq.NewTestDeliveryString(`{"vehicleRef":"4512","latitude":40.6036,"longitude":-73.95}`)

	consumer.Consume(rmq.Deliveries{valid, noLocation, malformed, noVehicle, noTimestamp})

	assert.Equal(t, rmq.Acked, valid.State)
	assert.Equal(t, rmq.Acked, noLocation.State)
	assert.Equal(t, rmq.Rejected, malformed.State)
	assert.Equal(t, rmq.Rejected, noVehicle.State)
	assert.Equal(t, rmq.Rejected, noTimestamp.State)

	require.Len(t, dispatcher.records, 2)

	record := dispatcher.records[0]
	assert.Equal(t, "4512", record.VehicleRef)
	assert.Equal(t, time.Date(2024, 3, 4, 8, 1, 0, 0, time.UTC), record.Timestamp.UTC())
	assert.Equal(t, 40.6036, record.Latitude)
	assert.Equal(t, "B63-101", record.ReportedRunRef)
	assert.Equal(t, "OP1", record.OperatorRef)
	assert.Equal(t, "4630", record.DestinationSignCode)
	assert.False(t, record.LocationDataIsMissing())

	assert.True(t, dispatcher.records[1].LocationDataIsMissing())
}
