package vehicletracker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/inference/pkg/contextdata"
	"github.com/travigo/inference/pkg/ctdf"
	"github.com/travigo/inference/pkg/inference"
	"github.com/travigo/inference/pkg/inference/state"
	"github.com/travigo/inference/pkg/particlefilter"
	"github.com/travigo/inference/pkg/schedule/scheduletest"
)

func newTestEngine() *Engine {
	config := Config{
		NumParticles:          1000,
		NumWorkers:            4,
		MotionThresholdMeters: inference.DefaultMotionThreshold,
		Seed:                  42,
	}

	contextConfig := &contextdata.Config{
		Bases:                []contextdata.Base{{Name: "Flatbush", Polygon: scheduletest.BaseGeofence()}},
		TerminalRadiusMeters: contextdata.DefaultTerminalRadius,
		OutOfServiceSigns:    []string{"0000"},
		DestinationSigns:     map[string][]string{"4630": {scheduletest.RouteRef}},
		Runs:                 map[string][]string{"B63-101": {scheduletest.RouteRef}},
		Assignments:          map[string]string{"B63-101": scheduletest.BlockRef},
	}

	return NewEngine(config, scheduletest.NewIndex(), contextConfig)
}

func testRecord(vehicleRef string, at time.Time, location ctdf.Location, sign string) state.RawRecord {
	return state.RawRecord{
		VehicleRef:          vehicleRef,
		Timestamp:           at,
		Latitude:            location.Latitude(),
		Longitude:           location.Longitude(),
		ReportedRunRef:      "B63-101",
		DestinationSignCode: sign,
	}
}

func leavingBase(vehicleRef string) []state.RawRecord {
	return []state.RawRecord{
		testRecord(vehicleRef, scheduletest.At(8, 0, 0), scheduletest.StopA, "0000"),
		testRecord(vehicleRef, scheduletest.At(8, 1, 0), ctdf.Interpolate(scheduletest.StopA, scheduletest.StopB, 0.5), "4630"),
		testRecord(vehicleRef, scheduletest.At(8, 3, 0), ctdf.Interpolate(scheduletest.StopB, scheduletest.StopC, 0.5), "4630"),
	}
}

type instanceFunc func(vehicleRef string) *inference.VehicleInferenceInstance

func (f instanceFunc) NewInstance(vehicleRef string) *inference.VehicleInferenceInstance {
	return f(vehicleRef)
}

func (s *collectingSink) byVehicle(vehicleRef string) []*inference.InferredLocationRecord {
	var records []*inference.InferredLocationRecord
	for _, record := range s.records {
		if record.VehicleRef == vehicleRef {
			records = append(records, record)
		}
	}
	return records
}

// blockingSink holds up the first published record until released
type blockingSink struct {
	collectingSink

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *blockingSink) Publish(record *inference.InferredLocationRecord) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	s.collectingSink.Publish(record)
}

func TestManagerTracksVehiclesIndependently(t *testing.T) {
	sink := &collectingSink{}
	manager := NewManager(newTestEngine(), sink, 4)

	for i, record := range leavingBase("4512") {
		manager.Dispatch(record)
		manager.Dispatch(leavingBase("4513")[i])
	}
	manager.Wait()

	assert.Equal(t, []string{"4512", "4513"}, manager.Vehicles())
	assert.Empty(t, sink.events)

	for _, vehicleRef := range []string{"4512", "4513"} {
		records := sink.byVehicle(vehicleRef)
		require.Len(t, records, 3, vehicleRef)

		assert.Equal(t, state.PhaseAtBase, records[0].Phase)
		assert.Equal(t, state.PhaseInProgress, records[2].Phase)
		assert.Equal(t, scheduletest.BlockRef, records[2].BlockRef)
		assert.Equal(t, "C", records[2].NextStopRef)
	}
}

func TestManagerHandlesRecordsInOrder(t *testing.T) {
	sink := newBlockingSink()
	manager := NewManager(newTestEngine(), sink, 2)

	manager.Dispatch(testRecord("4512", scheduletest.At(8, 1, 0), scheduletest.StopA, "0000"))
	<-sink.entered

	// Queued while the first record is still being published
	manager.Dispatch(testRecord("4512", scheduletest.At(8, 3, 0), scheduletest.StopA, "0000"))
	manager.Dispatch(testRecord("4512", scheduletest.At(8, 0, 0), scheduletest.StopA, "0000"))
	manager.Dispatch(testRecord("4512", scheduletest.At(8, 2, 0), scheduletest.StopA, "0000"))
	manager.Dispatch(testRecord("4512", scheduletest.At(8, 2, 0), scheduletest.StopA, "0000"))

	close(sink.release)
	manager.Wait()

	var timestamps []time.Time
	for _, record := range sink.records {
		timestamps = append(timestamps, record.RecordTimestamp)
	}

	assert.Equal(t, []time.Time{scheduletest.At(8, 1, 0), scheduletest.At(8, 2, 0), scheduletest.At(8, 3, 0)}, timestamps)
}

func TestManagerDropsRecordsOlderThanHandled(t *testing.T) {
	engine := newTestEngine()
	sink := &collectingSink{}
	manager := NewManager(engine, sink, 1)

	manager.Dispatch(testRecord("4512", scheduletest.At(8, 1, 0), scheduletest.StopA, "0000"))

	// Wait for the worker to finish with the first record
	require.Eventually(t, func() bool {
		manager.mutex.Lock()
		defer manager.mutex.Unlock()
		return !manager.vehicles["4512"].lastHandled.IsZero()
	}, 5*time.Second, 10*time.Millisecond)

	manager.Dispatch(testRecord("4512", scheduletest.At(8, 0, 0), scheduletest.StopA, "0000"))
	manager.Dispatch(testRecord("4512", scheduletest.At(8, 1, 0), scheduletest.StopA, "0000"))
	manager.Wait()

	assert.Len(t, sink.records, 1)
	assert.Empty(t, manager.vehicles["4512"].pending)
}

func TestManagerResetsFailingVehicleOnly(t *testing.T) {
	engine := newTestEngine()
	library := inference.NewVehicleStateLibrary(engine.Classifier)

	instances := instanceFunc(func(vehicleRef string) *inference.VehicleInferenceInstance {
		config := particlefilter.Config{NumParticles: 100, Seed: 1}

		switch vehicleRef {
		case "invariant":
			// No block state transition model
			motionModel := inference.NewMotionModel(inference.NewJourneyStateTransitionModel(nil, library))
			return inference.NewVehicleInferenceInstance(vehicleRef, config, motionModel, engine.sensorModel, engine.Classifier)
		case "panics":
			return inference.NewVehicleInferenceInstance(vehicleRef, config, nil, engine.sensorModel, engine.Classifier)
		default:
			return engine.NewInstance(vehicleRef)
		}
	})

	sink := &collectingSink{}
	manager := NewManager(instances, sink, 4)

	for _, vehicleRef := range []string{"invariant", "panics", "4512"} {
		for _, record := range leavingBase(vehicleRef) {
			manager.Dispatch(record)
		}
	}
	manager.Wait()

	assert.Len(t, sink.byVehicle("4512"), 3)
	assert.Empty(t, sink.byVehicle("invariant"))
	assert.Empty(t, sink.byVehicle("panics"))

	failures := map[string]int{}
	for _, event := range sink.events {
		assert.Equal(t, EventFailed, event.Type)
		assert.NotEmpty(t, event.FailReason)
		failures[event.VehicleRef]++
	}
	assert.Equal(t, map[string]int{"invariant": 3, "panics": 3}, failures)

	for _, vehicleRef := range []string{"invariant", "panics"} {
		assert.True(t, manager.vehicles[vehicleRef].instance.LastRecordTime().IsZero(), vehicleRef)
	}
}
