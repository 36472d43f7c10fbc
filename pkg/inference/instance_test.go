package inference_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/inference/pkg/ctdf"
	"github.com/travigo/inference/pkg/inference"
	"github.com/travigo/inference/pkg/inference/rules"
	"github.com/travigo/inference/pkg/inference/state"
	"github.com/travigo/inference/pkg/particlefilter"
	"github.com/travigo/inference/pkg/schedule/scheduletest"
)

func (h *testHarness) newInstance(debug bool) *inference.VehicleInferenceInstance {
	h.journeyModel.Debug = debug

	return inference.NewVehicleInferenceInstance(
		"4512",
		particlefilter.Config{NumParticles: 1000, Seed: 42},
		h.motionModel,
		rules.DefaultSensorModel(h.index, h.index, h.library),
		h.classifier,
	)
}

func record(at time.Time, location ctdf.Location, sign string) state.RawRecord {
	return state.RawRecord{
		VehicleRef:          "4512",
		Timestamp:           at,
		Latitude:            location.Latitude(),
		Longitude:           location.Longitude(),
		ReportedRunRef:      "B63-101",
		OperatorRef:         "OP1",
		DestinationSignCode: sign,
	}
}

func phaseShare(generation *particlefilter.Generation[*state.VehicleState], phase state.Phase) float64 {
	total := 0
	matching := 0
	for _, particle := range generation.Particles {
		total += particle.Count
		if particle.State.Phase() == phase {
			matching += particle.Count
		}
	}
	return float64(matching) / float64(total)
}

func TestVehicleLeavesBaseIntoService(t *testing.T) {
	harness := newTestHarness()
	instance := harness.newInstance(true)

	block, _ := harness.index.Block(scheduletest.BlockRef)
	dabB := block.StopTimes[1].DistanceAlongBlock
	dabC := block.StopTimes[2].DistanceAlongBlock

	// Sitting in the depot with the sign off
	atBase, err := instance.Handle(record(scheduletest.At(8, 0, 0), scheduletest.StopA, "0000"))
	require.NoError(t, err)

	assert.Equal(t, state.PhaseAtBase, atBase.Phase)
	assert.Equal(t, "AT_BASE", atBase.Status)
	assert.Empty(t, atBase.BlockRef)
	assert.True(t, atBase.Valid)
	assert.False(t, atBase.Recovered)
	assert.InDelta(t, 0.5, atBase.Confidence, 1e-9)

	weighted := instance.LastResult().Weighted
	phases := make([]state.Phase, 0, len(weighted))
	for _, particle := range weighted {
		phases = append(phases, particle.State.Phase())
	}
	assert.ElementsMatch(t, []state.Phase{state.PhaseAtBase, state.PhaseLayoverBefore, state.PhaseDeadheadBefore}, phases)

	// Out on the street, in service, half way to B on time
	inService, err := instance.Handle(record(scheduletest.At(8, 1, 0), ctdf.Interpolate(scheduletest.StopA, scheduletest.StopB, 0.5), "4630"))
	require.NoError(t, err)

	assert.Equal(t, state.PhaseInProgress, inService.Phase)
	assert.Equal(t, "IN_SERVICE", inService.Status)
	assert.Equal(t, scheduletest.BlockRef, inService.BlockRef)
	assert.Equal(t, scheduletest.OutTripRef, inService.TripRef)
	assert.Equal(t, scheduletest.RouteRef, inService.RouteRef)
	assert.Equal(t, "2024-03-04", inService.ServiceDate)
	assert.Equal(t, "B", inService.NextStopRef)
	assert.Equal(t, "B63-101", inService.RunRef)
	assert.Equal(t, scheduletest.BlockRef, inService.AssignedBlockRef)
	assert.InDelta(t, dabB/2, inService.DistanceAlongBlock, 1)
	assert.InDelta(t, 0, inService.ScheduleDeviation, 2)
	assert.InDelta(t, 40.6036, inService.InferredLatitude, 0.0001)
	assert.Greater(t, phaseShare(instance.LastResult().Generation, state.PhaseInProgress), 0.8)

	best := instance.LastResult().Best
	require.NotNil(t, best.Result)
	require.NotNil(t, best.Result.Find("gps"))
	require.NotNil(t, best.Result.Find("schedule"))
	assert.NotNil(t, best.Result.Find("distance"))
	assert.InDelta(t, 1, best.Result.Find("gps").Probability(), 0.05)
	assert.InDelta(t, 1, best.Result.Find("schedule").Probability(), 0.05)

	// Continuing along the trip
	continuing, err := instance.Handle(record(scheduletest.At(8, 3, 0), ctdf.Interpolate(scheduletest.StopB, scheduletest.StopC, 0.5), "4630"))
	require.NoError(t, err)

	assert.Equal(t, state.PhaseInProgress, continuing.Phase)
	assert.InDelta(t, dabB+(dabC-dabB)/2, continuing.DistanceAlongBlock, 5)
	assert.Equal(t, "C", continuing.NextStopRef)

	require.NotEmpty(t, continuing.Summaries)
	assert.Equal(t, state.PhaseInProgress, continuing.Summaries[len(continuing.Summaries)-1].Phase)

	body, err := json.Marshal(continuing)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"phase":"IN_PROGRESS"`)
}

func TestHandleRejectsStaleRecords(t *testing.T) {
	harness := newTestHarness()
	instance := harness.newInstance(false)

	_, err := instance.Handle(record(scheduletest.At(8, 0, 0), scheduletest.StopA, "0000"))
	require.NoError(t, err)

	_, err = instance.Handle(record(scheduletest.At(8, 0, 0), scheduletest.StopA, "0000"))
	assert.True(t, errors.Is(err, inference.ErrStaleRecord))

	_, err = instance.Handle(record(scheduletest.At(7, 59, 0), scheduletest.StopA, "0000"))
	assert.True(t, errors.Is(err, inference.ErrStaleRecord))

	assert.Equal(t, scheduletest.At(8, 0, 0), instance.LastRecordTime())

	instance.Reset()
	assert.True(t, instance.LastRecordTime().IsZero())
	assert.Nil(t, instance.LastResult())

	_, err = instance.Handle(record(scheduletest.At(7, 59, 0), scheduletest.StopA, "0000"))
	assert.NoError(t, err)
}

func TestHandleMissingLocation(t *testing.T) {
	harness := newTestHarness()
	instance := harness.newInstance(false)

	missing := record(scheduletest.At(8, 0, 0), scheduletest.StopA, "0000")
	missing.Latitude = math.NaN()
	missing.Longitude = math.NaN()

	inferred, err := instance.Handle(missing)
	require.NoError(t, err)

	assert.False(t, inferred.Valid)
	assert.Equal(t, 0.0, inferred.ObservedLatitude)
	assert.NotEqual(t, state.PhaseAtBase, inferred.Phase)

	_, err = json.Marshal(inferred)
	assert.NoError(t, err)
}
