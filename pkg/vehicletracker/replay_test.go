package vehicletracker

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/inference/pkg/inference"
	"github.com/travigo/inference/pkg/inference/state"
	"github.com/travigo/inference/pkg/schedule/scheduletest"
)

const testTrace = `vehicle_ref,timestamp,latitude,longitude,run_ref,operator_ref,destination_sign_code
4512,2024-03-04T08:03:00Z,40.6108,-73.95,B63-101,OP1,4630
4512,2024-03-04T08:00:00Z,40.6,-73.95,B63-101,OP1,0000
4513,2024-03-04T08:00:00Z,40.6,-73.95,,,0000
,2024-03-04T08:02:00Z,40.6,-73.95,,,
4512,2024-03-04T08:01:00Z,40.6036,-73.95,B63-101,OP1,4630
`

func TestReadReports(t *testing.T) {
	reports, err := ReadReports(strings.NewReader(testTrace))
	require.NoError(t, err)
	require.Len(t, reports, 5)

	assert.Equal(t, scheduletest.At(8, 0, 0), reports[0].Timestamp.UTC())
	assert.Equal(t, "4512", reports[0].VehicleRef)
	assert.Equal(t, "4513", reports[1].VehicleRef)
	assert.Equal(t, "B63-101", reports[2].RunRef)
	assert.Equal(t, 40.6036, reports[2].Latitude)
	assert.ErrorIs(t, reports[3].Validate(), ErrInvalidReport)
	assert.Equal(t, "4630", reports[4].DestinationSignCode)
}

func TestReplay(t *testing.T) {
	reports, err := ReadReports(strings.NewReader(testTrace))
	require.NoError(t, err)

	records, events := Replay(newTestEngine(), reports, 2)
	assert.Empty(t, events)
	require.Len(t, records, 4)

	var vehicles []string
	for _, record := range records {
		vehicles = append(vehicles, record.VehicleRef)
	}
	assert.Equal(t, []string{"4512", "4513", "4512", "4512"}, vehicles)

	assert.Equal(t, state.PhaseAtBase, records[1].Phase)
	assert.Equal(t, state.PhaseInProgress, records[3].Phase)
	assert.Equal(t, scheduletest.OutTripRef, records[3].TripRef)
}

func TestWriteRecords(t *testing.T) {
	records := []*inference.InferredLocationRecord{
		{VehicleRef: "4512", Phase: state.PhaseAtBase, Status: "AT_BASE"},
		{VehicleRef: "4513", Phase: state.PhaseInProgress, Status: "IN_SERVICE", BlockRef: scheduletest.BlockRef},
	}

	t.Run("JSONLines", func(t *testing.T) {
		output := &bytes.Buffer{}
		require.NoError(t, WriteRecords(output, records, false))

		lines := strings.Split(strings.TrimSpace(output.String()), "\n")
		require.Len(t, lines, 2)

		var decoded inference.InferredLocationRecord
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
		assert.Equal(t, "4513", decoded.VehicleRef)
		assert.Equal(t, state.PhaseInProgress, decoded.Phase)
		assert.Equal(t, scheduletest.BlockRef, decoded.BlockRef)
	})

	t.Run("Pretty", func(t *testing.T) {
		output := &bytes.Buffer{}
		require.NoError(t, WriteRecords(output, records, true))

		assert.Contains(t, output.String(), `VehicleRef:`)
		assert.Contains(t, output.String(), `"4513"`)
		assert.NotContains(t, output.String(), `"vehicleRef"`)
	})
}
