package ctdf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "time/tzdata"
)

func newTestBlock() *Block {
	first := &BlockTrip{TripRef: "T1", RouteRef: "B63"}
	second := &BlockTrip{TripRef: "T2", RouteRef: "B63", Sequence: 1, DistanceAlongBlock: 2000}

	first.StopTimes = []*BlockStopTime{
		{StopRef: "A", DistanceAlongBlock: 0, ArrivalTime: 100, DepartureTime: 100, Trip: first},
		{StopRef: "B", DistanceAlongBlock: 1000, ArrivalTime: 200, DepartureTime: 260, Trip: first},
		{StopRef: "C", DistanceAlongBlock: 2000, ArrivalTime: 400, DepartureTime: 400, Trip: first},
	}
	second.StopTimes = []*BlockStopTime{
		{StopRef: "C2", DistanceAlongBlock: 2000, ArrivalTime: 500, DepartureTime: 500, Trip: second},
		{StopRef: "A2", DistanceAlongBlock: 4000, ArrivalTime: 700, DepartureTime: 700, Trip: second},
	}

	block := &Block{
		PrimaryIdentifier: "BLK-1",
		Trips:             []*BlockTrip{first, second},
	}
	for _, trip := range block.Trips {
		block.StopTimes = append(block.StopTimes, trip.StopTimes...)
	}

	block.Path = []Location{NewLocation(40.6, -73.95), NewLocation(40.609, -73.95), NewLocation(40.618, -73.95)}
	block.PathDistances = []float64{0, block.Path[0].Distance(block.Path[1])}
	block.PathDistances = append(block.PathDistances, block.PathDistances[1]+block.Path[1].Distance(block.Path[2]))

	return block
}

func TestBlockScheduledTimeForDistance(t *testing.T) {
	block := newTestBlock()

	tests := []struct {
		distance float64
		expected int
	}{
		{-10, 100},
		{0, 100},
		{500, 150},
		{1000, 260},
		{1500, 330},
		{2000, 400},
		{3000, 600},
		{5000, 700},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, block.ScheduledTimeForDistance(test.distance), "distance %f", test.distance)
	}
}

func TestBlockDistanceForScheduledTime(t *testing.T) {
	block := newTestBlock()

	tests := []struct {
		scheduledTime int
		expected      float64
	}{
		{50, 0},
		{150, 500},
		{230, 1000},
		{330, 1500},
		{450, 2000},
		{600, 3000},
		{800, 4000},
	}

	for _, test := range tests {
		assert.InDelta(t, test.expected, block.DistanceForScheduledTime(test.scheduledTime), 1e-9, "time %d", test.scheduledTime)
	}
}

func TestBlockTripAndStops(t *testing.T) {
	assert := assert.New(t)
	block := newTestBlock()

	assert.Equal("T1", block.TripForDistance(0).TripRef)
	assert.Equal("T1", block.TripForDistance(2000).TripRef)
	assert.Equal("T2", block.TripForDistance(2001).TripRef)
	assert.Equal("T2", block.TripForDistance(9000).TripRef)

	assert.Equal("B", block.NextStopTime(500).StopRef)
	assert.Equal("B", block.NextStopTime(1000).StopRef)
	assert.Equal("C", block.NextStopTime(1000.5).StopRef)
	assert.Nil(block.NextStopTime(4000.5))

	assert.Equal(4000.0, block.LastStopTime().DistanceAlongBlock)
	assert.Equal(block.PathDistances[2], block.TotalDistance())
}

func TestBlockLocationForDistance(t *testing.T) {
	assert := assert.New(t)
	block := newTestBlock()

	location, orientation, ok := block.LocationForDistance(block.PathDistances[1] / 2)
	assert.True(ok)
	assert.InDelta(40.6045, location.Latitude(), 1e-9)
	assert.InDelta(0, orientation, 1e-6)

	location, _, ok = block.LocationForDistance(-5)
	assert.True(ok)
	assert.True(location.Equal(block.Path[0]))

	location, _, ok = block.LocationForDistance(block.PathDistances[2] + 100)
	assert.True(ok)
	assert.True(location.Equal(block.Path[2]))

	block.Path = block.Path[:1]
	_, _, ok = block.LocationForDistance(10)
	assert.False(ok)
}

func TestBlockInstance(t *testing.T) {
	assert := assert.New(t)

	block := newTestBlock()
	serviceDate := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	instance := &BlockInstance{Block: block, ServiceDate: serviceDate}
	assert.Equal("BLK-1:2024-03-04", instance.PrimaryIdentifier())
	assert.Equal(8*3600+90, instance.ServiceSeconds(serviceDate.Add(8*time.Hour+90*time.Second)))

	assert.True(instance.Equal(&BlockInstance{Block: block, ServiceDate: serviceDate}))
	assert.False(instance.Equal(&BlockInstance{Block: block, ServiceDate: serviceDate.AddDate(0, 0, 1)}))
	assert.False(instance.Equal(nil))
	assert.True((*BlockInstance)(nil).Equal(nil))

	location := &BlockLocation{DistanceAlongBlock: 2500, ActiveTrip: block.Trips[1]}
	assert.Equal(500.0, location.DistanceAlongTrip())

	location.ActiveTrip = nil
	assert.Equal(2500.0, location.DistanceAlongTrip())
}

func TestBlockInstanceServiceSecondsAcrossDaylightSaving(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name        string
		serviceDate time.Time
	}{
		{"Ordinary", time.Date(2024, 3, 4, 0, 0, 0, 0, newYork)},
		{"SpringForward", time.Date(2024, 3, 10, 0, 0, 0, 0, newYork)},
		{"FallBack", time.Date(2024, 11, 3, 0, 0, 0, 0, newYork)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			instance := &BlockInstance{Block: newTestBlock(), ServiceDate: test.serviceDate}

			year, month, day := test.serviceDate.Date()
			tenAM := time.Date(year, month, day, 10, 0, 0, 0, newYork)

			assert.Equal(t, 10*3600, instance.ServiceSeconds(tenAM))
			assert.Equal(t, 12*3600, instance.ServiceSeconds(tenAM.Add(2*time.Hour)))
			assert.Equal(t, "BLK-1:"+test.serviceDate.Format("2006-01-02"), instance.PrimaryIdentifier())
		})
	}

	assert.Equal(t, time.Date(2024, 11, 3, 5, 0, 0, 0, time.UTC), ServiceDayStart(time.Date(2024, 11, 3, 0, 0, 0, 0, newYork)).UTC())
	assert.Equal(t, time.Date(2024, 3, 10, 4, 0, 0, 0, time.UTC), ServiceDayStart(time.Date(2024, 3, 10, 0, 0, 0, 0, newYork)).UTC())
}
