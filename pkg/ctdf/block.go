package ctdf

import (
	"fmt"
	"time"

	"golang.org/x/exp/slices"
)

const BlockInstanceIDFormat = "%s:%s"

// Block is one scheduled vehicle duty made up of ordered trips. Distances are
// metres along the whole block, times are seconds since service date midnight.
type Block struct {
	PrimaryIdentifier string

	Trips     []*BlockTrip
	StopTimes []*BlockStopTime

	// Path is the concatenated shape of every trip, PathDistances holds the
	// cumulative distance along the block of each path point.
	Path          []Location
	PathDistances []float64
}

type BlockTrip struct {
	TripRef      string
	RouteRef     string
	ServiceRef   string
	DirectionRef string

	Sequence           int
	DistanceAlongBlock float64

	StopTimes []*BlockStopTime
}

func (t *BlockTrip) FirstStopTime() *BlockStopTime {
	return t.StopTimes[0]
}

func (t *BlockTrip) LastStopTime() *BlockStopTime {
	return t.StopTimes[len(t.StopTimes)-1]
}

type BlockStopTime struct {
	StopRef  string
	Location Location

	BlockSequence      int
	DistanceAlongBlock float64

	ArrivalTime   int
	DepartureTime int

	Trip *BlockTrip
}

func (b *Block) TotalDistance() float64 {
	if len(b.PathDistances) == 0 {
		if len(b.StopTimes) == 0 {
			return 0
		}
		return b.StopTimes[len(b.StopTimes)-1].DistanceAlongBlock
	}

	return b.PathDistances[len(b.PathDistances)-1]
}

func (b *Block) FirstStopTime() *BlockStopTime {
	return b.StopTimes[0]
}

func (b *Block) LastStopTime() *BlockStopTime {
	return b.StopTimes[len(b.StopTimes)-1]
}

// ScheduledTimeForDistance interpolates the scheduled time of the block at a
// distance along it. Dwell time at stops is attributed to the departure.
func (b *Block) ScheduledTimeForDistance(distanceAlongBlock float64) int {
	first := b.FirstStopTime()
	last := b.LastStopTime()

	if distanceAlongBlock <= first.DistanceAlongBlock {
		return first.DepartureTime
	}
	if distanceAlongBlock >= last.DistanceAlongBlock {
		return last.ArrivalTime
	}

	index, _ := slices.BinarySearchFunc(b.StopTimes, distanceAlongBlock, func(stopTime *BlockStopTime, target float64) int {
		switch {
		case stopTime.DistanceAlongBlock < target:
			return -1
		case stopTime.DistanceAlongBlock > target:
			return 1
		}
		return 0
	})

	to := b.StopTimes[index]
	if to.DistanceAlongBlock == distanceAlongBlock {
		return to.DepartureTime
	}
	from := b.StopTimes[index-1]

	fraction := (distanceAlongBlock - from.DistanceAlongBlock) / (to.DistanceAlongBlock - from.DistanceAlongBlock)

	return from.DepartureTime + int(fraction*float64(to.ArrivalTime-from.DepartureTime))
}

// DistanceForScheduledTime is the inverse of ScheduledTimeForDistance,
// clamped to the ends of the block.
func (b *Block) DistanceForScheduledTime(scheduledTime int) float64 {
	first := b.FirstStopTime()
	last := b.LastStopTime()

	if scheduledTime <= first.DepartureTime {
		return first.DistanceAlongBlock
	}
	if scheduledTime >= last.ArrivalTime {
		return last.DistanceAlongBlock
	}

	for i := 1; i < len(b.StopTimes); i++ {
		from := b.StopTimes[i-1]
		to := b.StopTimes[i]

		if scheduledTime < from.DepartureTime {
			// Dwelling at the previous stop
			return from.DistanceAlongBlock
		}

		if scheduledTime < to.ArrivalTime {
			fraction := float64(scheduledTime-from.DepartureTime) / float64(to.ArrivalTime-from.DepartureTime)
			return from.DistanceAlongBlock + fraction*(to.DistanceAlongBlock-from.DistanceAlongBlock)
		}
	}

	return last.DistanceAlongBlock
}

// TripForDistance returns the trip covering the distance along the block.
// Between trips the upcoming trip is active.
func (b *Block) TripForDistance(distanceAlongBlock float64) *BlockTrip {
	for _, trip := range b.Trips {
		if distanceAlongBlock <= trip.LastStopTime().DistanceAlongBlock {
			return trip
		}
	}

	return b.Trips[len(b.Trips)-1]
}

// NextStopTime is the first stop time at or beyond the distance
func (b *Block) NextStopTime(distanceAlongBlock float64) *BlockStopTime {
	for _, stopTime := range b.StopTimes {
		if stopTime.DistanceAlongBlock >= distanceAlongBlock {
			return stopTime
		}
	}

	return nil
}

// LocationForDistance interpolates a point along the block path. The boolean
// is false when the block has no usable path.
func (b *Block) LocationForDistance(distanceAlongBlock float64) (Location, float64, bool) {
	if len(b.Path) < 2 || len(b.Path) != len(b.PathDistances) {
		return Location{}, 0, false
	}

	if distanceAlongBlock <= 0 {
		return b.Path[0], b.Path[0].Bearing(b.Path[1]), true
	}

	lastIndex := len(b.Path) - 1
	if distanceAlongBlock >= b.PathDistances[lastIndex] {
		return b.Path[lastIndex], b.Path[lastIndex-1].Bearing(b.Path[lastIndex]), true
	}

	index, _ := slices.BinarySearch(b.PathDistances, distanceAlongBlock)
	if index == 0 {
		index = 1
	}

	from := b.Path[index-1]
	to := b.Path[index]

	segmentLength := b.PathDistances[index] - b.PathDistances[index-1]
	fraction := 0.0
	if segmentLength > 0 {
		fraction = (distanceAlongBlock - b.PathDistances[index-1]) / segmentLength
	}

	return Interpolate(from, to, fraction), from.Bearing(to), true
}

// BlockInstance is a block running on a particular service date
type BlockInstance struct {
	Block       *Block
	ServiceDate time.Time
}

func (i *BlockInstance) PrimaryIdentifier() string {
	return fmt.Sprintf(BlockInstanceIDFormat, i.Block.PrimaryIdentifier, i.ServiceDate.Format("2006-01-02"))
}

func (i *BlockInstance) Equal(other *BlockInstance) bool {
	if i == nil || other == nil {
		return i == other
	}

	return i.Block.PrimaryIdentifier == other.Block.PrimaryIdentifier && i.ServiceDate.Equal(other.ServiceDate)
}

// ServiceSeconds converts a wall clock time into seconds since the start of
// the service day of this instance
func (i *BlockInstance) ServiceSeconds(t time.Time) int {
	return int(t.Sub(ServiceDayStart(i.ServiceDate)).Seconds())
}

// ServiceDayStart is noon minus 12 hours on the service date, which GTFS
// times count from. It only differs from midnight on daylight saving days.
func ServiceDayStart(serviceDate time.Time) time.Time {
	year, month, day := serviceDate.Date()
	return time.Date(year, month, day, 12, 0, 0, 0, serviceDate.Location()).Add(-12 * time.Hour)
}

// BlockLocation is a position along a block instance
type BlockLocation struct {
	DistanceAlongBlock float64
	ScheduledTime      int

	Location    Location
	Orientation float64

	ActiveTrip *BlockTrip
	NextStop   *BlockStopTime
}

func (l *BlockLocation) DistanceAlongTrip() float64 {
	if l.ActiveTrip == nil {
		return l.DistanceAlongBlock
	}

	return l.DistanceAlongBlock - l.ActiveTrip.DistanceAlongBlock
}
