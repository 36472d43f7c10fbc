package schedule

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/inference/pkg/ctdf"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	DefaultActiveSlack  = 30 * time.Minute
	serviceDateFormat   = "20060102"
	calendarDateAdded   = 1
	calendarDateRemoved = 2
)

// Index is the read only, in memory view of the schedule the inference
// engine queries. It is safe for concurrent use once built.
type Index struct {
	Timezone *time.Location

	// ActiveSlack widens the time span in which a block instance counts as
	// active either side of its first and last stop times
	ActiveSlack time.Duration

	blocks    map[string]*ctdf.Block
	blockRefs []string

	blockRoutes map[string][]string

	calendars     map[string]*Calendar
	calendarDates map[string]map[string]int
}

func LoadIndex(path string) (*Index, error) {
	feed, err := LoadFeed(path)
	if err != nil {
		return nil, err
	}

	return NewIndex(feed)
}

func NewIndex(feed *Feed) (*Index, error) {
	timezone := time.UTC
	for _, agency := range feed.Agencies {
		if agency.Timezone == "" {
			continue
		}

		location, err := time.LoadLocation(agency.Timezone)
		if err != nil {
			return nil, err
		}
		timezone = location
		break
	}

	index := &Index{
		Timezone:      timezone,
		ActiveSlack:   DefaultActiveSlack,
		blocks:        map[string]*ctdf.Block{},
		blockRoutes:   map[string][]string{},
		calendars:     map[string]*Calendar{},
		calendarDates: map[string]map[string]int{},
	}

	for i := range feed.Calendars {
		calendar := &feed.Calendars[i]
		index.calendars[calendar.ServiceID] = calendar
	}
	for _, calendarDate := range feed.CalendarDates {
		if index.calendarDates[calendarDate.ServiceID] == nil {
			index.calendarDates[calendarDate.ServiceID] = map[string]int{}
		}
		index.calendarDates[calendarDate.ServiceID][calendarDate.Date] = calendarDate.ExceptionType
	}

	stops := map[string]ctdf.Location{}
	for _, stop := range feed.Stops {
		stops[stop.ID] = ctdf.NewLocation(stop.Latitude, stop.Longitude)
	}

	shapes := map[string][]Shape{}
	for _, shape := range feed.Shapes {
		shapes[shape.ID] = append(shapes[shape.ID], shape)
	}
	for id := range shapes {
		slices.SortFunc(shapes[id], func(a Shape, b Shape) int {
			return a.PointSequence - b.PointSequence
		})
	}

	stopTimes := map[string][]StopTime{}
	for _, stopTime := range feed.StopTimes {
		stopTimes[stopTime.TripID] = append(stopTimes[stopTime.TripID], stopTime)
	}
	for id := range stopTimes {
		slices.SortFunc(stopTimes[id], func(a StopTime, b StopTime) int {
			return a.StopSequence - b.StopSequence
		})
	}

	blockTrips := map[string][]*ctdf.BlockTrip{}
	tripShapes := map[*ctdf.BlockTrip]string{}

	for _, trip := range feed.Trips {
		blockRef := trip.BlockID
		if blockRef == "" {
			blockRef = trip.ID
		}

		blockTrip, err := newBlockTrip(trip, stopTimes[trip.ID], stops)
		if err != nil {
			log.Warn().Err(err).Str("trip", trip.ID).Msg("Skipping trip")
			continue
		}

		blockTrips[blockRef] = append(blockTrips[blockRef], blockTrip)
		tripShapes[blockTrip] = trip.ShapeID
	}

	for blockRef, trips := range blockTrips {
		slices.SortFunc(trips, func(a *ctdf.BlockTrip, b *ctdf.BlockTrip) int {
			return a.FirstStopTime().DepartureTime - b.FirstStopTime().DepartureTime
		})

		block := buildBlock(blockRef, trips, tripShapes, shapes)
		index.blocks[blockRef] = block

		routes := map[string]struct{}{}
		for _, trip := range trips {
			routes[trip.RouteRef] = struct{}{}
		}
		routeRefs := maps.Keys(routes)
		sort.Strings(routeRefs)
		index.blockRoutes[blockRef] = routeRefs
	}

	index.blockRefs = maps.Keys(index.blocks)
	sort.Strings(index.blockRefs)

	log.Info().Int("blocks", len(index.blocks)).Int("trips", len(feed.Trips)).Msg("Built schedule index")

	return index, nil
}

func newBlockTrip(trip Trip, stopTimes []StopTime, stops map[string]ctdf.Location) (*ctdf.BlockTrip, error) {
	if len(stopTimes) < 2 {
		return nil, &InvalidTripError{TripRef: trip.ID, Reason: "fewer than two stop times"}
	}

	blockTrip := &ctdf.BlockTrip{
		TripRef:      trip.ID,
		RouteRef:     trip.RouteID,
		ServiceRef:   trip.ServiceID,
		DirectionRef: trip.DirectionID,
	}

	for _, stopTime := range stopTimes {
		location, exists := stops[stopTime.StopID]
		if !exists {
			return nil, &InvalidTripError{TripRef: trip.ID, Reason: "unknown stop " + stopTime.StopID}
		}

		arrival, err := parseGTFSTime(stopTime.ArrivalTime)
		if err != nil {
			return nil, err
		}
		departure, err := parseGTFSTime(stopTime.DepartureTime)
		if err != nil {
			return nil, err
		}

		blockTrip.StopTimes = append(blockTrip.StopTimes, &ctdf.BlockStopTime{
			StopRef:       stopTime.StopID,
			Location:      location,
			ArrivalTime:   arrival,
			DepartureTime: departure,
			Trip:          blockTrip,
		})
	}

	return blockTrip, nil
}

// buildBlock concatenates the trip paths into the block path and places every
// stop time at its distance along the block
func buildBlock(blockRef string, trips []*ctdf.BlockTrip, tripShapes map[*ctdf.BlockTrip]string, shapes map[string][]Shape) *ctdf.Block {
	block := &ctdf.Block{
		PrimaryIdentifier: blockRef,
		Trips:             trips,
	}

	for sequence, trip := range trips {
		trip.Sequence = sequence

		tripPath := tripPath(trip, shapes[tripShapes[trip]])

		startIndex := len(block.Path)
		if startIndex > 0 && block.Path[startIndex-1].Equal(tripPath[0]) {
			// The trip starts where the last one finished
			startIndex--
		}

		for _, point := range tripPath {
			if len(block.Path) == 0 {
				block.Path = append(block.Path, point)
				block.PathDistances = append(block.PathDistances, 0)
				continue
			}

			lastIndex := len(block.Path) - 1
			if block.Path[lastIndex].Equal(point) {
				continue
			}

			block.Path = append(block.Path, point)
			block.PathDistances = append(block.PathDistances, block.PathDistances[lastIndex]+block.Path[lastIndex].Distance(point))
		}

		trip.DistanceAlongBlock = block.PathDistances[startIndex]

		distances := projectStops(block.Path[startIndex:], block.PathDistances[startIndex:], trip.StopTimes)
		for i, stopTime := range trip.StopTimes {
			stopTime.DistanceAlongBlock = distances[i]
			stopTime.BlockSequence = len(block.StopTimes)
			block.StopTimes = append(block.StopTimes, stopTime)
		}
	}

	return block
}

func tripPath(trip *ctdf.BlockTrip, shape []Shape) []ctdf.Location {
	path := make([]ctdf.Location, 0, max(len(shape), len(trip.StopTimes)))

	if len(shape) >= 2 {
		for _, point := range shape {
			path = append(path, ctdf.NewLocation(point.PointLatitude, point.PointLongitude))
		}
		return path
	}

	for _, stopTime := range trip.StopTimes {
		path = append(path, stopTime.Location)
	}
	return path
}

// projectStops snaps each stop to the path in order, never going backwards
func projectStops(path []ctdf.Location, distances []float64, stopTimes []*ctdf.BlockStopTime) []float64 {
	projected := make([]float64, len(stopTimes))
	startSegment := 0

	for i, stopTime := range stopTimes {
		bestDistance := math.Inf(1)
		bestSegment := startSegment
		bestDistanceAlongBlock := distances[startSegment]

		for segment := startSegment; segment < len(path)-1; segment++ {
			point, fraction := stopTime.Location.ClosestPointOnLine(path[segment], path[segment+1])

			distance := stopTime.Location.Distance(point)
			if distance < bestDistance {
				bestDistance = distance
				bestSegment = segment
				bestDistanceAlongBlock = distances[segment] + fraction*(distances[segment+1]-distances[segment])
			}
		}

		if i > 0 && bestDistanceAlongBlock < projected[i-1] {
			bestDistanceAlongBlock = projected[i-1]
		}

		projected[i] = bestDistanceAlongBlock
		startSegment = bestSegment
	}

	return projected
}

func (i *Index) Block(blockRef string) (*ctdf.Block, bool) {
	block, exists := i.blocks[blockRef]
	return block, exists
}

// Blocks lists every block ordered by reference
func (i *Index) Blocks() []*ctdf.Block {
	blocks := make([]*ctdf.Block, 0, len(i.blockRefs))
	for _, blockRef := range i.blockRefs {
		blocks = append(blocks, i.blocks[blockRef])
	}
	return blocks
}

func (i *Index) BlockRoutes(blockRef string) []string {
	return i.blockRoutes[blockRef]
}

// TerminalLocations are the first and last stops of every trip
func (i *Index) TerminalLocations() []ctdf.Location {
	var terminals []ctdf.Location
	for _, block := range i.Blocks() {
		for _, trip := range block.Trips {
			terminals = append(terminals, trip.FirstStopTime().Location, trip.LastStopTime().Location)
		}
	}
	return terminals
}

func (i *Index) ServiceActive(serviceRef string, serviceDate time.Time) bool {
	date := serviceDate.Format(serviceDateFormat)

	switch i.calendarDates[serviceRef][date] {
	case calendarDateAdded:
		return true
	case calendarDateRemoved:
		return false
	}

	calendar, exists := i.calendars[serviceRef]
	if !exists {
		return false
	}

	return calendar.Covers(date) && calendar.RunsOn(serviceDate.Weekday())
}

// ServiceDates are the service dates which could be running at the time,
// including the previous day for trips past midnight
func (i *Index) ServiceDates(at time.Time) []time.Time {
	local := at.In(i.Timezone)

	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, i.Timezone)
	yesterday := time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, i.Timezone)

	return []time.Time{today, yesterday}
}

// ActiveBlockInstances are the block instances running at the time, give or
// take the slack
func (i *Index) ActiveBlockInstances(at time.Time, slack time.Duration) []*ctdf.BlockInstance {
	var instances []*ctdf.BlockInstance

	for _, serviceDate := range i.ServiceDates(at) {
		for _, blockRef := range i.blockRefs {
			if instance := i.activeInstance(i.blocks[blockRef], serviceDate, at, slack); instance != nil {
				instances = append(instances, instance)
			}
		}
	}

	return instances
}

// BlockInstance finds the running instance of a specific block
func (i *Index) BlockInstance(blockRef string, at time.Time) (*ctdf.BlockInstance, bool) {
	block, exists := i.blocks[blockRef]
	if !exists {
		return nil, false
	}

	for _, serviceDate := range i.ServiceDates(at) {
		if instance := i.activeInstance(block, serviceDate, at, i.ActiveSlack); instance != nil {
			return instance, true
		}
	}

	return nil, false
}

func (i *Index) activeInstance(block *ctdf.Block, serviceDate time.Time, at time.Time, slack time.Duration) *ctdf.BlockInstance {
	if len(block.Trips) == 0 || !i.ServiceActive(block.Trips[0].ServiceRef, serviceDate) {
		return nil
	}

	instance := &ctdf.BlockInstance{Block: block, ServiceDate: serviceDate}

	seconds := instance.ServiceSeconds(at)
	slackSeconds := int(slack.Seconds())

	if seconds < block.FirstStopTime().DepartureTime-slackSeconds || seconds > block.LastStopTime().ArrivalTime+slackSeconds {
		return nil
	}

	return instance
}
