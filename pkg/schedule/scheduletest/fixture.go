// Package scheduletest builds a small schedule for tests: one block of two
// trips on route B63, out along one street and back along a parallel one.
package scheduletest

import (
	"time"

	"github.com/travigo/inference/pkg/ctdf"
	"github.com/travigo/inference/pkg/schedule"
)

const (
	BlockRef   = "BLK-1"
	RouteRef   = "B63"
	OutTripRef = "T1"
	InTripRef  = "T2"
	ServiceRef = "WKD"
)

var (
	StopA = ctdf.NewLocation(40.6000, -73.9500)
	StopB = ctdf.NewLocation(40.6072, -73.9500)
	StopC = ctdf.NewLocation(40.6144, -73.9500)

	StopC2 = ctdf.NewLocation(40.6144, -73.9450)
	StopB2 = ctdf.NewLocation(40.6072, -73.9450)
	StopA2 = ctdf.NewLocation(40.6000, -73.9450)
)

// ServiceDate is a Monday the WKD service runs on
var ServiceDate = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

// At is a time of day on the service date
func At(hour int, minute int, second int) time.Time {
	return ServiceDate.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second)
}

func NewFeed() *schedule.Feed {
	stop := func(id string, location ctdf.Location) schedule.Stop {
		return schedule.Stop{ID: id, Name: id, Latitude: location.Latitude(), Longitude: location.Longitude()}
	}

	stopTime := func(tripID string, stopID string, sequence int, timestamp string) schedule.StopTime {
		return schedule.StopTime{TripID: tripID, StopID: stopID, StopSequence: sequence, ArrivalTime: timestamp, DepartureTime: timestamp}
	}

	return &schedule.Feed{
		Agencies: []schedule.Agency{{ID: "MTA", Name: "MTA New York City Transit", Timezone: "UTC"}},
		Stops: []schedule.Stop{
			stop("A", StopA), stop("B", StopB), stop("C", StopC),
			stop("C2", StopC2), stop("B2", StopB2), stop("A2", StopA2),
		},
		Routes: []schedule.Route{{ID: RouteRef, AgencyID: "MTA", ShortName: RouteRef, Type: 3}},
		Trips: []schedule.Trip{
			{ID: InTripRef, RouteID: RouteRef, ServiceID: ServiceRef, BlockID: BlockRef, DirectionID: "1"},
			{ID: OutTripRef, RouteID: RouteRef, ServiceID: ServiceRef, BlockID: BlockRef, DirectionID: "0"},
		},
		StopTimes: []schedule.StopTime{
			stopTime(OutTripRef, "A", 1, "08:00:00"),
			stopTime(OutTripRef, "B", 2, "08:02:00"),
			stopTime(OutTripRef, "C", 3, "08:04:00"),
			stopTime(InTripRef, "C2", 1, "08:10:00"),
			stopTime(InTripRef, "B2", 2, "08:12:00"),
			stopTime(InTripRef, "A2", 3, "08:14:00"),
		},
		Calendars: []schedule.Calendar{{
			ServiceID: ServiceRef,
			Monday:    1, Tuesday: 1, Wednesday: 1, Thursday: 1, Friday: 1,
			Start: "20240101",
			End:   "20241231",
		}},
		CalendarDates: []schedule.CalendarDate{
			{ServiceID: ServiceRef, Date: "20240311", ExceptionType: 2},
		},
	}
}

func NewIndex() *schedule.Index {
	index, err := schedule.NewIndex(NewFeed())
	if err != nil {
		panic(err)
	}
	return index
}

// BaseGeofence is a depot polygon around stop A, latitude longitude pairs
func BaseGeofence() [][2]float64 {
	return [][2]float64{
		{40.5990, -73.9512},
		{40.5990, -73.9488},
		{40.6010, -73.9488},
		{40.6010, -73.9512},
	}
}
