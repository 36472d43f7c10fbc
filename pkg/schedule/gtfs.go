package schedule

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

type Agency struct {
	ID       string `csv:"agency_id"`
	Name     string `csv:"agency_name"`
	Timezone string `csv:"agency_timezone"`
}

type Stop struct {
	ID        string  `csv:"stop_id"`
	Code      string  `csv:"stop_code"`
	Name      string  `csv:"stop_name"`
	Latitude  float64 `csv:"stop_lat"`
	Longitude float64 `csv:"stop_lon"`
}

type Route struct {
	ID        string `csv:"route_id"`
	AgencyID  string `csv:"agency_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
	Type      int    `csv:"route_type"`
}

type Trip struct {
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	ID          string `csv:"trip_id"`
	Headsign    string `csv:"trip_headsign"`
	BlockID     string `csv:"block_id"`
	ShapeID     string `csv:"shape_id"`
	DirectionID string `csv:"direction_id"`
}

type StopTime struct {
	TripID        string `csv:"trip_id"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	StopID        string `csv:"stop_id"`
	StopSequence  int    `csv:"stop_sequence"`
}

type Calendar struct {
	ServiceID string `csv:"service_id"`
	Monday    int    `csv:"monday"`
	Tuesday   int    `csv:"tuesday"`
	Wednesday int    `csv:"wednesday"`
	Thursday  int    `csv:"thursday"`
	Friday    int    `csv:"friday"`
	Saturday  int    `csv:"saturday"`
	Sunday    int    `csv:"sunday"`
	Start     string `csv:"start_date"`
	End       string `csv:"end_date"`
}

func (c *Calendar) RunsOn(weekday time.Weekday) bool {
	switch weekday {
	case time.Monday:
		return c.Monday == 1
	case time.Tuesday:
		return c.Tuesday == 1
	case time.Wednesday:
		return c.Wednesday == 1
	case time.Thursday:
		return c.Thursday == 1
	case time.Friday:
		return c.Friday == 1
	case time.Saturday:
		return c.Saturday == 1
	case time.Sunday:
		return c.Sunday == 1
	}

	return false
}

// Covers checks the date (formatted 20060102) is within the calendar range
func (c *Calendar) Covers(date string) bool {
	return date >= c.Start && date <= c.End
}

type CalendarDate struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType int    `csv:"exception_type"`
}

type Shape struct {
	ID             string  `csv:"shape_id"`
	PointLatitude  float64 `csv:"shape_pt_lat"`
	PointLongitude float64 `csv:"shape_pt_lon"`
	PointSequence  int     `csv:"shape_pt_sequence"`
}

// Feed is the subset of a GTFS schedule needed to build blocks
type Feed struct {
	Agencies      []Agency
	Stops         []Stop
	Routes        []Route
	Trips         []Trip
	StopTimes     []StopTime
	Calendars     []Calendar
	CalendarDates []CalendarDate
	Shapes        []Shape
}

func LoadFeed(path string) (*Feed, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	feed := &Feed{}
	if err := feed.ParseFile(file); err != nil {
		return nil, err
	}

	return feed, nil
}

func (feed *Feed) ParseFile(reader io.Reader) error {
	// Allow us to ignore those naughty records that have missing columns
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.FieldsPerRecord = -1
		return r
	})

	fileMap := map[string]interface{}{
		"agency.txt":         &feed.Agencies,
		"stops.txt":          &feed.Stops,
		"routes.txt":         &feed.Routes,
		"trips.txt":          &feed.Trips,
		"stop_times.txt":     &feed.StopTimes,
		"calendar.txt":       &feed.Calendars,
		"calendar_dates.txt": &feed.CalendarDates,
		"shapes.txt":         &feed.Shapes,
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return err
	}

	for _, zipFile := range archive.File {
		destination, exists := fileMap[zipFile.Name]
		if !exists {
			log.Debug().Str("file", zipFile.Name).Msg("Ignoring gtfs file")
			continue
		}

		log.Info().Str("file", zipFile.Name).Msg("Loading file")

		if err := parseZipFile(zipFile, destination); err != nil {
			log.Error().Str("file", zipFile.Name).Err(err).Msg("Failed to parse csv file")
			return err
		}
	}

	return nil
}

func parseZipFile(zipFile *zip.File, destination interface{}) error {
	fileReader, err := zipFile.Open()
	if err != nil {
		return err
	}
	defer fileReader.Close()

	return gocsv.Unmarshal(fileReader, destination)
}

// parseGTFSTime turns a HH:MM:SS stop time into seconds since service date
// midnight. Hours past 24 are kept as they belong to the same service date.
func parseGTFSTime(timestamp string) (int, error) {
	splitTimestamp := strings.Split(strings.TrimSpace(timestamp), ":")

	if len(splitTimestamp) != 3 {
		return 0, fmt.Errorf("invalid gtfs time %q", timestamp)
	}

	seconds := 0
	for _, part := range splitTimestamp {
		value, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid gtfs time %q: %w", timestamp, err)
		}
		seconds = seconds*60 + value
	}

	return seconds, nil
}
