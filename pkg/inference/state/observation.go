package state

import (
	"cmp"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/travigo/inference/pkg/ctdf"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// RawRecord is a single location report as received from a vehicle
type RawRecord struct {
	VehicleRef string
	Timestamp  time.Time

	Latitude  float64
	Longitude float64

	ReportedRunRef      string
	OperatorRef         string
	DestinationSignCode string
}

func (r RawRecord) LocationDataIsMissing() bool {
	return math.IsNaN(r.Latitude) || math.IsNaN(r.Longitude) || (r.Latitude == 0 && r.Longitude == 0)
}

func (r RawRecord) Location() ctdf.Location {
	return ctdf.NewLocation(r.Latitude, r.Longitude)
}

func compareRawRecords(a RawRecord, b RawRecord) int {
	return cmp.Or(
		strings.Compare(a.VehicleRef, b.VehicleRef),
		a.Timestamp.Compare(b.Timestamp),
		cmp.Compare(a.Latitude, b.Latitude),
		cmp.Compare(a.Longitude, b.Longitude),
		strings.Compare(a.ReportedRunRef, b.ReportedRunRef),
		strings.Compare(a.OperatorRef, b.OperatorRef),
		strings.Compare(a.DestinationSignCode, b.DestinationSignCode),
	)
}

// ProjectedPoint is a location along with its planar (web mercator) projection
type ProjectedPoint struct {
	X float64
	Y float64

	Location ctdf.Location
}

func NewProjectedPoint(location ctdf.Location) ProjectedPoint {
	projected := project.Point(location.Point(), project.WGS84.ToMercator)

	return ProjectedPoint{
		X:        projected.X(),
		Y:        projected.Y(),
		Location: location,
	}
}

func (p ProjectedPoint) Planar() orb.Point {
	return orb.Point{p.X, p.Y}
}

// RouteSet is a set of route refs
type RouteSet map[string]struct{}

func NewRouteSet(routes ...string) RouteSet {
	set := RouteSet{}
	for _, route := range routes {
		if route != "" {
			set[route] = struct{}{}
		}
	}
	return set
}

func (s RouteSet) Contains(route string) bool {
	_, exists := s[route]
	return exists
}

func (s RouteSet) Sorted() []string {
	routes := maps.Keys(s)
	slices.Sort(routes)
	return routes
}

func (s RouteSet) Union(other RouteSet) RouteSet {
	union := RouteSet{}
	for route := range s {
		union[route] = struct{}{}
	}
	for route := range other {
		union[route] = struct{}{}
	}
	return union
}

// RunResults is the outcome of matching the reported run against the schedule
type RunResults struct {
	AssignedRunRef string
	FuzzyMatches   []string

	// BestFuzzyDistance is -1 when nothing matched
	BestFuzzyDistance int

	Routes RouteSet
}

func compareRunResults(a RunResults, b RunResults) int {
	return cmp.Or(
		strings.Compare(a.AssignedRunRef, b.AssignedRunRef),
		cmp.Compare(a.BestFuzzyDistance, b.BestFuzzyDistance),
		slices.Compare(a.FuzzyMatches, b.FuzzyMatches),
		slices.Compare(a.Routes.Sorted(), b.Routes.Sorted()),
	)
}

// ObservationContext holds the flags computed by the context classifiers
// for a record before the observation is built
type ObservationContext struct {
	LastValidDestinationSignCode string

	AtBase       bool
	AtTerminal   bool
	OutOfService bool
	HasValidDsc  bool

	DscImpliedRoutes RouteSet
	RunResults       RunResults

	AssignedBlockRef         string
	HasValidAssignedBlockRef bool
}

// Observation is an immutable snapshot of one report together with the
// kinematics derived from the previous observation
type Observation struct {
	timestamp time.Time
	record    RawRecord
	point     ProjectedPoint
	context   ObservationContext

	impliedRoutes RouteSet

	previous *Observation

	timeDelta     float64
	hasTimeDelta  bool
	distanceMoved float64
	orientation   float64
}

func NewObservation(record RawRecord, context ObservationContext, previous *Observation) *Observation {
	if context.DscImpliedRoutes == nil {
		context.DscImpliedRoutes = RouteSet{}
	}
	if context.RunResults.Routes == nil {
		context.RunResults.Routes = RouteSet{}
	}

	o := &Observation{
		timestamp:     record.Timestamp,
		record:        record,
		point:         NewProjectedPoint(record.Location()),
		context:       context,
		impliedRoutes: context.DscImpliedRoutes.Union(context.RunResults.Routes),
		previous:      previous,
		orientation:   math.NaN(),
	}

	if previous != nil {
		o.timeDelta = record.Timestamp.Sub(previous.timestamp).Seconds()
		o.hasTimeDelta = true

		if !record.LocationDataIsMissing() && !previous.record.LocationDataIsMissing() {
			o.distanceMoved = previous.Location().Distance(o.Location())
		}

		if o.distanceMoved == 0 || math.IsNaN(o.distanceMoved) {
			// Bearings are meaningless without displacement so hold the last one
			o.orientation = previous.orientation
		} else {
			o.orientation = previous.Location().Bearing(o.Location())
		}
	}

	return o
}

func (o *Observation) Time() time.Time {
	return o.timestamp
}

func (o *Observation) Record() RawRecord {
	return o.record
}

func (o *Observation) Point() ProjectedPoint {
	return o.point
}

func (o *Observation) Location() ctdf.Location {
	return o.point.Location
}

func (o *Observation) Previous() *Observation {
	return o.previous
}

// ClearPrevious severs the link to the previous observation. Derived values
// computed at construction are unaffected.
func (o *Observation) ClearPrevious() {
	o.previous = nil
}

func (o *Observation) LastValidDestinationSignCode() string {
	return o.context.LastValidDestinationSignCode
}

func (o *Observation) IsAtBase() bool {
	return o.context.AtBase
}

func (o *Observation) IsAtTerminal() bool {
	return o.context.AtTerminal
}

func (o *Observation) IsOutOfService() bool {
	return o.context.OutOfService
}

func (o *Observation) HasValidDsc() bool {
	return o.context.HasValidDsc
}

func (o *Observation) DscImpliedRoutes() RouteSet {
	return o.context.DscImpliedRoutes
}

// ImpliedRoutes is the union of the DSC and run implied routes
func (o *Observation) ImpliedRoutes() RouteSet {
	return o.impliedRoutes
}

func (o *Observation) RunResults() RunResults {
	return o.context.RunResults
}

func (o *Observation) AssignedBlockRef() string {
	return o.context.AssignedBlockRef
}

func (o *Observation) HasValidAssignedBlockRef() bool {
	return o.context.HasValidAssignedBlockRef
}

// TimeDelta is the seconds since the previous observation, false on the
// first observation of a vehicle
func (o *Observation) TimeDelta() (float64, bool) {
	return o.timeDelta, o.hasTimeDelta
}

func (o *Observation) DistanceMoved() float64 {
	return o.distanceMoved
}

func (o *Observation) Orientation() float64 {
	return o.orientation
}

// OperatorChanged is true when the previous observation reported a different
// operator, which is how reliefs show up in the data
func (o *Observation) OperatorChanged() bool {
	if o.previous == nil {
		return false
	}

	previousOperator := o.previous.record.OperatorRef
	return previousOperator != "" && o.record.OperatorRef != "" && previousOperator != o.record.OperatorRef
}

// Compare defines a total order over observations so ensembles can be sorted
// and deduplicated deterministically
func (o *Observation) Compare(other *Observation) int {
	if o == other {
		return 0
	}
	if o == nil {
		return 1
	}
	if other == nil {
		return -1
	}

	return cmp.Or(
		o.timestamp.Compare(other.timestamp),
		cmp.Compare(o.point.X, other.point.X),
		cmp.Compare(o.point.Y, other.point.Y),
		strings.Compare(o.context.LastValidDestinationSignCode, other.context.LastValidDestinationSignCode),
		compareRawRecords(o.record, other.record),
		compareFalseFirst(o.context.OutOfService, other.context.OutOfService),
		compareFalseFirst(o.context.AtTerminal, other.context.AtTerminal),
		compareFalseFirst(o.context.AtBase, other.context.AtBase),
		compareRunResults(o.context.RunResults, other.context.RunResults),
		strings.Compare(o.context.AssignedBlockRef, other.context.AssignedBlockRef),
		compareFalseFirst(o.context.HasValidAssignedBlockRef, other.context.HasValidAssignedBlockRef),
	)
}

func compareFalseFirst(a bool, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
