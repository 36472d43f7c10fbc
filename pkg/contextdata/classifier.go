package contextdata

import (
	"math"
	"strconv"
	"strings"

	"github.com/travigo/inference/pkg/ctdf"
	"github.com/travigo/inference/pkg/inference/state"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// BlockValidator reports whether a block exists in the schedule
type BlockValidator func(blockRef string) bool

// Classifier computes the context flags of raw records. It only reads its
// configuration so it can be shared by every vehicle worker.
type Classifier struct {
	config *Config

	bases     []namedGeofence
	terminals []ctdf.Location

	outOfServiceSigns map[string]struct{}
	runRefs           []string

	validBlock BlockValidator
}

type namedGeofence struct {
	name     string
	geofence ctdf.Polygon
}

func NewClassifier(config *Config, terminals []ctdf.Location, validBlock BlockValidator) *Classifier {
	classifier := &Classifier{
		config:            config,
		terminals:         terminals,
		outOfServiceSigns: map[string]struct{}{},
		validBlock:        validBlock,
	}

	for _, base := range config.Bases {
		classifier.bases = append(classifier.bases, namedGeofence{name: base.Name, geofence: base.Geofence()})
	}

	for _, sign := range config.OutOfServiceSigns {
		classifier.outOfServiceSigns[sign] = struct{}{}
	}

	classifier.runRefs = maps.Keys(config.Runs)
	slices.Sort(classifier.runRefs)

	return classifier
}

func (c *Classifier) IsAtBase(location ctdf.Location) bool {
	return c.BaseName(location) != ""
}

// BaseName is the name of the base containing the location, empty if none
func (c *Classifier) BaseName(location ctdf.Location) string {
	for _, base := range c.bases {
		if base.geofence.Contains(location) {
			return base.name
		}
	}
	return ""
}

func (c *Classifier) IsAtTerminal(location ctdf.Location) bool {
	if !location.IsValid() {
		return false
	}

	for _, terminal := range c.terminals {
		if terminal.Distance(location) <= c.config.TerminalRadiusMeters {
			return true
		}
	}
	return false
}

func (c *Classifier) IsOutOfServiceSign(sign string) bool {
	_, exists := c.outOfServiceSigns[sign]
	return exists
}

func (c *Classifier) IsValidSign(sign string) bool {
	if c.IsOutOfServiceSign(sign) {
		return true
	}

	_, exists := c.config.DestinationSigns[sign]
	return exists
}

func (c *Classifier) Classify(record state.RawRecord, previous *state.Observation) state.ObservationContext {
	location := record.Location()
	locationMissing := record.LocationDataIsMissing()

	hasValidDsc := c.IsValidSign(record.DestinationSignCode)

	lastValidSign := record.DestinationSignCode
	if !hasValidDsc && previous != nil {
		lastValidSign = previous.LastValidDestinationSignCode()
	}

	context := state.ObservationContext{
		LastValidDestinationSignCode: lastValidSign,
		AtBase:                       !locationMissing && c.IsAtBase(location),
		AtTerminal:                   !locationMissing && c.IsAtTerminal(location),
		OutOfService:                 c.IsOutOfServiceSign(lastValidSign),
		HasValidDsc:                  hasValidDsc,
		DscImpliedRoutes:             state.NewRouteSet(c.config.DestinationSigns[lastValidSign]...),
		RunResults:                   c.MatchRun(record.ReportedRunRef),
	}

	if blockRef, exists := c.config.Assignments[record.ReportedRunRef]; exists {
		context.AssignedBlockRef = blockRef
		context.HasValidAssignedBlockRef = c.validBlock != nil && c.validBlock(blockRef)
	}

	return context
}

// MatchRun matches a reported run against the known runs. An exact match is
// assigned, otherwise the runs on the same route with the closest number are
// returned as fuzzy matches.
func (c *Classifier) MatchRun(reportedRunRef string) state.RunResults {
	results := state.RunResults{
		BestFuzzyDistance: -1,
		Routes:            state.RouteSet{},
	}

	if reportedRunRef == "" {
		return results
	}

	if routes, exists := c.config.Runs[reportedRunRef]; exists {
		results.AssignedRunRef = reportedRunRef
		results.FuzzyMatches = []string{reportedRunRef}
		results.BestFuzzyDistance = 0
		results.Routes = state.NewRouteSet(routes...)
		return results
	}

	prefix, number, ok := splitRunRef(reportedRunRef)
	if !ok {
		return results
	}

	bestDistance := math.MaxInt
	for _, runRef := range c.runRefs {
		runPrefix, runNumber, ok := splitRunRef(runRef)
		if !ok || runPrefix != prefix {
			continue
		}

		distance := runNumber - number
		if distance < 0 {
			distance = -distance
		}

		switch {
		case distance < bestDistance:
			bestDistance = distance
			results.FuzzyMatches = []string{runRef}
		case distance == bestDistance:
			results.FuzzyMatches = append(results.FuzzyMatches, runRef)
		}
	}

	if len(results.FuzzyMatches) == 0 {
		return results
	}

	results.BestFuzzyDistance = bestDistance
	for _, runRef := range results.FuzzyMatches {
		for _, route := range c.config.Runs[runRef] {
			results.Routes[route] = struct{}{}
		}
	}

	return results
}

// splitRunRef splits a run like B63-101 into its route prefix and number
func splitRunRef(runRef string) (string, int, bool) {
	separator := strings.LastIndex(runRef, "-")
	if separator <= 0 || separator == len(runRef)-1 {
		return "", 0, false
	}

	number, err := strconv.Atoi(runRef[separator+1:])
	if err != nil {
		return "", 0, false
	}

	return runRef[:separator], number, true
}
