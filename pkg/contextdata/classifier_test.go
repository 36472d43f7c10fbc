package contextdata

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/inference/pkg/ctdf"
	"github.com/travigo/inference/pkg/inference/state"
)

const testConfig = `
bases:
  - name: Flatbush
    polygon:
      - [40.5990, -73.9512]
      - [40.5990, -73.9488]
      - [40.6010, -73.9488]
      - [40.6010, -73.9512]
outOfServiceSigns: ["0000"]
destinationSigns:
  "4630": ["B63"]
  "4631": ["B63", "B61"]
runs:
  B63-101: ["B63"]
  B63-105: ["B63"]
  B63-109: ["B63"]
  B61-102: ["B61"]
assignments:
  B63-101: BLK-1
  B63-105: BLK-GONE
`

func newTestClassifier(t *testing.T) *Classifier {
	config, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	terminals := []ctdf.Location{ctdf.NewLocation(40.6144, -73.9500)}

	return NewClassifier(config, terminals, func(blockRef string) bool {
		return blockRef == "BLK-1"
	})
}

func TestParseConfig(t *testing.T) {
	assert := assert.New(t)

	config, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	assert.Len(config.Bases, 1)
	assert.Equal("Flatbush", config.Bases[0].Name)
	assert.Len(config.Bases[0].Geofence(), 4)
	assert.Equal(DefaultTerminalRadius, config.TerminalRadiusMeters)
	assert.Equal([]string{"B63", "B61"}, config.DestinationSigns["4631"])
	assert.Equal("BLK-1", config.Assignments["B63-101"])

	_, err = ParseConfig([]byte("bases: [unclosed"))
	assert.Error(err)
}

func TestClassifierGeofences(t *testing.T) {
	assert := assert.New(t)
	classifier := newTestClassifier(t)

	assert.True(classifier.IsAtBase(ctdf.NewLocation(40.6000, -73.9500)))
	assert.Equal("Flatbush", classifier.BaseName(ctdf.NewLocation(40.6000, -73.9500)))
	assert.False(classifier.IsAtBase(ctdf.NewLocation(40.6036, -73.9500)))
	assert.Equal("", classifier.BaseName(ctdf.NewLocation(40.6036, -73.9500)))

	assert.True(classifier.IsAtTerminal(ctdf.NewLocation(40.6145, -73.9500)))
	assert.False(classifier.IsAtTerminal(ctdf.NewLocation(40.6100, -73.9500)))
	assert.False(classifier.IsAtTerminal(ctdf.NewLocation(math.NaN(), math.NaN())))
}

func TestClassifierSigns(t *testing.T) {
	assert := assert.New(t)
	classifier := newTestClassifier(t)

	assert.True(classifier.IsOutOfServiceSign("0000"))
	assert.True(classifier.IsValidSign("0000"))
	assert.True(classifier.IsValidSign("4630"))
	assert.False(classifier.IsOutOfServiceSign("4630"))
	assert.False(classifier.IsValidSign("9999"))
}

func TestClassify(t *testing.T) {
	classifier := newTestClassifier(t)
	start := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

	t.Run("OutOfServiceAtBase", func(t *testing.T) {
		assert := assert.New(t)

		context := classifier.Classify(state.RawRecord{
			VehicleRef:          "4512",
			Timestamp:           start,
			Latitude:            40.6000,
			Longitude:           -73.9500,
			DestinationSignCode: "0000",
		}, nil)

		assert.True(context.AtBase)
		assert.False(context.AtTerminal)
		assert.True(context.OutOfService)
		assert.True(context.HasValidDsc)
		assert.Equal("0000", context.LastValidDestinationSignCode)
		assert.Empty(context.DscImpliedRoutes)
		assert.Equal(-1, context.RunResults.BestFuzzyDistance)
	})

	t.Run("InvalidSignFallsBackToPrevious", func(t *testing.T) {
		assert := assert.New(t)

		first := state.RawRecord{VehicleRef: "4512", Timestamp: start, Latitude: 40.6036, Longitude: -73.9500, DestinationSignCode: "4630"}
		previous := state.NewObservation(first, classifier.Classify(first, nil), nil)

		second := state.RawRecord{VehicleRef: "4512", Timestamp: start.Add(30 * time.Second), Latitude: 40.6040, Longitude: -73.9500, DestinationSignCode: "9999"}
		context := classifier.Classify(second, previous)

		assert.False(context.HasValidDsc)
		assert.False(context.OutOfService)
		assert.Equal("4630", context.LastValidDestinationSignCode)
		assert.True(context.DscImpliedRoutes.Contains("B63"))
	})

	t.Run("MissingLocation", func(t *testing.T) {
		assert := assert.New(t)

		context := classifier.Classify(state.RawRecord{
			VehicleRef:          "4512",
			Timestamp:           start,
			Latitude:            math.NaN(),
			Longitude:           math.NaN(),
			DestinationSignCode: "4631",
		}, nil)

		assert.False(context.AtBase)
		assert.False(context.AtTerminal)
		assert.Equal([]string{"B61", "B63"}, context.DscImpliedRoutes.Sorted())
	})

	t.Run("AssignedBlock", func(t *testing.T) {
		assert := assert.New(t)

		context := classifier.Classify(state.RawRecord{VehicleRef: "4512", Timestamp: start, ReportedRunRef: "B63-101"}, nil)
		assert.Equal("BLK-1", context.AssignedBlockRef)
		assert.True(context.HasValidAssignedBlockRef)
		assert.Equal("B63-101", context.RunResults.AssignedRunRef)

		context = classifier.Classify(state.RawRecord{VehicleRef: "4512", Timestamp: start, ReportedRunRef: "B63-105"}, nil)
		assert.Equal("BLK-GONE", context.AssignedBlockRef)
		assert.False(context.HasValidAssignedBlockRef)
	})
}

func TestMatchRun(t *testing.T) {
	classifier := newTestClassifier(t)

	tests := []struct {
		name             string
		reported         string
		expectedAssigned string
		expectedMatches  []string
		expectedDistance int
		expectedRoutes   []string
	}{
		{
			name:             "Exact",
			reported:         "B63-105",
			expectedAssigned: "B63-105",
			expectedMatches:  []string{"B63-105"},
			expectedDistance: 0,
			expectedRoutes:   []string{"B63"},
		},
		{
			name:             "Closest",
			reported:         "B63-104",
			expectedMatches:  []string{"B63-105"},
			expectedDistance: 1,
			expectedRoutes:   []string{"B63"},
		},
		{
			name:             "Tied",
			reported:         "B63-107",
			expectedMatches:  []string{"B63-105", "B63-109"},
			expectedDistance: 2,
			expectedRoutes:   []string{"B63"},
		},
		{
			name:             "OtherRoute",
			reported:         "B61-110",
			expectedMatches:  []string{"B61-102"},
			expectedDistance: 8,
			expectedRoutes:   []string{"B61"},
		},
		{
			name:             "UnknownRoute",
			reported:         "Q58-101",
			expectedDistance: -1,
		},
		{
			name:             "Malformed",
			reported:         "B63",
			expectedDistance: -1,
		},
		{
			name:             "Empty",
			reported:         "",
			expectedDistance: -1,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)

			results := classifier.MatchRun(test.reported)

			assert.Equal(test.expectedAssigned, results.AssignedRunRef)
			assert.Equal(test.expectedMatches, results.FuzzyMatches)
			assert.Equal(test.expectedDistance, results.BestFuzzyDistance)
			if test.expectedRoutes == nil {
				assert.Empty(results.Routes)
			} else {
				assert.Equal(test.expectedRoutes, results.Routes.Sorted())
			}
		})
	}
}
