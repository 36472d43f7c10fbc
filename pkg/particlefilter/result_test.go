package particlefilter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorModelResultAnd(t *testing.T) {
	t.Parallel()

	result := NewSensorModelResult("edge")
	result.AddProbabilityAsAnd("gps", 0.5)
	result.AddProbabilityAsAnd("schedule", 0.4)

	assert.InDelta(t, 0.2, result.Probability(), 1e-12)
	require.NotNil(t, result.Find("schedule"))
	assert.InDelta(t, 0.4, result.Find("schedule").Probability(), 1e-12)
	assert.Nil(t, result.Find("distance"))
}

func TestSensorModelResultZero(t *testing.T) {
	t.Parallel()

	result := NewSensorModelResult("edge").AddProbabilityAsAnd("gps", 0)

	assert.True(t, result.IsZero())
	assert.Equal(t, 0.0, result.Probability())
}

func TestSensorModelResultSmallTermsDoNotUnderflow(t *testing.T) {
	t.Parallel()

	result := NewSensorModelResult("chain")
	for i := 0; i < 400; i++ {
		result.AddLogProbabilityAsAnd("term", math.Log(1e-3))
	}

	assert.False(t, result.IsZero())
	assert.InDelta(t, 400*math.Log(1e-3), result.LogProbability, 1e-6)
}

func TestSensorModelResultOr(t *testing.T) {
	t.Parallel()

	result := NewSensorModelResultWithProbability("either", 0.5)
	result.AddResultAsOr(NewSensorModelResultWithProbability("other", 0.5))

	assert.InDelta(t, 0.75, result.Probability(), 1e-12)
}

func TestSensorModelResultAddResultIsDiagnosticOnly(t *testing.T) {
	t.Parallel()

	result := NewSensorModelResultWithProbability("rule", 0.8)
	result.AddResult(NewSensorModelResultWithProbability("note", 0.1))

	assert.InDelta(t, 0.8, result.Probability(), 1e-12)
	assert.Contains(t, result.String(), "note")
}

func TestObservationCache(t *testing.T) {
	t.Parallel()

	cache := NewObservationCache()

	_, ok := CacheValue[float64](cache, "best")
	assert.False(t, ok)

	cache.Put("best", 0.7)
	value, ok := CacheValue[float64](cache, "best")
	assert.True(t, ok)
	assert.Equal(t, 0.7, value)

	_, ok = CacheValue[string](cache, "best")
	assert.False(t, ok)

	calls := 0
	compute := func() (int, error) {
		calls++
		return 3, nil
	}

	first, err := GetOrCompute(cache, "count", compute)
	require.NoError(t, err)
	second, err := GetOrCompute(cache, "count", compute)
	require.NoError(t, err)

	assert.Equal(t, 3, first)
	assert.Equal(t, 3, second)
	assert.Equal(t, 1, calls)
}
