package particlefilter

import (
	"fmt"
	"math"
	"strings"
)

// SensorModelResult is a named probability with the sub results that built
// it. Probabilities are held in the log domain so long chains of small terms
// don't underflow.
type SensorModelResult struct {
	Name           string
	LogProbability float64

	Results []*SensorModelResult
}

// NewSensorModelResult starts a result at probability 1
func NewSensorModelResult(name string) *SensorModelResult {
	return &SensorModelResult{Name: name}
}

func NewSensorModelResultWithProbability(name string, probability float64) *SensorModelResult {
	return &SensorModelResult{Name: name, LogProbability: toLog(probability)}
}

func NewSensorModelResultWithLogProbability(name string, logProbability float64) *SensorModelResult {
	return &SensorModelResult{Name: name, LogProbability: logProbability}
}

func (r *SensorModelResult) Probability() float64 {
	return math.Exp(r.LogProbability)
}

func (r *SensorModelResult) IsZero() bool {
	return math.IsInf(r.LogProbability, -1)
}

// AddResult attaches a sub result for diagnostics only
func (r *SensorModelResult) AddResult(result *SensorModelResult) *SensorModelResult {
	r.Results = append(r.Results, result)
	return r
}

// AddResultAsAnd attaches the sub result and multiplies it in
func (r *SensorModelResult) AddResultAsAnd(result *SensorModelResult) *SensorModelResult {
	r.Results = append(r.Results, result)
	r.LogProbability += result.LogProbability
	return r
}

func (r *SensorModelResult) AddProbabilityAsAnd(name string, probability float64) *SensorModelResult {
	return r.AddResultAsAnd(NewSensorModelResultWithProbability(name, probability))
}

func (r *SensorModelResult) AddLogProbabilityAsAnd(name string, logProbability float64) *SensorModelResult {
	return r.AddResultAsAnd(NewSensorModelResultWithLogProbability(name, logProbability))
}

// AddResultAsOr combines as the probability of either event, p + q - pq
func (r *SensorModelResult) AddResultAsOr(result *SensorModelResult) *SensorModelResult {
	r.Results = append(r.Results, result)

	p := r.Probability()
	q := result.Probability()
	r.LogProbability = toLog(p + q - p*q)

	return r
}

// Find walks the tree depth first for the named result
func (r *SensorModelResult) Find(name string) *SensorModelResult {
	if r.Name == name {
		return r
	}

	for _, result := range r.Results {
		if found := result.Find(name); found != nil {
			return found
		}
	}

	return nil
}

func (r *SensorModelResult) String() string {
	var builder strings.Builder
	r.write(&builder, 0)
	return builder.String()
}

func (r *SensorModelResult) write(builder *strings.Builder, depth int) {
	fmt.Fprintf(builder, "%s%s: %.6g\n", strings.Repeat("  ", depth), r.Name, r.Probability())

	for _, result := range r.Results {
		result.write(builder, depth+1)
	}
}

func toLog(probability float64) float64 {
	if probability <= 0 || math.IsNaN(probability) {
		return math.Inf(-1)
	}

	return math.Log(probability)
}
