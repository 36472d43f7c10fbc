package particlefilter

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat/distuv"
)

var ErrEmptyProposal = errors.New("motion model proposed no states")

const DefaultNumParticles = 200

// MotionModel proposes the states a particle may move to for an observation
type MotionModel[S any, O any] interface {
	InitialStates(observation O) ([]S, error)
	Move(parent S, observation O) ([]S, error)
}

// SensorModel scores how well a proposed state explains the observation
type SensorModel[S any, O any] interface {
	Likelihood(context Context[S, O]) (*SensorModelResult, error)
}

// Prioritizer can be implemented by a SensorModel to control the order in
// which proposals are weighted. Lower priorities go first.
type Prioritizer[S any] interface {
	Priority(state S) int
}

// Context is everything a sensor model sees for one proposal
type Context[S any, O any] struct {
	State     S
	Parent    S
	HasParent bool

	Observation O
	Cache       *ObservationCache
}

type Config struct {
	NumParticles int

	// Seed for the resampling source, 0 seeds from the clock
	Seed uint64

	// Label is attached to log lines, normally the vehicle ref
	Label string
}

// UpdateResult is the outcome of running one observation through the filter
type UpdateResult[S any] struct {
	// Weighted holds every proposal that survived weighting
	Weighted []Particle[S]
	Best     Particle[S]

	TotalWeight float64
	Confidence  float64

	// Recovered is set when every proposal had zero weight and the filter
	// restarted from a uniform set
	Recovered bool

	Generation *Generation[S]
}

// Filter runs propose, weight and resample for a single vehicle. It is not
// safe for concurrent use, each vehicle owns its own filter.
type Filter[S any, O any] struct {
	config Config

	motionModel MotionModel[S, O]
	sensorModel SensorModel[S, O]

	source rand.Source

	current  *Generation[S]
	previous *Generation[S]
}

func NewFilter[S any, O any](config Config, motionModel MotionModel[S, O], sensorModel SensorModel[S, O]) *Filter[S, O] {
	if config.NumParticles <= 0 {
		config.NumParticles = DefaultNumParticles
	}

	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Filter[S, O]{
		config:      config,
		motionModel: motionModel,
		sensorModel: sensorModel,
		source:      rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
}

// Current is the latest resampled generation, nil before the first update
func (f *Filter[S, O]) Current() *Generation[S] {
	return f.current
}

// ParentOf looks up the parent state of a particle in the current generation
func (f *Filter[S, O]) ParentOf(particle Particle[S]) (S, bool) {
	var zero S

	if !particle.HasParent() || f.previous == nil || particle.Parent >= len(f.previous.Particles) {
		return zero, false
	}

	return f.previous.Particles[particle.Parent].State, true
}

func (f *Filter[S, O]) Reset() {
	f.current = nil
	f.previous = nil
}

func (f *Filter[S, O]) Update(observation O) (*UpdateResult[S], error) {
	proposals, err := f.propose(observation)
	if err != nil {
		return nil, err
	}

	cache := NewObservationCache()

	weighted, totalWeight, err := f.weight(proposals, observation, cache)
	if err != nil {
		return nil, err
	}

	recovered := false
	if totalWeight <= 0 || len(weighted) == 0 {
		log.Warn().
			Str("filter", f.config.Label).
			Int("proposals", len(proposals)).
			Msg("All particles have zero weight, restarting from a uniform set")

		weighted, err = f.recover(observation)
		if err != nil {
			return nil, err
		}
		totalWeight = float64(len(weighted))
		recovered = true
	}

	best := f.best(weighted)
	next := f.resample(weighted)

	f.previous = f.current
	f.current = next

	return &UpdateResult[S]{
		Weighted:    weighted,
		Best:        best,
		TotalWeight: totalWeight,
		Confidence:  best.Weight / totalWeight,
		Recovered:   recovered,
		Generation:  next,
	}, nil
}

func (f *Filter[S, O]) propose(observation O) ([]Particle[S], error) {
	if f.current == nil || len(f.current.Particles) == 0 {
		states, err := f.motionModel.InitialStates(observation)
		if err != nil {
			return nil, err
		}

		proposals := make([]Particle[S], 0, len(states))
		for _, state := range states {
			proposals = append(proposals, Particle[S]{State: state, Parent: NoParent, Count: 1})
		}
		return proposals, nil
	}

	var proposals []Particle[S]
	for index, parent := range f.current.Particles {
		children, err := f.motionModel.Move(parent.State, observation)
		if err != nil {
			return nil, err
		}

		for _, child := range children {
			proposals = append(proposals, Particle[S]{State: child, Parent: index, Count: parent.Count})
		}
	}

	return proposals, nil
}

func (f *Filter[S, O]) weight(proposals []Particle[S], observation O, cache *ObservationCache) ([]Particle[S], float64, error) {
	order := make([]int, len(proposals))
	for i := range order {
		order[i] = i
	}

	if prioritizer, ok := f.sensorModel.(Prioritizer[S]); ok {
		slices.SortStableFunc(order, func(a int, b int) int {
			return prioritizer.Priority(proposals[a].State) - prioritizer.Priority(proposals[b].State)
		})
	}

	for _, index := range order {
		proposal := &proposals[index]

		context := Context[S, O]{
			State:       proposal.State,
			Observation: observation,
			Cache:       cache,
		}
		if proposal.HasParent() {
			context.Parent = f.current.Particles[proposal.Parent].State
			context.HasParent = true
		}

		result, err := f.sensorModel.Likelihood(context)
		if err != nil {
			return nil, 0, err
		}

		proposal.Result = result
		proposal.Weight = float64(proposal.Count) * result.Probability()
	}

	weighted := make([]Particle[S], 0, len(proposals))
	totalWeight := 0.0
	for _, proposal := range proposals {
		if proposal.Weight > 0 {
			weighted = append(weighted, proposal)
			totalWeight += proposal.Weight
		}
	}

	return weighted, totalWeight, nil
}

func (f *Filter[S, O]) recover(observation O) ([]Particle[S], error) {
	states, err := f.motionModel.InitialStates(observation)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: recovering %s", ErrEmptyProposal, f.config.Label)
	}

	recovered := make([]Particle[S], 0, len(states))
	for _, state := range states {
		recovered = append(recovered, Particle[S]{
			State:  state,
			Parent: NoParent,
			Count:  1,
			Weight: 1,
			Result: NewSensorModelResult("recovery"),
		})
	}

	return recovered, nil
}

func (f *Filter[S, O]) best(weighted []Particle[S]) Particle[S] {
	best := weighted[0]

	for _, particle := range weighted[1:] {
		if particle.Weight > best.Weight {
			best = particle
			continue
		}

		if particle.Weight == best.Weight {
			if ordered, ok := any(particle.State).(comparer[S]); ok && ordered.Compare(best.State) < 0 {
				best = particle
			}
		}
	}

	return best
}

// resample draws NumParticles with replacement proportional to weight and
// collapses identical draws into counted particles
func (f *Filter[S, O]) resample(weighted []Particle[S]) *Generation[S] {
	weights := make([]float64, len(weighted))
	for i, particle := range weighted {
		weights[i] = particle.Weight
	}

	categorical := distuv.NewCategorical(weights, f.source)

	draws := make([]int, len(weighted))
	for i := 0; i < f.config.NumParticles; i++ {
		draws[int(categorical.Rand())]++
	}

	generation := &Generation[S]{}
	positions := map[string]int{}

	for index, count := range draws {
		if count == 0 {
			continue
		}

		particle := weighted[index]

		key := fmt.Sprintf("#%d", index)
		if state, ok := any(particle.State).(keyed); ok {
			key = state.ParticleKey()
		}

		if position, exists := positions[key]; exists {
			generation.Particles[position].Count += count
			continue
		}

		particle.Count = count
		positions[key] = len(generation.Particles)
		generation.Particles = append(generation.Particles, particle)
	}

	return generation
}
