package particlefilter

// NoParent marks particles created without a parent, on the first
// observation of a vehicle or when the ensemble was recovered
const NoParent = -1

// Particle is a weighted state. Parent indexes into the previous generation.
type Particle[S any] struct {
	State  S
	Parent int

	// Count is how many resampled draws collapsed into this particle
	Count  int
	Weight float64

	Result *SensorModelResult
}

func (p Particle[S]) HasParent() bool {
	return p.Parent != NoParent
}

// Generation is the flat arena of particles for one observation. Generations
// are dropped whole once the next one has been resampled from them.
type Generation[S any] struct {
	Particles []Particle[S]
}

// Size is the number of draws represented, the sum of the particle counts
func (g *Generation[S]) Size() int {
	size := 0
	for _, particle := range g.Particles {
		size += particle.Count
	}
	return size
}

func (g *Generation[S]) Len() int {
	return len(g.Particles)
}

// States expands the generation into one state per draw
func (g *Generation[S]) States() []S {
	states := make([]S, 0, g.Size())
	for _, particle := range g.Particles {
		for i := 0; i < particle.Count; i++ {
			states = append(states, particle.State)
		}
	}
	return states
}

type keyed interface {
	ParticleKey() string
}

type comparer[S any] interface {
	Compare(S) int
}
