package vehicletracker

import (
	"hash/fnv"

	"github.com/rs/zerolog/log"
	"github.com/travigo/inference/pkg/contextdata"
	"github.com/travigo/inference/pkg/inference"
	"github.com/travigo/inference/pkg/inference/rules"
	"github.com/travigo/inference/pkg/particlefilter"
	"github.com/travigo/inference/pkg/schedule"
)

var (
	_ inference.ContextClassifier   = (*contextdata.Classifier)(nil)
	_ inference.BaseLocationService = (*contextdata.Classifier)(nil)
)

// Engine holds the read only collaborators shared by every vehicle. Only the
// per vehicle instances it creates carry mutable state.
type Engine struct {
	config Config

	Index      *schedule.Index
	Classifier *contextdata.Classifier

	motionModel *inference.MotionModel
	sensorModel *rules.SensorModel
}

func LoadEngine(config Config) (*Engine, error) {
	index, err := schedule.LoadIndex(config.SchedulePath)
	if err != nil {
		return nil, err
	}

	contextConfig, err := contextdata.LoadConfig(config.ContextPath)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(config, index, contextConfig)

	log.Info().
		Int("blocks", len(index.Blocks())).
		Int("bases", len(contextConfig.Bases)).
		Int("particles", config.NumParticles).
		Msg("Loaded inference engine")

	return engine, nil
}

func NewEngine(config Config, index *schedule.Index, contextConfig *contextdata.Config) *Engine {
	classifier := contextdata.NewClassifier(contextConfig, index.TerminalLocations(), func(blockRef string) bool {
		_, exists := index.Block(blockRef)
		return exists
	})

	library := inference.NewVehicleStateLibrary(classifier)
	blockModel := inference.NewScheduleBlockStateTransitionModel(index, index)

	journeyModel := inference.NewJourneyStateTransitionModel(blockModel, library)
	journeyModel.Debug = config.Debug

	motionModel := inference.NewMotionModel(journeyModel)
	if config.MotionThresholdMeters > 0 {
		motionModel.MotionThreshold = config.MotionThresholdMeters
	}

	return &Engine{
		config:      config,
		Index:       index,
		Classifier:  classifier,
		motionModel: motionModel,
		sensorModel: rules.DefaultSensorModel(index, index, library),
	}
}

func (e *Engine) NewInstance(vehicleRef string) *inference.VehicleInferenceInstance {
	return inference.NewVehicleInferenceInstance(
		vehicleRef,
		particlefilter.Config{NumParticles: e.config.NumParticles, Seed: vehicleSeed(e.config.Seed, vehicleRef)},
		e.motionModel,
		e.sensorModel,
		e.Classifier,
	)
}

// vehicleSeed mixes the vehicle ref into a fixed seed so each vehicle draws
// from its own stream. Zero stays zero and seeds from the clock.
func vehicleSeed(seed uint64, vehicleRef string) uint64 {
	if seed == 0 {
		return 0
	}

	hash := fnv.New64a()
	hash.Write([]byte(vehicleRef))

	if mixed := seed ^ hash.Sum64(); mixed != 0 {
		return mixed
	}
	return seed
}
