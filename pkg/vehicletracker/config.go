package vehicletracker

import (
	"os"
	"strconv"

	"github.com/travigo/inference/pkg/inference"
	"github.com/travigo/inference/pkg/particlefilter"
)

type Config struct {
	NumParticles int
	NumWorkers   int

	// Debug keeps journey phase summaries on every vehicle state
	Debug bool

	MotionThresholdMeters float64

	// Seed is mixed with each vehicle ref to seed its filter, 0 seeds each filter
	// from the clock
	Seed uint64

	SchedulePath string
	ContextPath  string
}

var defaultConfig = Config{
	NumParticles:          particlefilter.DefaultNumParticles,
	NumWorkers:            16,
	MotionThresholdMeters: inference.DefaultMotionThreshold,
	SchedulePath:          "gtfs.zip",
	ContextPath:           "context.yaml",
}

// GetConfig returns the inference configuration from environment variables
// or defaults
func GetConfig() Config {
	config := defaultConfig

	if val := os.Getenv("TRAVIGO_INFERENCE_PARTICLES"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			config.NumParticles = parsed
		}
	}

	if val := os.Getenv("TRAVIGO_INFERENCE_WORKERS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			config.NumWorkers = parsed
		}
	}

	if val := os.Getenv("TRAVIGO_INFERENCE_DEBUG"); val != "" {
		config.Debug = val == "YES"
	}

	if val := os.Getenv("TRAVIGO_INFERENCE_MOTION_THRESHOLD_METERS"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.MotionThresholdMeters = parsed
		}
	}

	if val := os.Getenv("TRAVIGO_INFERENCE_SEED"); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 64); err == nil {
			config.Seed = parsed
		}
	}

	if val := os.Getenv("TRAVIGO_INFERENCE_SCHEDULE"); val != "" {
		config.SchedulePath = val
	}

	if val := os.Getenv("TRAVIGO_INFERENCE_CONTEXT"); val != "" {
		config.ContextPath = val
	}

	return config
}
