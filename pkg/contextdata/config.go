package contextdata

import (
	"os"

	"github.com/travigo/inference/pkg/ctdf"
	"gopkg.in/yaml.v3"
)

const DefaultTerminalRadius = 150.0

// Config is the static context the classifiers work from
type Config struct {
	Bases []Base `yaml:"bases"`

	TerminalRadiusMeters float64 `yaml:"terminalRadiusMeters"`

	OutOfServiceSigns []string            `yaml:"outOfServiceSigns"`
	DestinationSigns  map[string][]string `yaml:"destinationSigns"`

	// Runs maps a run to the routes it operates
	Runs map[string][]string `yaml:"runs"`

	// Assignments maps a run to the block it has been assigned
	Assignments map[string]string `yaml:"assignments"`
}

// Base is a depot geofence. Polygon points are latitude, longitude pairs.
type Base struct {
	Name    string       `yaml:"name"`
	Polygon [][2]float64 `yaml:"polygon"`
}

func (b Base) Geofence() ctdf.Polygon {
	polygon := make(ctdf.Polygon, 0, len(b.Polygon))
	for _, point := range b.Polygon {
		polygon = append(polygon, ctdf.NewLocation(point[0], point[1]))
	}
	return polygon
}

func LoadConfig(path string) (*Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseConfig(body)
}

func ParseConfig(body []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(body, config); err != nil {
		return nil, err
	}

	if config.TerminalRadiusMeters <= 0 {
		config.TerminalRadiusMeters = DefaultTerminalRadius
	}

	return config, nil
}
