package planner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/recommend"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/scoring"
)

// Settings is the tunable part of the planner, usually read from a YAML file:
//
//	weights:
//	  weather: 0.15
//	  location: 0.25
//	templates:
//	  - id: groceries
//	    name: Grocery run
//	    keywords: [groceries, supermarket]
//	    subtasks: [Write the list, Bring bags]
type Settings struct {
	Weights   scoring.Weights      `yaml:"weights"`
	Templates []recommend.Template `yaml:"templates"`
}

// DefaultSettings returns the built-in weights and template catalogue
func DefaultSettings() Settings {
	return Settings{
		Weights:   scoring.DefaultWeights(),
		Templates: recommend.DefaultTemplates(),
	}
}

// LoadSettings reads a planner file. An empty path yields the defaults;
// keys missing from the file keep their default values.
func LoadSettings(path string) (Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read planner file: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes planner YAML over the defaults
func ParseSettings(data []byte) (Settings, error) {
	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse planner YAML: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("planner settings validation failed: %w", err)
	}
	return settings, nil
}

// Validate rejects negative weights and incomplete templates
func (s Settings) Validate() error {
	w := s.Weights
	for name, v := range map[string]float64{
		"weather":  w.Weather,
		"energy":   w.Energy,
		"location": w.Location,
		"calendar": w.Calendar,
		"habits":   w.Habits,
		"traffic":  w.Traffic,
		"priority": w.Priority,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative, got %v", name, v)
		}
	}

	seen := make(map[string]bool)
	for i, t := range s.Templates {
		if t.ID == "" {
			return fmt.Errorf("template %d has no id", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate template id %q", t.ID)
		}
		seen[t.ID] = true
		if len(t.Categories) == 0 && len(t.Keywords) == 0 {
			return fmt.Errorf("template %q needs categories or keywords", t.ID)
		}
	}
	return nil
}
