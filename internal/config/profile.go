package config

import (
	"fmt"
	"os"

	"github.com/spigell/jobradar/internal/scoring"
	"gopkg.in/yaml.v3"
)

// LoadProfile reads a candidate profile from a YAML file. The document may
// hold the profile at the top level or under a "candidate" key.
func LoadProfile(path string) (scoring.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scoring.Profile{}, fmt.Errorf("read profile: %w", err)
	}

	var wrapped struct {
		Candidate *scoring.Profile `yaml:"candidate"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return scoring.Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if wrapped.Candidate != nil {
		return *wrapped.Candidate, nil
	}

	var profile scoring.Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return scoring.Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return profile, nil
}
