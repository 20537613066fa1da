package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlatformOverride replaces pool defaults for one platform
type PlatformOverride struct {
	Strategy          string `yaml:"strategy"`
	RequestLimit      int    `yaml:"request_limit"`
	MaxActiveAccounts int    `yaml:"max_active_accounts"`
}

type overridesFile struct {
	Platforms map[string]PlatformOverride `yaml:"platforms"`
}

// LoadOverrides reads per-platform pool overrides from a YAML file:
//
//	platforms:
//	  vk:
//	    strategy: least_used
//	    request_limit: 500
func LoadOverrides(path string) (map[string]PlatformOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pool overrides %s: %w", path, err)
	}

	var file overridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pool overrides %s: %w", path, err)
	}

	for platform, o := range file.Platforms {
		switch o.Strategy {
		case "", "round_robin", "least_used", "random":
		default:
			return nil, fmt.Errorf("pool overrides: unknown strategy %q for %s", o.Strategy, platform)
		}
	}

	return file.Platforms, nil
}
