package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"

	"github.com/quantonic/setforge/internal/setup"
)

// FilterGuards is the standalone strategy-filter profile file. Operators
// keep several named profiles (e.g. "strict", "loose") and switch the
// active one without touching the main config.
type FilterGuards struct {
	Active   string                   `yaml:"active"`
	Profiles map[string]FilterProfile `yaml:"profiles"`
}

// FilterProfile toggles the veto filters layered on the base signal.
type FilterProfile struct {
	Trend         bool    `yaml:"trend"`
	Volume        bool    `yaml:"volume"`
	ADX           bool    `yaml:"adx"`
	MACD          bool    `yaml:"macd"`
	ADXThreshold  float64 `yaml:"adx_threshold"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// LoadFilterGuards reads a filter-guard file.
func LoadFilterGuards(path string) (*FilterGuards, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read filter guards: %w", err)
	}
	var g FilterGuards
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse filter guards: %w", err)
	}
	if g.Active == "" {
		return nil, fmt.Errorf("filter guards: no active profile set")
	}
	if _, ok := g.Profiles[g.Active]; !ok {
		return nil, fmt.Errorf("filter guards: active profile %q not defined", g.Active)
	}
	return &g, nil
}

// SaveFilterGuards writes the guard file back, preserving all profiles.
func SaveFilterGuards(path string, g *FilterGuards) error {
	data, err := yaml.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal filter guards: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write filter guards: %w", err)
	}
	return nil
}

// ActiveProfile returns the profile named by Active.
func (g *FilterGuards) ActiveProfile() FilterProfile {
	return g.Profiles[g.Active]
}

// Apply copies the active profile onto a detector config.
func (g *FilterGuards) Apply(cfg *setup.Config) {
	p := g.ActiveProfile()
	cfg.Filters.Trend = p.Trend
	cfg.Filters.Volume = p.Volume
	cfg.Filters.ADX = p.ADX
	cfg.Filters.MACD = p.MACD
	if p.ADXThreshold > 0 {
		cfg.Filters.ADXThreshold = p.ADXThreshold
	}
}
