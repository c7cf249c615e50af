package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"

	"github.com/quantonic/setforge/internal/domain"
)

// timeframeWeightsFile is the on-disk shape of the weight table.
type timeframeWeightsFile struct {
	Weights map[string]float64 `yaml:"weights"`
}

// LoadTimeframeWeights reads a timeframe weight override table. Entries
// missing from the file keep the built-in defaults; the monitor multiplies
// raw confidence by these before comparing to its alert threshold.
func LoadTimeframeWeights(path string) (map[domain.Timeframe]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timeframe weights: %w", err)
	}
	var f timeframeWeightsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse timeframe weights: %w", err)
	}
	out := make(map[domain.Timeframe]float64, len(f.Weights))
	for k, w := range f.Weights {
		tf, err := domain.ParseTimeframe(k)
		if err != nil {
			return nil, fmt.Errorf("timeframe weights: %w", err)
		}
		if w <= 0 {
			return nil, fmt.Errorf("timeframe weights: %s must be positive, got %.2f", k, w)
		}
		out[tf] = w
	}
	return out, nil
}
