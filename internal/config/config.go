// Package config loads the engine's project-level configuration file,
// .rulesight.yaml, falling back to built-in defaults when absent.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ExclusionSet is the configurable set of path segments the parser skips
// outright.
type ExclusionSet struct {
	Segments []string `yaml:"segments"`
}

// DefaultExclusionSet returns the six directories excluded by default.
func DefaultExclusionSet() ExclusionSet {
	return ExclusionSet{Segments: []string{"node_modules", "dist", "build", ".next", ".git", "coverage"}}
}

// Contains reports whether seg is excluded.
func (e ExclusionSet) Contains(seg string) bool {
	for _, s := range e.Segments {
		if s == seg {
			return true
		}
	}
	return false
}

// ConfidenceWeights holds the additive confidence signal weights so a
// deployed build can retune scoring without a rebuild.
type ConfidenceWeights struct {
	InsideEntity      float64 `yaml:"insideEntity"`
	MutatesState      float64 `yaml:"mutatesState"`
	ExplicitThrow     float64 `yaml:"explicitThrow"`
	PublicMethod      float64 `yaml:"publicMethod"`
	UsesEnum          float64 `yaml:"usesEnum"`
	NonControllerPath float64 `yaml:"nonControllerPath"`
	StrongPattern     float64 `yaml:"strongPattern"`
}

func defaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		InsideEntity:      0.25,
		MutatesState:      0.25,
		ExplicitThrow:     0.15,
		PublicMethod:      0.10,
		UsesEnum:          0.10,
		NonControllerPath: 0.10,
		StrongPattern:     0.05,
	}
}

// ImpactWeights holds the per-component weighting used to combine a risk score.
type ImpactWeights struct {
	FanOut       float64 `yaml:"fanOut"`
	CallDepth    float64 `yaml:"callDepth"`
	Mutation     float64 `yaml:"mutation"`
	Layer        float64 `yaml:"layer"`
	Criticality  float64 `yaml:"criticality"`
}

func defaultImpactWeights() ImpactWeights {
	return ImpactWeights{FanOut: 0.25, CallDepth: 0.15, Mutation: 0.20, Layer: 0.20, Criticality: 0.20}
}

// Config is the full set of knobs a project can override via .rulesight.yaml.
type Config struct {
	ExcludeDirs       []string          `yaml:"excludeDirs"`
	SourceGlob        string            `yaml:"sourceGlob"`
	BuildConfig       string            `yaml:"buildConfig"`
	TechnicalSuffixes []string          `yaml:"technicalSuffixes"`
	Confidence        ConfidenceWeights `yaml:"confidenceWeights"`
	Impact            ImpactWeights     `yaml:"impactWeights"`
}

// DefaultConfig returns the engine's built-in defaults, used when no
// .rulesight.yaml is present at the project root.
func DefaultConfig() Config {
	return Config{
		ExcludeDirs:       DefaultExclusionSet().Segments,
		SourceGlob:        "**/*.ts",
		BuildConfig:       "tsconfig.json",
		TechnicalSuffixes: []string{"Controller", "Service", "Repository", "Adapter", "Gateway"},
		Confidence:        defaultConfidenceWeights(),
		Impact:            defaultImpactWeights(),
	}
}

// Exclusions builds an ExclusionSet from the configured directory list.
func (c Config) Exclusions() ExclusionSet {
	return ExclusionSet{Segments: c.ExcludeDirs}
}

// Load reads the YAML config file at path, falling back to DefaultConfig
// when the file does not exist.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
