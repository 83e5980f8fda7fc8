// Package config loads the unified configuration file. The file on disk is
// JSON; since YAML is a superset of JSON the yaml decoder reads it directly
// and also tolerates hand-edited YAML variants. Unknown keys are ignored.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// XPSettings configures the engine's XP routing.
type XPSettings struct {
	LearningMode     string  `yaml:"learningMode"`     // "perSchool" or "single"
	GlobalMultiplier float64 `yaml:"globalMultiplier"` // scales every grant
	MultiplierDirect float64 `yaml:"multiplierDirect"` // 0-1
	MultiplierSchool float64 `yaml:"multiplierSchool"` // 0-1
	MultiplierAny    float64 `yaml:"multiplierAny"`    // 0-1
	CapDirect        float64 `yaml:"capDirect"`        // % of required XP
	CapSchool        float64 `yaml:"capSchool"`
	CapAny           float64 `yaml:"capAny"`
	XPNovice         float64 `yaml:"xpNovice"`
	XPApprentice     float64 `yaml:"xpApprentice"`
	XPAdept          float64 `yaml:"xpAdept"`
	XPExpert         float64 `yaml:"xpExpert"`
	XPMaster         float64 `yaml:"xpMaster"`
}

// ModdedSource is the per-source balancing block for an externally
// registered XP source.
type ModdedSource struct {
	Display    string  `yaml:"display"`
	Enabled    bool    `yaml:"enabled"`
	Multiplier float64 `yaml:"multiplier"` // percent, 0-200
	Cap        float64 `yaml:"cap"`        // percent of required XP, 0-100
	Internal   bool    `yaml:"internal"`
}

// PassiveLearning configures the game-time XP source.
type PassiveLearning struct {
	Enabled       bool    `yaml:"enabled"`
	Scope         string  `yaml:"scope"` // "all", "root" or "novice"
	XPPerGameHour float64 `yaml:"xpPerGameHour"`
	MaxNovice     float64 `yaml:"maxNovice"` // per-tier caps, % of required XP
	MaxApprentice float64 `yaml:"maxApprentice"`
	MaxAdept      float64 `yaml:"maxAdept"`
	MaxExpert     float64 `yaml:"maxExpert"`
	MaxMaster     float64 `yaml:"maxMaster"`
}

// EarlyLearning configures the early-grant integration: above
// SelfCastRequiredAt percent progress only self-casts keep granting XP.
type EarlyLearning struct {
	Enabled            bool    `yaml:"enabled"`
	SelfCastRequiredAt float64 `yaml:"selfCastRequiredAt"` // percent
	SelfCastMultiplier float64 `yaml:"selfCastMultiplier"`
}

// DestIntegration configures the external tome-consumption bridge, which
// pushes study XP through the no-grant path.
type DestIntegration struct {
	Enabled bool   `yaml:"enabled"`
	Source  string `yaml:"source"`
}

// Oracle configures the LLM endpoint used by the oracle tree strategy.
type Oracle struct {
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"apiKey"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"maxTokens"`
}

// PythonHelper configures the optional helper process the oracle tree
// strategy can delegate building to. Address overrides the subprocess when
// the helper already runs elsewhere.
type PythonHelper struct {
	Enabled bool   `yaml:"enabled"`
	Python  string `yaml:"python"`  // interpreter path
	Script  string `yaml:"script"`  // helper entry point
	Address string `yaml:"address"` // tcp host:port of a running helper
}

// Config is the unified configuration document.
type Config struct {
	XPSettings      XPSettings              `yaml:"xpSettings"`
	PassiveLearning PassiveLearning         `yaml:"passiveLearning"`
	EarlyLearning   EarlyLearning           `yaml:"earlyLearning"`
	DestIntegration DestIntegration         `yaml:"destIntegration"`
	ModdedSources   map[string]ModdedSource `yaml:"moddedSources"`
	Oracle          Oracle                  `yaml:"oracle"`
	PythonHelper    PythonHelper            `yaml:"pythonHelper"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		XPSettings: XPSettings{
			LearningMode:     "perSchool",
			GlobalMultiplier: 1.0,
			MultiplierDirect: 1.0,
			MultiplierSchool: 0.5,
			MultiplierAny:    0.1,
			CapDirect:        50.0,
			CapSchool:        15.0,
			CapAny:           5.0,
			XPNovice:         100.0,
			XPApprentice:     200.0,
			XPAdept:          400.0,
			XPExpert:         800.0,
			XPMaster:         1500.0,
		},
		PassiveLearning: PassiveLearning{
			Enabled:       true,
			Scope:         "novice",
			XPPerGameHour: 5.0,
			MaxNovice:     100.0,
			MaxApprentice: 50.0,
			MaxAdept:      25.0,
			MaxExpert:     10.0,
			MaxMaster:     5.0,
		},
		EarlyLearning: EarlyLearning{
			Enabled:            false,
			SelfCastRequiredAt: 70.0,
			SelfCastMultiplier: 1.5,
		},
		ModdedSources: map[string]ModdedSource{},
		Oracle: Oracle{
			Endpoint:  "https://openrouter.ai/api/v1/chat/completions",
			Model:     "anthropic/claude-sonnet-4",
			MaxTokens: 64000,
		},
		PythonHelper: PythonHelper{
			Python: "python3",
			Script: "helper/server.py",
		},
	}
}

// Load reads the unified config file, overlaying it onto the defaults.
// A missing file yields the defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config back as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
