package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/wricardo/shooter-relay/game/engine"
)

// EnvPrefix is prepended to every rules environment variable
const EnvPrefix = "RELAY_"

var (
	ErrRulesFileNotFound = errors.New("rules file not found")
	ErrInvalidRules      = errors.New("invalid rules")
)

// envRules mirrors engine.Rules with environment bindings
type envRules struct {
	SpawnExtent    float64  `env:"SPAWN_EXTENT" envDefault:"50"`
	MaxHealth      int      `env:"MAX_HEALTH" envDefault:"100"`
	DefaultWeapons []string `env:"DEFAULT_WEAPONS" envDefault:"pistol" envSeparator:","`
	GroundLevel    float64  `env:"GROUND_LEVEL" envDefault:"0"`
	GroundClamp    bool     `env:"GROUND_CLAMP" envDefault:"false"`
}

// Load reads rules from the environment and validates them
func Load() (engine.Rules, error) {
	var cfg envRules
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return engine.Rules{}, fmt.Errorf("failed to parse rules from environment: %w", err)
	}

	rules := engine.Rules{
		SpawnExtent:    cfg.SpawnExtent,
		MaxHealth:      cfg.MaxHealth,
		DefaultWeapons: cfg.DefaultWeapons,
		GroundLevel:    cfg.GroundLevel,
		GroundClamp:    cfg.GroundClamp,
	}

	if err := engine.ValidateRules(&rules); err != nil {
		return engine.Rules{}, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	return rules, nil
}

// LoadFile overlays the JSON rules file at path on top of base
func LoadFile(path string, base engine.Rules) (engine.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return engine.Rules{}, fmt.Errorf("%w: %s", ErrRulesFileNotFound, path)
		}
		return engine.Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}

	rules := base
	rules.DefaultWeapons = append([]string(nil), base.DefaultWeapons...)
	if err := json.Unmarshal(data, &rules); err != nil {
		return engine.Rules{}, fmt.Errorf("failed to parse rules file: %w", err)
	}

	if err := engine.ValidateRules(&rules); err != nil {
		return engine.Rules{}, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	return rules, nil
}

// Resolve loads rules from the environment and, when path is not empty,
// overlays the rules file.
func Resolve(path string) (engine.Rules, error) {
	rules, err := Load()
	if err != nil {
		return engine.Rules{}, err
	}

	if path == "" {
		return rules, nil
	}
	return LoadFile(path, rules)
}
