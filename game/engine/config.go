package engine

import (
	"fmt"
	"strings"
)

// ValidateRules validates a rule set for correctness
func ValidateRules(rules *Rules) error {
	if rules == nil {
		return fmt.Errorf("rules validation: rules are required")
	}

	if !isFinite(rules.SpawnExtent) || rules.SpawnExtent < MinSpawnExtent || rules.SpawnExtent > MaxSpawnExtent {
		return fmt.Errorf("rules validation: spawn_extent must be between %g and %g, got %g",
			MinSpawnExtent, MaxSpawnExtent, rules.SpawnExtent)
	}

	if rules.MaxHealth < MinHealth || rules.MaxHealth > MaxHealthLimit {
		return fmt.Errorf("rules validation: max_health must be between %d and %d, got %d",
			MinHealth, MaxHealthLimit, rules.MaxHealth)
	}

	if !isFinite(rules.GroundLevel) {
		return fmt.Errorf("rules validation: ground_level must be finite")
	}

	if len(rules.DefaultWeapons) == 0 {
		return fmt.Errorf("rules validation: at least one default weapon is required")
	}
	for i, weapon := range rules.DefaultWeapons {
		if strings.TrimSpace(weapon) == "" {
			return fmt.Errorf("rules validation: default weapon %d is empty", i+1)
		}
	}

	return nil
}
