package engine

import "math"

const (
	DefaultSpawnExtent = 50.0
	DefaultMaxHealth   = 100
	DefaultWeapon      = "pistol"

	// Validation constants
	MinSpawnExtent = 1.0
	MaxSpawnExtent = 10000.0
	MinHealth      = 1
	MaxHealthLimit = 10000
)

// Vector represents a point or direction in world space
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// IsFinite reports whether every component is a real number
func (v Vector) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// Rotation is the yaw about the vertical axis
type Rotation struct {
	Y float64 `json:"y"`
}

// IsFinite reports whether the yaw is a real number
func (r Rotation) IsFinite() bool {
	return isFinite(r.Y)
}

// Rules represents the gameplay constants the relay enforces
type Rules struct {
	SpawnExtent    float64  `json:"spawn_extent"`
	MaxHealth      int      `json:"max_health"`
	DefaultWeapons []string `json:"default_weapons"`
	GroundLevel    float64  `json:"ground_level"`
	GroundClamp    bool     `json:"ground_clamp"`
}

// DefaultRules returns the rules used by the original demo servers
func DefaultRules() Rules {
	return Rules{
		SpawnExtent:    DefaultSpawnExtent,
		MaxHealth:      DefaultMaxHealth,
		DefaultWeapons: []string{DefaultWeapon},
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
