package engine

import "math"

// Ground keeps p at or above the ground level when ground clamping is on.
// Positions are otherwise accepted as reported.
func (e *Engine) Ground(p Vector) Vector {
	if e.rules.GroundClamp && p.Y < e.rules.GroundLevel {
		p.Y = e.rules.GroundLevel
	}
	return p
}

// ClampHealth clamps h to [0, MaxHealth]
func (e *Engine) ClampHealth(h int) int {
	if h < 0 {
		return 0
	}
	if h > e.rules.MaxHealth {
		return e.rules.MaxHealth
	}
	return h
}

// ApplyDamage subtracts damage from health. Damage is rounded to the nearest
// integer and never heals. When the result reaches zero the respawn rule
// applies: the returned health is MaxHealth and respawned is true.
func (e *Engine) ApplyDamage(health int, damage float64) (int, bool) {
	if math.IsNaN(damage) || damage < 0 {
		damage = 0
	}

	amount := math.Round(damage)
	if amount >= float64(math.MaxInt32) {
		return e.rules.MaxHealth, true
	}

	next := e.ClampHealth(health) - int(amount)
	if next <= 0 {
		return e.rules.MaxHealth, true
	}
	return e.ClampHealth(next), false
}
