// Package engine provides the gameplay rules for the shooter relay.
//
// The engine package implements the small amount of game logic the relay
// owns:
//   - Spawn position randomization inside a square spawn area
//   - Damage application and the respawn rule
//   - Health clamping
//   - Optional ground clamping of reported positions
//
// Core Types:
//
// Rules holds the tunable constants (spawn extent, max health, default
// weapons, ground level). Engine applies them and owns a goroutine-safe
// random source. Vector and Rotation are the wire-level geometry types shared
// by the session registry and the protocol.
//
// Usage:
//
//	eng, err := engine.NewEngine(engine.DefaultRules())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	spawn := eng.SpawnPosition()
//	health, respawned := eng.ApplyDamage(40, 60)
//
// Respawn Rule:
//
// A player whose health drops to zero or below is not removed. Their health
// is reset to MaxHealth and they are moved to a fresh spawn position.
package engine
