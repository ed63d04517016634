// Package session provides the player session registry for the shooter relay.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Partial updates with health clamping and the respawn rule
//   - Atomic damage and power-up mutations
//   - Cleanup of stale polling sessions
//
// Core Types:
//
// Manager is the registry that owns every Session record. Session is the
// transient state of one connected player: position, rotation, health,
// weapons and collected power-ups. Patch describes a partial update.
//
// Session Identifiers:
//
// Sessions use random UUIDs. IDs are assigned when a connection is accepted
// and are never reused for the lifetime of the process.
//
// Copy Semantics:
//
// The Manager never hands out pointers to its records. Get, List and every
// mutation return copies, so callers may modify what they receive without
// affecting registry state.
//
// Concurrency:
//
// A single RWMutex guards the session map. Movement and disconnect events for
// different sessions may race freely; concurrent updates to the same session
// resolve as last write wins.
//
// Usage:
//
//	manager := session.NewManager(engine.NewEngineWithDefaults())
//
//	sess, err := manager.Create(session.GenerateID(), session.TransportWebSocket)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	pos := engine.Vector{X: 1, Z: 2}
//	sess, err = manager.Update(sess.ID, session.Patch{Position: &pos})
//
//	players := manager.List()
package session
