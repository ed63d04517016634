package session

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wricardo/shooter-relay/game/engine"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// Manager is the registry of live player sessions
type Manager struct {
	sessions map[string]*Session
	engine   *engine.Engine
	now      func() time.Time
	mu       sync.RWMutex
}

// NewManager creates a new session manager. A nil engine uses the default rules.
func NewManager(eng *engine.Engine) *Manager {
	if eng == nil {
		eng = engine.NewEngineWithDefaults()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		engine:   eng,
		now:      time.Now,
	}
}

// Engine returns the rules engine the manager spawns and damages with
func (m *Manager) Engine() *engine.Engine {
	return m.engine
}

// GenerateID returns a new random session ID
func GenerateID() string {
	return uuid.NewString()
}

// Create inserts a fresh session with a random spawn position, full health,
// the default loadout and no power-ups. An empty id is replaced by a
// generated one.
func (m *Manager) Create(id string, transport Transport) (Session, error) {
	if id == "" {
		id = GenerateID()
	}
	if !validID(id) {
		return Session{}, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return Session{}, ErrSessionAlreadyExists
	}

	session := m.newSession(id, transport)
	m.sessions[id] = session
	return session.Clone(), nil
}

// Replace inserts a fresh session, overwriting any existing record with the same id
func (m *Manager) Replace(id string, transport Transport) (Session, error) {
	if !validID(id) {
		return Session{}, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.newSession(id, transport)
	m.sessions[id] = session
	return session.Clone(), nil
}

// Get retrieves a copy of a session by ID
func (m *Manager) Get(id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return Session{}, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Update merges patch into an existing session
func (m *Manager) Update(id string, patch Patch) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		log.Printf("Update for unknown session %s ignored", id)
		return Session{}, ErrSessionNotFound
	}

	m.applyPatch(session, patch)
	return session.Clone(), nil
}

// Upsert updates the session with the given id, creating it first when absent.
// It reports whether the session was created.
func (m *Manager) Upsert(id string, transport Transport, patch Patch) (Session, bool, error) {
	if !validID(id) {
		return Session{}, false, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	created := false
	session, exists := m.sessions[id]
	if !exists {
		session = m.newSession(id, transport)
		m.sessions[id] = session
		created = true
	}

	m.applyPatch(session, patch)
	return session.Clone(), created, nil
}

// Damage subtracts amount from the session's health, applying the respawn
// rule when health reaches zero. It reports whether the player respawned.
func (m *Manager) Damage(id string, amount float64) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return Session{}, false, ErrSessionNotFound
	}

	health, respawned := m.engine.ApplyDamage(session.Health, amount)
	session.Health = health
	if respawned {
		session.Position = m.engine.SpawnPosition()
	}
	session.LastSeenAt = m.now()

	return session.Clone(), respawned, nil
}

// CollectPowerUp appends powerUp to the session's power-ups. Duplicates are kept.
func (m *Manager) CollectPowerUp(id, powerUp string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return Session{}, ErrSessionNotFound
	}

	session.PowerUps = append(session.PowerUps, powerUp)
	session.LastSeenAt = m.now()
	return session.Clone(), nil
}

// Remove deletes a session. Removing an unknown id is a no-op.
// It reports whether a session was removed.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; !exists {
		return false
	}
	delete(m.sessions, id)
	return true
}

// List returns a snapshot of all sessions
func (m *Manager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session.Clone())
	}

	return result
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CountByTransport returns the number of live sessions per transport
func (m *Manager) CountByTransport() map[Transport]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[Transport]int)
	for _, session := range m.sessions {
		counts[session.Transport]++
	}
	return counts
}

// CleanupStale removes sessions of the given transport that have not been
// seen within maxAge and returns their ids.
func (m *Manager) CleanupStale(transport Transport, maxAge time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	var removed []string

	for id, session := range m.sessions {
		if session.Transport == transport && session.LastSeenAt.Before(cutoff) {
			delete(m.sessions, id)
			removed = append(removed, id)
		}
	}

	return removed
}

// newSession builds a freshly spawned session. Callers hold m.mu.
func (m *Manager) newSession(id string, transport Transport) *Session {
	now := m.now()
	return &Session{
		ID:         id,
		Position:   m.engine.SpawnPosition(),
		Health:     m.engine.MaxHealth(),
		Weapons:    m.engine.DefaultWeapons(),
		PowerUps:   []string{},
		Transport:  transport,
		CreatedAt:  now,
		LastSeenAt: now,
	}
}

// applyPatch merges patch into session. Callers hold m.mu.
func (m *Manager) applyPatch(session *Session, patch Patch) {
	if patch.Position != nil {
		session.Position = m.engine.Ground(*patch.Position)
	}
	if patch.Rotation != nil {
		session.Rotation = *patch.Rotation
	}
	if patch.Weapons != nil {
		session.Weapons = cloneStrings(patch.Weapons)
	}
	if patch.PowerUps != nil {
		session.PowerUps = cloneStrings(patch.PowerUps)
	}
	if patch.Health != nil {
		session.Health = m.engine.ClampHealth(*patch.Health)
		if session.Health == 0 {
			session.Health = m.engine.MaxHealth()
			session.Position = m.engine.SpawnPosition()
		}
	}
	session.LastSeenAt = m.now()
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, " \t\r\n")
}
