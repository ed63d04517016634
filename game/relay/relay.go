package relay

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wricardo/shooter-relay/game/session"
	"github.com/wricardo/shooter-relay/protocol"
)

// Relay applies client events to the session registry and fans the results
// out through the transport
type Relay struct {
	sessions  *session.Manager
	transport Transport

	// roster serializes joins and leaves with their announcements, so a
	// roster snapshot and the newPlayer/playerDisconnected events queued
	// around it never disagree
	roster sync.Mutex
}

// New creates a relay over an existing registry and transport
func New(sessions *session.Manager, transport Transport) *Relay {
	return &Relay{
		sessions:  sessions,
		transport: transport,
	}
}

// Sessions returns the registry the relay mutates
func (r *Relay) Sessions() *session.Manager {
	return r.sessions
}

// OnConnect creates the session for a new connection, sends it the current
// roster and announces it to everyone else. A stale record with the same id
// is overwritten.
func (r *Relay) OnConnect(id string, transport session.Transport) (session.Session, error) {
	r.roster.Lock()
	defer r.roster.Unlock()

	player, err := r.sessions.Create(id, transport)
	if errors.Is(err, session.ErrSessionAlreadyExists) {
		log.Printf("Session %s already exists, replacing it", id)
		player, err = r.sessions.Replace(id, transport)
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("connect %s: %w", id, err)
	}

	r.transport.SendTo(player.ID, protocol.KindCurrentPlayers, r.sessions.List())
	r.transport.BroadcastExcept(player.ID, protocol.KindNewPlayer, player)

	log.Printf("Player %s connected via %s (players: %d)", player.ID, transport, r.sessions.Count())
	return player, nil
}

// OnEvent applies one decoded client event from the player with the given id
func (r *Relay) OnEvent(id string, event protocol.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%s from %s: %w", event.Kind(), id, err)
	}

	var err error
	switch e := event.(type) {
	case protocol.Movement:
		err = r.handleMovement(id, e)
	case protocol.Shoot:
		err = r.handleShoot(id, e)
	case protocol.PowerUpCollected:
		err = r.handlePowerUp(id, e)
	case protocol.PlayerDamaged:
		err = r.handleDamage(id, e)
	default:
		err = protocol.ErrUnknownEvent
	}

	if err != nil {
		return fmt.Errorf("%s from %s: %w", event.Kind(), id, err)
	}
	return nil
}

// OnDisconnect removes the player's session and tells everyone it left.
// Unknown ids are ignored.
func (r *Relay) OnDisconnect(id string) {
	r.roster.Lock()
	defer r.roster.Unlock()

	if !r.sessions.Remove(id) {
		return
	}
	r.transport.BroadcastAll(protocol.KindPlayerDisconnected, id)
	log.Printf("Player %s disconnected (players: %d)", id, r.sessions.Count())
}

// Kick removes a player, closes its connection if it has one and tells
// everyone it left
func (r *Relay) Kick(id string) error {
	r.roster.Lock()
	defer r.roster.Unlock()

	if !r.sessions.Remove(id) {
		return session.ErrSessionNotFound
	}
	r.transport.Disconnect(id)
	r.transport.BroadcastAll(protocol.KindPlayerDisconnected, id)
	log.Printf("Player %s kicked (players: %d)", id, r.sessions.Count())
	return nil
}

// PublishState merges a polling client's snapshot into the registry and
// announces the result to connected players: newPlayer the first time the
// id is seen, playerMoved afterwards.
func (r *Relay) PublishState(update StateUpdate) (session.Session, error) {
	if update.Position != nil && !update.Position.IsFinite() {
		return session.Session{}, fmt.Errorf("%w: position must be finite", protocol.ErrMalformedPayload)
	}
	if update.Rotation != nil && !update.Rotation.IsFinite() {
		return session.Session{}, fmt.Errorf("%w: rotation must be finite", protocol.ErrMalformedPayload)
	}

	r.roster.Lock()
	defer r.roster.Unlock()

	player, created, err := r.sessions.Upsert(update.ID, session.TransportPolling, session.Patch{
		Position: update.Position,
		Rotation: update.Rotation,
		Health:   update.Health,
		Weapons:  update.Weapons,
		PowerUps: update.PowerUps,
	})
	if err != nil {
		return session.Session{}, err
	}

	if created {
		r.transport.BroadcastExcept(player.ID, protocol.KindNewPlayer, player)
		log.Printf("Player %s joined via %s (players: %d)", player.ID, session.TransportPolling, r.sessions.Count())
	} else {
		r.transport.BroadcastExcept(player.ID, protocol.KindPlayerMoved, player)
	}
	return player, nil
}

// ReapStale removes polling sessions not seen within maxAge and tells
// everyone they left
func (r *Relay) ReapStale(maxAge time.Duration) []string {
	r.roster.Lock()
	defer r.roster.Unlock()

	removed := r.sessions.CleanupStale(session.TransportPolling, maxAge)
	for _, id := range removed {
		r.transport.BroadcastAll(protocol.KindPlayerDisconnected, id)
	}
	if len(removed) > 0 {
		log.Printf("Reaped %d stale polling sessions (players: %d)", len(removed), r.sessions.Count())
	}
	return removed
}

// Players returns a snapshot of every live session
func (r *Relay) Players() []session.Session {
	return r.sessions.List()
}

// Player returns one session
func (r *Relay) Player(id string) (session.Session, error) {
	return r.sessions.Get(id)
}

// Stats counts the live sessions per transport
func (r *Relay) Stats() Stats {
	counts := r.sessions.CountByTransport()
	return Stats{
		Players:   r.sessions.Count(),
		WebSocket: counts[session.TransportWebSocket],
		Polling:   counts[session.TransportPolling],
	}
}

func (r *Relay) handleMovement(id string, e protocol.Movement) error {
	player, err := r.sessions.Update(id, session.Patch{
		Position: e.Position,
		Rotation: e.Rotation,
	})
	if err != nil {
		return err
	}

	r.transport.BroadcastExcept(id, protocol.KindPlayerMoved, player)
	return nil
}

func (r *Relay) handleShoot(id string, e protocol.Shoot) error {
	if _, err := r.sessions.Get(id); err != nil {
		return err
	}

	r.transport.BroadcastExcept(id, protocol.KindPlayerShot, protocol.ShotFired{
		PlayerID:  id,
		Position:  *e.Position,
		Direction: *e.Direction,
		Speed:     e.Speed,
	})
	return nil
}

func (r *Relay) handlePowerUp(id string, e protocol.PowerUpCollected) error {
	player, err := r.sessions.CollectPowerUp(id, e.Type)
	if err != nil {
		return err
	}

	r.transport.SendTo(id, protocol.KindPowerUpUpdate, player.PowerUps)
	return nil
}

func (r *Relay) handleDamage(id string, e protocol.PlayerDamaged) error {
	player, respawned, err := r.sessions.Damage(id, *e.Damage)
	if err != nil {
		return err
	}

	r.transport.SendTo(id, protocol.KindHealthUpdate, player.Health)
	if respawned {
		r.transport.BroadcastExcept(id, protocol.KindPlayerMoved, player)
		log.Printf("Player %s respawned", id)
	}
	return nil
}
