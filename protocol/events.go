package protocol

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/wricardo/shooter-relay/game/engine"
)

// Kind names an event on the wire
type Kind string

// Client to server events
const (
	KindPlayerMovement   Kind = "playerMovement"
	KindPlayerShoot      Kind = "playerShoot"
	KindPowerUpCollected Kind = "powerUpCollected"
	KindPlayerDamaged    Kind = "playerDamaged"
)

// Server to client events
const (
	KindCurrentPlayers     Kind = "currentPlayers"
	KindNewPlayer          Kind = "newPlayer"
	KindPlayerMoved        Kind = "playerMoved"
	KindPlayerShot         Kind = "playerShot"
	KindPowerUpUpdate      Kind = "powerUpUpdate"
	KindHealthUpdate       Kind = "healthUpdate"
	KindPlayerDisconnected Kind = "playerDisconnected"
)

// MaxPowerUpLength bounds the length of a power-up identifier
const MaxPowerUpLength = 64

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnknownEvent     = errors.New("unknown event")
)

// Event is a decoded client event. The set of implementations is closed.
type Event interface {
	Kind() Kind
	Validate() error
	isEvent()
}

// Movement reports the sender's new position and yaw
type Movement struct {
	Position *engine.Vector   `json:"position"`
	Rotation *engine.Rotation `json:"rotation,omitempty"`
}

// Shoot reports a shot fired by the sender
type Shoot struct {
	Position  *engine.Vector `json:"position"`
	Direction *engine.Vector `json:"direction"`
	Speed     float64        `json:"speed"`
}

// PowerUpCollected reports a power-up picked up by the sender
type PowerUpCollected struct {
	Type string `json:"type"`
}

// PlayerDamaged reports damage the sender's client applied to itself
type PlayerDamaged struct {
	Damage *float64 `json:"damage"`
}

// ShotFired is the playerShot payload relayed to other players
type ShotFired struct {
	PlayerID  string        `json:"playerId"`
	Position  engine.Vector `json:"position"`
	Direction engine.Vector `json:"direction"`
	Speed     float64       `json:"speed"`
}

func (Movement) Kind() Kind         { return KindPlayerMovement }
func (Shoot) Kind() Kind            { return KindPlayerShoot }
func (PowerUpCollected) Kind() Kind { return KindPowerUpCollected }
func (PlayerDamaged) Kind() Kind    { return KindPlayerDamaged }

func (Movement) isEvent()         {}
func (Shoot) isEvent()            {}
func (PowerUpCollected) isEvent() {}
func (PlayerDamaged) isEvent()    {}

// Validate checks the required position and finite coordinates
func (m Movement) Validate() error {
	if m.Position == nil {
		return malformed("position is required")
	}
	if !m.Position.IsFinite() {
		return malformed("position must be finite")
	}
	if m.Rotation != nil && !m.Rotation.IsFinite() {
		return malformed("rotation must be finite")
	}
	return nil
}

// Validate checks origin, direction and speed
func (s Shoot) Validate() error {
	if s.Position == nil || s.Direction == nil {
		return malformed("position and direction are required")
	}
	if !s.Position.IsFinite() || !s.Direction.IsFinite() {
		return malformed("position and direction must be finite")
	}
	if math.IsNaN(s.Speed) || math.IsInf(s.Speed, 0) {
		return malformed("speed must be finite")
	}
	return nil
}

// Validate checks the power-up identifier
func (p PowerUpCollected) Validate() error {
	if strings.TrimSpace(p.Type) == "" {
		return malformed("power-up type is required")
	}
	if len(p.Type) > MaxPowerUpLength {
		return malformed(fmt.Sprintf("power-up type longer than %d bytes", MaxPowerUpLength))
	}
	return nil
}

// Validate checks the damage amount
func (d PlayerDamaged) Validate() error {
	if d.Damage == nil {
		return malformed("damage is required")
	}
	if math.IsNaN(*d.Damage) || math.IsInf(*d.Damage, 0) {
		return malformed("damage must be finite")
	}
	return nil
}

// DecodeEvent decodes and validates the payload of a client event
func DecodeEvent(kind Kind, data []byte, codec Codec) (Event, error) {
	var event Event

	switch kind {
	case KindPlayerMovement:
		var m Movement
		if err := codec.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		event = m
	case KindPlayerShoot:
		var s Shoot
		if err := codec.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		event = s
	case KindPowerUpCollected:
		p, err := decodePowerUp(data, codec)
		if err != nil {
			return nil, err
		}
		event = p
	case KindPlayerDamaged:
		var d PlayerDamaged
		if err := codec.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		event = d
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

// decodePowerUp accepts either a bare identifier or a descriptor object
// with a "type" field, as sent by the browser client.
func decodePowerUp(data []byte, codec Codec) (PowerUpCollected, error) {
	var raw any
	if err := codec.Unmarshal(data, &raw); err != nil {
		return PowerUpCollected{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch v := raw.(type) {
	case string:
		return PowerUpCollected{Type: v}, nil
	case map[string]any:
		if t, ok := v["type"].(string); ok {
			return PowerUpCollected{Type: t}, nil
		}
	}
	return PowerUpCollected{}, malformed("power-up must be a string or an object with a type")
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, reason)
}
