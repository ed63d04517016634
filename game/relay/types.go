package relay

import (
	"github.com/wricardo/shooter-relay/game/engine"
	"github.com/wricardo/shooter-relay/game/session"
	"github.com/wricardo/shooter-relay/protocol"
)

// Transport delivers outbound events to connected players.
// Implementations must not block on a slow receiver.
type Transport interface {
	SendTo(id string, kind protocol.Kind, payload any)
	BroadcastExcept(exceptID string, kind protocol.Kind, payload any)
	BroadcastAll(kind protocol.Kind, payload any)
	Disconnect(id string)
}

// Handler receives connection lifecycle and client events from a transport
type Handler interface {
	OnConnect(id string, transport session.Transport) (session.Session, error)
	OnEvent(id string, event protocol.Event) error
	OnDisconnect(id string)
}

// StateUpdate is a full or partial snapshot posted by a polling client
type StateUpdate struct {
	ID       string           `json:"id"`
	Position *engine.Vector   `json:"position,omitempty"`
	Rotation *engine.Rotation `json:"rotation,omitempty"`
	Health   *int             `json:"health,omitempty"`
	Weapons  []string         `json:"weapons,omitempty"`
	PowerUps []string         `json:"powerUps,omitempty"`
}

// Stats summarizes the live sessions
type Stats struct {
	Players   int `json:"players"`
	WebSocket int `json:"websocket"`
	Polling   int `json:"polling"`
}
