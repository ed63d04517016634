package session

import (
	"time"

	"github.com/wricardo/shooter-relay/game/engine"
)

// Transport identifies the adapter a session arrived through
type Transport string

const (
	TransportWebSocket Transport = "websocket"
	TransportPolling   Transport = "polling"
)

// Session is the server-side record of one connected player
type Session struct {
	ID       string          `json:"id"`
	Position engine.Vector   `json:"position"`
	Rotation engine.Rotation `json:"rotation"`
	Health   int             `json:"health"`
	Weapons  []string        `json:"weapons"`
	PowerUps []string        `json:"powerUps"`

	Transport  Transport `json:"-"`
	CreatedAt  time.Time `json:"-"`
	LastSeenAt time.Time `json:"-"`
}

// Clone returns a deep copy of s
func (s Session) Clone() Session {
	s.Weapons = cloneStrings(s.Weapons)
	s.PowerUps = cloneStrings(s.PowerUps)
	return s
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Position *engine.Vector
	Rotation *engine.Rotation
	Health   *int
	Weapons  []string
	PowerUps []string
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
