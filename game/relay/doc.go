// Package relay implements the authoritative event relay between connected
// players.
//
// The relay owns no connections. Transport adapters report connects,
// decoded client events and disconnects through the Handler interface, and
// the relay answers through the Transport interface they implement:
//
//	manager := session.NewManager(nil)
//	hub := websocket.NewHub(websocket.Options{})
//	r := relay.New(manager, hub)
//	hub.SetHandler(r)
//
// Event handling:
//
//	connect           create session; currentPlayers to the new player, newPlayer to the others
//	playerMovement    update position and rotation; playerMoved to the others
//	playerShoot       no state change; playerShot with the shooter id to the others
//	powerUpCollected  append power-up; powerUpUpdate to the sender only
//	playerDamaged     apply damage and respawn rule; healthUpdate to the sender,
//	                  playerMoved to the others when the player respawned
//	disconnect        remove session; playerDisconnected to everyone
//
// Delivery is fire-and-forget. Peers converge on the last write for each
// player; no ordering is guaranteed across different senders.
//
// HTTP polling clients do not hold a connection. They publish snapshots
// through PublishState and read the roster with Players.
package relay
