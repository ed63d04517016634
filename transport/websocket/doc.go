// Package websocket provides the WebSocket transport for the shooter relay.
//
// The websocket package implements:
//   - Player connections at GET /ws, one session per connection
//   - JSON text frames, or MessagePack binary frames with ?encoding=msgpack
//   - Targeted sends and broadcasts that skip the sender
//   - Per-connection read limit and token-bucket rate limiting
//   - Origin allow-list checks for browser clients
//   - Graceful shutdown of every connection
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub owns all
// connections. Hub.Run is the only goroutine that touches the client map;
// ServeWS, the read pumps and the relay talk to it over channels. Each
// connection has a read pump that decodes frames into protocol events and a
// write pump that writes queued frames and keeps the connection alive with
// pings.
//
// Usage:
//
//	hub := websocket.NewHub(websocket.Options{AllowedOrigins: []string{"*"}})
//	r := relay.New(session.NewManager(nil), hub)
//	hub.SetHandler(r)
//	go hub.Run()
//
//	router.HandleFunc("/ws", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects and is assigned a fresh player ID
// 2. Connection registered with the hub
// 3. Handler OnConnect creates the session and sends the roster
// 4. Client sends events, receives other players' events
// 5. Close, timeout or a full send buffer triggers Handler OnDisconnect
//
// Delivery:
//
// Sends never block on a slow client. A client whose buffer is full is
// dropped and its departure is reported like any other disconnect.
package websocket
