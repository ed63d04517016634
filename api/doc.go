// Package api provides the HTTP REST API of the shooter relay.
//
// The api package implements:
//   - The HTTP polling transport for clients that cannot hold a WebSocket
//   - Player inspection and removal for operators
//   - Health and session statistics
//   - WebSocket upgrade mounting
//
// Endpoints:
//
// Polling:
//   - POST /state - Publish a player snapshot (alias POST /api/update)
//   - GET /players - List every live player (alias GET /api/players)
//
// Administration:
//   - GET /players/{id} - Get one player
//   - DELETE /players/{id} - Kick a player
//   - GET /health - Liveness check
//   - GET /stats - Player counts per transport
//
// WebSocket:
//   - GET /ws - Upgrade to the event channel (?encoding=msgpack for binary frames)
//
// Request/Response Format:
//
// All endpoints accept and return JSON. A polling client posts its own state:
//
//	{
//	  "id": "player-1",
//	  "position": {"x": 1, "y": 0, "z": 2},
//	  "rotation": {"y": 0.5},
//	  "health": 100,
//	  "weapons": ["pistol"],
//	  "powerUps": []
//	}
//
// and receives {"success": true}. Fields left out keep their stored value.
// WebSocket players see the snapshot as newPlayer or playerMoved.
//
// Error Handling:
//
// Errors are returned as JSON with an appropriate HTTP status code:
//
//	{"error": "id is required"}
//
// Every response carries Access-Control-Allow-Origin: *.
package api
