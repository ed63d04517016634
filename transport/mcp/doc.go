// Package mcp provides a Model Context Protocol server for operating the
// shooter relay.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions for player inspection and moderation
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - list_players: List every connected player
//   - get_player: Get one player's position, health and loadout
//   - kick_player: Disconnect a player
//   - relay_health: Health check and player counts per transport
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: Client implements http.Handler and is mounted at POST /mcp
//
// Architecture:
//
// The client holds no relay state. Every tool call is proxied to the REST
// API, so the MCP server can run in the relay process or next to it.
package mcp
