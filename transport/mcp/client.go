package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/shooter-relay/game/relay"
	"github.com/wricardo/shooter-relay/game/session"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Shooter Relay",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Shooter Relay - MCP Interface

This is a thin client that proxies all requests to the relay's REST API.

The relay keeps the authoritative state of every connected player in a
multiplayer shooter: position, yaw, health, weapons and collected power-ups.

AVAILABLE TOOLS:
- list_players: List every connected player
- get_player: Get one player's state
- kick_player: Disconnect a player and remove its state
- relay_health: Check the relay is up and count players per transport`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_players",
		Description: "List every connected player with position and health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListPlayers)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_player",
		Description: "Get the full state of one player",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Player ID",
				},
			},
			Required: []string{"player_id"},
		},
	}, c.handleGetPlayer)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "kick_player",
		Description: "Disconnect a player; the other players see it leave",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Player ID to kick",
				},
			},
			Required: []string{"player_id"},
		},
	}, c.handleKickPlayer)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "relay_health",
		Description: "Check relay health and count players per transport",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleRelayHealth)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeHTTP answers one JSON-RPC message posted to the MCP endpoint
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := c.mcpServer.HandleMessage(r.Context(), body)

	w.Header().Set("Content-Type", "application/json")
	responseData, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Write(responseData)
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleListPlayers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var players []session.Session
	if err := c.apiCall(ctx, "GET", "/players", nil, &players); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(players) == 0 {
		return mcp.NewToolResultText("No players connected.\n"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Connected Players (%d):\n\n", len(players))
	for _, p := range players {
		fmt.Fprintf(&b, "- %s at (%.1f, %.1f, %.1f), health %d\n",
			p.ID, p.Position.X, p.Position.Y, p.Position.Z, p.Health)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetPlayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	playerID, err := requirePlayerID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var player session.Session
	if err := c.apiCall(ctx, "GET", "/players/"+url.PathEscape(playerID), nil, &player); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatPlayer(player)), nil
}

func (c *Client) handleKickPlayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	playerID, err := requirePlayerID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := c.apiCall(ctx, "DELETE", "/players/"+url.PathEscape(playerID), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Kicked player %s\n", playerID)), nil
}

func (c *Client) handleRelayHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var health struct {
		Status string `json:"status"`
	}
	if err := c.apiCall(ctx, "GET", "/health", nil, &health); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var stats relay.Stats
	if err := c.apiCall(ctx, "GET", "/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Status: %s\nPlayers: %d\n  WebSocket: %d\n  Polling: %d\n",
		health.Status, stats.Players, stats.WebSocket, stats.Polling)
	return mcp.NewToolResultText(result), nil
}

func requirePlayerID(request mcp.CallToolRequest) (string, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	playerID, _ := args["player_id"].(string)
	if playerID == "" {
		return "", fmt.Errorf("player_id is required")
	}
	return playerID, nil
}

func formatPlayer(p session.Session) string {
	return fmt.Sprintf("Player: %s\nPosition: (%.2f, %.2f, %.2f)\nRotation: %.2f\nHealth: %d\nWeapons: %s\nPower-ups: %s\n",
		p.ID,
		p.Position.X, p.Position.Y, p.Position.Z,
		p.Rotation.Y,
		p.Health,
		formatList(p.Weapons),
		formatList(p.PowerUps))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
