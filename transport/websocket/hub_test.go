package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/shooter-relay/game/engine"
	"github.com/wricardo/shooter-relay/game/relay"
	"github.com/wricardo/shooter-relay/game/session"
	"github.com/wricardo/shooter-relay/protocol"
)

func newTestClient(hub *Hub, id string, codec protocol.Codec, buffer int) *Client {
	return &Client{
		hub:   hub,
		id:    id,
		codec: codec,
		send:  make(chan []byte, buffer),

		announced: true,
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(Options{})

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.clients == nil {
		t.Error("Hub clients map is nil")
	}
	if hub.register == nil || hub.unregister == nil || hub.deliver == nil {
		t.Error("Hub channels not initialized")
	}
	if hub.opts.MaxMessageSize != defaultMaxMessageSize {
		t.Errorf("Expected default max message size %d, got %d", defaultMaxMessageSize, hub.opts.MaxMessageSize)
	}
	if hub.opts.RateBurst != defaultRateBurst || hub.opts.RateInterval != defaultRateInterval {
		t.Errorf("Unexpected rate limit defaults %d/%s", hub.opts.RateBurst, hub.opts.RateInterval)
	}
	if !hub.allowAll {
		t.Error("Expected an empty origin list to allow all origins")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub(Options{})
	client := newTestClient(hub, "p1", protocol.JSON, 8)

	hub.registerClient(client)

	if hub.clients["p1"] != client {
		t.Error("Client was not registered")
	}
	if hub.ClientCount() != 1 {
		t.Errorf("Expected 1 client, got %d", hub.ClientCount())
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub(Options{})
	client := newTestClient(hub, "p1", protocol.JSON, 8)

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.clients["p1"]; exists {
		t.Error("Client should have been removed")
	}
	if _, ok := <-client.send; ok {
		t.Error("Send channel should be closed")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.ClientCount())
	}

	// A second unregister must not close the channel again
	hub.unregisterClient(client)
}

func TestHubDeliverySendTo(t *testing.T) {
	hub := NewHub(Options{})
	a := newTestClient(hub, "a", protocol.JSON, 8)
	b := newTestClient(hub, "b", protocol.JSON, 8)
	hub.registerClient(a)
	hub.registerClient(b)

	hub.handleDelivery(delivery{to: "a", kind: protocol.KindHealthUpdate, payload: 70})

	select {
	case frame := <-a.send:
		if string(frame) != `{"event":"healthUpdate","data":70}` {
			t.Errorf("Unexpected frame %s", frame)
		}
	default:
		t.Fatal("Target did not receive the event")
	}
	if len(b.send) != 0 {
		t.Error("Non-target received the event")
	}
}

func TestHubDeliveryBroadcastExcept(t *testing.T) {
	hub := NewHub(Options{})
	a := newTestClient(hub, "a", protocol.JSON, 8)
	b := newTestClient(hub, "b", protocol.JSON, 8)
	c := newTestClient(hub, "c", protocol.Msgpack, 8)
	hub.registerClient(a)
	hub.registerClient(b)
	hub.registerClient(c)

	hub.handleDelivery(delivery{except: "a", all: true, kind: protocol.KindPlayerMoved, payload: map[string]string{"id": "a"}})

	if len(a.send) != 0 {
		t.Error("Sender received its own broadcast")
	}
	if len(b.send) != 1 || len(c.send) != 1 {
		t.Fatalf("Expected one frame each for b and c, got %d and %d", len(b.send), len(c.send))
	}

	kind, _, err := protocol.JSON.Decode(<-b.send)
	if err != nil || kind != protocol.KindPlayerMoved {
		t.Errorf("JSON client got %s, %v", kind, err)
	}
	kind, _, err = protocol.Msgpack.Decode(<-c.send)
	if err != nil || kind != protocol.KindPlayerMoved {
		t.Errorf("MessagePack client got %s, %v", kind, err)
	}
}

func TestHubDeliveryHoldsBroadcastsUntilRoster(t *testing.T) {
	hub := NewHub(Options{})
	joining := newTestClient(hub, "joining", protocol.JSON, 8)
	joining.announced = false
	hub.registerClient(joining)

	hub.handleDelivery(delivery{all: true, kind: protocol.KindNewPlayer, payload: map[string]string{"id": "other"}})
	if len(joining.send) != 0 {
		t.Fatal("Broadcast reached a client before its roster")
	}

	hub.handleDelivery(delivery{to: "joining", kind: protocol.KindCurrentPlayers, payload: []string{}})
	hub.handleDelivery(delivery{all: true, kind: protocol.KindPlayerMoved, payload: map[string]string{"id": "other"}})

	if len(joining.send) != 2 {
		t.Fatalf("Expected roster and one broadcast, got %d frames", len(joining.send))
	}
	kind, _, _ := protocol.JSON.Decode(<-joining.send)
	if kind != protocol.KindCurrentPlayers {
		t.Errorf("Expected currentPlayers first, got %s", kind)
	}
}

func TestHubDeliveryDropsFullClient(t *testing.T) {
	hub := NewHub(Options{})
	slow := newTestClient(hub, "slow", protocol.JSON, 1)
	hub.registerClient(slow)

	hub.handleDelivery(delivery{all: true, kind: protocol.KindPlayerDisconnected, payload: "x"})
	hub.handleDelivery(delivery{all: true, kind: protocol.KindPlayerDisconnected, payload: "y"})

	if _, exists := hub.clients["slow"]; exists {
		t.Error("Client with full buffer should have been dropped")
	}

	if _, ok := <-slow.send; !ok {
		t.Error("Expected the first frame to stay queued")
	}
	if _, ok := <-slow.send; ok {
		t.Error("Expected send channel closed after the queued frame")
	}
}

func TestHubDeliveryDisconnect(t *testing.T) {
	hub := NewHub(Options{})
	client := newTestClient(hub, "p1", protocol.JSON, 8)
	hub.registerClient(client)

	hub.handleDelivery(delivery{to: "p1", disconnect: true})
	hub.handleDelivery(delivery{to: "unknown", disconnect: true})

	if _, exists := hub.clients["p1"]; exists {
		t.Error("Disconnected client still registered")
	}
}

func TestHubEnqueueAfterShutdown(t *testing.T) {
	hub := NewHub(Options{})
	go hub.Run()

	if err := hub.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < deliverBuffer*2; i++ {
			hub.BroadcastAll(protocol.KindPlayerDisconnected, "x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked after shutdown")
	}
}

func TestServeWS_RejectsUnknownEncoding(t *testing.T) {
	hub := NewHub(Options{})

	req := httptest.NewRequest(http.MethodGet, "/ws?encoding=xml", nil)
	rr := httptest.NewRecorder()
	hub.ServeWS(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

// relayServer wires a hub, a relay and a registry behind an httptest server
func relayServer(t *testing.T, opts Options) (*Hub, *relay.Relay, string) {
	t.Helper()

	hub := NewHub(opts)
	r := relay.New(session.NewManager(nil), hub)
	hub.SetHandler(r)
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		server.Close()
		hub.Shutdown(time.Second)
	})

	return hub, r, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, codec protocol.Codec) (protocol.Kind, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	kind, data, err := codec.Decode(frame)
	if err != nil {
		t.Fatalf("Failed to decode frame %q: %v", frame, err)
	}
	return kind, data
}

func expectEvent(t *testing.T, conn *websocket.Conn, codec protocol.Codec, want protocol.Kind) []byte {
	t.Helper()
	kind, data := readEvent(t, conn, codec)
	if kind != want {
		t.Fatalf("Expected %s, got %s (%s)", want, kind, data)
	}
	return data
}

func writeEvent(t *testing.T, conn *websocket.Conn, kind protocol.Kind, payload any) {
	t.Helper()
	frame, err := protocol.JSON.Encode(kind, payload)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

func TestWebSocketRelayFlow(t *testing.T) {
	_, r, url := relayServer(t, Options{})

	connA := dial(t, url)
	var roster []session.Session
	json.Unmarshal(expectEvent(t, connA, protocol.JSON, protocol.KindCurrentPlayers), &roster)
	if len(roster) != 1 {
		t.Fatalf("Expected roster of 1, got %d", len(roster))
	}
	idA := roster[0].ID

	connB := dial(t, url)
	json.Unmarshal(expectEvent(t, connB, protocol.JSON, protocol.KindCurrentPlayers), &roster)
	if len(roster) != 2 {
		t.Fatalf("Expected roster of 2, got %d", len(roster))
	}

	var newPlayer session.Session
	json.Unmarshal(expectEvent(t, connA, protocol.JSON, protocol.KindNewPlayer), &newPlayer)
	idB := newPlayer.ID
	if idB == "" || idB == idA {
		t.Fatalf("Unexpected new player id %q", idB)
	}
	if newPlayer.Health != engine.DefaultMaxHealth || len(newPlayer.Weapons) != 1 {
		t.Errorf("Unexpected new player %+v", newPlayer)
	}

	writeEvent(t, connA, protocol.KindPlayerMovement, map[string]any{
		"position": map[string]float64{"x": 7, "y": 0, "z": -2},
		"rotation": map[string]float64{"y": 1.5},
	})

	var moved session.Session
	json.Unmarshal(expectEvent(t, connB, protocol.JSON, protocol.KindPlayerMoved), &moved)
	if moved.ID != idA || moved.Position.X != 7 || moved.Rotation.Y != 1.5 {
		t.Errorf("Unexpected playerMoved %+v", moved)
	}

	writeEvent(t, connA, protocol.KindPlayerDamaged, map[string]float64{"damage": 25})
	var health int
	json.Unmarshal(expectEvent(t, connA, protocol.JSON, protocol.KindHealthUpdate), &health)
	if health != 75 {
		t.Errorf("Expected health 75, got %d", health)
	}

	stored, err := r.Player(idA)
	if err != nil || stored.Health != 75 || stored.Position.X != 7 {
		t.Errorf("Registry out of sync: %+v, %v", stored, err)
	}

	connB.Close()
	var gone string
	json.Unmarshal(expectEvent(t, connA, protocol.JSON, protocol.KindPlayerDisconnected), &gone)
	if gone != idB {
		t.Errorf("Expected playerDisconnected %s, got %s", idB, gone)
	}
	if _, err := r.Player(idB); err == nil {
		t.Error("Session of closed connection still registered")
	}
}

func TestWebSocketMalformedFrameKeepsConnection(t *testing.T) {
	_, _, url := relayServer(t, Options{})

	conn := dial(t, url)
	expectEvent(t, conn, protocol.JSON, protocol.KindCurrentPlayers)

	conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
	writeEvent(t, conn, "teleport", map[string]int{"x": 1})
	writeEvent(t, conn, protocol.KindPlayerDamaged, map[string]string{"damage": "lots"})
	writeEvent(t, conn, protocol.KindPowerUpCollected, "xray")

	data := expectEvent(t, conn, protocol.JSON, protocol.KindPowerUpUpdate)
	if string(data) != `["xray"]` {
		t.Errorf("Expected [\"xray\"], got %s", data)
	}
}

func TestWebSocketMsgpackEncoding(t *testing.T) {
	_, _, url := relayServer(t, Options{})

	conn := dial(t, url+"?encoding=msgpack")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	messageType, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	if messageType != websocket.BinaryMessage {
		t.Errorf("Expected binary frame, got type %d", messageType)
	}

	kind, data, err := protocol.Msgpack.Decode(frame)
	if err != nil || kind != protocol.KindCurrentPlayers {
		t.Fatalf("Expected currentPlayers, got %s, %v", kind, err)
	}

	var roster []session.Session
	if err := protocol.Msgpack.Unmarshal(data, &roster); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(roster) != 1 || roster[0].Health != engine.DefaultMaxHealth {
		t.Errorf("Unexpected roster %+v", roster)
	}

	payload, _ := protocol.Msgpack.Encode(protocol.KindPlayerDamaged, map[string]any{"damage": 40})
	conn.WriteMessage(websocket.BinaryMessage, payload)

	kind, data = readEvent(t, conn, protocol.Msgpack)
	if kind != protocol.KindHealthUpdate {
		t.Fatalf("Expected healthUpdate, got %s", kind)
	}
	var health int
	protocol.Msgpack.Unmarshal(data, &health)
	if health != 60 {
		t.Errorf("Expected health 60, got %d", health)
	}
}

func TestWebSocketKick(t *testing.T) {
	_, r, url := relayServer(t, Options{})

	conn := dial(t, url)
	var roster []session.Session
	json.Unmarshal(expectEvent(t, conn, protocol.JSON, protocol.KindCurrentPlayers), &roster)

	if err := r.Kick(roster[0].ID); err != nil {
		t.Fatalf("Kick() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Errorf("Expected normal close, got %v", err)
			}
			break
		}
	}
}

func TestWebSocketOriginRejected(t *testing.T) {
	_, _, url := relayServer(t, Options{AllowedOrigins: []string{"https://game.example.com"}})

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Expected dial from disallowed origin to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}

	header = http.Header{"Origin": []string{"https://GAME.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Expected allowed origin to connect: %v", err)
	}
	conn.Close()
}

func TestWebSocketReadLimit(t *testing.T) {
	hub, r, url := relayServer(t, Options{MaxMessageSize: 64})

	conn := dial(t, url)
	expectEvent(t, conn, protocol.JSON, protocol.KindCurrentPlayers)

	conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 1024)))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == 0 && len(r.Players()) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("Oversized frame did not close the connection (clients: %d)", hub.ClientCount())
}

func TestFirstFrameIsRosterUnderConcurrentJoins(t *testing.T) {
	_, _, url := relayServer(t, Options{RateBurst: 10000})

	mover := dial(t, url)
	expectEvent(t, mover, protocol.JSON, protocol.KindCurrentPlayers)

	stop := make(chan struct{})
	moverDone := make(chan struct{})
	go func() {
		defer close(moverDone)
		frame, _ := protocol.JSON.Encode(protocol.KindPlayerMovement, map[string]any{
			"position": map[string]float64{"x": 1, "y": 0, "z": 1},
		})
		for {
			select {
			case <-stop:
				return
			default:
			}
			if err := mover.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	const clients = 50
	firsts := make(chan protocol.Kind, clients)
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				firsts <- protocol.Kind("dial error: " + err.Error())
				return
			}
			defer conn.Close()

			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, frame, err := conn.ReadMessage()
			if err != nil {
				firsts <- protocol.Kind("read error: " + err.Error())
				return
			}
			kind, _, _ := protocol.JSON.Decode(frame)
			firsts <- kind
		}()
	}
	wg.Wait()
	close(stop)
	<-moverDone
	close(firsts)

	wrong := make(map[protocol.Kind]int)
	for kind := range firsts {
		if kind != protocol.KindCurrentPlayers {
			wrong[kind]++
		}
	}
	if len(wrong) > 0 {
		t.Errorf("Connections whose first event was not currentPlayers: %v", wrong)
	}
}

func TestHubShutdownWithoutRun(t *testing.T) {
	hub := NewHub(Options{})

	done := make(chan error, 1)
	go func() { done <- hub.Shutdown(50 * time.Millisecond) }()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected timeout error when the event loop never ran")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown blocked without a running event loop")
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub(Options{})
	r := relay.New(session.NewManager(nil), hub)
	hub.SetHandler(r)
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	conn := dial(t, url)
	expectEvent(t, conn, protocol.JSON, protocol.KindCurrentPlayers)

	if err := hub.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected connection closed after shutdown")
	}
	if len(r.Players()) != 0 {
		t.Errorf("Expected sessions removed after shutdown, got %d", len(r.Players()))
	}
}
