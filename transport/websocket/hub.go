package websocket

import (
	"context"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/shooter-relay/game/relay"
	"github.com/wricardo/shooter-relay/game/session"
	"github.com/wricardo/shooter-relay/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Default maximum message size allowed from peer.
	defaultMaxMessageSize = 4096

	defaultRateBurst    = 60
	defaultRateInterval = time.Second
	defaultSendBuffer   = 256
	deliverBuffer       = 1024
)

// Options configures a Hub. Zero values select the defaults.
type Options struct {
	// AllowedOrigins lists the browser origins that may connect. "*" or an
	// empty list allows every origin.
	AllowedOrigins []string
	MaxMessageSize int64
	RateBurst      int
	RateInterval   time.Duration
	SendBuffer     int
}

func (o Options) withDefaults() Options {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.RateBurst <= 0 {
		o.RateBurst = defaultRateBurst
	}
	if o.RateInterval <= 0 {
		o.RateInterval = defaultRateInterval
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	return o
}

// delivery is a request from the relay for the Run loop
type delivery struct {
	to         string
	except     string
	all        bool
	disconnect bool
	kind       protocol.Kind
	payload    any
}

// Hub maintains the set of connected players and delivers events to them.
// It implements relay.Transport.
type Hub struct {
	// Connected clients by player ID, owned by Run
	clients map[string]*Client

	// Register requests from ServeWS
	register chan *Client

	// Unregister requests from read pumps
	unregister chan *Client

	// Outbound events and disconnects from the relay
	deliver chan delivery

	handler  relay.Handler
	opts     Options
	origins  map[string]struct{}
	allowAll bool
	upgrader websocket.Upgrader

	connected atomic.Int64
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub(opts Options) *Hub {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, deliverBuffer),
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	h.origins, h.allowAll = normalizeOrigins(opts.AllowedOrigins)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// SetHandler sets the receiver of connection and client events.
// It must be called before Run.
func (h *Hub) SetHandler(handler relay.Handler) {
	h.handler = handler
}

// ClientCount returns the number of open connections
func (h *Hub) ClientCount() int {
	return int(h.connected.Load())
}

// Run starts the hub's event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.registerClient(client)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.unregisterClient(client)

		case d := <-h.deliver:
			h.handleDelivery(d)
		}
	}
}

// ServeWS upgrades the request and registers a new player connection.
// The ?encoding= query parameter selects the codec.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	codec, err := protocol.CodecByName(r.URL.Query().Get("encoding"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(h.opts.MaxMessageSize)

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, h.opts.SendBuffer),
		id:      session.GenerateID(),
		codec:   codec,
		addr:    r.RemoteAddr,
		limiter: newRateLimiter(h.opts.RateBurst, h.opts.RateInterval),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
	}
}

// SendTo queues an event for one player
func (h *Hub) SendTo(id string, kind protocol.Kind, payload any) {
	h.enqueue(delivery{to: id, kind: kind, payload: payload})
}

// BroadcastExcept queues an event for every player but exceptID
func (h *Hub) BroadcastExcept(exceptID string, kind protocol.Kind, payload any) {
	h.enqueue(delivery{except: exceptID, all: true, kind: kind, payload: payload})
}

// BroadcastAll queues an event for every player
func (h *Hub) BroadcastAll(kind protocol.Kind, payload any) {
	h.enqueue(delivery{all: true, kind: kind, payload: payload})
}

// Disconnect closes the connection of one player, if it has one
func (h *Hub) Disconnect(id string) {
	h.enqueue(delivery{to: id, disconnect: true})
}

// enqueue hands a delivery to the Run loop. Deliveries after Shutdown are dropped.
func (h *Hub) enqueue(d delivery) {
	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.deliver <- d:
	case <-h.done:
	}
}

// registerClient adds a client. Called from Run.
func (h *Hub) registerClient(client *Client) {
	h.clients[client.id] = client
	h.connected.Store(int64(len(h.clients)))

	log.Printf("Client %s registered from %s (total clients: %d)", client.id, client.addr, len(h.clients))
}

// unregisterClient removes a client and closes its send channel. Called from Run.
func (h *Hub) unregisterClient(client *Client) {
	if current, ok := h.clients[client.id]; !ok || current != client {
		return
	}

	delete(h.clients, client.id)
	close(client.send)
	h.connected.Store(int64(len(h.clients)))

	log.Printf("Client %s unregistered (remaining clients: %d)", client.id, len(h.clients))
}

// handleDelivery encodes an event once per codec in use and queues it on
// the target clients. Clients whose buffers are full are dropped; their
// read pumps then report the disconnect. Called from Run.
func (h *Hub) handleDelivery(d delivery) {
	if d.disconnect {
		if client, ok := h.clients[d.to]; ok {
			h.unregisterClient(client)
		}
		return
	}

	frames := make(map[protocol.Codec][]byte)
	encode := func(codec protocol.Codec) ([]byte, bool) {
		if frame, ok := frames[codec]; ok {
			return frame, true
		}
		frame, err := codec.Encode(d.kind, d.payload)
		if err != nil {
			log.Printf("Failed to encode %s as %s: %v", d.kind, codec.Name(), err)
			return nil, false
		}
		frames[codec] = frame
		return frame, true
	}

	var targets []*Client
	if d.all {
		targets = make([]*Client, 0, len(h.clients))
		for id, client := range h.clients {
			// broadcasts before the roster would duplicate or contradict it
			if id != d.except && client.announced {
				targets = append(targets, client)
			}
		}
	} else if client, ok := h.clients[d.to]; ok {
		targets = append(targets, client)
		if d.kind == protocol.KindCurrentPlayers {
			client.announced = true
		}
	}

	for _, client := range targets {
		frame, ok := encode(client.codec)
		if !ok {
			continue
		}
		select {
		case client.send <- frame:
		default:
			log.Printf("Client %s removed due to full send buffer", client.id)
			h.unregisterClient(client)
		}
	}
}

// shutdownClients closes every connection. Called from Run.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	count := len(h.clients)
	for _, client := range h.clients {
		h.unregisterClient(client)
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection for %s: %v", client.id, err)
		}
	}

	log.Printf("Closed %d client connections", count)
}

// Shutdown stops the hub and waits for every pump to finish, or for timeout
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	deadline := time.After(timeout)

	select {
	case <-h.done:
	case <-deadline:
		log.Println("Hub shutdown timeout reached before the event loop stopped")
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-deadline:
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
