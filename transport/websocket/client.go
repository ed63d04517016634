package websocket

import (
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/shooter-relay/game/session"
	"github.com/wricardo/shooter-relay/protocol"
)

// Client is one player's WebSocket connection
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	id      string
	codec   protocol.Codec
	addr    string
	limiter *rateLimiter

	// Set once the roster has been queued; broadcasts skip the client
	// until then. Owned by Run.
	announced bool
}

// ID returns the player ID assigned to the connection
func (c *Client) ID() string {
	return c.id
}

// readPump announces the connection to the handler, then decodes frames
// from the connection and passes them on until it closes
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in readPump: %v", err)
		}
		if c.hub.handler != nil {
			c.hub.handler.OnDisconnect(c.id)
		}
	}()

	if c.hub.handler != nil {
		if _, err := c.hub.handler.OnConnect(c.id, session.TransportWebSocket); err != nil {
			log.Printf("Rejected connection %s: %v", c.id, err)
			return
		}
	}

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			break
		}

		if c.limiter != nil && !c.limiter.allow() {
			log.Printf("Rate limit exceeded for %s; discarding message", c.id)
			continue
		}

		c.handleFrame(frame)
	}
}

// handleFrame decodes one frame and hands the event to the handler.
// Bad frames are logged and dropped without closing the connection.
func (c *Client) handleFrame(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic handling frame from %s: %v", c.id, r)
		}
	}()

	kind, data, err := c.codec.Decode(frame)
	if err != nil {
		log.Printf("Invalid frame from %s: %v", c.id, err)
		return
	}

	event, err := protocol.DecodeEvent(kind, data, c.codec)
	if err != nil {
		log.Printf("Dropped %s from %s: %v", kind, c.id, err)
		return
	}

	if c.hub.handler == nil {
		return
	}
	if err := c.hub.handler.OnEvent(c.id, event); err != nil {
		log.Printf("Event error: %v", err)
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Message from %s exceeded maximum size of %d bytes", c.id, c.hub.opts.MaxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway),
		errors.Is(err, io.EOF), isExpectedCloseError(err):
		// normal close
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		log.Printf("WebSocket error from %s: %v", c.id, err)
	}
}

// writePump pumps frames from the hub to the WebSocket connection, one
// envelope per frame
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(c.codec.FrameType(), message); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing to %s: %v", c.id, err)
				}
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// isExpectedCloseError reports errors that occur during a normal close
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
