package surface

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	addr string
}

// ServeHTTP upgrades the request and attaches a map widget to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isClosed() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("ip", r.RemoteAddr).Msg("Websocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		addr: r.RemoteAddr,
	}
	if err := h.register(c); err != nil {
		if errors.Is(err, ErrHubClosed) {
			log.Debug().Str("ip", c.addr).Msg("Surface closed, refusing widget")
		} else {
			log.Error().Err(err).Msg("Failed to send surface snapshot")
		}
		_ = conn.Close()
		return
	}

	log.Info().Str("ip", c.addr).Msg("Map widget connected")

	go c.writeLoop()
	h.readLoop(c)
}

// readLoop handles widget messages until the connection fails.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
		log.Info().Str("ip", c.addr).Msg("Map widget disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("ip", c.addr).Msg("Websocket read failed")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Str("ip", c.addr).Msg("Ignoring malformed widget message")
			continue
		}

		h.dispatch(msg)
	}
}

func (h *Hub) dispatch(msg Message) {
	switch msg.Type {
	case TypeMove:
		if msg.Center == nil || msg.Zoom == nil {
			return
		}
		h.MoveViewport(*msg.Center, *msg.Zoom)
	case TypeSelect:
		if msg.Index == nil {
			return
		}
		h.Select(*msg.Index)
	default:
		log.Trace().Str("type", msg.Type).Msg("Ignoring unknown widget message")
	}
}

// writeLoop drains the send queue and keeps the connection alive.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
