package bus

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/CedarLink/internal/logging"
)

// Timeouts for the websocket pumps.
const (
	readWait  = 60 * time.Second
	writeWait = 10 * time.Second
	pingEvery = 54 * time.Second
)

// Server exposes a hub over websocket so panes in other processes can attach.
// Every connected client is a hub subscriber: it receives the retained state
// replay on attach, and anything it sends is published into the hub.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewServer wraps a hub with a websocket transport.
func NewServer(hub *Hub) *Server {
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler returns the HTTP handler that upgrades connections.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleWebSocket)
}

// wsClient is one upgraded connection.
type wsClient struct {
	server *Server
	conn   *websocket.Conn
	sub    *Subscription
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		server: s,
		conn:   conn,
		sub:    s.hub.Subscribe(256),
	}

	go client.writePump()
	go client.readPump()
}

// readPump reads envelopes from the connection and publishes them.
func (c *wsClient) readPump() {
	defer func() {
		c.sub.Unsubscribe()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error("websocket unexpected close", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Warn("dropping malformed envelope", "error", err)
			continue
		}
		c.server.hub.Publish(env)
	}
}

// writePump forwards hub messages to the connection and keeps it alive.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.sub.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
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

// ListenAndServe starts an HTTP server delivering the hub at /ws.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.Handler())
	handler := logging.CombinedMiddleware(mux)

	port := 0
	if _, portStr, err := net.SplitHostPort(addr); err == nil {
		port, _ = strconv.Atoi(portStr)
	}
	logging.ServerStartup("bus", "ws", port, "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}
