package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsHeartbeatWindow is how long a connection may go without a pong before
// it is considered dead (deadline = last-seen + window, connection
// considered active while deadline is in the future).
const wsHeartbeatWindow = 30 * time.Second

const wsPingInterval = wsHeartbeatWindow / 3

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient adapts one live WebSocket connection to coordinator.Broadcaster
// and tracks its own liveness deadline.
type wsClient struct {
	id   string
	conn *websocket.Conn

	mu       sync.Mutex
	writeMu  sync.Mutex
	deadline time.Time
}

func newWSClient(conn *websocket.Conn) *wsClient {
	c := &wsClient{id: uuid.NewString(), conn: conn}
	c.heartbeat()
	return c
}

func (c *wsClient) heartbeat() {
	c.mu.Lock()
	c.deadline = time.Now().Add(wsHeartbeatWindow)
	c.mu.Unlock()
}

func (c *wsClient) active(at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline.After(at)
}

// Send implements coordinator.Broadcaster. Writes are serialized per
// connection since gorilla/websocket forbids concurrent writers.
func (c *wsClient) Send(_ string, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type inboundMessage struct {
	Type   string             `json:"type"`
	Joints map[string]float64 `json:"joints"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	client := newWSClient(conn)
	conn.SetPongHandler(func(string) error {
		client.heartbeat()
		return nil
	})

	init := s.coord.Register(client.id, client)
	if err := client.Send(client.id, mustMarshal(init)); err != nil {
		s.coord.Unregister(client.id)
		conn.Close()
		return
	}

	stop := make(chan struct{})
	go s.pingLoop(client, stop)

	defer func() {
		close(stop)
		s.coord.Unregister(client.id)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		client.heartbeat()

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warnw("dropping malformed websocket message", "error", err)
			continue
		}
		if msg.Type == "joint_update" {
			s.coord.SetJoints(msg.Joints)
		}
	}
}

// pingLoop sends periodic pings and closes the connection if the client
// stops answering within its heartbeat window, freeing the reader
// goroutine blocked in ReadMessage.
func (s *Server) pingLoop(client *wsClient, stop chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !client.active(time.Now()) {
				client.conn.Close()
				return
			}
			client.writeMu.Lock()
			err := client.conn.WriteMessage(websocket.PingMessage, nil)
			client.writeMu.Unlock()
			if err != nil {
				client.conn.Close()
				return
			}
		}
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return data
}
