package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/civicdesk/support-signaling/internal/models"
	"github.com/civicdesk/support-signaling/internal/relay"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 64 KB is enough for SDP blobs.
	maxMessageSize = 64 * 1024

	presenceTTL = 24 * time.Hour
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Client represents a WebSocket client connection.
type Client struct {
	ID     relay.ConnID
	RoomID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// SignalingServer accepts WebSocket connections and routes their signaling
// messages through the relay. It keeps the registry mapping connection IDs to
// live clients so relay envelopes can be delivered.
//
// rdb mirrors room presence into Redis for the ticket API; a nil client
// disables mirroring without affecting signaling.
type SignalingServer struct {
	relay *relay.Relay
	rdb   *redis.Client

	mu      sync.RWMutex
	clients map[relay.ConnID]*Client
}

func NewSignalingServer(r *relay.Relay, rdb *redis.Client) *SignalingServer {
	return &SignalingServer{
		relay:   r,
		rdb:     rdb,
		clients: make(map[relay.ConnID]*Client),
	}
}

// HandleSignaling upgrades the HTTP connection and runs the client's read and
// write pumps.
func (s *SignalingServer) HandleSignaling(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		ID:   relay.ConnID(uuid.New().String()),
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()

	log.Printf("Client connected: %s", client.ID)

	go client.writePump()
	go s.readPump(client)
}

func (s *SignalingServer) readPump(c *Client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.ID)
		s.mu.Unlock()
		c.Conn.Close()

		// Invalidate the client's room membership and tell the remaining
		// peer. Disconnects are a normal lifecycle transition, not errors.
		s.deliver(s.relay.Disconnect(c.ID))
		s.removePresence(c)

		log.Printf("Client disconnected: %s", c.ID)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg models.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendTo(c, models.ErrorMessage("Invalid message"))
			continue
		}

		// Every handler fault is converted into an error event for this
		// connection only; a bad handshake never disturbs other rooms.
		s.dispatch(c, &msg)
	}
}

// dispatch routes one client message through the relay and delivers the
// resulting envelopes.
func (s *SignalingServer) dispatch(c *Client, msg *models.ClientMessage) {
	if err := msg.Validate(); err != nil {
		s.sendTo(c, models.ErrorMessage(err.Error()))
		return
	}

	switch msg.Type {
	case models.ClientTypeJoinRoom:
		envs, err := s.relay.Join(msg.RoomID, c.ID, msg.IsAdmin)
		if err != nil {
			s.sendTo(c, models.ErrorMessage(err.Error()))
			return
		}
		c.RoomID = msg.RoomID
		s.addPresence(c)
		role := "User"
		if msg.IsAdmin {
			role = "Admin"
		}
		log.Printf("%s %s joined room %s", role, c.ID, msg.RoomID)
		s.deliver(envs)

	case models.ClientTypeOffer:
		envs, err := s.relay.Offer(msg.RoomID, c.ID, msg.Offer)
		if err != nil {
			s.sendTo(c, models.ErrorMessage(err.Error()))
			return
		}
		s.deliver(envs)

	case models.ClientTypeAnswer:
		envs, err := s.relay.Answer(msg.RoomID, c.ID, msg.Answer)
		if err != nil {
			s.sendTo(c, models.ErrorMessage(err.Error()))
			return
		}
		s.deliver(envs)

	case models.ClientTypeCandidate:
		s.deliver(s.relay.Candidate(msg.RoomID, c.ID, msg.Candidate))
	}
}

func (s *SignalingServer) deliver(envs []relay.Envelope) {
	for _, env := range envs {
		s.mu.RLock()
		client, ok := s.clients[env.To]
		s.mu.RUnlock()
		if !ok {
			log.Printf("Target connection %s not found", env.To)
			continue
		}
		s.sendTo(client, env.Msg)
	}
}

func (s *SignalingServer) sendTo(c *Client, msg models.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}

	select {
	case c.Send <- data:
	default:
		log.Printf("Failed to send message to %s, buffer full", c.ID)
	}
}

func (s *SignalingServer) addPresence(c *Client) {
	if s.rdb == nil || c.RoomID == "" {
		return
	}
	ctx := context.Background()
	key := "room:" + c.RoomID + ":peers"
	s.rdb.SAdd(ctx, key, string(c.ID))
	s.rdb.Expire(ctx, key, presenceTTL)
}

func (s *SignalingServer) removePresence(c *Client) {
	if s.rdb == nil || c.RoomID == "" {
		return
	}
	s.rdb.SRem(context.Background(), "room:"+c.RoomID+":peers", string(c.ID))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
