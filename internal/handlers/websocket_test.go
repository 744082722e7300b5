package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/civicdesk/support-signaling/internal/models"
	"github.com/civicdesk/support-signaling/internal/relay"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	s := NewSignalingServer(relay.New(), nil)
	router.GET("/ws/signal", s.HandleSignaling)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func dialSignaling(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/signal"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendJSON(t *testing.T, ws *websocket.Conn, v interface{}) {
	t.Helper()
	if err := ws.WriteJSON(v); err != nil {
		t.Fatalf("write message: %v", err)
	}
}

func readServerMessage(t *testing.T, ws *websocket.Conn) models.ServerMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var msg models.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return msg
}

func joinRoom(t *testing.T, ws *websocket.Conn, roomID string, isAdmin bool) {
	t.Helper()
	sendJSON(t, ws, models.ClientMessage{
		Type:    models.ClientTypeJoinRoom,
		RoomID:  roomID,
		IsAdmin: isAdmin,
	})
}

// waitJoined blocks until the server has processed this connection's join.
// Joins are not acknowledged, so it probes with an answer: once the room
// exists the rejection is "No offer exists" rather than "Room not found".
func waitJoined(t *testing.T, ws *websocket.Conn, roomID string) {
	t.Helper()
	sendJSON(t, ws, models.ClientMessage{
		Type:   models.ClientTypeAnswer,
		RoomID: roomID,
		Answer: json.RawMessage(`{}`),
	})
	msg := readServerMessage(t, ws)
	if msg.Type != models.ServerTypeError || msg.Message != "No offer exists" {
		t.Fatalf("join probe: %+v", msg)
	}
}

func TestSignalingEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	admin := dialSignaling(t, ts)
	user := dialSignaling(t, ts)

	joinRoom(t, admin, "r1", true)
	joinRoom(t, user, "r1", false)

	// Both sides are told the room is full, exactly once.
	if msg := readServerMessage(t, admin); msg.Type != models.ServerTypeUserConnected {
		t.Fatalf("admin: got %q, want user-connected", msg.Type)
	}
	if msg := readServerMessage(t, user); msg.Type != models.ServerTypeUserConnected {
		t.Fatalf("user: got %q, want user-connected", msg.Type)
	}

	// Offer flows admin -> user.
	sendJSON(t, admin, models.ClientMessage{
		Type:   models.ClientTypeOffer,
		RoomID: "r1",
		Offer:  json.RawMessage(`{"type":"offer","sdp":"X"}`),
	})
	msg := readServerMessage(t, user)
	if msg.Type != models.ServerTypeOffer {
		t.Fatalf("user: got %q, want offer", msg.Type)
	}
	if string(msg.Offer) != `{"type":"offer","sdp":"X"}` {
		t.Fatalf("offer blob altered: %s", msg.Offer)
	}

	// Answer flows user -> admin and re-opens the room.
	sendJSON(t, user, models.ClientMessage{
		Type:   models.ClientTypeAnswer,
		RoomID: "r1",
		Answer: json.RawMessage(`{"type":"answer","sdp":"Y"}`),
	})
	msg = readServerMessage(t, admin)
	if msg.Type != models.ServerTypeAnswer {
		t.Fatalf("admin: got %q, want answer", msg.Type)
	}
	if string(msg.Answer) != `{"type":"answer","sdp":"Y"}` {
		t.Fatalf("answer blob altered: %s", msg.Answer)
	}

	// ICE candidates flow both ways regardless of handshake state.
	sendJSON(t, admin, models.ClientMessage{
		Type:      models.ClientTypeCandidate,
		RoomID:    "r1",
		Candidate: json.RawMessage(`{"candidate":"a"}`),
	})
	if msg := readServerMessage(t, user); msg.Type != models.ServerTypeCandidate || string(msg.Candidate) != `{"candidate":"a"}` {
		t.Fatalf("user candidate: %+v", msg)
	}
	sendJSON(t, user, models.ClientMessage{
		Type:      models.ClientTypeCandidate,
		RoomID:    "r1",
		Candidate: json.RawMessage(`{"candidate":"b"}`),
	})
	if msg := readServerMessage(t, admin); msg.Type != models.ServerTypeCandidate || string(msg.Candidate) != `{"candidate":"b"}` {
		t.Fatalf("admin candidate: %+v", msg)
	}
}

func TestSignalingRoleTaken(t *testing.T) {
	ts := newTestServer(t)

	admin := dialSignaling(t, ts)
	joinRoom(t, admin, "r2", true)
	waitJoined(t, admin, "r2")

	intruder := dialSignaling(t, ts)
	joinRoom(t, intruder, "r2", true)

	msg := readServerMessage(t, intruder)
	if msg.Type != models.ServerTypeError {
		t.Fatalf("intruder: got %q, want error", msg.Type)
	}
	if msg.Message != "Admin already exists in this room" {
		t.Fatalf("error message: %q", msg.Message)
	}

	// The original admin is unaffected and still gets paired.
	user := dialSignaling(t, ts)
	joinRoom(t, user, "r2", false)
	if msg := readServerMessage(t, admin); msg.Type != models.ServerTypeUserConnected {
		t.Fatalf("admin: got %q, want user-connected", msg.Type)
	}
}

func TestSignalingSequencingErrors(t *testing.T) {
	ts := newTestServer(t)

	admin := dialSignaling(t, ts)
	user := dialSignaling(t, ts)
	joinRoom(t, admin, "r4", true)
	joinRoom(t, user, "r4", false)
	readServerMessage(t, admin)
	readServerMessage(t, user)

	// Answer before any offer.
	sendJSON(t, user, models.ClientMessage{
		Type:   models.ClientTypeAnswer,
		RoomID: "r4",
		Answer: json.RawMessage(`{}`),
	})
	if msg := readServerMessage(t, user); msg.Type != models.ServerTypeError || msg.Message != "No offer exists" {
		t.Fatalf("premature answer: %+v", msg)
	}

	// Two offers without an intervening answer.
	sendJSON(t, admin, models.ClientMessage{
		Type:   models.ClientTypeOffer,
		RoomID: "r4",
		Offer:  json.RawMessage(`{}`),
	})
	readServerMessage(t, user) // forwarded offer
	sendJSON(t, admin, models.ClientMessage{
		Type:   models.ClientTypeOffer,
		RoomID: "r4",
		Offer:  json.RawMessage(`{}`),
	})
	if msg := readServerMessage(t, admin); msg.Type != models.ServerTypeError || msg.Message != "Offer already exists" {
		t.Fatalf("duplicate offer: %+v", msg)
	}

	// Offer into an unknown room.
	sendJSON(t, admin, models.ClientMessage{
		Type:   models.ClientTypeOffer,
		RoomID: "missing",
		Offer:  json.RawMessage(`{}`),
	})
	if msg := readServerMessage(t, admin); msg.Type != models.ServerTypeError || msg.Message != "Room not found" {
		t.Fatalf("unknown room: %+v", msg)
	}
}

func TestSignalingDisconnectNotifiesPeer(t *testing.T) {
	ts := newTestServer(t)

	admin := dialSignaling(t, ts)
	user := dialSignaling(t, ts)
	joinRoom(t, admin, "r3", true)
	joinRoom(t, user, "r3", false)
	readServerMessage(t, admin)
	readServerMessage(t, user)

	user.Close()

	if msg := readServerMessage(t, admin); msg.Type != models.ServerTypeUserDisconnected {
		t.Fatalf("admin: got %q, want user-disconnected", msg.Type)
	}

	// The room kept its admin; a replacement user can join.
	replacement := dialSignaling(t, ts)
	joinRoom(t, replacement, "r3", false)
	if msg := readServerMessage(t, admin); msg.Type != models.ServerTypeUserConnected {
		t.Fatalf("admin after rejoin: got %q, want user-connected", msg.Type)
	}
	if msg := readServerMessage(t, replacement); msg.Type != models.ServerTypeUserConnected {
		t.Fatalf("replacement: got %q, want user-connected", msg.Type)
	}
}

func TestSignalingRejectsMalformedMessages(t *testing.T) {
	ts := newTestServer(t)

	ws := dialSignaling(t, ts)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readServerMessage(t, ws); msg.Type != models.ServerTypeError || msg.Message != "Invalid message" {
		t.Fatalf("malformed payload: %+v", msg)
	}

	sendJSON(t, ws, map[string]string{"type": "hangup", "roomId": "r1"})
	if msg := readServerMessage(t, ws); msg.Type != models.ServerTypeError || msg.Message == "" {
		t.Fatalf("unknown type: %+v", msg)
	}

	// A malformed message never kills the connection.
	joinRoom(t, ws, "r9", true)
	user := dialSignaling(t, ts)
	joinRoom(t, user, "r9", false)
	if msg := readServerMessage(t, ws); msg.Type != models.ServerTypeUserConnected {
		t.Fatalf("join after error: got %q, want user-connected", msg.Type)
	}
}
