package models

import (
	"encoding/json"
	"fmt"
)

// ClientMessageType is the type of a signaling message sent by a client.
type ClientMessageType string

const (
	ClientTypeJoinRoom  ClientMessageType = "join-room"
	ClientTypeOffer     ClientMessageType = "offer"
	ClientTypeAnswer    ClientMessageType = "answer"
	ClientTypeCandidate ClientMessageType = "ice-candidate"
)

// ServerMessageType is the type of a signaling message sent to a client.
type ServerMessageType string

const (
	ServerTypeUserConnected    ServerMessageType = "user-connected"
	ServerTypeUserDisconnected ServerMessageType = "user-disconnected"
	ServerTypeOffer            ServerMessageType = "offer"
	ServerTypeAnswer           ServerMessageType = "answer"
	ServerTypeCandidate        ServerMessageType = "ice-candidate"
	ServerTypeError            ServerMessageType = "error"
)

// ClientMessage is a signaling message received over the WebSocket.
// SDP and ICE payloads are opaque blobs; the server never parses them.
type ClientMessage struct {
	Type      ClientMessageType `json:"type"`
	RoomID    string            `json:"roomId"`
	IsAdmin   bool              `json:"isAdmin,omitempty"`
	Offer     json.RawMessage   `json:"offer,omitempty"`
	Answer    json.RawMessage   `json:"answer,omitempty"`
	Candidate json.RawMessage   `json:"candidate,omitempty"`
}

// Validate checks that the fields required by the message type are present.
func (m *ClientMessage) Validate() error {
	if m.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}

	switch m.Type {
	case ClientTypeJoinRoom:
		return nil
	case ClientTypeOffer:
		if len(m.Offer) == 0 {
			return fmt.Errorf("offer payload is required")
		}
		return nil
	case ClientTypeAnswer:
		if len(m.Answer) == 0 {
			return fmt.Errorf("answer payload is required")
		}
		return nil
	case ClientTypeCandidate:
		if len(m.Candidate) == 0 {
			return fmt.Errorf("candidate payload is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
}

// ServerMessage is a signaling message delivered to a client.
type ServerMessage struct {
	Type      ServerMessageType `json:"type"`
	Offer     json.RawMessage   `json:"offer,omitempty"`
	Answer    json.RawMessage   `json:"answer,omitempty"`
	Candidate json.RawMessage   `json:"candidate,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// ErrorMessage builds the error event sent to a connection whose request
// was rejected.
func ErrorMessage(message string) ServerMessage {
	return ServerMessage{Type: ServerTypeError, Message: message}
}
