// Package relay implements the in-memory signaling core: a table of rooms,
// each pairing one admin connection with one user connection, brokering the
// WebRTC offer/answer/ICE-candidate exchange between them.
//
// The relay is transport-agnostic. Connections are identified by opaque
// ConnIDs and every operation returns the set of envelopes to deliver, so the
// core can be driven and tested without a live WebSocket.
package relay

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/civicdesk/support-signaling/internal/models"
)

// ConnID identifies a client connection. IDs are assigned by the transport
// layer and are opaque to the relay.
type ConnID string

// Error text is sent verbatim to clients in the error event, so it matches
// the wire protocol rather than Go error-string conventions.
var (
	ErrAdminTaken     = errors.New("Admin already exists in this room")
	ErrUserTaken      = errors.New("User already exists in this room")
	ErrRoomNotFound   = errors.New("Room not found")
	ErrOfferPending   = errors.New("Offer already exists")
	ErrNoOfferPending = errors.New("No offer exists")
)

// Envelope is an outbound message addressed to a single connection.
type Envelope struct {
	To  ConnID
	Msg models.ServerMessage
}

// Relay owns the room table. All access goes through its methods; a single
// mutex serializes mutations, which is sufficient because no operation blocks.
type Relay struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func New() *Relay {
	return &Relay{
		rooms: make(map[string]*room),
	}
}

// Join binds a connection to the admin or user slot of a room, creating the
// room if it does not exist. When the join fills the second slot, both
// occupants are sent a user-connected event so the admin side knows it may
// initiate an offer.
func (r *Relay) Join(roomID string, id ConnID, isAdmin bool) ([]Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{}
		r.rooms[roomID] = rm
	}

	if isAdmin {
		if rm.admin != "" {
			return nil, ErrAdminTaken
		}
		rm.admin = id
	} else {
		if rm.user != "" {
			return nil, ErrUserTaken
		}
		rm.user = id
	}

	if rm.full() {
		connected := models.ServerMessage{Type: models.ServerTypeUserConnected}
		return []Envelope{
			{To: rm.admin, Msg: connected},
			{To: rm.user, Msg: connected},
		}, nil
	}
	return nil, nil
}

// Offer forwards an SDP offer to the room's user connection and marks the
// room as having an unanswered offer. At most one offer may be outstanding
// per room; concurrent renegotiation attempts are rejected until the current
// offer is answered.
//
// If the user slot is empty the offer is still marked pending but has no
// recipient; the admin client re-offers when it sees user-connected.
func (r *Relay) Offer(roomID string, from ConnID, offer json.RawMessage) ([]Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if rm.offerPending {
		return nil, ErrOfferPending
	}

	rm.offerPending = true
	if rm.user == "" {
		return nil, nil
	}
	return []Envelope{
		{To: rm.user, Msg: models.ServerMessage{Type: models.ServerTypeOffer, Offer: offer}},
	}, nil
}

// Answer forwards an SDP answer to the room's admin connection. It is only
// accepted while an offer is pending; the pending flag is cleared so the room
// is open for a future renegotiation cycle.
func (r *Relay) Answer(roomID string, from ConnID, answer json.RawMessage) ([]Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if !rm.offerPending {
		return nil, ErrNoOfferPending
	}

	rm.offerPending = false
	if rm.admin == "" {
		return nil, nil
	}
	return []Envelope{
		{To: rm.admin, Msg: models.ServerMessage{Type: models.ServerTypeAnswer, Answer: answer}},
	}, nil
}

// Candidate broadcasts an ICE candidate to every other occupant of the room.
// Candidates may arrive at any point relative to the offer/answer exchange
// and are delivered best-effort: no peer present means no delivery, never an
// error.
func (r *Relay) Candidate(roomID string, from ConnID, candidate json.RawMessage) []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	msg := models.ServerMessage{Type: models.ServerTypeCandidate, Candidate: candidate}
	var out []Envelope
	for _, occupant := range rm.occupants() {
		if occupant != from {
			out = append(out, Envelope{To: occupant, Msg: msg})
		}
	}
	return out
}

// Disconnect removes a connection from any room slot it holds. An in-flight
// handshake is invalidated, the remaining occupant (if any) is notified with
// user-disconnected, and rooms left with both slots empty are deleted.
//
// A connection holds at most one slot, but the sweep covers the whole table
// in case of inconsistent state.
func (r *Relay) Disconnect(id ConnID) []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Envelope
	for roomID, rm := range r.rooms {
		left := false
		if rm.admin == id {
			rm.admin = ""
			left = true
		}
		if rm.user == id {
			rm.user = ""
			left = true
		}
		if !left {
			continue
		}

		rm.offerPending = false
		for _, occupant := range rm.occupants() {
			out = append(out, Envelope{To: occupant, Msg: models.ServerMessage{Type: models.ServerTypeUserDisconnected}})
		}
		if rm.empty() {
			delete(r.rooms, roomID)
		}
	}
	return out
}

// RoomCount reports the number of live rooms.
func (r *Relay) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
