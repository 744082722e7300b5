package models

import "time"

// Ticket status values.
const (
	TicketStatusPending   = "pending"
	TicketStatusCompleted = "completed"
)

// SupportTicket stores information about a support call request. Its ID doubles
// as the signaling room ID that both participants connect with.
type SupportTicket struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"` // Short, shareable ticket code (e.g., "ABCD123")
	DisplayName string    `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Status      string    `json:"status"`
	PeerCount   int       `json:"peerCount"`
}

// CreateTicketRequest is the request body for creating a support ticket.
type CreateTicketRequest struct {
	DisplayName string `json:"displayName,omitempty"`
}

// CreateTicketResponse is the response for creating a support ticket.
type CreateTicketResponse struct {
	TicketID string `json:"ticketId"`
	RoomID   string `json:"roomId"`
	Code     string `json:"code"`
}
