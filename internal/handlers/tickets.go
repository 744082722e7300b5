package handlers

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/civicdesk/support-signaling/internal/models"
)

const (
	ticketCodeLength = 6
	ticketTTL        = 24 * time.Hour
	codeChars        = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // Removed ambiguous chars
)

// TicketHandler serves the support-request API. A ticket's ID doubles as the
// signaling room ID both call participants connect with.
type TicketHandler struct {
	rdb *redis.Client
}

func NewTicketHandler(rdb *redis.Client) *TicketHandler {
	return &TicketHandler{rdb: rdb}
}

// Create creates a new support ticket (public).
func (h *TicketHandler) Create(c *gin.Context) {
	var req models.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticketID := uuid.New().String()
	code := generateTicketCode()

	ticket := models.SupportTicket{
		ID:          ticketID,
		Code:        code,
		DisplayName: req.DisplayName,
		CreatedAt:   time.Now(),
		Status:      models.TicketStatusPending,
	}

	ctx := c.Request.Context()

	ticketData, err := json.Marshal(ticket)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create ticket"})
		return
	}

	if err := h.rdb.Set(ctx, "ticket:"+ticketID, ticketData, ticketTTL).Err(); err != nil {
		log.Printf("Failed to store ticket in Redis: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create ticket"})
		return
	}

	// Store code-to-ID mapping for easy lookup
	if err := h.rdb.Set(ctx, "code:"+code, ticketID, ticketTTL).Err(); err != nil {
		log.Printf("Failed to store ticket code in Redis: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create ticket"})
		return
	}

	log.Printf("Support ticket created: %s (code: %s)", ticketID, code)

	c.JSON(http.StatusCreated, models.CreateTicketResponse{
		TicketID: ticketID,
		RoomID:   ticketID,
		Code:     code,
	})
}

// Get returns ticket information by code or ID (public).
func (h *TicketHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	ticketID, err := h.resolveTicketID(ctx, c.Param("ticketId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
		return
	}

	ticketData, err := h.rdb.Get(ctx, "ticket:"+ticketID).Result()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
		return
	}

	var ticket models.SupportTicket
	if err := json.Unmarshal([]byte(ticketData), &ticket); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse ticket data"})
		return
	}

	// Presence mirrored by the signaling endpoint
	peerCount, _ := h.rdb.SCard(ctx, "room:"+ticketID+":peers").Result()
	ticket.PeerCount = int(peerCount)

	c.JSON(http.StatusOK, ticket)
}

// Delete removes a ticket (admin only).
func (h *TicketHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	ticketID, err := h.resolveTicketID(ctx, c.Param("ticketId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
		return
	}

	ticketData, err := h.rdb.Get(ctx, "ticket:"+ticketID).Result()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
		return
	}

	var ticket models.SupportTicket
	if err := json.Unmarshal([]byte(ticketData), &ticket); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse ticket data"})
		return
	}

	h.rdb.Del(ctx, "ticket:"+ticketID)
	h.rdb.Del(ctx, "code:"+ticket.Code)
	h.rdb.Del(ctx, "room:"+ticketID+":peers")

	log.Printf("Support ticket deleted: %s", ticketID)

	c.JSON(http.StatusOK, gin.H{"message": "Ticket deleted"})
}

// resolveTicketID accepts either a short ticket code or a full ticket ID.
func (h *TicketHandler) resolveTicketID(ctx context.Context, identifier string) (string, error) {
	if len(identifier) == ticketCodeLength {
		return h.rdb.Get(ctx, "code:"+identifier).Result()
	}
	return identifier, nil
}

// generateTicketCode generates a random shareable ticket code.
func generateTicketCode() string {
	code := make([]byte, ticketCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}
