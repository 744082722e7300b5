package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/civicdesk/support-signaling/config"
	"github.com/civicdesk/support-signaling/internal/handlers"
	"github.com/civicdesk/support-signaling/internal/middleware"
	"github.com/civicdesk/support-signaling/internal/redis"
	"github.com/civicdesk/support-signaling/internal/relay"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to Redis (ticket storage and room presence)
	rdb, err := redis.Connect(context.Background(), cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	log.Println("Redis connection established")

	// The relay owns all signaling room state; handlers receive it
	// explicitly rather than reaching into package globals.
	signalingRelay := relay.New()
	signalingServer := handlers.NewSignalingServer(signalingRelay, rdb)
	ticketHandler := handlers.NewTicketHandler(rdb)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Global CORS middleware (runs before routing)
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Support ticket API
	apiGroup := router.Group("/api")
	{
		// Admin login endpoint (public)
		apiGroup.POST("/auth/login", handlers.Login(cfg.AdminPassword, cfg.JWTSecret))

		// Create support ticket (public - end users request a call)
		apiGroup.POST("/tickets", ticketHandler.Create)

		// Get ticket info (public)
		apiGroup.GET("/tickets/:ticketId", ticketHandler.Get)

		// Delete ticket (admin only)
		apiGroup.DELETE("/tickets/:ticketId", middleware.JWTAuth(cfg.JWTSecret), ticketHandler.Delete)
	}

	// WebSocket signaling endpoint
	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/signal", signalingServer.HandleSignaling)
	}

	// Start server
	log.Printf("Starting support-call signaling server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
